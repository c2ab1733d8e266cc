package chain

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

func TestClientMissingConfig(t *testing.T) {
	c := NewClient(Options{}, zerolog.Nop())
	if _, err := c.Commitment(context.Background(), common.Hash{}, common.Hash{}, 20260831); err == nil {
		t.Fatal("missing rpc url should error")
	}

	c = NewClient(Options{RPCURL: "http://localhost"}, zerolog.Nop())
	if _, err := c.Commitment(context.Background(), common.Hash{}, common.Hash{}, 20260831); err == nil {
		t.Fatal("missing consumer address should error")
	}
}

func TestSendReportMissingKey(t *testing.T) {
	c := NewClient(Options{RPCURL: "http://localhost", ConsumerAddress: "0x1"}, zerolog.Nop())
	_, err := c.SendReport(context.Background(), Report{Value1e6: big.NewInt(1)})
	if err == nil {
		t.Fatal("missing private key should error")
	}
}

func TestIDsAreKeccakOfUTF8(t *testing.T) {
	if got := AreaID("SE2").Hex(); len(got) != 66 {
		t.Fatalf("AreaID must be 32 bytes hex: %q", got)
	}
	if IndexID("NPX-SE2") == AreaID("SE2") {
		t.Fatal("distinct names must not collide")
	}
	if IndexID("a") != IndexID("a") {
		t.Fatal("ids must be deterministic")
	}
}

func TestEncodeReportLayout(t *testing.T) {
	r := Report{
		IndexID:     IndexID("NORDPOOL_DAYAHEAD"),
		YYYYMMDD:    20260831,
		AreaID:      AreaID("SE2"),
		Value1e6:    big.NewInt(-12_345_678),
		DatasetHash: common.HexToHash("0x01"),
	}

	encoded, err := EncodeReport(r)
	if err != nil {
		t.Fatal(err)
	}
	// Five static 32-byte words.
	if len(encoded) != 5*32 {
		t.Fatalf("encoded length %d, want 160", len(encoded))
	}

	// Word 4 is value1e6 in two's complement; negative -> sign byte 0xff.
	if encoded[3*32] != 0xff {
		t.Fatalf("negative value1e6 not sign extended: %x", encoded[3*32])
	}
}
