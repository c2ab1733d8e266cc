package chain

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
)

const (
	consumerABIJSON = `[{"inputs":[{"internalType":"bytes32","name":"indexId","type":"bytes32"},{"internalType":"bytes32","name":"areaId","type":"bytes32"},{"internalType":"uint32","name":"yyyymmdd","type":"uint32"}],"name":"commitments","outputs":[{"internalType":"bytes32","name":"datasetHash","type":"bytes32"},{"internalType":"int256","name":"value1e6","type":"int256"},{"internalType":"address","name":"reporter","type":"address"},{"internalType":"uint64","name":"reportedAt","type":"uint64"}],"stateMutability":"view","type":"function"}]`
)

var (
	consumerABI abi.ABI
	reportArgs  abi.Arguments
)

func init() {
	parsed, err := abi.JSON(strings.NewReader(consumerABIJSON))
	if err != nil {
		panic("failed to parse consumer ABI: " + err.Error())
	}
	consumerABI = parsed

	bytes32T, _ := abi.NewType("bytes32", "", nil)
	uint32T, _ := abi.NewType("uint32", "", nil)
	int256T, _ := abi.NewType("int256", "", nil)
	reportArgs = abi.Arguments{
		{Name: "indexId", Type: bytes32T},
		{Name: "yyyymmdd", Type: uint32T},
		{Name: "areaId", Type: bytes32T},
		{Name: "value1e6", Type: int256T},
		{Name: "datasetHash", Type: bytes32T},
	}
}

// IndexID derives the bytes32 index identifier: keccak256 of the UTF-8
// index name.
func IndexID(indexName string) common.Hash {
	return crypto.Keccak256Hash([]byte(indexName))
}

// AreaID derives the bytes32 area identifier from an area code like "SE2".
func AreaID(areaCode string) common.Hash {
	return crypto.Keccak256Hash([]byte(areaCode))
}

// Commitment mirrors the consumer contract's stored record for one
// (index, area, date). ReportedAt == 0 means not yet committed.
type Commitment struct {
	DatasetHash common.Hash
	Value1e6    *big.Int
	Reporter    common.Address
	ReportedAt  uint64
}

// Report is the payload committed on-chain for one area and delivery date.
type Report struct {
	IndexID     common.Hash
	YYYYMMDD    uint32
	AreaID      common.Hash
	Value1e6    *big.Int
	DatasetHash common.Hash
}

// Options parameterise the chain client.
type Options struct {
	RPCURL          string
	ConsumerAddress string
	ChainID         int64
	PrivateKey      string
	GasLimit        uint64
	Timeout         time.Duration
}

// Client reads index commitments from, and submits reports to, the consumer
// contract over Ethereum RPC.
type Client struct {
	opts      Options
	logger    zerolog.Logger
	client    *ethclient.Client
	clientMux sync.Mutex
}

// NewClient builds a chain client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	return &Client{opts: opts, logger: logger.With().Str("component", "chain_client").Logger()}
}

// Commitment reads the stored commitment for one (indexId, areaId, date).
// Empty return data (contract not yet deployed, wrong address) is reported
// as not-committed rather than an error.
func (c *Client) Commitment(ctx context.Context, indexID, areaID common.Hash, yyyymmdd uint32) (Commitment, error) {
	if c.opts.RPCURL == "" {
		return Commitment{}, errors.New("ethereum rpc url not configured")
	}
	if c.opts.ConsumerAddress == "" {
		return Commitment{}, errors.New("consumer contract address not configured")
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	client, err := c.getClient(ctx)
	if err != nil {
		return Commitment{}, err
	}

	payload, err := consumerABI.Pack("commitments", indexID, areaID, yyyymmdd)
	if err != nil {
		return Commitment{}, err
	}

	addr := common.HexToAddress(c.opts.ConsumerAddress)
	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, nil)
	if err != nil {
		return Commitment{}, err
	}
	if len(res) == 0 {
		return Commitment{}, nil
	}

	outputs, err := consumerABI.Unpack("commitments", res)
	if err != nil {
		return Commitment{}, err
	}
	if len(outputs) != 4 {
		return Commitment{}, errors.New("unexpected commitments response shape")
	}

	hashBytes, ok := outputs[0].([32]byte)
	if !ok {
		return Commitment{}, errors.New("failed to decode datasetHash")
	}
	value, ok := outputs[1].(*big.Int)
	if !ok {
		return Commitment{}, errors.New("failed to decode value1e6")
	}
	reporter, ok := outputs[2].(common.Address)
	if !ok {
		return Commitment{}, errors.New("failed to decode reporter")
	}
	reportedAt, ok := outputs[3].(uint64)
	if !ok {
		return Commitment{}, errors.New("failed to decode reportedAt")
	}

	return Commitment{
		DatasetHash: common.Hash(hashBytes),
		Value1e6:    value,
		Reporter:    reporter,
		ReportedAt:  reportedAt,
	}, nil
}

// EncodeReport ABI-encodes the report tuple exactly as the consumer's
// onReport handler decodes it.
func EncodeReport(r Report) ([]byte, error) {
	return reportArgs.Pack(r.IndexID, r.YYYYMMDD, r.AreaID, r.Value1e6, r.DatasetHash)
}

// SendReport encodes and submits a report transaction to the consumer
// contract, returning the transaction hash.
func (c *Client) SendReport(ctx context.Context, r Report) (string, error) {
	if c.opts.PrivateKey == "" {
		return "", errors.New("reporter private key not configured")
	}
	if c.opts.ChainID == 0 {
		return "", errors.New("chain id not configured")
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	client, err := c.getClient(ctx)
	if err != nil {
		return "", err
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(c.opts.PrivateKey, "0x"))
	if err != nil {
		return "", errors.New("invalid reporter private key")
	}

	payload, err := EncodeReport(r)
	if err != nil {
		return "", err
	}

	from := crypto.PubkeyToAddress(key.PublicKey)
	nonce, err := client.PendingNonceAt(ctx, from)
	if err != nil {
		return "", err
	}
	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return "", err
	}

	gasLimit := c.opts.GasLimit
	if gasLimit == 0 {
		gasLimit = 500_000
	}

	to := common.HexToAddress(c.opts.ConsumerAddress)
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     payload,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(big.NewInt(c.opts.ChainID)), key)
	if err != nil {
		return "", err
	}
	if err := client.SendTransaction(ctx, signed); err != nil {
		return "", err
	}

	txHash := signed.Hash().Hex()
	c.logger.Info().Str("tx", txHash).Uint32("yyyymmdd", r.YYYYMMDD).Msg("report submitted")
	return txHash, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := c.opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

func (c *Client) getClient(ctx context.Context) (*ethclient.Client, error) {
	c.clientMux.Lock()
	defer c.clientMux.Unlock()

	if c.client != nil {
		return c.client, nil
	}

	client, err := ethclient.DialContext(ctx, c.opts.RPCURL)
	if err != nil {
		return nil, err
	}
	c.client = client
	return client, nil
}
