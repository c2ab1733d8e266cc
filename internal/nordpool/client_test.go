package nordpool

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testClient(srv *httptest.Server) *Client {
	return NewClient(Options{
		TokenURL:  srv.URL + "/connect/token",
		APIURL:    srv.URL + "/api/v2/Auction/Prices/ByAreas",
		Market:    "DayAhead",
		Currency:  "EUR",
		BasicAuth: "YmFzZTY0",
		Username:  "user",
		Password:  "pass",
		Scope:     "marketdata_api",
		Timeout:   time.Second,
		UserAgent: "test",
	}, zerolog.Nop())
}

func TestTokenSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/connect/token" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Basic YmFzZTY0" {
			t.Fatalf("authorization header %q", got)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if r.PostForm.Get("grant_type") != "password" || r.PostForm.Get("username") != "user" {
			t.Fatalf("unexpected form: %v", r.PostForm)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "abc", "expires_in": 3600, "token_type": "Bearer"})
	}))
	defer srv.Close()

	token, err := testClient(srv).Token(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if token != "abc" {
		t.Fatalf("token = %q", token)
	}
}

func TestTokenMissingAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"expires_in": 3600})
	}))
	defer srv.Close()

	if _, err := testClient(srv).Token(context.Background()); err == nil {
		t.Fatal("empty access_token should error")
	}
}

func TestTokenHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_client"})
	}))
	defer srv.Close()

	if _, err := testClient(srv).Token(context.Background()); err == nil {
		t.Fatal("HTTP 401 should error")
	}
}

func TestDayAheadPrices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer abc" {
			t.Fatalf("authorization header %q", got)
		}
		q := r.URL.Query()
		if q.Get("market") != "DayAhead" || q.Get("areas") != "SE2,NO1" || q.Get("date") != "2026-08-31" {
			t.Fatalf("unexpected query: %v", q)
		}
		price := 42.5
		_ = json.NewEncoder(w).Encode([]AreaPrices{{
			DeliveryArea: "SE2",
			Status:       StatusFinal,
			Prices: []PricePeriod{
				{DeliveryStart: "2026-08-31T00:00:00Z", DeliveryEnd: "2026-08-31T00:15:00Z", Price: &price},
				{DeliveryStart: "2026-08-31T00:15:00Z", DeliveryEnd: "2026-08-31T00:30:00Z", Price: nil},
			},
		}})
	}))
	defer srv.Close()

	data, err := testClient(srv).DayAheadPrices(context.Background(), "abc", []string{"SE2", "NO1"}, "2026-08-31")
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 1 || data[0].DeliveryArea != "SE2" {
		t.Fatalf("unexpected response: %+v", data)
	}
	if data[0].Prices[0].Price == nil || *data[0].Prices[0].Price != 42.5 {
		t.Fatal("price must round trip")
	}
	if data[0].Prices[1].Price != nil {
		t.Fatal("null price must decode to nil")
	}
}

func TestDayAheadPricesEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]AreaPrices{})
	}))
	defer srv.Close()

	if _, err := testClient(srv).DayAheadPrices(context.Background(), "abc", []string{"SE2"}, "2026-08-31"); err == nil {
		t.Fatal("empty batched response should error")
	}
}

func TestDayAheadVolumes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buy := 120.25
		_ = json.NewEncoder(w).Encode([]AreaVolumes{{
			DeliveryArea: "SE2",
			Status:       StatusFinal,
			Volumes:      []VolumePeriod{{DeliveryStart: "2026-08-31T00:00:00Z", Buy: &buy}},
		}})
	}))
	defer srv.Close()

	data, err := testClient(srv).DayAheadVolumes(context.Background(), "abc", []string{"SE2"}, "2026-08-31")
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 1 || *data[0].Volumes[0].Buy != 120.25 {
		t.Fatalf("unexpected response: %+v", data)
	}
}

func TestDayAheadVolumesDedicatedEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/Auction/Volumes/ByAreas" {
			t.Fatalf("volumes must hit their own endpoint, got %s", r.URL.Path)
		}
		buy := 1.0
		_ = json.NewEncoder(w).Encode([]AreaVolumes{{
			DeliveryArea: "SE2",
			Status:       StatusFinal,
			Volumes:      []VolumePeriod{{DeliveryStart: "2026-08-31T00:00:00Z", Buy: &buy}},
		}})
	}))
	defer srv.Close()

	c := NewClient(Options{
		APIURL:        srv.URL + "/api/v2/Auction/Prices/ByAreas",
		VolumesAPIURL: srv.URL + "/api/v2/Auction/Volumes/ByAreas",
		Currency:      "EUR",
	}, zerolog.Nop())

	if _, err := c.DayAheadVolumes(context.Background(), "abc", []string{"SE2"}, "2026-08-31"); err != nil {
		t.Fatal(err)
	}
}

func TestVolumesURLDerivedWhenUnset(t *testing.T) {
	c := NewClient(Options{APIURL: "https://example.test/api/Prices/ByAreas/"}, zerolog.Nop())
	want := "https://example.test/api/Prices/ByAreas/AggregateVolumes"
	if got := c.volumesURL(); got != want {
		t.Fatalf("derived volumes url = %q, want %q", got, want)
	}
}

func TestMissingCredentials(t *testing.T) {
	c := NewClient(Options{TokenURL: "http://localhost"}, zerolog.Nop())
	if _, err := c.Token(context.Background()); err == nil {
		t.Fatal("missing credentials should error")
	}
}
