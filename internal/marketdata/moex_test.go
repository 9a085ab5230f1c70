package marketdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"moex-trader/internal/clock"
	"moex-trader/internal/config"
)

const issFixture = `{
  "candles": {
    "columns": ["open", "close", "high", "low", "value", "volume", "begin", "end"],
    "data": [
      [250.5, 252.1, 253.0, 249.8, 1250000.5, 5000, "2024-03-15 11:00:00", "2024-03-15 12:00:00"],
      [248.0, 250.5, 251.2, 247.5, 980000.0, 3900, "2024-03-15 10:00:00", "2024-03-15 11:00:00"]
    ]
  }
}`

func newTestMoexClient(baseURL string, maxAttempts int) *MoexClient {
	return NewMoexClient(config.MoexConfig{
		BaseURL: baseURL,
		Timeout: 2 * time.Second,
		Retry: config.RetryConfig{
			MaxAttempts: maxAttempts,
			MinDelay:    time.Millisecond,
			MaxDelay:    5 * time.Millisecond,
		},
	}, nil)
}

func TestMoexClient_ParsesAndSortsCandles(t *testing.T) {
	var gotPath string
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = map[string]string{
			"from":     r.URL.Query().Get("from"),
			"till":     r.URL.Query().Get("till"),
			"interval": r.URL.Query().Get("interval"),
			"iss.meta": r.URL.Query().Get("iss.meta"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(issFixture))
	}))
	defer server.Close()

	client := newTestMoexClient(server.URL, 1)
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, clock.Moscow)

	candles, err := client.Candles(context.Background(), "SBER", day, time.Hour)
	if err != nil {
		t.Fatalf("Candles returned error: %v", err)
	}

	if gotPath != "/iss/engines/stock/markets/shares/securities/SBER/candles.json" {
		t.Errorf("unexpected request path %q", gotPath)
	}
	if gotQuery["from"] != "2024-03-15" || gotQuery["till"] != "2024-03-15" {
		t.Errorf("unexpected day window: %v", gotQuery)
	}
	if gotQuery["interval"] != "60" {
		t.Errorf("expected interval 60, got %q", gotQuery["interval"])
	}
	if gotQuery["iss.meta"] != "off" {
		t.Errorf("expected iss.meta=off, got %q", gotQuery["iss.meta"])
	}

	if len(candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(candles))
	}
	// 响应中的行是乱序的，客户端必须按结束时间升序返回。
	if !candles[0].End.Before(candles[1].End) {
		t.Errorf("candles are not sorted by end time: %v %v", candles[0].End, candles[1].End)
	}

	first := candles[0]
	if first.Open != 248.0 || first.Close != 250.5 || first.Volume != 3900 || first.Value != 980000.0 {
		t.Errorf("unexpected first candle fields: %+v", first)
	}
	if first.Instrument != "SBER" {
		t.Errorf("expected instrument SBER, got %q", first.Instrument)
	}

	wantEnd := time.Date(2024, 3, 15, 11, 0, 0, 0, clock.Moscow)
	if !first.End.Equal(wantEnd) {
		t.Errorf("expected end %s in MSK, got %s", wantEnd, first.End)
	}
}

func TestMoexClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(issFixture))
	}))
	defer server.Close()

	client := newTestMoexClient(server.URL, 5)
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, clock.Moscow)

	candles, err := client.Candles(context.Background(), "SBER", day, time.Hour)
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
	if len(candles) != 2 {
		t.Errorf("expected 2 candles, got %d", len(candles))
	}
}

func TestMoexClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestMoexClient(server.URL, 5)
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, clock.Moscow)

	_, err := client.Candles(context.Background(), "SBER", day, time.Hour)
	if err == nil {
		t.Fatal("expected error on 404")
	}
	var statusErr *statusError
	if !errors.As(err, &statusErr) || statusErr.code != http.StatusNotFound {
		t.Fatalf("expected status error 404, got %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("404 must not be retried, got %d attempts", got)
	}
}

func TestMoexClient_UnsupportedPeriod(t *testing.T) {
	client := newTestMoexClient("http://example.invalid", 1)

	_, err := client.Candles(context.Background(), "SBER", time.Now(), 7*time.Minute)
	if !errors.Is(err, ErrUnsupportedPeriod) {
		t.Fatalf("expected ErrUnsupportedPeriod, got %v", err)
	}
}

func TestIssInterval(t *testing.T) {
	cases := []struct {
		period time.Duration
		want   int
	}{
		{time.Minute, 1},
		{10 * time.Minute, 10},
		{time.Hour, 60},
		{24 * time.Hour, 24},
	}
	for _, tc := range cases {
		got, err := issInterval(tc.period)
		if err != nil {
			t.Errorf("issInterval(%s) returned error: %v", tc.period, err)
			continue
		}
		if got != tc.want {
			t.Errorf("issInterval(%s) = %d, want %d", tc.period, got, tc.want)
		}
	}
}

func TestIssCandleResponse_MissingColumn(t *testing.T) {
	var payload issCandleResponse
	payload.Candles.Columns = []string{"open", "close"}

	if _, err := payload.toCandles("SBER"); err == nil {
		t.Fatal("expected error for missing columns")
	}
}
