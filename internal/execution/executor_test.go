package execution

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickcandles-v1/internal/model"
)

func newJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := NewJournal(filepath.Join(t.TempDir(), "orders.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cmd  model.OrderCommand
		want error
	}{
		{"buy", model.OrderCommand{Action: "buy", Symbol: "BTCUSDT", Quantity: 0.01}, nil},
		{"buy upper case", model.OrderCommand{Action: "BUY", Symbol: "BTCUSDT", Quantity: 1}, ErrUnsupportedAction},
		{"buy mixed case", model.OrderCommand{Action: "bUy", Symbol: "BTCUSDT", Quantity: 1}, ErrUnsupportedAction},
		{"buy padded", model.OrderCommand{Action: " buy", Symbol: "BTCUSDT", Quantity: 1}, ErrUnsupportedAction},
		{"sell", model.OrderCommand{Action: "sell", Symbol: "BTCUSDT", Quantity: 1}, ErrUnsupportedAction},
		{"empty action", model.OrderCommand{Symbol: "BTCUSDT", Quantity: 1}, ErrUnsupportedAction},
		{"no symbol", model.OrderCommand{Action: "buy", Quantity: 1}, ErrInvalidCommand},
		{"zero quantity", model.OrderCommand{Action: "buy", Symbol: "BTCUSDT"}, ErrInvalidCommand},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.cmd)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.want, errors.Cause(err))
		})
	}
}

func TestPlace_ForwardsMarketBuy(t *testing.T) {
	var got model.UpstreamOrder
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NotEmpty(t, r.Header.Get("X-Client-Order-Id"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"orderId":123,"status":"NEW"}`))
	}))
	defer upstream.Close()

	j := newJournal(t)
	e := NewExecutor(Config{UpstreamURL: upstream.URL, APIKey: "k-1", Timeout: time.Second}, j)
	e.newID = func() string { return "cid-1" }

	res, err := e.Place(context.Background(), model.OrderCommand{Action: "buy", Symbol: "BTCUSDT", Quantity: 0.5})
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, res.Status)
	assert.Equal(t, "application/json", res.ContentType)
	assert.JSONEq(t, `{"orderId":123,"status":"NEW"}`, string(res.Body))
	assert.Equal(t, model.UpstreamOrder{Symbol: "BTCUSDT", Quantity: 0.5, Side: "buy", Type: "market", APIKey: "k-1"}, got)

	recs, err := j.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "cid-1", recs[0].ClientOrderID)
	assert.Equal(t, http.StatusCreated, recs[0].UpstreamStatus)
	assert.Empty(t, recs[0].Error)
}

func TestPlace_RelaysUpstreamRejection(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code":-2015,"msg":"Invalid API-key"}`))
	}))
	defer upstream.Close()

	e := NewExecutor(Config{UpstreamURL: upstream.URL}, nil)
	res, err := e.Place(context.Background(), model.OrderCommand{Action: "buy", Symbol: "BTCUSDT", Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, res.Status)
	assert.Contains(t, string(res.Body), "Invalid API-key")
}

func TestPlace_RelaysUpstreamContentType(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("maintenance"))
	}))
	defer upstream.Close()

	e := NewExecutor(Config{UpstreamURL: upstream.URL}, nil)
	res, err := e.Place(context.Background(), model.OrderCommand{Action: "buy", Symbol: "BTCUSDT", Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, res.Status)
	assert.Equal(t, "text/plain; charset=utf-8", res.ContentType)
	assert.Equal(t, "maintenance", string(res.Body))
}

func TestPlace_ActionCaseVariantsNotForwarded(t *testing.T) {
	var calls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls.Add(1) }))
	defer upstream.Close()

	e := NewExecutor(Config{UpstreamURL: upstream.URL}, nil)
	for _, action := range []string{"BUY", "Buy", "bUy"} {
		_, err := e.Place(context.Background(), model.OrderCommand{Action: action, Symbol: "BTCUSDT", Quantity: 1})
		assert.Equal(t, ErrUnsupportedAction, err, "action %q", action)
	}
	assert.Zero(t, calls.Load())
}

func TestPlace_RejectedActionNotForwarded(t *testing.T) {
	calls := 0
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ }))
	defer upstream.Close()

	j := newJournal(t)
	e := NewExecutor(Config{UpstreamURL: upstream.URL}, j)
	_, err := e.Place(context.Background(), model.OrderCommand{Action: "sell", Symbol: "BTCUSDT", Quantity: 1})
	assert.Equal(t, ErrUnsupportedAction, err)
	assert.Zero(t, calls)

	recs, err := j.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestPlace_UpstreamUnreachableIsJournaled(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := upstream.URL
	upstream.Close()

	j := newJournal(t)
	e := NewExecutor(Config{UpstreamURL: url, Timeout: time.Second}, j)
	_, err := e.Place(context.Background(), model.OrderCommand{Action: "buy", Symbol: "ETHUSDT", Quantity: 2})
	require.Error(t, err)

	recs, err := j.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Zero(t, recs[0].UpstreamStatus)
	assert.Contains(t, recs[0].Error, "upstream request")
}

func TestJournal_RecentNewestFirst(t *testing.T) {
	j := newJournal(t)
	ctx := context.Background()
	require.NoError(t, j.Ping(ctx))

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, sym := range []string{"A", "B", "C"} {
		require.NoError(t, j.RecordOrder(ctx, model.OrderRecord{
			ClientOrderID: sym, Action: "buy", Symbol: sym, Quantity: float64(i + 1),
			UpstreamStatus: 200, CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	recs, err := j.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "C", recs[0].Symbol)
	assert.Equal(t, "B", recs[1].Symbol)
	assert.True(t, recs[0].CreatedAt.Equal(base.Add(2*time.Second)))
}
