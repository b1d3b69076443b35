package gateway

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickcandles-v1/internal/model"
)

type wireEnvelope struct {
	Type string      `json:"type"`
	Data model.Frame `json:"data"`
	TS   string      `json:"ts"`
	Seq  int64       `json:"seq"`
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) wireEnvelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var env wireEnvelope
	require.NoError(t, json.Unmarshal(raw, &env), "raw: %s", raw)
	return env
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.ClientCount() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestEnvelopeFormat(t *testing.T) {
	now := time.Date(2026, 2, 25, 10, 0, 1, 0, time.UTC)
	buf := envelope([]byte(`{"seq":3}`), now, 42)

	var env struct {
		Type string         `json:"type"`
		Data map[string]int `json:"data"`
		TS   string         `json:"ts"`
		Seq  int64          `json:"seq"`
	}
	require.NoError(t, json.Unmarshal(buf, &env), "raw: %s", buf)
	assert.Equal(t, "frame", env.Type)
	assert.Equal(t, int64(42), env.Seq)
	assert.Equal(t, 3, env.Data["seq"])

	parsed, err := time.Parse(time.RFC3339Nano, env.TS)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(now))
}

func TestHub_BroadcastsFrames(t *testing.T) {
	h := NewHub(16)
	srv := httptest.NewServer(h)
	defer srv.Close()
	defer h.Close()

	conn := dial(t, srv, "")
	waitClients(t, h, 1)

	f := model.Frame{Seq: 1, At: time.Now().UTC(), Symbol: "btcusdt", CandleTicks: 10,
		Candles: []model.Candle{{Open: 1, High: 2, Low: 1, Close: 2, Volume: 3, TicksCount: 10}},
		RSI:     []float64{0}}
	require.NoError(t, h.Present(context.Background(), f))

	env := readEnvelope(t, conn)
	assert.Equal(t, "frame", env.Type)
	assert.Equal(t, int64(1), env.Seq)
	assert.Equal(t, "btcusdt", env.Data.Symbol)
	require.Len(t, env.Data.Candles, 1)
	assert.Equal(t, 2.0, env.Data.Candles[0].Close)
	assert.Equal(t, 1, h.Latency.Stats().Count)
}

func TestHub_NewClientGetsLatest(t *testing.T) {
	h := NewHub(16)
	srv := httptest.NewServer(h)
	defer srv.Close()
	defer h.Close()

	for i := uint64(1); i <= 3; i++ {
		require.NoError(t, h.Present(context.Background(), model.Frame{Seq: i}))
	}

	conn := dial(t, srv, "")
	env := readEnvelope(t, conn)
	assert.Equal(t, int64(3), env.Seq)
	assert.Equal(t, uint64(3), env.Data.Seq)
}

func TestHub_CatchUpSince(t *testing.T) {
	h := NewHub(16)
	srv := httptest.NewServer(h)
	defer srv.Close()
	defer h.Close()

	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, h.Present(context.Background(), model.Frame{Seq: i}))
	}

	conn := dial(t, srv, "?since=2")
	for want := int64(3); want <= 5; want++ {
		assert.Equal(t, want, readEnvelope(t, conn).Seq)
	}
}

func TestHub_ClientRemovedOnClose(t *testing.T) {
	h := NewHub(4)
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dial(t, srv, "")
	waitClients(t, h, 1)
	conn.Close()
	waitClients(t, h, 0)

	// Presenting with no clients is a no-op.
	require.NoError(t, h.Present(context.Background(), model.Frame{Seq: 1}))
	assert.Equal(t, 1, h.Replay.Len())
}

func TestHub_PushLatency(t *testing.T) {
	h := NewHub(4)
	defer h.Close()

	p50, _, _ := h.PushLatency()
	assert.Zero(t, p50)

	at := time.Now().UTC().Add(-20 * time.Millisecond)
	require.NoError(t, h.Present(context.Background(), model.Frame{Seq: 1, At: at}))
	p50, p95, p99 := h.PushLatency()
	assert.GreaterOrEqual(t, p50, 20.0)
	assert.Equal(t, p50, p95)
	assert.Equal(t, p50, p99)
}
