package ws

import (
	"bufio"
	"context"
	"io"
	"net"
	"time"

	gobwas "github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// Transport names accepted by NewTransport.
const (
	TransportGorilla = "gorilla"
	TransportGobwas  = "gobwas"
)

// Conn is one open feed connection carrying text frames.
type Conn interface {
	WriteText(data []byte) error
	ReadText() ([]byte, error)
	Close() error
}

// Transport opens feed connections.
type Transport interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// NewTransport returns the transport registered under kind.
// A zero timeout disables the corresponding deadline.
func NewTransport(kind string, connTimeout, readTimeout time.Duration) (Transport, error) {
	switch kind {
	case "", TransportGorilla:
		return &GorillaTransport{ConnTimeout: connTimeout, ReadTimeout: readTimeout}, nil
	case TransportGobwas:
		return &GobwasTransport{ConnTimeout: connTimeout, ReadTimeout: readTimeout}, nil
	default:
		return nil, errors.Errorf("unknown feed transport %q", kind)
	}
}

func dialContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

// ────────────────────────────────────────────────────────────
// gorilla/websocket
// ────────────────────────────────────────────────────────────

// GorillaTransport dials with gorilla/websocket.
type GorillaTransport struct {
	ConnTimeout time.Duration
	ReadTimeout time.Duration
}

func (t *GorillaTransport) Dial(ctx context.Context, url string) (Conn, error) {
	dctx, cancel := dialContext(ctx, t.ConnTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dctx, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "dial")
	}
	return &gorillaConn{conn: conn, readTimeout: t.ReadTimeout}, nil
}

type gorillaConn struct {
	conn        *websocket.Conn
	readTimeout time.Duration
}

func (c *gorillaConn) WriteText(data []byte) error {
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *gorillaConn) ReadText() ([]byte, error) {
	if c.readTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return nil, err
		}
	}
	_, raw, err := c.conn.ReadMessage()
	return raw, err
}

func (c *gorillaConn) Close() error {
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"),
		time.Now().Add(time.Second))
	return c.conn.Close()
}

// ────────────────────────────────────────────────────────────
// gobwas/ws
// ────────────────────────────────────────────────────────────

// GobwasTransport dials with gobwas/ws, reading frames through wsutil.
type GobwasTransport struct {
	ConnTimeout time.Duration
	ReadTimeout time.Duration
}

func (t *GobwasTransport) Dial(ctx context.Context, url string) (Conn, error) {
	dctx, cancel := dialContext(ctx, t.ConnTimeout)
	defer cancel()

	conn, br, _, err := gobwas.Dial(dctx, url)
	if err != nil {
		return nil, errors.Wrap(err, "dial")
	}
	return newGobwasConn(conn, br, t.ReadTimeout), nil
}

type gobwasConn struct {
	conn        net.Conn
	rw          io.ReadWriter
	readTimeout time.Duration
}

// br holds bytes the server sent right after the handshake, if any.
func newGobwasConn(conn net.Conn, br *bufio.Reader, readTimeout time.Duration) *gobwasConn {
	c := &gobwasConn{conn: conn, rw: conn, readTimeout: readTimeout}
	if br != nil {
		c.rw = struct {
			io.Reader
			io.Writer
		}{io.MultiReader(br, conn), conn}
	}
	return c
}

func (c *gobwasConn) WriteText(data []byte) error {
	return wsutil.WriteClientText(c.conn, data)
}

func (c *gobwasConn) ReadText() ([]byte, error) {
	if c.readTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return nil, err
		}
	}
	return wsutil.ReadServerText(c.rw)
}

func (c *gobwasConn) Close() error {
	return c.conn.Close()
}
