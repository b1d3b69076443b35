package gateway

import (
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"tickcandles-v1/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Broadcaster builds frame envelopes and sends them to clients.
type Broadcaster struct {
	hub *Hub
}

// NewBroadcaster creates a Broadcaster backed by the given Hub.
func NewBroadcaster(hub *Hub) *Broadcaster {
	return &Broadcaster{hub: hub}
}

// Broadcast encodes f once and queues it on every client.
//
// Envelope: {"type":"frame","data":<frame>,"ts":"<RFC3339Nano>","seq":N}
func (b *Broadcaster) Broadcast(f model.Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return errors.Wrap(err, "encode frame")
	}
	now := time.Now().UTC()

	if b.hub.Latency != nil && !f.At.IsZero() {
		if ms := float64(now.Sub(f.At).Microseconds()) / 1000.0; ms >= 0 {
			b.hub.Latency.Record(ms)
		}
	}

	b.hub.mu.Lock()
	b.hub.seq++
	seq := b.hub.seq
	buf := envelope(data, now, seq)
	b.hub.latest = buf
	b.hub.mu.Unlock()

	b.hub.Replay.Push(seq, buf)

	b.hub.mu.RLock()
	defer b.hub.mu.RUnlock()
	for client := range b.hub.clients {
		select {
		case client.send <- buf:
		default:
			if b.hub.OnDrop != nil {
				b.hub.OnDrop()
			}
		}
	}
	return nil
}

// envelope hand-crafts the wrapper around an already encoded frame.
func envelope(data []byte, now time.Time, seq int64) []byte {
	buf := make([]byte, 0, len(data)+96)
	buf = append(buf, `{"type":"frame","data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"ts":"`...)
	buf = now.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, '}')
	return buf
}
