// Package feed encodes the subscription request and decodes inbound trade
// events of a Binance-style futures aggTrade stream.
//
// Inbound frames arrive either bare:
//
//	{"e":"aggTrade","E":1710408600123,"s":"BTCUSDT","p":"67012.10","q":"0.004","T":1710408600120,"m":true}
//
// or wrapped by the combined-stream endpoint:
//
//	{"stream":"btcusdt@aggTrade","data":{"e":"aggTrade",...}}
package feed

import (
	"bytes"
	"math"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"tickcandles-v1/internal/model"
)

// EventAggTrade is the event type of trade-execution messages.
const EventAggTrade = "aggTrade"

var (
	// ErrNotTrade marks a well-formed message that is not a trade event
	// (subscription acks, other event types). Callers ignore it.
	ErrNotTrade = errors.New("not a trade event")

	// ErrMalformed marks a message that cannot be decoded or a trade event
	// with missing or invalid fields. Callers drop the message.
	ErrMalformed = errors.New("malformed message")
)

// Exact field matching: "e"/"E" and "t"/"T" are distinct fields on the wire.
var json = jsoniter.Config{
	EscapeHTML:    false,
	CaseSensitive: true,
}.Froze()

// Subscription is the SUBSCRIBE control frame.
type Subscription struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int      `json:"id"`
}

// StreamName returns the stream identifier for symbol, e.g. "btcusdt@aggTrade".
func StreamName(symbol, event string) string {
	return strings.ToLower(symbol) + "@" + event
}

// SubscribeFrame encodes the subscription request for one stream.
func SubscribeFrame(stream string, id int) ([]byte, error) {
	frame, err := json.Marshal(Subscription{
		Method: "SUBSCRIBE",
		Params: []string{stream},
		ID:     id,
	})
	if err != nil {
		return nil, errors.Wrap(err, "encode subscribe frame")
	}
	return frame, nil
}

// envelope is the combined-stream wrapper.
type envelope struct {
	Stream string              `json:"stream"`
	Data   jsoniter.RawMessage `json:"data"`
}

// aggTrade is the subset of the trade event consumed.
type aggTrade struct {
	EventType string      `json:"e"`
	Price     numericText `json:"p"`
	Qty       numericText `json:"q"`
	TradeTime int64       `json:"T"`

	// Set on error replies to control frames.
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// numericText accepts both "123.45" and 123.45.
type numericText string

func (n *numericText) UnmarshalJSON(b []byte) error {
	*n = numericText(strings.Trim(string(b), `"`))
	return nil
}

// Decode parses one inbound frame. It returns ErrNotTrade for messages that
// are not trade events and ErrMalformed (wrapped with detail) for frames that
// cannot be turned into a valid Trade.
func Decode(raw []byte) (model.Trade, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return model.Trade{}, errors.Wrap(ErrMalformed, "not a JSON object")
	}

	payload := raw
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return model.Trade{}, errors.Wrap(ErrMalformed, err.Error())
	}
	if len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
		payload = env.Data
	}

	var msg aggTrade
	if err := json.Unmarshal(payload, &msg); err != nil {
		return model.Trade{}, errors.Wrap(ErrMalformed, err.Error())
	}
	if msg.EventType != EventAggTrade {
		if msg.Msg != "" {
			return model.Trade{}, errors.Wrapf(ErrNotTrade, "feed error code=%d msg=%s", msg.Code, msg.Msg)
		}
		return model.Trade{}, ErrNotTrade
	}

	price, err := parsePositive(msg.Price, "p")
	if err != nil {
		return model.Trade{}, err
	}
	qty, err := parseNonNegative(msg.Qty, "q")
	if err != nil {
		return model.Trade{}, err
	}
	if msg.TradeTime <= 0 {
		return model.Trade{}, errors.Wrap(ErrMalformed, "missing trade time T")
	}

	return model.Trade{
		Price:           price,
		Quantity:        qty,
		EventTimeMillis: msg.TradeTime,
	}, nil
}

func parsePositive(v numericText, field string) (float64, error) {
	f, err := parseFinite(v, field)
	if err != nil {
		return 0, err
	}
	if f <= 0 {
		return 0, errors.Wrapf(ErrMalformed, "non-positive %s=%s", field, v)
	}
	return f, nil
}

func parseNonNegative(v numericText, field string) (float64, error) {
	f, err := parseFinite(v, field)
	if err != nil {
		return 0, err
	}
	if f < 0 {
		return 0, errors.Wrapf(ErrMalformed, "negative %s=%s", field, v)
	}
	return f, nil
}

func parseFinite(v numericText, field string) (float64, error) {
	if v == "" || v == "null" {
		return 0, errors.Wrapf(ErrMalformed, "missing %s", field)
	}
	f, err := strconv.ParseFloat(string(v), 64)
	if err != nil {
		return 0, errors.Wrapf(ErrMalformed, "parse %s: %v", field, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.Wrapf(ErrMalformed, "non-finite %s=%s", field, v)
	}
	return f, nil
}
