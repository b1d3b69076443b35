package model

import "time"

// Order actions accepted by the order gateway.
const (
	ActionBuy = "buy"
)

// OrderCommand is the inbound trade-action command.
type OrderCommand struct {
	Action   string  `json:"action"`
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity"`
}

// UpstreamOrder is the market order forwarded to the exchange endpoint.
type UpstreamOrder struct {
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity"`
	Side     string  `json:"side"`
	Type     string  `json:"type"`
	APIKey   string  `json:"apiKey"`
}

// OrderRecord is one journaled forwarding attempt.
type OrderRecord struct {
	ID             int64     `json:"id"`
	ClientOrderID  string    `json:"client_order_id"`
	Action         string    `json:"action"`
	Symbol         string    `json:"symbol"`
	Quantity       float64   `json:"quantity"`
	UpstreamStatus int       `json:"upstream_status"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
