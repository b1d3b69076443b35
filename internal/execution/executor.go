// Package execution forwards trade-action commands to the upstream order
// endpoint and journals every attempt.
//
// The order path is independent of the market-data core: it shares no state
// with the ingestion client, the trade buffer or the candle series.
package execution

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"tickcandles-v1/internal/logger"
	"tickcandles-v1/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// ErrUnsupportedAction rejects any action other than exactly "buy".
	ErrUnsupportedAction = errors.New("unrecognized action")
	// ErrInvalidCommand rejects a command missing its symbol or quantity.
	ErrInvalidCommand = errors.New("invalid order command")
)

// maxUpstreamBody bounds how much of the upstream response is relayed.
const maxUpstreamBody = 1 << 20

// Config configures the Executor.
type Config struct {
	UpstreamURL string
	APIKey      string
	Timeout     time.Duration
}

// Recorder persists forwarding attempts.
type Recorder interface {
	RecordOrder(ctx context.Context, rec model.OrderRecord) error
}

// Result is the upstream answer relayed back to the caller.
type Result struct {
	ClientOrderID string
	Status        int
	ContentType   string
	Body          []byte
}

// Executor places market orders upstream.
type Executor struct {
	cfg     Config
	client  *http.Client
	journal Recorder
	log     *slog.Logger
	newID   func() string
}

// NewExecutor returns an Executor. journal may be nil.
func NewExecutor(cfg Config, journal Recorder) *Executor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Executor{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		journal: journal,
		log:     slog.With("component", "executor"),
		newID:   uuid.NewString,
	}
}

// Validate checks a command before it is forwarded.
func Validate(cmd model.OrderCommand) error {
	if cmd.Action != model.ActionBuy {
		return ErrUnsupportedAction
	}
	if strings.TrimSpace(cmd.Symbol) == "" {
		return errors.Wrap(ErrInvalidCommand, "symbol is required")
	}
	if cmd.Quantity <= 0 {
		return errors.Wrapf(ErrInvalidCommand, "quantity must be positive, got %v", cmd.Quantity)
	}
	return nil
}

// Place validates cmd and forwards it as a market buy. The upstream status
// and body are returned as-is, including non-2xx answers. An error is
// returned only when the command is rejected or the upstream cannot be
// reached.
func (e *Executor) Place(ctx context.Context, cmd model.OrderCommand) (Result, error) {
	if err := Validate(cmd); err != nil {
		return Result{}, err
	}

	res := Result{ClientOrderID: e.newID()}
	payload, err := json.Marshal(model.UpstreamOrder{
		Symbol:   cmd.Symbol,
		Quantity: cmd.Quantity,
		Side:     model.ActionBuy,
		Type:     "market",
		APIKey:   e.cfg.APIKey,
	})
	if err != nil {
		return res, errors.Wrap(err, "encode order")
	}

	err = e.forward(ctx, payload, &res)
	e.record(ctx, cmd, res, err)
	if err != nil {
		return res, err
	}
	e.log.Info("order forwarded", append(logger.Attrs(ctx),
		"client_order_id", res.ClientOrderID, "symbol", cmd.Symbol,
		"quantity", cmd.Quantity, "upstream_status", res.Status)...)
	return res, nil
}

func (e *Executor) forward(ctx context.Context, payload []byte, res *Result) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.UpstreamURL, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "build upstream request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Client-Order-Id", res.ClientOrderID)

	resp, err := e.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "upstream request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
	if err != nil {
		return errors.Wrap(err, "read upstream response")
	}
	res.Status = resp.StatusCode
	res.ContentType = resp.Header.Get("Content-Type")
	res.Body = body
	return nil
}

func (e *Executor) record(ctx context.Context, cmd model.OrderCommand, res Result, sendErr error) {
	if e.journal == nil {
		return
	}
	rec := model.OrderRecord{
		ClientOrderID:  res.ClientOrderID,
		Action:         cmd.Action,
		Symbol:         cmd.Symbol,
		Quantity:       cmd.Quantity,
		UpstreamStatus: res.Status,
		CreatedAt:      time.Now().UTC(),
	}
	if sendErr != nil {
		rec.Error = sendErr.Error()
	}
	if err := e.journal.RecordOrder(ctx, rec); err != nil {
		e.log.Error("journal write failed", "client_order_id", res.ClientOrderID, "error", err)
	}
}
