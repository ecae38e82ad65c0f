// Package rippled reads ledgers from rippled servers over the websocket API.
package rippled

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/LeJamon/xrpl-ingest/internal/core/ledger"
	"github.com/LeJamon/xrpl-ingest/internal/core/ledger/header"
	"github.com/LeJamon/xrpl-ingest/internal/ingest"
)

var (
	ErrNoServers    = errors.New("no rippled servers configured")
	ErrClientClosed = errors.New("rippled client closed")
)

const (
	DefaultRequestTimeout = 30 * time.Second
	DefaultPingInterval   = 30 * time.Second
	DefaultReconnectDelay = time.Second
	maxReconnectDelay     = 30 * time.Second
)

// Config configures a Client.
type Config struct {
	// Servers are websocket URLs, for example wss://s1.ripple.com.
	Servers []string
	// RequestTimeout bounds requests whose context has no deadline.
	RequestTimeout time.Duration
	PingInterval   time.Duration
	ReconnectDelay time.Duration

	Logger *zap.Logger
}

// Client is an ingest.LedgerSource over one or more rippled servers.
// Requests are spread round-robin unless the specifier names a server.
type Client struct {
	cfg    Config
	logger *zap.Logger
	next   atomic.Uint64

	mu     sync.Mutex
	conns  map[string]*conn
	closed bool
}

var _ ingest.LedgerSource = (*Client)(nil)

// New returns a Client. Connections are opened on first use.
func New(cfg Config) (*Client, error) {
	if len(cfg.Servers) == 0 {
		return nil, ErrNoServers
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		logger: cfg.Logger,
		conns:  make(map[string]*conn),
	}, nil
}

// pick returns hint when it is a configured server, otherwise the next
// server in turn.
func (c *Client) pick(hint string) string {
	if hint != "" {
		for _, s := range c.cfg.Servers {
			if s == hint {
				return s
			}
		}
	}
	n := c.next.Add(1) - 1
	return c.cfg.Servers[n%uint64(len(c.cfg.Servers))]
}

func (c *Client) connFor(ctx context.Context, server string) (*conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClientClosed
	}
	if cn, ok := c.conns[server]; ok && cn.alive() {
		return cn, nil
	}

	cn, err := dial(ctx, server, c.cfg.PingInterval, nil)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("connected", zap.String("server", server))
	c.conns[server] = cn
	return cn, nil
}

// Ledger requests a ledger in binary form with its transactions and
// metadata.
func (c *Client) Ledger(ctx context.Context, spec ledger.Specifier) (*ledger.RawLedger, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}

	server := c.pick(spec.Server)
	cn, err := c.connFor(ctx, server)
	if err != nil {
		return nil, err
	}

	var res ledgerResult
	if err := cn.call(ctx, ledgerRequest(spec), &res); err != nil {
		return nil, err
	}
	raw, err := res.raw()
	if err != nil {
		return nil, fmt.Errorf("ledger %s from %s: %w", spec, server, err)
	}
	return raw, nil
}

func ledgerRequest(spec ledger.Specifier) map[string]any {
	req := map[string]any{
		"command":      "ledger",
		"transactions": true,
		"expand":       true,
		"binary":       true,
	}
	switch {
	case !spec.Hash.IsZero():
		req["ledger_hash"] = spec.Hash.String()
	case spec.Index != 0:
		req["ledger_index"] = spec.Index
	default:
		req["ledger_index"] = "validated"
	}
	return req
}

func (r *ledgerResult) raw() (*ledger.RawLedger, error) {
	data, err := hex.DecodeString(r.Ledger.LedgerData)
	if err != nil {
		return nil, fmt.Errorf("ledger_data: %w", err)
	}
	hdr, err := header.DeserializeHeader(data, false)
	if err != nil {
		return nil, err
	}
	hash, err := ledger.ParseHash256(r.LedgerHash)
	if err != nil {
		return nil, fmt.Errorf("ledger_hash: %w", err)
	}
	if r.LedgerIndex != 0 && uint32(r.LedgerIndex) != hdr.LedgerIndex {
		return nil, fmt.Errorf("ledger_index %d does not match header %d", r.LedgerIndex, hdr.LedgerIndex)
	}

	raw := &ledger.RawLedger{
		Index:        hdr.LedgerIndex,
		Hash:         hash,
		ParentHash:   ledger.Hash256(hdr.ParentHash),
		TxHash:       ledger.Hash256(hdr.TxHash),
		CloseTime:    hdr.CloseTime,
		Closed:       r.Ledger.Closed,
		Header:       hdr,
		Transactions: make([]ledger.RawTransaction, 0, len(r.Ledger.Transactions)),
	}
	for i, tx := range r.Ledger.Transactions {
		blob, err := hex.DecodeString(tx.TxBlob)
		if err != nil {
			return nil, fmt.Errorf("transaction %d tx_blob: %w", i, err)
		}
		meta, err := hex.DecodeString(tx.Meta)
		if err != nil {
			return nil, fmt.Errorf("transaction %d meta: %w", i, err)
		}
		raw.Transactions = append(raw.Transactions, ledger.RawTransaction{Blob: blob, Meta: meta})
	}
	return raw, nil
}

// Subscribe follows the ledger stream of one server at a time. The
// connection is re-established with backoff when it drops, so the channel
// is closed only when ctx is done.
func (c *Client) Subscribe(ctx context.Context) (<-chan ingest.LedgerClosed, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, ErrClientClosed
	}

	out := make(chan ingest.LedgerClosed)
	go c.follow(ctx, out)
	return out, nil
}

func (c *Client) follow(ctx context.Context, out chan<- ingest.LedgerClosed) {
	defer close(out)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.ReconnectDelay
	b.MaxInterval = maxReconnectDelay
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(b, ctx)

	for {
		server := c.pick("")
		err := c.stream(ctx, server, out, policy.Reset)
		if ctx.Err() != nil {
			return
		}

		delay := policy.NextBackOff()
		if delay == backoff.Stop {
			return
		}
		c.logger.Warn("ledger stream lost, reconnecting",
			zap.String("server", server), zap.Duration("delay", delay), zap.Error(err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// stream subscribes on a dedicated connection and forwards ledgerClosed
// messages until the connection fails or ctx is done.
func (c *Client) stream(ctx context.Context, server string, out chan<- ingest.LedgerClosed, connected func()) error {
	messages := make(chan []byte, 16)
	cn, err := dial(ctx, server, c.cfg.PingInterval, messages)
	if err != nil {
		return err
	}
	defer cn.close(nil)

	req := map[string]any{"command": "subscribe", "streams": []string{"ledger"}}
	subCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	err = cn.call(subCtx, req, nil)
	cancel()
	if err != nil {
		return err
	}
	connected()
	c.logger.Info("subscribed to ledger stream", zap.String("server", server))

	forward := func(data []byte) error {
		var msg ledgerClosed
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Debug("undecodable stream message", zap.Error(err))
			return nil
		}
		if msg.Type != "ledgerClosed" {
			return nil
		}
		hash, err := ledger.ParseHash256(msg.LedgerHash)
		if err != nil {
			c.logger.Warn("bad ledger hash in stream", zap.String("ledger_hash", msg.LedgerHash))
			return nil
		}

		ev := ingest.LedgerClosed{Index: uint32(msg.LedgerIndex), Hash: hash, Server: server}
		select {
		case out <- ev:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data := <-messages:
			if err := forward(data); err != nil {
				return err
			}
		case <-cn.done:
			// Messages read before the connection dropped are still delivered.
			for {
				select {
				case data := <-messages:
					if err := forward(data); err != nil {
						return err
					}
				default:
					return cn.closeErr()
				}
			}
		}
	}
}

// Close closes every request connection. Subscriptions end with their
// context.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for server, cn := range c.conns {
		cn.close(nil)
		delete(c.conns, server)
	}
	return nil
}
