package natsrt

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Bus is the slice of a NATS connection the backend needs
type Bus interface {
	Subscribe(subject string, fn func(subject string, data []byte)) (unsubscribe func() error, err error)
	Publish(subject string, data []byte) error
	Flush(ctx context.Context) error
}

// ConnectConfig holds NATS connection settings
type ConnectConfig struct {
	URL           string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultConnectConfig returns default connection settings
func DefaultConnectConfig() ConnectConfig {
	return ConnectConfig{
		URL:           nats.DefaultURL,
		Name:          "goat-poker",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// Connect dials NATS with reconnect and logging handlers installed
func Connect(cfg ConnectConfig) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

// ConnBus adapts a *nats.Conn to Bus
type ConnBus struct {
	nc *nats.Conn
}

// NewConnBus wraps nc
func NewConnBus(nc *nats.Conn) *ConnBus {
	return &ConnBus{nc: nc}
}

func (b *ConnBus) Subscribe(subject string, fn func(string, []byte)) (func() error, error) {
	sub, err := b.nc.Subscribe(subject, func(msg *nats.Msg) {
		fn(msg.Subject, msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	return sub.Unsubscribe, nil
}

func (b *ConnBus) Publish(subject string, data []byte) error {
	if err := b.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

func (b *ConnBus) Flush(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	return b.nc.FlushWithContext(ctx)
}

// Close drains and closes the underlying connection
func (b *ConnBus) Close() error {
	return b.nc.Drain()
}
