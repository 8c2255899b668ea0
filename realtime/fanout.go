package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"chess-mint-rewards/models"
)

// Fanout publishes mint-completed notices on NATS so players connected to
// another instance still hear about them. Every instance subscribes and
// delivers to its own Registry. mint-now is never fanned out.
type Fanout struct {
	nc     *nats.Conn
	sub    *nats.Subscription
	prefix string
	local  *Registry
	logger *zap.Logger
}

// NewFanout connects to url and subscribes to <prefix>.notify.*.
func NewFanout(url, prefix string, local *Registry, logger *zap.Logger) (*Fanout, error) {
	nc, err := nats.Connect(url,
		nats.Name("chess-mint-rewards"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return newFanout(nc, prefix, local, logger)
}

func newFanout(nc *nats.Conn, prefix string, local *Registry, logger *zap.Logger) (*Fanout, error) {
	f := &Fanout{nc: nc, prefix: prefix, local: local, logger: logger}
	sub, err := nc.Subscribe(prefix+".notify.*", f.handle)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("subscribe notify: %w", err)
	}
	f.sub = sub
	return f, nil
}

func (f *Fanout) subject(address string) string {
	return f.prefix + ".notify." + models.NormalizeAddress(address)
}

// NotifyMintCompleted publishes the notice; local delivery happens through the subscription.
func (f *Fanout) NotifyMintCompleted(_ context.Context, address string, notice MintCompletedNotice) error {
	data, err := json.Marshal(notice)
	if err != nil {
		return err
	}
	if err := f.nc.Publish(f.subject(address), data); err != nil {
		return fmt.Errorf("publish notice: %w", err)
	}
	return nil
}

func (f *Fanout) handle(msg *nats.Msg) {
	address := msg.Subject[strings.LastIndex(msg.Subject, ".")+1:]

	var notice MintCompletedNotice
	if err := json.Unmarshal(msg.Data, &notice); err != nil {
		f.logger.Warn("dropping malformed notice", zap.String("subject", msg.Subject), zap.Error(err))
		return
	}
	f.local.Deliver(address, notice)
}

func (f *Fanout) Close() {
	if f.sub != nil {
		_ = f.sub.Unsubscribe()
	}
	f.nc.Close()
}
