package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"chess-mint-rewards/models"
	"chess-mint-rewards/realtime"
)

const (
	DefaultQueueSize = 64
	DefaultPause     = time.Second
)

// MintAction is what the signing authority is asked to execute.
type MintAction struct {
	TaskID        string `json:"taskId"`
	RewardType    string `json:"rewardType"`
	PlayerID      string `json:"playerId"`
	PlayerAddress string `json:"playerAddress"`
	MetadataURL   string `json:"metadataUrl,omitempty"`
}

// Signer signs and submits a mint and returns the created on-chain object id.
type Signer interface {
	SignAndSubmit(ctx context.Context, action MintAction) (string, error)
}

// ReportFunc delivers a completion report back to the server.
type ReportFunc func(report realtime.MintCompletedReport) error

type Option func(*Executor)

// WithPause sets the delay between consecutive signing calls.
func WithPause(d time.Duration) Option {
	return func(e *Executor) { e.pause = d }
}

func WithQueueSize(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.queue = make(chan realtime.MintNow, n)
		}
	}
}

func WithClock(c clockwork.Clock) Option {
	return func(e *Executor) { e.clock = c }
}

// Executor runs mint-now instructions for one connection strictly one at a
// time, in arrival order.
type Executor struct {
	address string
	signer  Signer
	report  ReportFunc
	queue   chan realtime.MintNow
	pause   time.Duration
	clock   clockwork.Clock
	logger  *zap.Logger
	done    chan struct{}
}

func NewExecutor(address string, signer Signer, report ReportFunc, logger *zap.Logger, opts ...Option) *Executor {
	e := &Executor{
		address: models.NormalizeAddress(address),
		signer:  signer,
		report:  report,
		queue:   make(chan realtime.MintNow, DefaultQueueSize),
		pause:   DefaultPause,
		clock:   clockwork.NewRealClock(),
		logger:  logger,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Submit queues an instruction. Instructions for another address are dropped
// silently; a full queue drops too and the server redelivers once the task is stale.
func (e *Executor) Submit(msg realtime.MintNow) bool {
	if !strings.EqualFold(msg.PlayerAddress, e.address) {
		return false
	}
	select {
	case e.queue <- msg:
		return true
	default:
		e.logger.Warn("mint queue full, dropping instruction", zap.String("task_id", msg.TaskID))
		return false
	}
}

// Start launches the consumer goroutine; it exits when ctx is cancelled.
func (e *Executor) Start(ctx context.Context) {
	go e.run(ctx)
}

// Done is closed after the consumer goroutine exits.
func (e *Executor) Done() <-chan struct{} {
	return e.done
}

func (e *Executor) run(ctx context.Context) {
	defer close(e.done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-e.queue:
			e.execute(ctx, msg)
		}

		if e.pause <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-e.clock.After(e.pause):
		}
	}
}

func (e *Executor) execute(ctx context.Context, msg realtime.MintNow) {
	report := realtime.MintCompletedReport{TaskID: msg.TaskID}

	objectID, err := e.sign(ctx, msg)
	if err != nil {
		report.Success = false
		report.ErrorMessage = err.Error()
		e.logger.Warn("mint signing failed", zap.String("task_id", msg.TaskID), zap.Error(err))
	} else {
		report.Success = true
		report.ObjectID = objectID
		e.logger.Info("mint signed", zap.String("task_id", msg.TaskID), zap.String("object_id", objectID))
	}

	if err := e.report(report); err != nil {
		e.logger.Warn("completion report not sent", zap.String("task_id", msg.TaskID), zap.Error(err))
	}
}

func (e *Executor) sign(ctx context.Context, msg realtime.MintNow) (objectID string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("signer panic: %v", r)
		}
	}()

	objectID, err = e.signer.SignAndSubmit(ctx, MintAction{
		TaskID:        msg.TaskID,
		RewardType:    msg.RewardType,
		PlayerID:      msg.PlayerID,
		PlayerAddress: msg.PlayerAddress,
		MetadataURL:   msg.MetadataURL,
	})
	if err == nil && objectID == "" {
		err = fmt.Errorf("signer returned no object id")
	}
	return objectID, err
}
