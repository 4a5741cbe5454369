package parley

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// SendState represents the execution state of an asynchronous turn.
type SendState int32

const (
	// SendPending indicates the turn has been queued but not started.
	SendPending SendState = iota
	// SendRunning indicates the turn is in progress.
	SendRunning
	// SendCompleted indicates the turn finished successfully.
	SendCompleted
	// SendFailed indicates the turn returned an error.
	SendFailed
	// SendCancelled indicates the turn was cancelled via Cancel() or the
	// parent context.
	SendCancelled
)

// String returns the state name.
func (s SendState) String() string {
	switch s {
	case SendPending:
		return "pending"
	case SendRunning:
		return "running"
	case SendCompleted:
		return "completed"
	case SendFailed:
		return "failed"
	case SendCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the state is final.
func (s SendState) IsTerminal() bool {
	return s == SendCompleted || s == SendFailed || s == SendCancelled
}

// AsyncOption configures a SendAsync call.
type AsyncOption func(*asyncConfig)

type asyncConfig struct {
	logger *slog.Logger
	stream bool
	opts   []SendOption
}

// AsyncLogger sets the structured logger for turn lifecycle events.
func AsyncLogger(l *slog.Logger) AsyncOption {
	return func(c *asyncConfig) { c.logger = l }
}

// AsyncStreaming runs the turn through SendStream instead of Send.
func AsyncStreaming() AsyncOption {
	return func(c *asyncConfig) { c.stream = true }
}

// AsyncSendOptions forwards per-turn Send options (e.g. ForceTool).
func AsyncSendOptions(opts ...SendOption) AsyncOption {
	return func(c *asyncConfig) { c.opts = append(c.opts, opts...) }
}

// SendHandle tracks a turn running off the caller's goroutine.
// All methods are safe for concurrent use.
type SendHandle struct {
	id     string
	agent  *Agent
	state  atomic.Int32
	err    error
	done   chan struct{}
	cancel context.CancelFunc
}

// SendAsync launches agent.Send (or SendStream) in a background goroutine
// so web backends can return before the turn completes. Subscribers keep
// receiving message and stream events as usual; the handle reports the
// turn's terminal state. The parent ctx controls the turn's lifetime.
func SendAsync(ctx context.Context, agent *Agent, text string, opts ...AsyncOption) *SendHandle {
	var cfg asyncConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = nopLogger
	}
	logger := cfg.logger

	ctx, cancel := context.WithCancel(ctx)
	h := &SendHandle{
		id:     NewID(),
		agent:  agent,
		done:   make(chan struct{}),
		cancel: cancel,
	}
	h.state.Store(int32(SendPending))

	logger.Info("turn queued", "agent", agent.Name(), "handle_id", h.id)

	go func() {
		defer cancel()
		defer func() {
			if p := recover(); p != nil {
				logger.Error("async turn panic", "agent", agent.Name(), "handle_id", h.id, "panic", fmt.Sprintf("%v", p))
				h.err = fmt.Errorf("turn panic: %v", p)
				h.state.Store(int32(SendFailed))
				close(h.done)
			}
		}()
		h.state.Store(int32(SendRunning))
		start := time.Now()

		var err error
		if cfg.stream {
			err = agent.SendStream(ctx, text)
		} else {
			err = agent.Send(ctx, text, cfg.opts...)
		}

		// Write err before close(done): the channel close is the
		// happens-before barrier for readers in Await and Err.
		h.err = err
		switch {
		case ctx.Err() != nil && err != nil:
			h.state.Store(int32(SendCancelled))
			logger.Info("async turn cancelled", "agent", agent.Name(), "handle_id", h.id, "duration", time.Since(start))
		case err != nil:
			h.state.Store(int32(SendFailed))
			logger.Error("async turn failed", "agent", agent.Name(), "handle_id", h.id, "error", err, "duration", time.Since(start))
		default:
			h.state.Store(int32(SendCompleted))
			logger.Info("async turn completed", "agent", agent.Name(), "handle_id", h.id, "duration", time.Since(start))
		}
		close(h.done)
	}()

	return h
}

// ID returns the unique turn identifier (UUIDv7, time-sortable).
func (h *SendHandle) ID() string { return h.id }

// Agent returns the agent running the turn.
func (h *SendHandle) Agent() *Agent { return h.agent }

// State returns the current execution state. If the state is terminal,
// State blocks until Done() is closed so that Err() is valid whenever
// State().IsTerminal() is true.
func (h *SendHandle) State() SendState {
	s := SendState(h.state.Load())
	if s.IsTerminal() {
		<-h.done
	}
	return s
}

// Done returns a channel closed when the turn finishes.
// Composable with select for multiplexing multiple handles.
func (h *SendHandle) Done() <-chan struct{} { return h.done }

// Await blocks until the turn completes or ctx is cancelled.
func (h *SendHandle) Await(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the turn error. Only meaningful after Done() is closed;
// before completion it returns nil.
func (h *SendHandle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Cancel requests cancellation. Non-blocking. The turn receives a
// cancelled context; State transitions to SendCancelled once it returns.
func (h *SendHandle) Cancel() { h.cancel() }
