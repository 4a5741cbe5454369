package parley

import (
	"context"
	"fmt"
)

// PreSendProcessor runs before the user's text enters the transcript.
// Implementations may rewrite the text or return an error to stop the turn.
// Return ErrHalt to short-circuit with a canned assistant reply.
// Must be safe for concurrent use.
type PreSendProcessor interface {
	PreSend(ctx context.Context, text *string) error
}

// PostToolProcessor runs after each tool execution, before the normalized
// result text enters the transcript. Implementations may rewrite the text
// (redaction, formatting) or return an error, which surfaces as that tool
// call's failure. Must be safe for concurrent use.
type PostToolProcessor interface {
	PostTool(ctx context.Context, call ToolCall, result *string) error
}

// ErrHalt signals that a processor wants to stop the turn and answer with
// a specific assistant reply. The agent catches ErrHalt, appends Response
// to the transcript, and returns nil from Send.
type ErrHalt struct {
	Response string
}

func (e *ErrHalt) Error() string { return "processor halted: " + e.Response }

// ProcessorChain holds an ordered list of processors and runs them at each
// hook point. Processors are type-asserted per phase; a processor only
// participates in phases whose interface it implements.
type ProcessorChain struct {
	processors []any
}

// NewProcessorChain builds a chain. Every processor must implement at
// least one of PreSendProcessor or PostToolProcessor; anything else is
// reported as an error.
func NewProcessorChain(processors []any) (*ProcessorChain, error) {
	c := &ProcessorChain{}
	for _, p := range processors {
		_, isPre := p.(PreSendProcessor)
		_, isPostTool := p.(PostToolProcessor)
		if !isPre && !isPostTool {
			return nil, fmt.Errorf("processor %T implements neither PreSendProcessor nor PostToolProcessor", p)
		}
		c.processors = append(c.processors, p)
	}
	return c, nil
}

// RunPreSend runs all PreSendProcessor hooks in registration order.
// Stops and returns the first non-nil error.
func (c *ProcessorChain) RunPreSend(ctx context.Context, text *string) error {
	if c == nil {
		return nil
	}
	for _, p := range c.processors {
		if pre, ok := p.(PreSendProcessor); ok {
			if err := pre.PreSend(ctx, text); err != nil {
				return err
			}
		}
	}
	return nil
}

// RunPostTool runs all PostToolProcessor hooks in registration order.
// Stops and returns the first non-nil error.
func (c *ProcessorChain) RunPostTool(ctx context.Context, call ToolCall, result *string) error {
	if c == nil {
		return nil
	}
	for _, p := range c.processors {
		if pt, ok := p.(PostToolProcessor); ok {
			if err := pt.PostTool(ctx, call, result); err != nil {
				return err
			}
		}
	}
	return nil
}

// Len returns the number of registered processors.
func (c *ProcessorChain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.processors)
}
