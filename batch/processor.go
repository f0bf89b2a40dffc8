package batch

import "context"

// Processor is the contract the Batch Executor invokes to process one item
// through one phase. In the source system this is an LLM
// routing chain; the engine treats it abstractly and depends only on this
// interface. See package routing for a reference implementation backed by
// package model's ChatModel interface.
//
// Implementations must:
//   - Tolerate concurrent invocation across items.
//   - Be re-entrant across retries: the same (jobID, itemIndex, phase) may be
//     invoked more than once (at-least-once, not exactly-once).
//   - Observe ctx cancellation and return promptly once it fires.
//   - Never mutate the engine's Job/Item stores.
type Processor interface {
	Process(ctx context.Context, input []byte, phase PhaseConfig) (ProcessResult, error)
}

// ProcessResult is what a successful Processor invocation returns.
type ProcessResult struct {
	Output []byte
	Cost   float64
	Tokens int64
}

// ProcessorFunc adapts a plain function to the Processor interface.
type ProcessorFunc func(ctx context.Context, input []byte, phase PhaseConfig) (ProcessResult, error)

// Process implements Processor.
func (f ProcessorFunc) Process(ctx context.Context, input []byte, phase PhaseConfig) (ProcessResult, error) {
	return f(ctx, input, phase)
}
