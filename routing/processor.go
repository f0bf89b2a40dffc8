package routing

import (
	"context"
	"fmt"
	"sync"

	"github.com/batchforge/batchengine/batch"
	"github.com/batchforge/batchengine/batch/model"
)

// Processor is a reference batch.Processor implementation: it routes each
// phase's invocation to the model.ChatModel registered under
// PhaseConfig.Model, and prices the exchange from a per-model pricing table.
//
// The model.ChatModel contract has no notion of token accounting, so
// Processor estimates tokens from text length — a coarse approximation the
// real provider SDKs could replace by returning usage counts on ChatOut.
type Processor struct {
	models map[string]model.ChatModel

	mu      sync.RWMutex
	pricing map[string]ModelPricing
}

// NewProcessor builds a Processor that dispatches to models, keyed by the
// PhaseConfig.Model each phase names.
func NewProcessor(models map[string]model.ChatModel) *Processor {
	pricing := make(map[string]ModelPricing, len(defaultPricingTable))
	for k, v := range defaultPricingTable {
		pricing[k] = v
	}
	return &Processor{models: models, pricing: pricing}
}

// Process implements batch.Processor: it sends input as a single user
// message to phase.Model's chat model and returns its text response as
// output, priced per SetPricing or the default table.
func (p *Processor) Process(ctx context.Context, input []byte, phase batch.PhaseConfig) (batch.ProcessResult, error) {
	cm, ok := p.models[phase.Model]
	if !ok {
		return batch.ProcessResult{}, fmt.Errorf("routing: no chat model registered for %q", phase.Model)
	}

	messages := []model.Message{{Role: model.RoleUser, Content: string(input)}}
	out, err := cm.Chat(ctx, messages, nil)
	if err != nil {
		return batch.ProcessResult{}, err
	}

	inputTokens := estimateTokens(string(input))
	outputTokens := estimateTokens(out.Text)
	cost := p.cost(phase.Model, inputTokens, outputTokens)

	return batch.ProcessResult{
		Output: []byte(out.Text),
		Cost:   cost,
		Tokens: int64(inputTokens + outputTokens),
	}, nil
}

// SetPricing overrides the per-million-token pricing for model, e.g. for an
// enterprise rate or a model absent from the default table.
func (p *Processor) SetPricing(modelName string, inputPer1M, outputPer1M float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pricing[modelName] = ModelPricing{InputPer1M: inputPer1M, OutputPer1M: outputPer1M}
}

func (p *Processor) cost(modelName string, inputTokens, outputTokens int) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pricing, ok := p.pricing[modelName]
	if !ok {
		return 0
	}
	return (float64(inputTokens)/1_000_000.0)*pricing.InputPer1M +
		(float64(outputTokens)/1_000_000.0)*pricing.OutputPer1M
}

// estimateTokens approximates token count at roughly 4 characters per token,
// a common rough heuristic for English text.
func estimateTokens(s string) int {
	if s == "" {
		return 0
	}
	n := len(s) / 4
	if n < 1 {
		n = 1
	}
	return n
}
