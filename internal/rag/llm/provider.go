package llm

import "context"

// Provider is the generation model boundary: system instructions and the
// grounded prompt go in, free text comes out. Anything provider-specific
// (temperature, token limits) lives in the adapters.
type Provider interface {
	Generate(ctx context.Context, systemInstructions string, prompt string) (string, error)
}
