// Package llmcap defines the LLM and embedding provider contracts spec.md
// §4.4/§9 requires the encoder to depend on only abstractly: "Abstract
// behind a capability with two methods (complete_text, complete_json(schema))
// and embed(text) / embed_batch(texts)." Credential plumbing and provider
// selection are out of scope (spec.md §1); this package defines the
// interface and one concrete plug-in.
package llmcap

import (
	"context"
	"time"
)

// CompleteTextRequest is a free-form text completion request.
type CompleteTextRequest struct {
	Prompt      string
	MaxTokens   int
	Deadline    time.Time // zero value = no deadline; spec.md §5 "each LLM call carries a deadline provided by the caller"
}

// CompleteJSONRequest asks the provider to return JSON conforming to Schema
// (a JSON Schema document), used by Phase 2's domain discovery and
// hierarchy assignment.
type CompleteJSONRequest struct {
	Prompt    string
	Schema    map[string]interface{}
	MaxTokens int
	Deadline  time.Time
}

// Capability is the minimal LLM + embedding surface the encoder depends on.
// Multiple providers are plug-in implementations (spec.md §9).
type Capability interface {
	CompleteText(ctx context.Context, req CompleteTextRequest) (string, error)
	CompleteJSON(ctx context.Context, req CompleteJSONRequest) ([]byte, error)
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Errors surfaced as warnings per spec.md §7 (LLMUnavailable / LLMTimeout /
// LLMResponseInvalid): callers fall back to the deterministic heuristic for
// that entity unless LLM was explicitly required.
type ErrUnavailable struct{ Reason string }

func (e *ErrUnavailable) Error() string { return "llmcap: unavailable: " + e.Reason }

type ErrTimeout struct{ Op string }

func (e *ErrTimeout) Error() string { return "llmcap: timeout: " + e.Op }

type ErrResponseInvalid struct{ Detail string }

func (e *ErrResponseInvalid) Error() string { return "llmcap: invalid response: " + e.Detail }
