// Gemini-backed implementation of Capability, grounded on the teacher's
// internal/embedding/genai.go (GenAI client construction, batch-size
// capping) and internal/perception/client_gemini.go (text completion
// request shape).
package llmcap

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/pleaseai/soop-sub000/internal/logging"
)

// maxEmbedBatchSize mirrors genai.go's cap: the GenAI API errors above 100
// texts in one batch request.
const maxEmbedBatchSize = 100

// GeminiCapability implements Capability against Google's Gemini API.
type GeminiCapability struct {
	client          *genai.Client
	completionModel string
	embeddingModel  string
	dimensions      int
}

// Dimensions reports the embedding vector width, so GeminiCapability also
// satisfies store.Embedder directly without an adapter.
func (g *GeminiCapability) Dimensions() int { return g.dimensions }

// NewGeminiCapability builds a capability backed by apiKey. completionModel
// and embeddingModel default to "gemini-2.0-flash" and
// "gemini-embedding-001" respectively when empty, matching genai.go's
// defaulting style.
func NewGeminiCapability(ctx context.Context, apiKey, completionModel, embeddingModel string) (*GeminiCapability, error) {
	timer := logging.StartTimer(logging.CategoryLLM, "NewGeminiCapability")
	defer timer.Stop()

	if apiKey == "" {
		return nil, &ErrUnavailable{Reason: "no Gemini API key provided"}
	}
	if completionModel == "" {
		completionModel = "gemini-2.0-flash"
	}
	if embeddingModel == "" {
		embeddingModel = "gemini-embedding-001"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("llmcap: genai client: %w", err)
	}

	return &GeminiCapability{client: client, completionModel: completionModel, embeddingModel: embeddingModel, dimensions: 768}, nil
}

// CompleteText asks Gemini for a free-form completion of req.Prompt.
func (g *GeminiCapability) CompleteText(ctx context.Context, req CompleteTextRequest) (string, error) {
	ctx, cancel := withDeadline(ctx, req.Deadline)
	defer cancel()

	timer := logging.StartTimer(logging.CategoryLLM, "GeminiCapability.CompleteText")
	defer timer.Stop()

	resp, err := g.client.Models.GenerateContent(ctx, g.completionModel, genai.Text(req.Prompt), nil)
	if err != nil {
		if ctx.Err() != nil {
			return "", &ErrTimeout{Op: "CompleteText"}
		}
		return "", fmt.Errorf("llmcap: generate content: %w", err)
	}
	return resp.Text(), nil
}

// CompleteJSON asks Gemini for a JSON response (application/json MIME type)
// to req.Prompt, used by Phase 2's domain discovery and hierarchy
// assignment. req.Schema is not sent to the API; the response is only
// checked to be valid JSON.
func (g *GeminiCapability) CompleteJSON(ctx context.Context, req CompleteJSONRequest) ([]byte, error) {
	ctx, cancel := withDeadline(ctx, req.Deadline)
	defer cancel()

	timer := logging.StartTimer(logging.CategoryLLM, "GeminiCapability.CompleteJSON")
	defer timer.Stop()

	cfg := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
	resp, err := g.client.Models.GenerateContent(ctx, g.completionModel, genai.Text(req.Prompt), cfg)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &ErrTimeout{Op: "CompleteJSON"}
		}
		return nil, fmt.Errorf("llmcap: generate content: %w", err)
	}

	raw := resp.Text()
	if !json.Valid([]byte(raw)) {
		return nil, &ErrResponseInvalid{Detail: "response was not valid JSON"}
	}
	return []byte(raw), nil
}

// Embed returns a single dense vector for text.
func (g *GeminiCapability) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, &ErrResponseInvalid{Detail: "empty embedding response"}
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts, splitting into chunks of at most
// maxEmbedBatchSize per the genai.go-documented API limit.
func (g *GeminiCapability) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	timer := logging.StartTimer(logging.CategoryEmbedding, "GeminiCapability.EmbedBatch")
	defer timer.Stop()

	var out [][]float32
	for start := 0; start < len(texts); start += maxEmbedBatchSize {
		end := start + maxEmbedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		chunk := texts[start:end]

		contents := make([]*genai.Content, len(chunk))
		for i, t := range chunk {
			contents[i] = genai.NewContentFromText(t, genai.RoleUser)
		}

		resp, err := g.client.Models.EmbedContent(ctx, g.embeddingModel, contents, nil)
		if err != nil {
			return nil, fmt.Errorf("llmcap: embed batch: %w", err)
		}
		for _, e := range resp.Embeddings {
			out = append(out, e.Values)
		}
	}
	return out, nil
}

func withDeadline(ctx context.Context, deadline time.Time) (context.Context, context.CancelFunc) {
	if deadline.IsZero() {
		return context.WithCancel(ctx)
	}
	return context.WithDeadline(ctx, deadline)
}
