package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/alecKarfonta/graphrag/internal/platform/apierr"
	"github.com/alecKarfonta/graphrag/internal/platform/ctxutil"
	"github.com/alecKarfonta/graphrag/internal/platform/envutil"
	"github.com/alecKarfonta/graphrag/internal/platform/logger"
)

// Client is the LLM collaborator contract: embeddings, structured JSON and
// plain text generation. Everything else the provider offers is out of scope.
type Client interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
	GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error)
	GenerateText(ctx context.Context, system, user string) (string, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	embedModel string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
}

// NewFromEnv builds a client against an OpenAI-compatible endpoint. A missing
// LLM_API_KEY returns (nil, nil); callers run rule-based paths without it.
func NewFromEnv(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("llm: logger required")
	}
	apiKey := strings.TrimSpace(os.Getenv("LLM_API_KEY"))
	if apiKey == "" {
		return nil, nil
	}

	rps := envutil.Float("LLM_RATE_LIMIT_RPS", 8)
	if rps <= 0 {
		rps = 8
	}
	return &client{
		log:        log.With("client", "LLM"),
		baseURL:    strings.TrimRight(envutil.Str("LLM_BASE_URL", "https://api.openai.com"), "/"),
		apiKey:     apiKey,
		model:      envutil.Str("LLM_MODEL", "gpt-4o-mini"),
		embedModel: envutil.Str("LLM_EMBED_MODEL", "text-embedding-3-small"),
		httpClient: &http.Client{
			Timeout: envutil.DurationSeconds("LLM_TIMEOUT_SECONDS", 60*time.Second),
		},
		limiter:    rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		maxRetries: envutil.Int("LLM_MAX_RETRIES", 3),
	}, nil
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

func (c *client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}

	clean := make([]string, len(inputs))
	for i := range inputs {
		s := strings.TrimSpace(inputs[i])
		if s == "" {
			s = " "
		}
		clean[i] = s
	}

	var resp embeddingsResponse
	if err := c.do(ctx, "/v1/embeddings", embeddingsRequest{Model: c.embedModel, Input: clean}, &resp); err != nil {
		return nil, err
	}

	out := make([][]float32, len(clean))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			continue
		}
		vec := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			vec[i] = float32(f)
		}
		out[d.Index] = vec
	}
	for i := range out {
		if out[i] == nil {
			return nil, apierr.Transient("embeddings_missing_index", fmt.Errorf(
				"embeddings response missing index %d of %d", i, len(clean)))
		}
	}
	return out, nil
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat any           `json:"response_format,omitempty"`
	Temperature    float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *client) GenerateText(ctx context.Context, system, user string) (string, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
	var resp chatResponse
	if err := c.do(ctx, "/v1/chat/completions", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", apierr.Transient("llm_empty_response", nil)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (c *client) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		ResponseFormat: map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   schemaName,
				"schema": schema,
				"strict": true,
			},
		},
	}
	var resp chatResponse
	if err := c.do(ctx, "/v1/chat/completions", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, apierr.Transient("llm_empty_response", nil)
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &out); err != nil {
		return nil, apierr.Transient("llm_bad_json", err)
	}
	return out, nil
}

func (c *client) do(ctx context.Context, path string, in, out any) error {
	ctx = ctxutil.Default(ctx)

	var lastErr error
	backoff := time.Second
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return apierr.Timeout("llm_cancelled", ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return apierr.Timeout("llm_cancelled", err)
		}
		err := c.doOnce(ctx, path, in, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !apierr.Retryable(err) {
			return err
		}
		c.log.Warn("llm call failed, retrying", "path", path, "attempt", attempt+1, "error", err)
	}
	return lastErr
}

func (c *client) doOnce(ctx context.Context, path string, in, out any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(in); err != nil {
		return apierr.Invalid("encode_request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return apierr.Transient("build_request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return apierr.Timeout("llm_timeout", err)
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return apierr.Timeout("llm_timeout", err)
		}
		return apierr.Transient("llm_transport", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<22))
	if err != nil {
		return apierr.Transient("read_response", err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return apierr.Permanent("llm_auth", fmt.Errorf("llm status=%d", resp.StatusCode))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return apierr.Transient("llm_status", fmt.Errorf("llm status=%d", resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return apierr.Permanent("llm_status", fmt.Errorf("llm status=%d body=%q", resp.StatusCode, firstBytes(raw, 512)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apierr.Transient("decode_response", err)
	}
	return nil
}

func firstBytes(raw []byte, n int) string {
	if len(raw) <= n {
		return string(raw)
	}
	return string(raw[:n]) + "..."
}
