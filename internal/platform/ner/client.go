package ner

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

	"github.com/alecKarfonta/graphrag/internal/platform/apierr"
	"github.com/alecKarfonta/graphrag/internal/platform/ctxutil"
	"github.com/alecKarfonta/graphrag/internal/platform/envutil"
	"github.com/alecKarfonta/graphrag/internal/platform/logger"
)

// Span is one named entity detected in a text.
type Span struct {
	Text       string  `json:"text"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
}

// Client is the NER collaborator contract.
type Client interface {
	Extract(ctx context.Context, text string) ([]Span, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	httpClient *http.Client
}

// NewFromEnv returns (nil, nil) when NER_URL is unset; extraction then runs
// on heuristics only.
func NewFromEnv(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("ner: logger required")
	}
	url := strings.TrimSpace(os.Getenv("NER_URL"))
	if url == "" {
		return nil, nil
	}
	return &client{
		log:     log.With("client", "NER"),
		baseURL: strings.TrimRight(url, "/"),
		httpClient: &http.Client{
			Timeout: envutil.DurationSeconds("NER_TIMEOUT_SECONDS", 15*time.Second),
		},
	}, nil
}

type extractRequest struct {
	Text string `json:"text"`
}

type extractResponse struct {
	Entities []Span `json:"entities"`
}

func (c *client) Extract(ctx context.Context, text string) ([]Span, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(extractRequest{Text: text}); err != nil {
		return nil, apierr.Invalid("encode_request", err)
	}
	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), http.MethodPost, c.baseURL+"/extract", &buf)
	if err != nil {
		return nil, apierr.Transient("build_request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apierr.Timeout("ner_timeout", err)
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, apierr.Timeout("ner_timeout", err)
		}
		return nil, apierr.Transient("ner_transport", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apierr.Transient("read_response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apierr.Transient("ner_status", fmt.Errorf("ner status=%d", resp.StatusCode))
	}

	var out extractResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, apierr.Transient("decode_response", err)
	}
	return out.Entities, nil
}
