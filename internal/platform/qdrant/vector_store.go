package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alecKarfonta/graphrag/internal/platform/apierr"
	"github.com/alecKarfonta/graphrag/internal/platform/ctxutil"
	"github.com/alecKarfonta/graphrag/internal/platform/logger"
)

const maxErrorBodyBytes = 1024

var pointIDNamespaceUUID = uuid.MustParse("7c9e2f08-5b1d-4a63-9e71-03d2cc1b64af")

// Point is one embedded chunk written to the store.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// Match is a k-NN hit. Score is a similarity in [0,1].
type Match struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// Store is the vector-store surface the rest of the system depends on.
type Store interface {
	Upsert(ctx context.Context, points []Point) error
	Query(ctx context.Context, vector []float32, topK int, filter map[string]any) ([]Match, error)
	DeleteByFilter(ctx context.Context, filter map[string]any) error
	DocumentIDs(ctx context.Context) ([]string, error)
	Count(ctx context.Context, filter map[string]any) (int, error)
	Clear(ctx context.Context) error
}

type store struct {
	log     *logger.Logger
	cfg     Config
	baseURL string
	http    *http.Client
}

type envelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
}

type searchResultItem struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

// New connects to qdrant and ensures the collection exists with the
// configured dimension and cosine distance.
func New(log *logger.Logger, cfg Config) (Store, error) {
	if log == nil {
		return nil, fmt.Errorf("qdrant: logger required")
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, apierr.Invalid("qdrant_config", err)
	}

	s := &store{
		log:     log.With("service", "QdrantStore"),
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	if err := s.ensureCollection(context.Background()); err != nil {
		return nil, err
	}
	s.log.Info("qdrant store ready",
		"url", s.baseURL,
		"collection", cfg.Collection,
		"vector_dim", cfg.VectorDim,
	)
	return s, nil
}

func (s *store) ensureCollection(ctx context.Context) error {
	var info struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	}
	err := s.doJSON(ctx, http.MethodGet, s.collectionPath(""), nil, &info)
	if err == nil {
		if size := info.Config.Params.Vectors.Size; size != 0 && size != s.cfg.VectorDim {
			return apierr.Integrity("vector_dim_mismatch", fmt.Errorf(
				"collection %q has dim %d, configured %d", s.cfg.Collection, size, s.cfg.VectorDim))
		}
		return nil
	}
	if apierr.KindOf(err) != apierr.KindNotFound {
		return err
	}

	req := map[string]any{
		"vectors": map[string]any{
			"size":     s.cfg.VectorDim,
			"distance": "Cosine",
		},
	}
	return s.doJSON(ctx, http.MethodPut, s.collectionPath(""), req, nil)
}

func (s *store) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	body := make([]map[string]any, 0, len(points))
	for _, p := range points {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return apierr.Invalid("vector_id_required", nil)
		}
		if len(p.Vector) != s.cfg.VectorDim {
			return apierr.Integrity("vector_dim_mismatch", fmt.Errorf(
				"point %q has dim %d, collection dim %d", id, len(p.Vector), s.cfg.VectorDim))
		}
		payload := clonePayload(p.Payload)
		payload["chunk_id"] = id
		body = append(body, map[string]any{
			"id":      pointID(id),
			"vector":  p.Vector,
			"payload": payload,
		})
	}
	return s.doJSON(ctx, http.MethodPut, s.collectionPath("/points?wait=true"), map[string]any{"points": body}, nil)
}

func (s *store) Query(ctx context.Context, vector []float32, topK int, filter map[string]any) ([]Match, error) {
	if len(vector) == 0 {
		return nil, apierr.Invalid("query_vector_required", nil)
	}
	if len(vector) != s.cfg.VectorDim {
		return nil, apierr.Integrity("vector_dim_mismatch", fmt.Errorf(
			"query dim %d, collection dim %d", len(vector), s.cfg.VectorDim))
	}
	if topK <= 0 {
		topK = 10
	}

	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
		"with_vector":  false,
	}
	if f := translateFilter(filter); f != nil {
		req["filter"] = f
	}

	var raw []searchResultItem
	if err := s.doJSON(ctx, http.MethodPost, s.collectionPath("/points/search"), req, &raw); err != nil {
		return nil, err
	}

	out := make([]Match, 0, len(raw))
	for _, item := range raw {
		id := chunkIDFromPayload(item.Payload)
		if id == "" {
			continue
		}
		out = append(out, Match{
			ID:      id,
			Score:   clampScore(item.Score),
			Payload: item.Payload,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].ID < out[j].ID
		}
		return out[i].Score > out[j].Score
	})
	return out, nil
}

func (s *store) DeleteByFilter(ctx context.Context, filter map[string]any) error {
	f := translateFilter(filter)
	if f == nil {
		return apierr.Invalid("delete_filter_required", nil)
	}
	req := map[string]any{"filter": f}
	return s.doJSON(ctx, http.MethodPost, s.collectionPath("/points/delete?wait=true"), req, nil)
}

func (s *store) Clear(ctx context.Context) error {
	if err := s.doJSON(ctx, http.MethodDelete, s.collectionPath(""), nil, nil); err != nil && apierr.KindOf(err) != apierr.KindNotFound {
		return err
	}
	return s.ensureCollection(ctx)
}

// DocumentIDs scrolls payloads and aggregates distinct document ids.
func (s *store) DocumentIDs(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}
	var offset json.RawMessage
	for {
		req := map[string]any{
			"limit":        256,
			"with_payload": []string{"document_id"},
			"with_vector":  false,
		}
		if offset != nil {
			req["offset"] = offset
		}
		var page struct {
			Points []struct {
				Payload map[string]any `json:"payload"`
			} `json:"points"`
			NextPageOffset json.RawMessage `json:"next_page_offset"`
		}
		if err := s.doJSON(ctx, http.MethodPost, s.collectionPath("/points/scroll"), req, &page); err != nil {
			return nil, err
		}
		for _, p := range page.Points {
			if id, ok := p.Payload["document_id"].(string); ok && id != "" {
				seen[id] = true
			}
		}
		if len(page.NextPageOffset) == 0 || string(page.NextPageOffset) == "null" {
			break
		}
		offset = page.NextPageOffset
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (s *store) Count(ctx context.Context, filter map[string]any) (int, error) {
	req := map[string]any{"exact": true}
	if f := translateFilter(filter); f != nil {
		req["filter"] = f
	}
	var result struct {
		Count int `json:"count"`
	}
	if err := s.doJSON(ctx, http.MethodPost, s.collectionPath("/points/count"), req, &result); err != nil {
		return 0, err
	}
	return result.Count, nil
}

func (s *store) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return apierr.Invalid("encode_request", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), method, s.baseURL+path, body)
	if err != nil {
		return apierr.Transient("build_request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return classifyCallError(err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 10*maxErrorBodyBytes))
	if readErr != nil {
		return apierr.Transient("read_response", readErr)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apierr.NotFound("qdrant_not_found", fmt.Errorf("qdrant status=404 body=%q", truncateBody(raw)))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return apierr.Permanent("qdrant_auth", fmt.Errorf("qdrant status=%d", resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return apierr.Transient("qdrant_status", fmt.Errorf("qdrant status=%d body=%q", resp.StatusCode, truncateBody(raw)))
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return apierr.Transient("decode_envelope", err)
	}
	if msg := envelopeError(env.Status); msg != "" {
		return apierr.Transient("qdrant_error", errors.New(msg))
	}
	if out == nil || len(env.Result) == 0 || string(env.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return apierr.Transient("decode_result", err)
	}
	return nil
}

func classifyCallError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apierr.Timeout("qdrant_timeout", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apierr.Timeout("qdrant_timeout", err)
	}
	return apierr.Transient("qdrant_transport", err)
}

func envelopeError(raw json.RawMessage) string {
	status := strings.TrimSpace(string(raw))
	if status == "" || status == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if strings.EqualFold(s, "ok") {
			return ""
		}
		return fmt.Sprintf("qdrant status=%q", s)
	}
	var obj struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && strings.TrimSpace(obj.Error) != "" {
		return strings.TrimSpace(obj.Error)
	}
	return fmt.Sprintf("qdrant status=%s", status)
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}

func clonePayload(in map[string]any) map[string]any {
	out := make(map[string]any, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}

func chunkIDFromPayload(payload map[string]any) string {
	if id, ok := payload["chunk_id"].(string); ok {
		return strings.TrimSpace(id)
	}
	return ""
}

// pointID maps an arbitrary chunk id onto a qdrant-valid UUID point id.
func pointID(chunkID string) string {
	return uuid.NewSHA1(pointIDNamespaceUUID, []byte(chunkID)).String()
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func (s *store) collectionPath(suffix string) string {
	path := "/collections/" + s.cfg.Collection
	if strings.TrimSpace(suffix) == "" {
		return path
	}
	return path + suffix
}
