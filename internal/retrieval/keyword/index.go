package keyword

import (
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/alecKarfonta/graphrag/internal/domain"
)

// Index is an in-process inverted index with BM25 scoring over the chunk
// corpus. The ingestion pipeline feeds it on every write; retrieval reads
// are lock-free copies under RLock. It is rebuilt from the graph store at
// startup so restarts do not lose the lexical strategy.
type Index struct {
	mu         sync.RWMutex
	chunks     map[string]indexedChunk    // chunk id -> doc stats
	postings   map[string]map[string]int  // term -> chunk id -> term frequency
	totalLen   int
}

type indexedChunk struct {
	chunk  domain.Chunk
	length int
}

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

func NewIndex() *Index {
	return &Index{
		chunks:   map[string]indexedChunk{},
		postings: map[string]map[string]int{},
	}
}

// Add indexes chunks, replacing any prior postings for the same ids.
func (ix *Index) Add(chunks []domain.Chunk) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, c := range chunks {
		ix.removeLocked(c.ID)
		terms := Tokenize(c.Text)
		if len(terms) == 0 {
			continue
		}
		ix.chunks[c.ID] = indexedChunk{chunk: c, length: len(terms)}
		ix.totalLen += len(terms)
		for _, term := range terms {
			posting := ix.postings[term]
			if posting == nil {
				posting = map[string]int{}
				ix.postings[term] = posting
			}
			posting[c.ID]++
		}
	}
}

// RemoveDocument drops every chunk of a document from the index.
func (ix *Index) RemoveDocument(documentID string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for id, entry := range ix.chunks {
		if entry.chunk.DocumentID == documentID {
			ix.removeLocked(id)
		}
	}
}

// Reset replaces the whole index with the given corpus.
func (ix *Index) Reset(chunks []domain.Chunk) {
	ix.mu.Lock()
	ix.chunks = map[string]indexedChunk{}
	ix.postings = map[string]map[string]int{}
	ix.totalLen = 0
	ix.mu.Unlock()
	ix.Add(chunks)
}

func (ix *Index) removeLocked(chunkID string) {
	entry, ok := ix.chunks[chunkID]
	if !ok {
		return
	}
	ix.totalLen -= entry.length
	delete(ix.chunks, chunkID)
	for term, posting := range ix.postings {
		if _, ok := posting[chunkID]; ok {
			delete(posting, chunkID)
			if len(posting) == 0 {
				delete(ix.postings, term)
			}
		}
	}
}

func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.chunks)
}

// Result is one scored chunk. Score is raw BM25; the retriever normalizes.
type Result struct {
	Chunk domain.Chunk
	Score float64
}

// Search scores the query terms with BM25 (k1=1.2, b=0.75) and returns the
// topK chunks, ties broken by chunk id for determinism.
func (ix *Index) Search(query string, topK int, domainTag string) []Result {
	terms := Tokenize(query)
	if len(terms) == 0 || topK <= 0 {
		return nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	n := len(ix.chunks)
	if n == 0 {
		return nil
	}
	avgLen := float64(ix.totalLen) / float64(n)

	scores := map[string]float64{}
	for _, term := range dedupe(terms) {
		posting := ix.postings[term]
		if len(posting) == 0 {
			continue
		}
		idf := idf(n, len(posting))
		for chunkID, tf := range posting {
			entry := ix.chunks[chunkID]
			if domainTag != "" && entry.chunk.Domain != domainTag {
				continue
			}
			denom := float64(tf) + bm25K1*(1-bm25B+bm25B*float64(entry.length)/avgLen)
			scores[chunkID] += idf * float64(tf) * (bm25K1 + 1) / denom
		}
	}
	if len(scores) == 0 {
		return nil
	}

	out := make([]Result, 0, len(scores))
	for chunkID, score := range scores {
		out = append(out, Result{Chunk: ix.chunks[chunkID].chunk, Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].Chunk.ID < out[j].Chunk.ID
		}
		return out[i].Score > out[j].Score
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out
}

func idf(totalDocs, docFreq int) float64 {
	// The +1 inside the log keeps common terms from going negative.
	v := (float64(totalDocs) - float64(docFreq) + 0.5) / (float64(docFreq) + 0.5)
	if v < 0 {
		v = 0
	}
	return math.Log(1 + v)
}

// Tokenize lowercases, splits on non-alphanumerics and drops stopwords and
// single-character terms.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 || stopwords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}

func dedupe(terms []string) []string {
	seen := map[string]bool{}
	out := terms[:0]
	for _, t := range terms {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "but": true, "by": true, "for": true, "from": true, "has": true,
	"have": true, "he": true, "in": true, "is": true, "it": true, "its": true,
	"of": true, "on": true, "or": true, "that": true, "the": true, "their": true,
	"this": true, "to": true, "was": true, "were": true, "what": true, "when": true,
	"where": true, "which": true, "who": true, "why": true, "will": true, "with": true,
	"how": true, "do": true, "does": true, "did": true,
}
