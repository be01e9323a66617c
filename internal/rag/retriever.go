// Package rag retrieves company-document snippets for question answering.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// Retriever finds the topK snippets most relevant to a query. Retrieval
// technology is pluggable; the conversation engine only depends on this.
type Retriever interface {
	Search(ctx context.Context, query string, topK int) ([]string, error)
}

const (
	chunkSize    = 500
	chunkOverlap = 50
)

type chunk struct {
	text   string
	source string
	terms  map[string]int
}

// FileRetriever loads .txt and .md documents from a directory once, splits
// them into overlapping chunks, and scores chunks by keyword overlap with the
// query. Good enough for a handful of company documents.
type FileRetriever struct {
	dir string
	log *slog.Logger

	once   sync.Once
	chunks []chunk
	err    error
}

// NewFileRetriever builds a retriever over the documents in dir. Documents
// are loaded lazily on the first search.
func NewFileRetriever(dir string, log *slog.Logger) *FileRetriever {
	if log == nil {
		log = slog.Default()
	}

	return &FileRetriever{
		dir: dir,
		log: log,
	}
}

// Search returns up to topK snippets ordered by relevance. Chunks with no
// term overlap are never returned.
func (r *FileRetriever) Search(ctx context.Context, query string, topK int) ([]string, error) {
	r.once.Do(r.load)
	if r.err != nil {
		return nil, r.err
	}
	if len(r.chunks) == 0 || topK <= 0 {
		return nil, nil
	}

	queryTerms := tokenize(query)
	if len(queryTerms) == 0 {
		return nil, nil
	}

	type scored struct {
		idx   int
		score float64
	}

	var ranked []scored
	for i, c := range r.chunks {
		overlap := 0
		for term := range queryTerms {
			if c.terms[term] > 0 {
				overlap++
			}
		}
		if overlap == 0 {
			continue
		}

		ranked = append(ranked, scored{
			idx:   i,
			score: float64(overlap) / float64(len(queryTerms)),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	results := make([]string, 0, len(ranked))
	for _, s := range ranked {
		c := r.chunks[s.idx]
		results = append(results, fmt.Sprintf("[Fonte: %s]\n%s", c.source, c.text))
	}

	return results, nil
}

func (r *FileRetriever) load() {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			r.log.Warn("documents directory not found", slog.String("dir", r.dir))
			return
		}
		r.err = fmt.Errorf("read docs dir %q: %w", r.dir, err)
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".txt" && ext != ".md" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(r.dir, entry.Name()))
		if err != nil {
			r.log.Warn("failed to read document", slog.String("file", entry.Name()), slog.Any("error", err))
			continue
		}

		for _, text := range splitChunks(string(data)) {
			r.chunks = append(r.chunks, chunk{
				text:   text,
				source: entry.Name(),
				terms:  tokenize(text),
			})
		}
	}

	r.log.Info("documents loaded", slog.String("dir", r.dir), slog.Int("chunks", len(r.chunks)))
}

// splitChunks splits by paragraph and re-packs into ~chunkSize windows with a
// small overlap so context at the boundary is not lost.
func splitChunks(text string) []string {
	paragraphs := strings.Split(text, "\n\n")

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() == 0 {
			return
		}

		s := strings.TrimSpace(current.String())
		if s != "" {
			chunks = append(chunks, s)
		}

		tail := s
		if len(tail) > chunkOverlap {
			tail = tail[len(tail)-chunkOverlap:]
		}
		current.Reset()
		current.WriteString(tail)
	}

	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}

		if current.Len()+len(p) > chunkSize {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(p)
	}

	if s := strings.TrimSpace(current.String()); s != "" {
		chunks = append(chunks, s)
	}

	return chunks
}

func tokenize(text string) map[string]int {
	terms := make(map[string]int)

	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	for _, w := range words {
		if len([]rune(w)) < 3 {
			continue
		}
		terms[w]++
	}

	return terms
}
