package core

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
	"telcoza.com/net-insight/internal/utils"
)

// NoReferenceCases is the placeholder handed to the prompt when retrieval
// produced nothing to ground the model on.
const NoReferenceCases = "No reference cases available."

// GoldenExample is a curated, trusted (question, SQL) pair used to ground
// query generation. Loaded once at startup and never mutated.
type GoldenExample struct {
	Question string `yaml:"question"`
	SQL      string `yaml:"sql"`
}

type goldenConfig struct {
	GoldenSQLs []GoldenExample `yaml:"golden_sqls"`
}

// LoadGoldenExamples reads the golden-example configuration file. A missing
// file is not an error: the service still runs, just ungrounded.
func LoadGoldenExamples(path string) ([]GoldenExample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("Golden example file %s not found, continuing without reference cases", path)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read golden example file: %w", err)
	}

	var cfg goldenConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse golden example file: %w", err)
	}
	return cfg.GoldenSQLs, nil
}

// Retriever selects the reference cases most relevant to a question. The
// vector-similarity implementation is the primary path; the lexical one is
// both a standalone strategy and the degraded path when embeddings are
// unavailable.
type Retriever interface {
	Retrieve(ctx context.Context, question string, topK int) ([]GoldenExample, error)
}

// Embedder maps text into the vector space the example index lives in.
type Embedder func(ctx context.Context, text string) ([]float32, error)

// LexicalRetriever scores examples by character-set overlap with the
// question. Crude, but it needs no external service.
type LexicalRetriever struct {
	examples []GoldenExample
}

func NewLexicalRetriever(examples []GoldenExample) *LexicalRetriever {
	return &LexicalRetriever{examples: examples}
}

func (r *LexicalRetriever) Retrieve(_ context.Context, question string, topK int) ([]GoldenExample, error) {
	if len(r.examples) == 0 || topK <= 0 {
		return nil, nil
	}

	questionChars := make(map[rune]struct{}, len(question))
	for _, ch := range question {
		questionChars[ch] = struct{}{}
	}

	type scored struct {
		example GoldenExample
		score   int
	}
	candidates := make([]scored, 0, len(r.examples))
	for _, ex := range r.examples {
		overlap := 0
		seen := make(map[rune]struct{}, len(ex.Question))
		for _, ch := range ex.Question {
			if _, dup := seen[ch]; dup {
				continue
			}
			seen[ch] = struct{}{}
			if _, ok := questionChars[ch]; ok {
				overlap++
			}
		}
		if overlap > 0 {
			candidates = append(candidates, scored{example: ex, score: overlap})
		}
	}

	// Stable sort keeps construction order on ties.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	result := make([]GoldenExample, len(candidates))
	for i, c := range candidates {
		result[i] = c.example
	}
	return result, nil
}

// VectorRetriever ranks examples by cosine similarity in an embedding space.
// The index is built once at construction: one vector per example, same
// order, read-only afterwards.
type VectorRetriever struct {
	examples []GoldenExample
	vectors  [][]float32
	embed    Embedder
	fallback *LexicalRetriever
}

func NewVectorRetriever(ctx context.Context, examples []GoldenExample, embed Embedder) (*VectorRetriever, error) {
	vectors := make([][]float32, 0, len(examples))
	for _, ex := range examples {
		vec, err := embed(ctx, ex.Question)
		if err != nil {
			return nil, fmt.Errorf("failed to index example %q: %w", ex.Question, err)
		}
		vectors = append(vectors, vec)
	}

	return &VectorRetriever{
		examples: examples,
		vectors:  vectors,
		embed:    embed,
		fallback: NewLexicalRetriever(examples),
	}, nil
}

func (r *VectorRetriever) Retrieve(ctx context.Context, question string, topK int) ([]GoldenExample, error) {
	if len(r.examples) == 0 || topK <= 0 {
		return nil, nil
	}

	queryVec, err := r.embed(ctx, question)
	if err != nil {
		// The embedding service being down must never abort the workflow.
		log.Printf("Embedding unavailable (%v), falling back to lexical retrieval", err)
		return r.fallback.Retrieve(ctx, question, topK)
	}

	type scored struct {
		index      int
		similarity float32
	}
	candidates := make([]scored, 0, len(r.examples))
	for i, vec := range r.vectors {
		similarity, err := utils.CosineSimilarity(queryVec, vec)
		if err != nil {
			log.Printf("Skipping example %d, similarity failed: %v", i, err)
			continue
		}
		candidates = append(candidates, scored{index: i, similarity: similarity})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].similarity > candidates[j].similarity
	})

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	result := make([]GoldenExample, len(candidates))
	for i, c := range candidates {
		result[i] = r.examples[c.index]
	}
	return result, nil
}

// FormatExamples renders retrieved cases into the prompt block the model
// sees, or the neutral placeholder when there are none.
func FormatExamples(examples []GoldenExample) string {
	if len(examples) == 0 {
		return NoReferenceCases
	}
	var sb strings.Builder
	for i, ex := range examples {
		fmt.Fprintf(&sb, "[Case %d]\nQuestion: %s\nSQL: %s\n\n", i+1, ex.Question, ex.SQL)
	}
	return strings.TrimSpace(sb.String())
}
