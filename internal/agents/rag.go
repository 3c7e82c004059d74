package agents

import (
	"context"
	"fmt"
	"strings"

	"ragmux/internal/classifier"
	"ragmux/internal/llmclient"
	"ragmux/internal/vectorstore"
)

// Embedder turns text into a vector for similarity search. Kept as a
// narrow interface rather than depending on a concrete embedding provider
// package, since the embedding model's own provider is interchangeable —
// a real HTTP client or a deterministic hash-based fallback both satisfy
// it.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ragAgent retrieves relevant documents from the vector store and grounds
// its answer in them, citing each source it used.
type ragAgent struct {
	llm      *llmclient.Client
	store    *vectorstore.Facade
	embedder Embedder
	cl       *classifier.Classifier
	topK     int
}

// NewRAGAgent builds the rag_agent over store/embedder/classifier.
func NewRAGAgent(llm *llmclient.Client, store *vectorstore.Facade, embedder Embedder, cl *classifier.Classifier) Agent {
	return &ragAgent{llm: llm, store: store, embedder: embedder, cl: cl, topK: 5}
}

func (a *ragAgent) Name() string { return "rag_agent" }

func (a *ragAgent) Capabilities() []string { return []string{"retrieval", "grounding"} }

func (a *ragAgent) Handle(ctx context.Context, tc *TaskContext) (Result, error) {
	if a.store == nil || a.embedder == nil {
		return Result{}, fmt.Errorf("agents: rag_agent: no knowledge base configured")
	}

	collection, err := a.store.SmartSuggest(ctx, a.cl, tc.Query)
	if err != nil {
		return Result{}, fmt.Errorf("agents: rag_agent: selecting collection: %w", err)
	}
	if collection == "" {
		return Result{}, fmt.Errorf("agents: rag_agent: no knowledge base collections available")
	}

	vec, err := a.embedder.Embed(ctx, tc.Query)
	if err != nil {
		return Result{}, fmt.Errorf("agents: rag_agent: embedding query: %w", err)
	}

	results, err := a.store.Query(ctx, collection, vec, a.topK, nil)
	if err != nil {
		return Result{}, fmt.Errorf("agents: rag_agent: querying %q: %w", collection, err)
	}

	var passages strings.Builder
	sources := make([]string, 0, len(results))
	for i, r := range results {
		text := r.Metadata["text"]
		passages.WriteString(fmt.Sprintf("[%d] %s\n", i+1, text))
		sources = append(sources, r.ID)
	}

	system := "You are a retrieval-grounded assistant. Answer the query using only " +
		"the numbered passages below. Cite passage numbers inline like [1]. If the " +
		"passages don't contain the answer, say so instead of guessing.\n\nPassages:\n" +
		passages.String()

	resp, err := a.llm.Generate(ctx, llmclient.Request{
		System:   system,
		Messages: []llmclient.Message{{Role: "user", Content: tc.Query}},
	})
	if err != nil {
		return Result{}, fmt.Errorf("agents: rag_agent: %w", err)
	}

	return Result{Output: resp.Content, Sources: sources}, nil
}
