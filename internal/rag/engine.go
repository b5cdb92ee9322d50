// Package rag orchestrates retrieval-augmented answer generation: embed the
// question, retrieve tenant-scoped chunks, and prompt the LLM with the
// retrieved context.
package rag

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/supportflow/backend/internal/embedding"
	"github.com/supportflow/backend/internal/llm"
	"github.com/supportflow/backend/internal/models"
	"github.com/supportflow/backend/internal/tenant"
	"github.com/supportflow/backend/internal/vectorstore"
)

type Options struct {
	Model       string
	TopK        int
	MaxTokens   int
	Temperature float64
}

// Answer is a generated reply plus the chunks that grounded it, in
// retrieval order.
type Answer struct {
	Content        string
	SourceChunkIDs []uuid.UUID
}

type Engine struct {
	embedder *embedding.Service
	store    vectorstore.Store
	gateway  llm.Gateway
	opts     Options
}

func NewEngine(embedder *embedding.Service, store vectorstore.Store, gateway llm.Gateway, opts Options) *Engine {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1000
	}
	if opts.Temperature <= 0 {
		opts.Temperature = 0.3
	}
	return &Engine{embedder: embedder, store: store, gateway: gateway, opts: opts}
}

// Answer runs the full pipeline for one customer question. history is the
// prior conversation turns, oldest first; it is inserted between the system
// prompt and the new question.
func (e *Engine) Answer(ctx context.Context, t *models.Tenant, question string, history []llm.Message) (*Answer, error) {
	queryVec, err := e.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	results, err := e.store.Search(ctx, t.ID, queryVec, e.opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	contexts := make([]string, len(results))
	chunkIDs := make([]uuid.UUID, len(results))
	for i, r := range results {
		contexts[i] = r.Content
		chunkIDs[i] = r.ChunkID
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{
		Role:    "system",
		Content: buildSystemPrompt(tenant.Persona(t), contexts),
	})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: "user", Content: question})

	resp, err := e.gateway.Chat(ctx, llm.ChatRequest{
		Model:       e.opts.Model,
		Messages:    messages,
		Temperature: e.opts.Temperature,
		MaxTokens:   e.opts.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	content := resp.Content
	if content == "" {
		content = FallbackAnswer
	}

	return &Answer{
		Content:        content,
		SourceChunkIDs: chunkIDs,
	}, nil
}
