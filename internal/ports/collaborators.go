package ports

import (
	"context"
	"encoding/json"

	"threatgate/internal/domain"
)

// Retriever is the document-retrieval collaborator (vector store, search
// index). The core only sees the documents it returns.
type Retriever interface {
	Search(ctx context.Context, query string) ([]domain.Document, error)
}

// Generator is the answer-generation collaborator (LLM). ThreatModel returns
// the raw object it produced; the pipeline schema-validates it before use.
type Generator interface {
	Answer(ctx context.Context, query string, docs []domain.Document) (string, error)
	ThreatModel(ctx context.Context, query string, docs []domain.Document) (json.RawMessage, error)
}
