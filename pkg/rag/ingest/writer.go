package ingest

import (
	"context"
	"errors"

	"bonfire-agent/pkg/bonfire"
	"bonfire-agent/pkg/rag"
)

// ChunkAdder is the ingest half of the knowledge store.
type ChunkAdder interface {
	AddChunk(ctx context.Context, chunk bonfire.Chunk) error
}

// Writer appends a query/answer exchange to the knowledge store.
type Writer struct {
	store ChunkAdder
}

func NewWriter(store ChunkAdder) *Writer {
	return &Writer{store: store}
}

// FormatExchange is the record content stored for one exchange.
func FormatExchange(query, answer string) string {
	return query + "\n\n" + answer
}

// Persist issues one ingest call. Every error it returns is a
// *rag.StageError for the persistence stage.
func (w *Writer) Persist(ctx context.Context, query, answer, storeId, label string) error {
	err := w.store.AddChunk(ctx, bonfire.Chunk{
		Content:   FormatExchange(query, answer),
		BonfireId: storeId,
		Label:     label,
	})
	if err == nil {
		return nil
	}

	var se *bonfire.StatusError
	if errors.As(err, &se) {
		return rag.PersistenceFailure(se.StatusCode, se.Message, err)
	}
	return rag.PersistenceFailure(0, "", err)
}
