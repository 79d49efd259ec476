package search

import (
	"context"
	"encoding/json"
	"errors"

	"bonfire-agent/pkg/bonfire"
	"bonfire-agent/pkg/rag"
)

// Searcher is the search half of the knowledge store.
type Searcher interface {
	Search(ctx context.Context, bonfireId, query string) ([]json.RawMessage, error)
}

// Retriever fetches context for a query with a single search call.
type Retriever struct {
	store Searcher
}

func NewRetriever(store Searcher) *Retriever {
	return &Retriever{store: store}
}

// Retrieve never retries. Every error it returns is a *rag.StageError for
// the retrieval stage.
func (r *Retriever) Retrieve(ctx context.Context, query, storeId string) (rag.RetrievalResult, error) {
	records, err := r.store.Search(ctx, storeId, query)
	if err != nil {
		var se *bonfire.StatusError
		if errors.As(err, &se) {
			return nil, rag.RetrievalFailure(se.StatusCode, err)
		}
		return nil, rag.RetrievalFailure(0, err)
	}
	return rag.RetrievalResult(records), nil
}
