package rag

import "encoding/json"

// RetrievalResult holds the knowledge-store records for one query, in store
// order. Records are opaque JSON and are never modified by the pipeline.
type RetrievalResult []json.RawMessage
