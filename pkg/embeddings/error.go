package embeddings

import "errors"

// ErrEmbedding is returned when embedding generation fails. Provider clients
// wrap it around the underlying cause.
var ErrEmbedding = errors.New("embedding failed")
