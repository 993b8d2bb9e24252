// Package api provides the HTTP API server for managing buckets and running
// retrieval over them.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	// BodyLimit caps request bodies, including document uploads, in bytes.
	// Defaults to fiber's 4MB limit when zero.
	BodyLimit int
}
