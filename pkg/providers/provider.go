package providers

import "context"

// StreamReader yields normalized chunks from a live upstream stream. The
// caller must Close it when done; closing releases the HTTP connection.
type StreamReader interface {
	// Next returns the next chunk, io.EOF at the end of the stream, or a
	// provider error.
	Next(ctx context.Context) (*Chunk, error)

	// Close releases the underlying connection.
	Close() error
}

// Provider is the interface every upstream adapter implements. Adapters own
// their wire formats; callers see only normalized requests, responses, and
// chunks.
type Provider interface {
	// Name returns the configured provider name.
	Name() string

	// Complete performs a non-streaming completion.
	Complete(ctx context.Context, req *CompletionRequest) (*Response, error)

	// Stream starts a streaming completion.
	Stream(ctx context.Context, req *CompletionRequest) (StreamReader, error)
}
