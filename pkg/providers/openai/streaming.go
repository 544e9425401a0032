package openai

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/providers"
)

// streamReader reads OpenAI's SSE chunk stream and normalizes each payload.
type streamReader struct {
	provider string
	body     io.ReadCloser
	scanner  *bufio.Scanner
	closed   bool
}

func newStreamReader(provider string, body io.ReadCloser) *streamReader {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &streamReader{
		provider: provider,
		body:     body,
		scanner:  scanner,
	}
}

// Next returns the next normalized chunk. It returns io.EOF on the [DONE]
// sentinel or a clean connection close.
func (s *streamReader) Next(ctx context.Context) (*providers.Chunk, error) {
	if s.closed {
		return nil, io.EOF
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		data, err := s.readData()
		if err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, &providers.StreamError{
				Provider: s.provider,
				Message:  "failed to read stream",
				Cause:    err,
			}
		}

		if data == "[DONE]" {
			return nil, io.EOF
		}

		var wire StreamChunk
		if err := json.Unmarshal([]byte(data), &wire); err != nil {
			return nil, &providers.ParseError{
				Provider: s.provider,
				Raw:      data,
				Cause:    err,
			}
		}
		return transformStreamChunk(&wire), nil
	}
}

// readData reads the next SSE data payload, skipping comments and blank
// separator lines.
func (s *streamReader) readData() (string, error) {
	for s.scanner.Scan() {
		line := s.scanner.Text()
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			return data, nil
		}
		// Ignore other SSE fields (event, id, retry).
	}
	if err := s.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// Close releases the underlying response body.
func (s *streamReader) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}
