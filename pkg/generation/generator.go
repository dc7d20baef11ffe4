package generation

import (
	"context"
	"errors"
	"strings"
)

// ErrEmptyResponse is returned when a model produces no text.
var ErrEmptyResponse = errors.New("generation: empty response")

// Generator is the generation capability.
type Generator interface {
	// Classify returns the model's full answer to prompt using low
	// temperature and bounded output.
	Classify(ctx context.Context, prompt string) (string, error)

	// Stream starts a generation and returns its chunks in arrival order.
	Stream(ctx context.Context, req *Request) (<-chan *Chunk, error)

	// Name identifies the adapter in logs and errors.
	Name() string
}

// Sampling controls generation randomness and length.
type Sampling struct {
	Temperature     float32
	MaxOutputTokens int
}

// Request is a streaming generation request.
type Request struct {
	SystemInstruction string
	Prompt            string
	Sampling          Sampling
}

// Chunk is one piece of a streamed generation. When Error is set the chunk
// is the last one on the channel.
type Chunk struct {
	Delta string
	Error error
}

// Collect drains a stream into its full text. It returns the text gathered so
// far together with the first chunk error, or ctx.Err() if ctx ends first.
func Collect(ctx context.Context, chunks <-chan *Chunk) (string, error) {
	var sb strings.Builder
	for {
		select {
		case <-ctx.Done():
			return sb.String(), ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				return sb.String(), nil
			}
			if chunk.Error != nil {
				return sb.String(), chunk.Error
			}
			sb.WriteString(chunk.Delta)
		}
	}
}

// send delivers chunk unless ctx is done. It reports whether the chunk was
// delivered.
func send(ctx context.Context, out chan<- *Chunk, chunk *Chunk) bool {
	select {
	case out <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}
