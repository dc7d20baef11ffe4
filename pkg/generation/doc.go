// Package generation defines the Generation Capability used by the intent
// classifier and the agent orchestrator, together with adapters for hosted
// models.
//
// A Generator exposes two calls:
//
//   - Classify sends a prompt with deterministic sampling and returns the full
//     text. Empty output is reported as ErrEmptyResponse, never as "".
//   - Stream sends a system instruction and prompt and returns a channel of
//     Chunks. A failing stream delivers one final Chunk with Error set and
//     then closes. Cancelling ctx stops the stream and closes the channel.
//
// Adapters:
//
//   - GeminiGenerator (google.golang.org/genai)
//   - OpenAIGenerator (github.com/sashabaranov/go-openai), which also serves
//     OpenAI-compatible endpoints through BaseURL.
//
// Use New to build the adapter named in configuration.
package generation
