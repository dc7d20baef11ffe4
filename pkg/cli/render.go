package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"atlas-g/protocol/pkg/agent"
)

// OutputFormat selects how turn events are printed.
type OutputFormat string

const (
	// FormatText prints audit lines, streamed text and the final response.
	FormatText OutputFormat = "text"
	// FormatJSON prints one {"type","data"} object per event.
	FormatJSON OutputFormat = "json"
)

// ParseFormat validates a --format flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (use text or json)", s)
	}
}

// Renderer prints the events of a turn. A Renderer may be reused across
// turns but not shared between goroutines.
type Renderer struct {
	w         io.Writer
	format    OutputFormat
	enc       *json.Encoder
	streaming bool
}

// NewRenderer creates a renderer writing to w.
func NewRenderer(w io.Writer, format OutputFormat) *Renderer {
	return &Renderer{w: w, format: format, enc: json.NewEncoder(w)}
}

// Writer returns the underlying writer.
func (r *Renderer) Writer() io.Writer {
	return r.w
}

// Render prints ev.
func (r *Renderer) Render(ev agent.Event) error {
	if r.format == FormatJSON {
		return r.enc.Encode(ev)
	}

	var err error
	switch ev.Type {
	case agent.EventAudit:
		a := ev.Audit
		_, err = fmt.Fprintf(r.w, "[%-7s] %s: %s\n", a.Status, a.Action, a.Details)
	case agent.EventStream:
		if !r.streaming {
			_, err = io.WriteString(r.w, "  ... ")
			r.streaming = true
		}
		if err == nil {
			_, err = io.WriteString(r.w, strings.ReplaceAll(ev.Stream.Chunk, "\n", " "))
		}
	case agent.EventResponse:
		err = r.response(ev.Response)
	case agent.EventError:
		err = r.endStream()
		if err == nil {
			_, err = fmt.Fprintf(r.w, "! %s\n", ev.Error.Message)
		}
	}
	return err
}

func (r *Renderer) response(resp *agent.Response) error {
	if err := r.endStream(); err != nil {
		return err
	}
	prefix := ">"
	if resp.Blocked {
		prefix = "x"
	}
	if _, err := fmt.Fprintf(r.w, "\n%s %s\n\n", prefix, resp.Content); err != nil {
		return err
	}

	notes := []string{
		fmt.Sprintf("strikes=%d", resp.ViolationCount),
		fmt.Sprintf("verified=%d", resp.FactsVerified),
		fmt.Sprintf("filtered=%d", resp.ClaimsFiltered),
	}
	if resp.ContactRequested {
		notes = append(notes, "contact form requested")
	}
	if resp.SessionTerminated {
		notes = append(notes, "session concluded")
	}
	_, err := fmt.Fprintf(r.w, "  (%s)\n", strings.Join(notes, ", "))
	return err
}

func (r *Renderer) endStream() error {
	if !r.streaming {
		return nil
	}
	r.streaming = false
	_, err := io.WriteString(r.w, "\n")
	return err
}
