package agent

import (
	"fmt"
	"strings"

	"atlas-g/protocol/pkg/generation"
)

// completionDirective is appended to every system instruction. The claim
// validator discards unterminated trailing sentences, so the model is asked
// not to produce them.
const completionDirective = "\n\nCRITICAL: Ensure every sentence is grammatically complete and ends with terminal punctuation. Never stop mid-thought."

// Default sampling for response generation.
const (
	DefaultTemperature     = float32(0.4)
	DefaultMaxOutputTokens = 2048
)

// DefaultPersona returns the core system prompt for subject.
func DefaultPersona(subject string) string {
	return fmt.Sprintf(`You are the digital twin of %[1]s.
Your responses must be:
- Brief and technically accurate
- Grounded in the verified record provided
- Compliant with security protocols

When asked about projects, cite specific examples from the record.

NEVER use markdown headers. Separate paragraphs with a blank line.
If asked about a skill not in the record, admit lack of experience.
NEVER list clients; only discuss project outcomes.

CONTACT FORM TRIGGERING:
- ONLY invoke the contact form if the user explicitly expresses intent to hire %[1]s, discuss business, or send a private message.
- To trigger the form, output the hidden token: %[2]s
- DO NOT output this token for general questions.
`, subject, ContactTrigger)
}

// ContextLayer is a system prompt addition injected when any of its keywords
// occurs in the query.
type ContextLayer struct {
	Name     string
	Keywords []string
	Prompt   string
}

// DefaultContextLayers returns the built-in layers.
func DefaultContextLayers() []ContextLayer {
	return []ContextLayer{
		{
			Name:     "MCP Protocol",
			Keywords: []string{"connect", "integrate", "integration", "mcp setup", "mcp config", "ide"},
			Prompt: `
MCP CONNECTION PROTOCOL:
- If the user asks how to connect, reassure them that they are already connected here.
- Explain that dedicated integration is for AI IDEs that speak the Model Context Protocol.
- If they are an engineer asking for configuration, point them to the project repository README.
`,
		},
		{
			Name:     "Lemon Squeezy Context",
			Keywords: []string{"lemon", "squeezy", "payment", "payments", "salesforce"},
			Prompt: `
LEMON SQUEEZY MCP CONTEXT:
- This is a separate open-source side project.
- It is a TypeScript server for managing payments and syncing orders to Salesforce.
`,
		},
	}
}

type compiledLayer struct {
	name    string
	prompt  string
	matcher *keywordMatcher
}

// PromptBuilder assembles generation requests from the persona, the active
// context layers and the trusted document. It is immutable and safe for
// concurrent use.
type PromptBuilder struct {
	persona  string
	layers   []compiledLayer
	document string
	sampling generation.Sampling
}

// NewPromptBuilder creates a builder. Zero sampling fields take the defaults.
func NewPromptBuilder(persona string, layers []ContextLayer, document string, sampling generation.Sampling) *PromptBuilder {
	if sampling.Temperature == 0 {
		sampling.Temperature = DefaultTemperature
	}
	if sampling.MaxOutputTokens == 0 {
		sampling.MaxOutputTokens = DefaultMaxOutputTokens
	}

	compiled := make([]compiledLayer, 0, len(layers))
	for _, l := range layers {
		compiled = append(compiled, compiledLayer{
			name:    l.Name,
			prompt:  l.Prompt,
			matcher: newKeywordMatcher(l.Keywords),
		})
	}

	return &PromptBuilder{
		persona:  persona,
		layers:   compiled,
		document: document,
		sampling: sampling,
	}
}

// Build returns the request for query and the names of the layers injected.
func (b *PromptBuilder) Build(query, domain string) (*generation.Request, []string) {
	var (
		system strings.Builder
		names  []string
	)
	system.WriteString(b.persona)
	for _, l := range b.layers {
		if l.matcher.match(query) {
			system.WriteString(l.prompt)
			names = append(names, l.name)
		}
	}
	system.WriteString(completionDirective)

	var prompt strings.Builder
	if domain != "" {
		fmt.Fprintf(&prompt, "CURRENT DOMAIN CONTEXT: %s\n", domain)
	}
	fmt.Fprintf(&prompt, "Resume Knowledge Graph:\n%s\n\nUser Query: %s\n\n", b.document, query)
	prompt.WriteString("Provide a helpful, accurate response based solely on the resume data above.")

	return &generation.Request{
		SystemInstruction: system.String(),
		Prompt:            prompt.String(),
		Sampling:          b.sampling,
	}, names
}
