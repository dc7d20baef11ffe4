package knowledge

import (
	"fmt"
	"log/slog"
	"os"
)

// Source holds the trusted document text and the graph built from it.
type Source struct {
	Path     string
	Document string
	Graph    *Graph
}

// LoadFile reads the trusted document at path and builds its graph.
// A missing file is an error: the agent cannot verify claims without one.
func LoadFile(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read trusted document %q: %w", path, err)
	}

	src := &Source{
		Path:     path,
		Document: string(data),
		Graph:    Build(string(data)),
	}

	employers, projects, skills := src.Graph.Size()
	slog.Default().With("component", "knowledge").Info("knowledge graph built",
		"path", path,
		"employers", employers,
		"projects", projects,
		"skills", skills,
	)
	return src, nil
}

// FromText builds a Source from an in-memory document.
func FromText(document string) *Source {
	return &Source{Document: document, Graph: Build(document)}
}
