// Package search implements the tools the assistant can call during a
// conversation and the registry that dispatches them.
package search

import (
	"context"
	"fmt"
	"sync"
)

// Source identifies where a piece of retrieved content came from.
// Link is empty when the originating course carries no link.
type Source struct {
	Title string `json:"title"`
	Link  string `json:"link,omitempty"`
}

// Definition describes a tool in the shape the Anthropic Messages API
// expects for its tools parameter.
type Definition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"input_schema"`
}

// InputSchema is a JSON Schema object describing tool arguments.
type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Property describes a single field within an InputSchema.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// Tool is one callable capability. Execute returns the text to hand back
// to the model plus the sources that text was drawn from; tools hold no
// mutable state between calls.
type Tool interface {
	Definition() Definition
	Execute(ctx context.Context, args map[string]interface{}) (string, []Source)
}

// ToolManager registers tools by name and dispatches execution. It owns
// source aggregation: sources returned by executed tools accumulate until
// ResetSources, deduplicated by title in first-seen order.
type ToolManager struct {
	mu      sync.Mutex
	tools   map[string]Tool
	order   []string
	sources []Source
	seen    map[string]bool
}

// NewToolManager creates an empty ToolManager.
func NewToolManager() *ToolManager {
	return &ToolManager{
		tools: make(map[string]Tool),
		seen:  make(map[string]bool),
	}
}

// Register adds a tool under its definition name. A tool whose definition
// has no name is rejected. Re-registering a name replaces the old tool.
func (m *ToolManager) Register(t Tool) error {
	def := t.Definition()
	if def.Name == "" {
		return fmt.Errorf("tool must have a 'name' in its definition")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.tools[def.Name]; !exists {
		m.order = append(m.order, def.Name)
	}
	m.tools[def.Name] = t
	return nil
}

// Definitions returns all registered tool definitions in registration order.
func (m *ToolManager) Definitions() []Definition {
	m.mu.Lock()
	defer m.mu.Unlock()

	defs := make([]Definition, 0, len(m.order))
	for _, name := range m.order {
		defs = append(defs, m.tools[name].Definition())
	}
	return defs
}

// Execute runs the named tool and records its sources. An unknown name
// yields an explanatory text the model can relay.
func (m *ToolManager) Execute(ctx context.Context, name string, args map[string]interface{}) string {
	m.mu.Lock()
	t, ok := m.tools[name]
	m.mu.Unlock()
	if !ok {
		return fmt.Sprintf("Tool '%s' not found", name)
	}

	text, sources := t.Execute(ctx, args)

	m.mu.Lock()
	for _, s := range sources {
		if m.seen[s.Title] {
			continue
		}
		m.seen[s.Title] = true
		m.sources = append(m.sources, s)
	}
	m.mu.Unlock()

	return text
}

// LastSources returns the sources accumulated since the last reset.
func (m *ToolManager) LastSources() []Source {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Source, len(m.sources))
	copy(out, m.sources)
	return out
}

// ResetSources clears the accumulated sources.
func (m *ToolManager) ResetSources() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources = nil
	m.seen = make(map[string]bool)
}
