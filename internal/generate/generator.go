// Package generate drives answer generation: it assembles the system
// prompt, calls the Anthropic Messages API, and runs one bounded round of
// tool execution when the model asks for it.
package generate

import (
	"context"
	"fmt"

	"github.com/kalambet/coursechat/internal/llm"
	"github.com/kalambet/coursechat/internal/search"
)

const systemPrompt = `You are an AI assistant specialized in course materials and educational content with access to a comprehensive search tool for course information.

Search Tool Usage:
- Use the search tool only for questions about specific course content or detailed educational materials
- One search per query maximum
- Synthesize search results into accurate, fact-based responses
- If the search yields no results, state this clearly without offering alternatives

Response Protocol:
- General knowledge questions: answer using existing knowledge without searching
- Course-specific questions: search first, then answer
- No meta-commentary: provide direct answers only, without reasoning process, search explanations, or question-answering context

All responses must be:
1. Brief, Concise and focused - get to the point quickly
2. Educational - maintain instructional value
3. Clear - use accessible language
4. Example-supported - include relevant examples when they aid understanding
Provide only the direct answer to what was asked.`

const (
	maxTokens = 800
)

// MessagesClient is the slice of the llm client the generator needs.
type MessagesClient interface {
	Messages(ctx context.Context, req llm.MessagesRequest) (*llm.MessagesResponse, error)
}

// ToolRunner exposes tool definitions and dispatch; satisfied by
// search.ToolManager.
type ToolRunner interface {
	Definitions() []search.Definition
	Execute(ctx context.Context, name string, args map[string]interface{}) string
}

// Generator produces assistant answers for user queries.
type Generator struct {
	client MessagesClient
	model  string
}

// New creates a Generator using the given client and model name.
func New(client MessagesClient, model string) *Generator {
	return &Generator{client: client, model: model}
}

// Respond answers a query. history, when non-empty, is injected into the
// system prompt. tools, when non-nil, are offered to the model; if the
// model requests tool use, every requested tool runs in order and exactly
// one follow-up call produces the final answer.
func (g *Generator) Respond(ctx context.Context, query, history string, tools ToolRunner) (string, error) {
	system := systemPrompt
	if history != "" {
		system += "\n\nPrevious conversation:\n" + history
	}

	temperature := 0.0
	messages := []llm.Message{llm.UserText(query)}

	req := llm.MessagesRequest{
		Model:       g.model,
		MaxTokens:   maxTokens,
		Temperature: &temperature,
		System:      system,
		Messages:    messages,
	}
	if tools != nil {
		req.Tools = toolDefinitions(tools)
		req.ToolChoice = &llm.ToolChoice{Type: "auto"}
	}

	resp, err := g.client.Messages(ctx, req)
	if err != nil {
		return "", fmt.Errorf("generating response: %w", err)
	}

	if resp.StopReason != "tool_use" || tools == nil {
		return resp.FirstText(), nil
	}

	// Tool round: execute every requested tool in response order, then ask
	// once more for the final answer. No further rounds are offered.
	messages = append(messages, llm.Message{Role: "assistant", Content: resp.Content})

	var results []llm.ContentBlock
	for _, use := range resp.ToolUses() {
		text := tools.Execute(ctx, use.Name, use.Input)
		results = append(results, llm.ToolResult(use.ID, text))
	}
	messages = append(messages, llm.Message{Role: "user", Content: results})

	final, err := g.client.Messages(ctx, llm.MessagesRequest{
		Model:       g.model,
		MaxTokens:   maxTokens,
		Temperature: &temperature,
		System:      system,
		Messages:    messages,
	})
	if err != nil {
		return "", fmt.Errorf("generating final response: %w", err)
	}
	return final.FirstText(), nil
}

func toolDefinitions(tools ToolRunner) []llm.ToolDefinition {
	defs := tools.Definitions()
	out := make([]llm.ToolDefinition, len(defs))
	for i, d := range defs {
		out[i] = llm.ToolDefinition{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.InputSchema,
		}
	}
	return out
}
