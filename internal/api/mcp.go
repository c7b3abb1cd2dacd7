package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/coursechat/internal/course"
	"github.com/kalambet/coursechat/internal/search"
)

// CatalogReader lists the stored courses for the catalog resource.
type CatalogReader interface {
	AllCourses() ([]course.Course, error)
}

// MCPSearcher runs a course content search. *search.CourseSearchTool
// satisfies it; sources are dropped since MCP clients get the formatted
// text with headers inline.
type MCPSearcher interface {
	Execute(ctx context.Context, args map[string]interface{}) (string, []search.Source)
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Search  MCPSearcher
	Catalog CatalogReader
	Version string
}

// NewMCPServer creates an MCP server exposing course search as a tool and
// the course catalog as a resource.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	s := server.NewMCPServer(
		"coursechat",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("coursechat provides semantic search over ingested course materials."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("search_course_content",
			mcp.WithDescription("Search course materials with smart course name matching and lesson filtering."),
			mcp.WithString("query", mcp.Description("What to search for in the course content"), mcp.Required()),
			mcp.WithString("course_name", mcp.Description("Course title, partial matches work")),
			mcp.WithNumber("lesson_number", mcp.Description("Specific lesson number to search within")),
		),
		mcpSearch(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"courses://catalog",
			"Course Catalog",
			mcp.WithResourceDescription("All ingested courses with their lessons as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceCatalog(deps),
	)

	return s
}

func mcpSearch(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		args := map[string]interface{}{"query": query}
		if name := req.GetString("course_name", ""); name != "" {
			args["course_name"] = name
		}
		if lesson := req.GetFloat("lesson_number", -1); lesson >= 0 {
			args["lesson_number"] = lesson
		}

		text, _ := deps.Search.Execute(ctx, args)
		return mcpText(text), nil
	}
}

func mcpResourceCatalog(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		courses, err := deps.Catalog.AllCourses()
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog: %w", err)
		}
		if courses == nil {
			courses = []course.Course{}
		}

		b, err := json.Marshal(courses)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal catalog: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
