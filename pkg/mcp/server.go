package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hed-standard/hed-lsp/pkg/workspace"
)

const (
	serverName    = "hed-lsp"
	serverVersion = "0.1.0"
	defaultLimit  = 10
)

// MCPServer exposes a session's HED tooling as MCP tools.
type MCPServer struct {
	session *workspace.Session
}

// NewServer builds the MCP server with every tool and resource registered.
func NewServer(session *workspace.Session) *server.MCPServer {
	s := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithResourceCapabilities(true, true),
		server.WithLogging(),
	)
	ms := &MCPServer{session: session}

	// --- Resources ---

	s.AddResource(
		mcp.NewResource(
			"hed://vocabulary/top-level",
			"Top-level HED tags",
			mcp.WithResourceDescription("Root tags of the configured HED vocabulary, one per line with descriptions"),
			mcp.WithMIMEType("text/markdown"),
		),
		ms.handleTopLevel,
	)

	// --- Tools ---

	s.AddTool(
		mcp.NewTool(
			"suggest_tags",
			mcp.WithDescription("Complete a partial HED string at a cursor offset."),
			mcp.WithString("hed", mcp.Required(), mcp.Description("The HED string being written")),
			mcp.WithNumber("offset", mcp.Description("Cursor byte offset (default: end of string)")),
			mcp.WithString("version", mcp.Description("HED schema version, e.g. 8.4.0 or 8.4.0,sc:score_2.0.0")),
		),
		ms.handleSuggestTags,
	)

	s.AddTool(
		mcp.NewTool(
			"validate_hed",
			mcp.WithDescription("Validate a HED string and list its issues."),
			mcp.WithString("hed", mcp.Required(), mcp.Description("The HED string to validate")),
			mcp.WithString("version", mcp.Description("HED schema version")),
		),
		ms.handleValidateHED,
	)

	s.AddTool(
		mcp.NewTool(
			"search_tags",
			mcp.WithDescription("Find HED tags for a plain-language term such as 'marmoset' or 'button press'."),
			mcp.WithString("query", mcp.Required(), mcp.Description("The term to search for")),
			mcp.WithNumber("limit", mcp.Description("Max number of results (default 10)")),
		),
		ms.handleSearchTags,
	)

	return s
}

// Run serves MCP on stdio.
func Run(ctx context.Context, session *workspace.Session) error {
	s := NewServer(session)
	slog.Info("Starting MCP server on Stdio", "session", session.ID())
	return server.ServeStdio(s)
}

// --- Resource Handlers ---

func (ms *MCPServer) handleTopLevel(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	vocab, err := ms.session.Vocabulary(ctx, "")
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# HED %s\n\n", vocab.Spec.String())
	for _, ns := range vocab.Namespaces() {
		for _, t := range vocab.TopLevelTags(ns.Prefix) {
			fmt.Fprintf(&b, "- **%s**: %s\n", t.QualifiedName(), t.Description)
		}
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "text/markdown",
			Text:     b.String(),
		},
	}, nil
}

// --- Tool Handlers ---

func (ms *MCPServer) handleSuggestTags(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	hed, ok := args["hed"].(string)
	if !ok {
		return mcp.NewToolResultError("hed argument required"), nil
	}
	offset := len(hed)
	if o, ok := args["offset"].(float64); ok {
		offset = int(o)
	}
	version, _ := args["version"].(string)

	candidates, err := ms.session.CompleteString(ctx, version, hed, offset)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("completion failed: %v", err)), nil
	}
	if len(candidates) == 0 {
		return mcp.NewToolResultText("No suggestions."), nil
	}

	lines := make([]string, len(candidates))
	for i, c := range candidates {
		line := c.InsertText
		if c.Detail != "" {
			line += " (" + c.Detail + ")"
		}
		lines[i] = line
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (ms *MCPServer) handleValidateHED(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	hed, ok := args["hed"].(string)
	if !ok {
		return mcp.NewToolResultError("hed argument required"), nil
	}
	version, _ := args["version"].(string)

	diags, err := ms.session.ValidateString(ctx, version, hed)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("validation failed: %v", err)), nil
	}
	if len(diags) == 0 {
		return mcp.NewToolResultText("Valid."), nil
	}

	jsonBytes, err := json.MarshalIndent(diags, "", "  ")
	if err != nil {
		return mcp.NewToolResultError("failed to marshal diagnostics"), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (ms *MCPServer) handleSearchTags(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query argument required"), nil
	}
	limit := defaultLimit
	if l, ok := args["limit"].(float64); ok && l > 0 {
		limit = int(l)
	}

	matches, err := ms.session.Search(ctx, query)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if len(matches) == 0 {
		return mcp.NewToolResultText("No matching tags found."), nil
	}
	if len(matches) > limit {
		matches = matches[:limit]
	}

	lines := make([]string, len(matches))
	for i, m := range matches {
		lines[i] = fmt.Sprintf("%s\t%.3f\t%s", m.Name(), m.Similarity, m.Source)
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}
