package mcp

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sha1n/invitewatch/internal/domain"
	"github.com/sha1n/invitewatch/internal/history"
)

const (
	defaultLimit = 20
	maxLimit     = 200
)

// ListArgument defines list_codes parameters.
type ListArgument struct {
	PendingOnly bool `json:"pending_only,omitempty" jsonschema_description:"Only return codes whose notification has not been delivered yet"`
	Limit       int  `json:"limit,omitempty" jsonschema_description:"Maximum number of codes to return, newest first (default 20)"`
}

// SearchArgument defines search_codes parameters.
type SearchArgument struct {
	Query  string `json:"query" jsonschema_description:"A code or words from the text around it"`
	Source string `json:"source,omitempty" jsonschema_description:"Filter by where the code was found: NOTE or COMMENT"`
	Limit  int    `json:"limit,omitempty" jsonschema_description:"Maximum number of results (default 20)"`
}

func errorResult(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf(format, args...)},
		},
		IsError: true,
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func clampLimit(n int) int {
	if n <= 0 {
		return defaultLimit
	}
	return min(n, maxLimit)
}

// ListHandler handles the list_codes tool.
type ListHandler struct {
	history history.Reader
}

// NewListHandler creates a list handler.
func NewListHandler(r history.Reader) *ListHandler {
	return &ListHandler{history: r}
}

// Handle lists recorded codes, newest first.
func (h *ListHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args ListArgument) (*mcp.CallToolResult, any, error) {
	records, err := h.history.Snapshot()
	if err != nil {
		return errorResult("Failed to read history: %s", err), nil, nil
	}

	if args.PendingOnly {
		records = slices.DeleteFunc(records, func(r domain.HistoryRecord) bool { return r.Notified })
	}
	if len(records) == 0 {
		if args.PendingOnly {
			return textResult("No codes are pending notification."), nil, nil
		}
		return textResult("No codes recorded yet."), nil, nil
	}

	slices.Reverse(records)
	total := len(records)
	records = records[:min(total, clampLimit(args.Limit))]

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d code(s) recorded:\n\n", total)
	for _, r := range records {
		writeRecord(&sb, r)
	}
	if total > len(records) {
		fmt.Fprintf(&sb, "... and %d more\n", total-len(records))
	}
	return textResult(sb.String()), nil, nil
}

// GetToolDefinition returns the MCP tool definition.
func (h *ListHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_codes",
		Description: "List invite codes discovered by the monitor, newest first",
	}
}

// SearchHandler handles the search_codes tool.
type SearchHandler struct {
	history history.Reader
}

// NewSearchHandler creates a search handler.
func NewSearchHandler(r history.Reader) *SearchHandler {
	return &SearchHandler{history: r}
}

// Handle runs a full-text search over recorded codes and their context.
func (h *SearchHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args SearchArgument) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(args.Query) == "" {
		return errorResult("Query cannot be empty"), nil, nil
	}

	source := domain.Source(strings.ToUpper(strings.TrimSpace(args.Source)))
	switch source {
	case "", domain.SourceNote, domain.SourceComment:
	default:
		return errorResult("Unknown source %q, expected NOTE or COMMENT", args.Source), nil, nil
	}

	records, err := h.history.Snapshot()
	if err != nil {
		return errorResult("Failed to read history: %s", err), nil, nil
	}

	res, err := history.Search(records, args.Query, source, clampLimit(args.Limit))
	if err != nil {
		return errorResult("Search failed: %s", err), nil, nil
	}
	if res.Total == 0 {
		return textResult(fmt.Sprintf("No codes found for query: %s", args.Query)), nil, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d code(s) for '%s':\n\n", res.Total, args.Query)
	for _, hit := range res.Hits {
		writeRecord(&sb, hit.Record)
		fmt.Fprintf(&sb, "  score: %.4f\n", hit.Score)
	}
	if res.Total > uint64(len(res.Hits)) {
		fmt.Fprintf(&sb, "... and %d more\n", res.Total-uint64(len(res.Hits)))
	}
	return textResult(sb.String()), nil, nil
}

// GetToolDefinition returns the MCP tool definition.
func (h *SearchHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "search_codes",
		Description: "Search discovered invite codes by code or by the text they were found in",
	}
}

func writeRecord(sb *strings.Builder, r domain.HistoryRecord) {
	status := "pending"
	if r.Notified {
		status = "notified"
	}
	fmt.Fprintf(sb, "- %s [%s] %s %s, first seen %s, %s\n",
		r.Code, r.Kind, r.Source, r.SourceID, r.FirstSeenAt.Format("2006-01-02 15:04:05"), status)
	if r.Context != "" {
		fmt.Fprintf(sb, "  %s\n", r.Context)
	}
}

// RegisterListTool registers list_codes with an MCP server.
func RegisterListTool(server *mcp.Server, r history.Reader) {
	handler := NewListHandler(r)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}

// RegisterSearchTool registers search_codes with an MCP server.
func RegisterSearchTool(server *mcp.Server, r history.Reader) {
	handler := NewSearchHandler(r)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
