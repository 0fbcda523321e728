package mcp

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sha1n/invitewatch/internal/history"
)

// ServerConfig contains configuration for creating an MCP server
type ServerConfig struct {
	Name    string
	Version string
	// History backs the code tools; without it the server exposes none.
	History history.Reader
}

// CreateServer creates the MCP server and registers the history tools.
func CreateServer(cfg ServerConfig) *mcp.Server {
	s := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	if cfg.History != nil {
		RegisterListTool(s, cfg.History)
		RegisterSearchTool(s, cfg.History)
	}

	return s
}
