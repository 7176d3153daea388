// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/huangsam/tzcluster/internal/contract"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer initializes and configures the tzcluster MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(baseCfg *contract.Config, mgr contract.StoreManager) *server.MCPServer {
	s := server.NewMCPServer(
		"Timezone Cluster Server",
		"1.0.0",
		server.WithLogging(),
	)

	h := &toolHandler{
		baseCfg: baseCfg,
		mgr:     mgr,
	}

	s.AddTool(mcp.NewTool("analyze_posts",
		mcp.WithDescription("Cluster post timestamps by hour of day and infer the timezone regions the authors live in."),
		mcp.WithString("input_path", mcp.Description("Path to a JSONL, JSON, CSV or Parquet dataset with id and created_at fields."), mcp.Required()),
		mcp.WithString("format", mcp.Description("Input format. Defaults to detection from the file extension."), mcp.Enum("auto", "jsonl", "json", "csv", "parquet")),
		mcp.WithString("decay", mcp.Description("Confidence decay away from the work-window midpoint."), mcp.Enum("linear", "cosine", "quadratic", "halfday")),
		mcp.WithNumber("clusters", mcp.Description("Number of K-means clusters (default 24).")),
		mcp.WithNumber("seed", mcp.Description("Random seed for centroid initialization (default 42).")),
		mcp.WithNumber("sample", mcp.Description("Read at most this many records.")),
		mcp.WithBoolean("dry_run", mcp.Description("Preview the merged summaries without committing them.")),
	), h.handleAnalyzePosts)

	s.AddTool(mcp.NewTool("get_regional_summaries",
		mcp.WithDescription("Return the accumulated per-region post counts and confidences from the summary store."),
		mcp.WithString("region", mcp.Description("Only return the summary for this region.")),
	), h.handleGetRegionalSummaries)

	s.AddTool(mcp.NewTool("list_regions",
		mcp.WithDescription("List the candidate regions with their UTC offsets and local work windows."),
	), h.handleListRegions)

	return s
}

// StartMCPServer starts the tzcluster MCP server on stdio.
func StartMCPServer(_ context.Context, baseCfg *contract.Config, mgr contract.StoreManager) error {
	s := NewMCPServer(baseCfg, mgr)
	return server.ServeStdio(s)
}
