package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/huangsam/tzcluster/core"
	"github.com/huangsam/tzcluster/internal/contract"
	"github.com/huangsam/tzcluster/schema"
	"github.com/mark3labs/mcp-go/mcp"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *contract.Config
	mgr     contract.StoreManager
}

func (h *toolHandler) handleAnalyzePosts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg := h.baseCfg.Clone()
	cfg.InputPath = request.GetString("input_path", "")
	if cfg.InputPath == "" {
		return mcp.NewToolResultError("input_path is required"), nil
	}
	cfg.InputFormat = schema.InputFormat(request.GetString("format", string(schema.AutoInput)))
	if _, ok := schema.ValidInputFormats[cfg.InputFormat]; !ok {
		return mcp.NewToolResultError(fmt.Sprintf("invalid format %q", cfg.InputFormat)), nil
	}
	if d := request.GetString("decay", ""); d != "" {
		cfg.Decay = schema.DecayPolicy(d)
		if _, ok := schema.ValidDecayPolicies[cfg.Decay]; !ok {
			return mcp.NewToolResultError(fmt.Sprintf("invalid decay policy %q", d)), nil
		}
	}
	if k := request.GetInt("clusters", 0); k != 0 {
		if k < 1 || k > contract.MaxClusters {
			return mcp.NewToolResultError(fmt.Sprintf("clusters must be between 1 and %d", contract.MaxClusters)), nil
		}
		cfg.Clusters = k
	}
	if seed := request.GetInt("seed", -1); seed >= 0 {
		cfg.Seed = uint64(seed)
	}
	if n := request.GetInt("sample", 0); n > 0 {
		cfg.Sample = n
	}
	cfg.DryRun = request.GetBool("dry_run", cfg.DryRun)

	result, _, err := core.GetAnalyzeResults(core.WithQuiet(ctx), cfg, h.mgr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("analysis failed: %v", err)), nil
	}

	jsonData, _ := json.MarshalIndent(result, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleGetRegionalSummaries(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summaries, err := core.GetStoredSummaries(ctx, h.mgr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read summaries: %v", err)), nil
	}

	if region := request.GetString("region", ""); region != "" {
		var match []schema.RegionalSummary
		for _, s := range summaries {
			if s.Region == region {
				match = append(match, s)
			}
		}
		if len(match) == 0 {
			return mcp.NewToolResultError(fmt.Sprintf("no summary stored for region %q", region)), nil
		}
		summaries = match
	}

	jsonData, _ := json.MarshalIndent(summaries, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleListRegions(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	regions := h.baseCfg.Regions
	if len(regions) == 0 {
		regions = schema.DefaultRegions()
	}
	jsonData, _ := json.MarshalIndent(regions, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}
