// ABOUTME: GraphViz visualization MCP handlers
// ABOUTME: Provides the workflow_graph tool for agents
package handlers

import (
	"context"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/devicedrop/models"
	"github.com/harperreed/devicedrop/moderation"
	"github.com/harperreed/devicedrop/viz"
)

type VizHandlers struct{}

func NewVizHandlers() *VizHandlers {
	return &VizHandlers{}
}

type WorkflowGraphInput struct {
	Kind string `json:"kind" jsonschema:"Resource kind: device, request, user or team_member"`
}

type WorkflowGraphOutput struct {
	Kind      string `json:"kind"`
	DOTSource string `json:"dot_source"`
	NodeCount int    `json:"node_count"`
	EdgeCount int    `json:"edge_count"`
}

func (h *VizHandlers) WorkflowGraph(ctx context.Context, _ *mcp.CallToolRequest, input WorkflowGraphInput) (*mcp.CallToolResult, WorkflowGraphOutput, error) {
	kind, err := models.ParseKind(input.Kind)
	if err != nil {
		return nil, WorkflowGraphOutput{}, err
	}

	dot, err := viz.WorkflowDOT(ctx, kind)
	if err != nil {
		return nil, WorkflowGraphOutput{}, err
	}

	return nil, WorkflowGraphOutput{
		Kind:      string(kind),
		DOTSource: strings.TrimSpace(dot),
		NodeCount: len(moderation.Statuses(kind)),
		EdgeCount: len(moderation.Edges(kind)),
	}, nil
}
