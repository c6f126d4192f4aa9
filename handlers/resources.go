// ABOUTME: MCP resource handlers exposing workflows and cached pages
// ABOUTME: Serves devicedrop://workflow/<kind> and devicedrop://<collection> URIs
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/devicedrop/engine"
	"github.com/harperreed/devicedrop/models"
	"github.com/harperreed/devicedrop/moderation"
)

const uriScheme = "devicedrop://"

type ResourceHandlers struct {
	loader *engine.Loader
}

func NewResourceHandlers(l *engine.Loader) *ResourceHandlers {
	return &ResourceHandlers{loader: l}
}

// ReadResource handles resource read requests
func (h *ResourceHandlers) ReadResource(ctx context.Context, request *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := request.Params.URI
	if !strings.HasPrefix(uri, uriScheme) {
		return nil, fmt.Errorf("invalid URI scheme: expected %s", uriScheme)
	}
	parts := strings.Split(strings.TrimPrefix(uri, uriScheme), "/")

	if parts[0] == "workflow" {
		if len(parts) != 2 {
			return nil, fmt.Errorf("workflow URI needs a kind")
		}
		kind, err := models.ParseKind(parts[1])
		if err != nil {
			return nil, err
		}
		return jsonResource(uri, workflowDoc(kind))
	}

	kind, err := models.ParseKind(parts[0])
	if err != nil {
		return nil, fmt.Errorf("unknown resource: %s", parts[0])
	}
	page, err := h.loader.EnsureLoaded(ctx, kind)
	if err != nil {
		return nil, err
	}
	return jsonResource(uri, page)
}

type workflowEdge struct {
	From     string `json:"from"`
	Action   string `json:"action"`
	To       string `json:"to"`
	Requires string `json:"requires,omitempty"`
}

type workflow struct {
	Kind     string         `json:"kind"`
	Initial  string         `json:"initial"`
	Statuses []string       `json:"statuses"`
	Edges    []workflowEdge `json:"edges"`
}

func workflowDoc(kind models.Kind) workflow {
	w := workflow{Kind: string(kind), Initial: string(moderation.InitialStatus(kind))}
	for _, s := range moderation.Statuses(kind) {
		w.Statuses = append(w.Statuses, string(s))
	}
	for _, e := range moderation.Edges(kind) {
		w.Edges = append(w.Edges, workflowEdge{
			From:     string(e.From),
			Action:   string(e.Action),
			To:       string(e.To),
			Requires: moderation.Requires(kind, e.Action),
		})
	}
	return w
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource: %w", err)
	}
	return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{
		{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}}, nil
}
