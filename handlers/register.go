// ABOUTME: Registers every devicedrop tool, resource and prompt on an MCP server
// ABOUTME: Shared by the mcp subcommand and the handler tests
package handlers

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/devicedrop/engine"
	"github.com/harperreed/devicedrop/models"
)

// NewServer builds an MCP server exposing f and l.
func NewServer(version string, f *engine.Facade, l *engine.Loader) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "devicedrop",
		Version: version,
	}, nil)

	records := NewRecordHandlers(f, l)
	vizHandlers := NewVizHandlers()
	resources := NewResourceHandlers(l)
	prompts := NewPromptHandlers(f)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_records",
		Description: "List one page of devices, requests, users or team members with optional filters and search",
	}, records.ListRecords)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_record",
		Description: "Fetch one record with its status and the actions currently allowed",
	}, records.GetRecord)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "transition_record",
		Description: "Apply a moderation action (approve, reject, reset, complete, activate, deactivate, suspend) to a record",
	}, records.TransitionRecord)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "edit_record",
		Description: "Change payload fields of a record",
	}, records.EditRecord)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "create_record",
		Description: "Create a record in its initial status",
	}, records.CreateRecord)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "remove_record",
		Description: "Delete a record",
	}, records.RemoveRecord)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "refresh_records",
		Description: "Re-fetch the current page of a collection, bypassing the cache",
	}, records.RefreshRecords)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "workflow_graph",
		Description: "Graphviz DOT source for a kind's moderation workflow",
	}, vizHandlers.WorkflowGraph)

	for _, kind := range models.AllKinds {
		server.AddResource(&mcp.Resource{
			URI:         uriScheme + "workflow/" + string(kind),
			Name:        string(kind) + "-workflow",
			Description: kind.Label() + " moderation workflow",
			MIMEType:    "application/json",
		}, resources.ReadResource)
		server.AddResource(&mcp.Resource{
			URI:         uriScheme + kind.Collection(),
			Name:        kind.Collection(),
			Description: "Current page of " + kind.Collection(),
			MIMEType:    "application/json",
		}, resources.ReadResource)
	}

	server.AddPrompt(&mcp.Prompt{
		Name:        PromptReviewQueue,
		Description: "Review the records of a collection that are waiting on an admin",
		Arguments: []*mcp.PromptArgument{
			{Name: "kind", Description: "device, request, user or team_member", Required: true},
		},
	}, prompts.GetPrompt)

	return server
}
