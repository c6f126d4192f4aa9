// ABOUTME: MCP prompt handlers for moderation review templates
// ABOUTME: Builds a review-queue prompt from the pending records of a collection
package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/devicedrop/engine"
	"github.com/harperreed/devicedrop/models"
	"github.com/harperreed/devicedrop/moderation"
)

const PromptReviewQueue = "review-queue"

type PromptHandlers struct {
	facade *engine.Facade
}

func NewPromptHandlers(f *engine.Facade) *PromptHandlers {
	return &PromptHandlers{facade: f}
}

// GetPrompt generates the prompt message based on the template
func (h *PromptHandlers) GetPrompt(ctx context.Context, request *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	switch request.Params.Name {
	case PromptReviewQueue:
		return h.getReviewQueuePrompt(ctx, request.Params.Arguments)
	default:
		return nil, fmt.Errorf("unknown prompt: %s", request.Params.Name)
	}
}

func (h *PromptHandlers) getReviewQueuePrompt(ctx context.Context, args map[string]string) (*mcp.GetPromptResult, error) {
	kindArg, ok := args["kind"]
	if !ok {
		return nil, fmt.Errorf("kind is required")
	}
	kind, err := models.ParseKind(kindArg)
	if err != nil {
		return nil, err
	}

	// Accounts have no pending state; review the suspended ones instead.
	status := models.StatusPending
	if !moderation.ValidStatus(kind, status) {
		status = models.StatusSuspended
	}

	page, err := h.facade.ListPage(ctx, kind, 1, map[string]string{"status": string(status)}, "")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch review queue: %w", err)
	}

	var promptText strings.Builder
	promptText.WriteString(fmt.Sprintf("Please review these %s %s:\n\n", status, strings.ToLower(kind.Label())))
	if page == nil || len(page.Items) == 0 {
		promptText.WriteString("(nothing waiting)\n")
	} else {
		for _, rec := range page.Items {
			promptText.WriteString(fmt.Sprintf("- %s [%s]\n", rec.Title(), rec.ID))
			fields, _ := models.PayloadToMap(rec.Payload)
			for k, v := range fields {
				promptText.WriteString(fmt.Sprintf("    %s: %v\n", k, v))
			}
		}
		if page.TotalPages > 1 {
			promptText.WriteString(fmt.Sprintf("\n(showing page 1 of %d, %d total)\n", page.TotalPages, page.Total))
		}
	}

	var actions []string
	for _, a := range moderation.Allowed(kind, status) {
		label := string(a)
		if field := moderation.Requires(kind, a); field != "" {
			label += " (needs " + strings.ReplaceAll(field, "_", " ") + ")"
		}
		actions = append(actions, label)
	}

	promptText.WriteString("\nAvailable actions: " + strings.Join(actions, ", "))
	promptText.WriteString("\n\nFor each record, recommend an action and draft any required reason.")

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Review queue for %s", kind.Collection()),
		Messages: []*mcp.PromptMessage{
			{
				Role:    "user",
				Content: &mcp.TextContent{Text: promptText.String()},
			},
		},
	}, nil
}
