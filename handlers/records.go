// ABOUTME: Record MCP tool handlers backed by the workflow facade
// ABOUTME: Implements list, get, transition, edit, create, remove and refresh tools
package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/devicedrop/engine"
	"github.com/harperreed/devicedrop/models"
)

type RecordHandlers struct {
	facade *engine.Facade
	loader *engine.Loader
}

func NewRecordHandlers(f *engine.Facade, l *engine.Loader) *RecordHandlers {
	return &RecordHandlers{facade: f, loader: l}
}

type RecordOutput struct {
	ID             string         `json:"id"`
	Kind           string         `json:"kind"`
	Status         string         `json:"status"`
	Title          string         `json:"title"`
	CreatedAt      string         `json:"created_at"`
	UpdatedAt      string         `json:"updated_at"`
	Fields         map[string]any `json:"fields"`
	AllowedActions []string       `json:"allowed_actions"`
}

type ListRecordsInput struct {
	Kind    string            `json:"kind" jsonschema:"Resource kind: device, request, user or team_member"`
	Page    int               `json:"page,omitempty" jsonschema:"1-based page number (default 1)"`
	Filters map[string]string `json:"filters,omitempty" jsonschema:"Field filters such as status, type, category, role; 'all' means no filter"`
	Search  string            `json:"search,omitempty" jsonschema:"Free-text search"`
}

type ListRecordsOutput struct {
	Kind       string         `json:"kind"`
	Page       int            `json:"page"`
	TotalPages int            `json:"total_pages"`
	Total      int            `json:"total"`
	Items      []RecordOutput `json:"items"`
}

type RecordRefInput struct {
	Kind string `json:"kind" jsonschema:"Resource kind: device, request, user or team_member"`
	ID   string `json:"id" jsonschema:"Record ID"`
}

type TransitionInput struct {
	Kind            string `json:"kind" jsonschema:"Resource kind: device, request, user or team_member"`
	ID              string `json:"id" jsonschema:"Record ID"`
	Action          string `json:"action" jsonschema:"Moderation action: approve, reject, reset, complete, activate, deactivate, suspend"`
	RejectionReason string `json:"rejection_reason,omitempty" jsonschema:"Required when rejecting devices and requests"`
	ResetReason     string `json:"reset_reason,omitempty" jsonschema:"Required when resetting a rejected device"`
	AdminNotes      string `json:"admin_notes,omitempty" jsonschema:"Optional notes stored with the status change"`
}

type EditInput struct {
	Kind   string         `json:"kind" jsonschema:"Resource kind: device, request, user or team_member"`
	ID     string         `json:"id" jsonschema:"Record ID"`
	Fields map[string]any `json:"fields" jsonschema:"Payload fields to change"`
}

type CreateInput struct {
	Kind   string         `json:"kind" jsonschema:"Resource kind: device, request, user or team_member"`
	Fields map[string]any `json:"fields" jsonschema:"Payload fields of the new record"`
	Token  string         `json:"token,omitempty" jsonschema:"Submission token; retrying with the same token never creates a duplicate"`
}

type RemoveOutput struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Removed bool   `json:"removed"`
}

type RefreshInput struct {
	Kind string `json:"kind" jsonschema:"Resource kind: device, request, user or team_member"`
}

func (h *RecordHandlers) toOutput(rec *models.Record) RecordOutput {
	fields, _ := models.PayloadToMap(rec.Payload)
	out := RecordOutput{
		ID:             rec.ID,
		Kind:           string(rec.Kind),
		Status:         string(rec.Status),
		Title:          rec.Title(),
		CreatedAt:      rec.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      rec.UpdatedAt.Format(time.RFC3339),
		Fields:         fields,
		AllowedActions: []string{},
	}
	for _, a := range h.facade.AllowedActions(rec.Kind, rec.ID) {
		out.AllowedActions = append(out.AllowedActions, string(a))
	}
	return out
}

func (h *RecordHandlers) pageOutput(kind models.Kind, page *models.PageResult) ListRecordsOutput {
	out := ListRecordsOutput{Kind: string(kind), Items: []RecordOutput{}}
	if page == nil {
		return out
	}
	out.Page = page.Page
	out.TotalPages = page.TotalPages
	out.Total = page.Total
	for _, rec := range page.Items {
		out.Items = append(out.Items, h.toOutput(rec))
	}
	return out
}

func (h *RecordHandlers) ListRecords(ctx context.Context, _ *mcp.CallToolRequest, input ListRecordsInput) (*mcp.CallToolResult, ListRecordsOutput, error) {
	kind, err := models.ParseKind(input.Kind)
	if err != nil {
		return nil, ListRecordsOutput{}, err
	}

	page, err := h.facade.ListPage(ctx, kind, input.Page, input.Filters, input.Search)
	if errors.Is(err, engine.ErrSuperseded) {
		page, err = h.facade.ListPage(ctx, kind, input.Page, input.Filters, input.Search)
	}
	if err != nil {
		return nil, ListRecordsOutput{}, err
	}
	return nil, h.pageOutput(kind, page), nil
}

func (h *RecordHandlers) GetRecord(ctx context.Context, _ *mcp.CallToolRequest, input RecordRefInput) (*mcp.CallToolResult, RecordOutput, error) {
	kind, err := models.ParseKind(input.Kind)
	if err != nil {
		return nil, RecordOutput{}, err
	}
	if input.ID == "" {
		return nil, RecordOutput{}, fmt.Errorf("id is required")
	}

	rec, err := h.facade.Get(ctx, kind, input.ID)
	if err != nil {
		return nil, RecordOutput{}, err
	}
	return nil, h.toOutput(rec), nil
}

func (h *RecordHandlers) TransitionRecord(ctx context.Context, _ *mcp.CallToolRequest, input TransitionInput) (*mcp.CallToolResult, RecordOutput, error) {
	kind, err := models.ParseKind(input.Kind)
	if err != nil {
		return nil, RecordOutput{}, err
	}
	action, err := models.ParseAction(input.Action)
	if err != nil {
		return nil, RecordOutput{}, err
	}
	if input.ID == "" {
		return nil, RecordOutput{}, fmt.Errorf("id is required")
	}

	rec, err := h.facade.Transition(ctx, kind, input.ID, action, models.AuditFields{
		RejectionReason: input.RejectionReason,
		ResetReason:     input.ResetReason,
		AdminNotes:      input.AdminNotes,
	})
	if err != nil {
		return nil, RecordOutput{}, err
	}
	return nil, h.toOutput(rec), nil
}

func (h *RecordHandlers) EditRecord(ctx context.Context, _ *mcp.CallToolRequest, input EditInput) (*mcp.CallToolResult, RecordOutput, error) {
	kind, err := models.ParseKind(input.Kind)
	if err != nil {
		return nil, RecordOutput{}, err
	}
	if input.ID == "" {
		return nil, RecordOutput{}, fmt.Errorf("id is required")
	}
	if len(input.Fields) == 0 {
		return nil, RecordOutput{}, fmt.Errorf("fields is required")
	}

	rec, err := h.facade.EditFields(ctx, kind, input.ID, input.Fields)
	if err != nil {
		return nil, RecordOutput{}, err
	}
	return nil, h.toOutput(rec), nil
}

func (h *RecordHandlers) CreateRecord(ctx context.Context, _ *mcp.CallToolRequest, input CreateInput) (*mcp.CallToolResult, RecordOutput, error) {
	kind, err := models.ParseKind(input.Kind)
	if err != nil {
		return nil, RecordOutput{}, err
	}
	payload, err := models.PayloadFromMap(kind, input.Fields)
	if err != nil {
		return nil, RecordOutput{}, err
	}

	rec, err := h.facade.Create(ctx, kind, input.Token, payload)
	if err != nil {
		return nil, RecordOutput{}, err
	}
	return nil, h.toOutput(rec), nil
}

func (h *RecordHandlers) RemoveRecord(ctx context.Context, _ *mcp.CallToolRequest, input RecordRefInput) (*mcp.CallToolResult, RemoveOutput, error) {
	kind, err := models.ParseKind(input.Kind)
	if err != nil {
		return nil, RemoveOutput{}, err
	}
	if input.ID == "" {
		return nil, RemoveOutput{}, fmt.Errorf("id is required")
	}

	if err := h.facade.Remove(ctx, kind, input.ID); err != nil {
		return nil, RemoveOutput{}, err
	}
	return nil, RemoveOutput{ID: input.ID, Kind: string(kind), Removed: true}, nil
}

func (h *RecordHandlers) RefreshRecords(ctx context.Context, _ *mcp.CallToolRequest, input RefreshInput) (*mcp.CallToolResult, ListRecordsOutput, error) {
	kind, err := models.ParseKind(input.Kind)
	if err != nil {
		return nil, ListRecordsOutput{}, err
	}

	page, err := h.loader.ForceRefresh(ctx, kind)
	if err != nil {
		return nil, ListRecordsOutput{}, err
	}
	return nil, h.pageOutput(kind, page), nil
}
