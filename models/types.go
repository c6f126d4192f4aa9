// ABOUTME: Core vocabulary for moderated resources
// ABOUTME: Defines resource kinds, statuses, moderation actions, and audit fields
package models

import (
	"fmt"
	"strings"
)

// Kind identifies one of the independently moderated collections.
type Kind string

const (
	KindDevice     Kind = "device"
	KindRequest    Kind = "request"
	KindUser       Kind = "user"
	KindTeamMember Kind = "team_member"
)

// AllKinds lists every kind in console tab order.
var AllKinds = []Kind{KindDevice, KindRequest, KindUser, KindTeamMember}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindDevice, KindRequest, KindUser, KindTeamMember:
		return true
	}
	return false
}

// Label returns the plural display name used for tabs and headings.
func (k Kind) Label() string {
	switch k {
	case KindDevice:
		return "Devices"
	case KindRequest:
		return "Requests"
	case KindUser:
		return "Users"
	case KindTeamMember:
		return "Team"
	}
	return string(k)
}

// Noun returns the singular human name, e.g. "team member".
func (k Kind) Noun() string {
	return strings.ReplaceAll(string(k), "_", " ")
}

// Collection returns the URL path segment for the kind's collection.
func (k Kind) Collection() string {
	switch k {
	case KindDevice:
		return "devices"
	case KindRequest:
		return "requests"
	case KindUser:
		return "users"
	case KindTeamMember:
		return "team-members"
	}
	return string(k)
}

// ParseKind accepts singular, plural, hyphenated and underscored spellings.
func ParseKind(s string) (Kind, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, "-", "_")
	switch norm {
	case "device", "devices":
		return KindDevice, nil
	case "request", "requests":
		return KindRequest, nil
	case "user", "users":
		return KindUser, nil
	case "team_member", "team_members", "team", "member", "members", "teammember", "teammembers":
		return KindTeamMember, nil
	}
	return "", fmt.Errorf("unknown resource kind %q (valid: device, request, user, team_member)", s)
}

// Status is a kind-specific moderation state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
)

// Action is an admin-requested moderation step.
type Action string

const (
	ActionApprove    Action = "approve"
	ActionReject     Action = "reject"
	ActionReset      Action = "reset"
	ActionComplete   Action = "complete"
	ActionActivate   Action = "activate"
	ActionDeactivate Action = "deactivate"
	ActionSuspend    Action = "suspend"
)

// AllActions lists every action the console knows about.
var AllActions = []Action{
	ActionApprove, ActionReject, ActionReset, ActionComplete,
	ActionActivate, ActionDeactivate, ActionSuspend,
}

// ParseAction maps user input onto an Action. "reset_to_pending" is accepted as
// an alias for reset.
func ParseAction(s string) (Action, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, "-", "_")
	if norm == "reset_to_pending" || norm == "resettopending" {
		return ActionReset, nil
	}
	for _, a := range AllActions {
		if string(a) == norm {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// AuditFields are the free-text fields attached to a status change.
type AuditFields struct {
	RejectionReason string `json:"rejection_reason,omitempty"`
	ResetReason     string `json:"reset_reason,omitempty"`
	AdminNotes      string `json:"admin_notes,omitempty"`
}

// IsZero reports whether no audit field is set.
func (a AuditFields) IsZero() bool {
	return a.RejectionReason == "" && a.ResetReason == "" && a.AdminNotes == ""
}

// StatusChange is the body sent to the remote status-update endpoint.
type StatusChange struct {
	Action Action      `json:"action"`
	Audit  AuditFields `json:"audit"`
}
