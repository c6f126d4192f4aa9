// ABOUTME: Table-driven moderation state machine for every resource kind
// ABOUTME: Decides transition legality and required audit fields without side effects
package moderation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/harperreed/devicedrop/models"
)

// Reason classifies why a transition was rejected.
type Reason string

const (
	ReasonInvalidTransition    Reason = "invalid_transition"
	ReasonMissingRequiredField Reason = "missing_required_field"
)

// Audit field names reported in Rejection.Field.
const (
	FieldRejectionReason = "rejection_reason"
	FieldResetReason     = "reset_reason"
)

// Rejection is returned when a transition is illegal or incomplete.
type Rejection struct {
	Reason Reason
	Kind   models.Kind
	From   models.Status
	Action models.Action
	Field  string
}

func (r *Rejection) Error() string {
	switch r.Reason {
	case ReasonMissingRequiredField:
		return fmt.Sprintf("%s on %s requires %s", r.Action, r.Kind.Noun(), strings.ReplaceAll(r.Field, "_", " "))
	default:
		return fmt.Sprintf("cannot %s %s in status %q", r.Action, r.Kind.Noun(), r.From)
	}
}

// Decision is an accepted transition with the audit payload to send downstream.
type Decision struct {
	Next  models.Status
	Audit models.AuditFields
}

// Edge is one declared transition.
type Edge struct {
	From   models.Status
	Action models.Action
	To     models.Status
}

type table map[models.Status]map[models.Action]models.Status

var (
	deviceTable = table{
		models.StatusPending: {
			models.ActionApprove: models.StatusApproved,
			models.ActionReject:  models.StatusRejected,
		},
		models.StatusApproved: {
			models.ActionReject: models.StatusRejected,
		},
		models.StatusRejected: {
			models.ActionReset: models.StatusPending,
		},
	}

	requestTable = table{
		models.StatusPending: {
			models.ActionApprove: models.StatusApproved,
			models.ActionReject:  models.StatusRejected,
		},
		models.StatusApproved: {
			models.ActionComplete: models.StatusCompleted,
		},
		models.StatusRejected:  {},
		models.StatusCompleted: {},
	}

	// Users and team members share the account lifecycle.
	accountTable = table{
		models.StatusActive: {
			models.ActionDeactivate: models.StatusInactive,
			models.ActionSuspend:    models.StatusSuspended,
		},
		models.StatusInactive: {
			models.ActionActivate: models.StatusActive,
		},
		models.StatusSuspended: {
			models.ActionActivate: models.StatusActive,
		},
	}

	tables = map[models.Kind]table{
		models.KindDevice:     deviceTable,
		models.KindRequest:    requestTable,
		models.KindUser:       accountTable,
		models.KindTeamMember: accountTable,
	}

	statusOrder = map[models.Kind][]models.Status{
		models.KindDevice:     {models.StatusPending, models.StatusApproved, models.StatusRejected},
		models.KindRequest:    {models.StatusPending, models.StatusApproved, models.StatusRejected, models.StatusCompleted},
		models.KindUser:       {models.StatusActive, models.StatusInactive, models.StatusSuspended},
		models.KindTeamMember: {models.StatusActive, models.StatusInactive, models.StatusSuspended},
	}
)

// Transition decides whether action may move a kind's record out of current.
// Legality is checked first, then the audit fields the action requires.
func Transition(kind models.Kind, current models.Status, action models.Action, audit models.AuditFields) (Decision, error) {
	reject := func(reason Reason, field string) (Decision, error) {
		return Decision{}, &Rejection{Reason: reason, Kind: kind, From: current, Action: action, Field: field}
	}

	next, ok := tables[kind][current][action]
	if !ok {
		return reject(ReasonInvalidTransition, "")
	}

	out := models.AuditFields{
		RejectionReason: strings.TrimSpace(audit.RejectionReason),
		ResetReason:     strings.TrimSpace(audit.ResetReason),
		AdminNotes:      strings.TrimSpace(audit.AdminNotes),
	}

	switch {
	case action == models.ActionReject && (kind == models.KindDevice || kind == models.KindRequest):
		if out.RejectionReason == "" {
			return reject(ReasonMissingRequiredField, FieldRejectionReason)
		}
	case action == models.ActionReset && kind == models.KindDevice:
		if out.ResetReason == "" {
			return reject(ReasonMissingRequiredField, FieldResetReason)
		}
	}

	return Decision{Next: next, Audit: out}, nil
}

// Allowed lists the actions declared for a status, in stable order.
func Allowed(kind models.Kind, current models.Status) []models.Action {
	row := tables[kind][current]
	actions := make([]models.Action, 0, len(row))
	for _, a := range models.AllActions {
		if _, ok := row[a]; ok {
			actions = append(actions, a)
		}
	}
	return actions
}

// Requires returns the audit field an action needs on kind, or "".
func Requires(kind models.Kind, action models.Action) string {
	switch {
	case action == models.ActionReject && (kind == models.KindDevice || kind == models.KindRequest):
		return FieldRejectionReason
	case action == models.ActionReset && kind == models.KindDevice:
		return FieldResetReason
	}
	return ""
}

// Statuses returns the closed status vocabulary of kind.
func Statuses(kind models.Kind) []models.Status {
	return append([]models.Status(nil), statusOrder[kind]...)
}

// InitialStatus is the status new records of kind start in.
func InitialStatus(kind models.Kind) models.Status {
	if s := statusOrder[kind]; len(s) > 0 {
		return s[0]
	}
	return ""
}

// ValidStatus reports whether s belongs to kind's vocabulary.
func ValidStatus(kind models.Kind, s models.Status) bool {
	for _, v := range statusOrder[kind] {
		if v == s {
			return true
		}
	}
	return false
}

// Terminal reports whether no action leaves s.
func Terminal(kind models.Kind, s models.Status) bool {
	return ValidStatus(kind, s) && len(tables[kind][s]) == 0
}

// Edges returns every declared transition for kind, sorted for stable output.
func Edges(kind models.Kind) []Edge {
	var edges []Edge
	for from, row := range tables[kind] {
		for action, to := range row {
			edges = append(edges, Edge{From: from, Action: action, To: to})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].Action < edges[j].Action
	})
	return edges
}
