// ABOUTME: Record CLI commands: list, show, transition, edit, create and remove
// ABOUTME: Every command goes through the workflow facade so the CLI obeys the same rules as the TUI
package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harperreed/devicedrop/engine"
	"github.com/harperreed/devicedrop/models"
	"github.com/harperreed/devicedrop/moderation"
)

// actionShortcuts get their own top-level command, e.g. "devicedrop approve".
var actionShortcuts = models.AllActions

func newListCmd(g *globalFlags) *cobra.Command {
	var (
		page    int
		status  string
		search  string
		filters map[string]string
	)

	cmd := &cobra.Command{
		Use:   "list <kind>",
		Short: "List one page of devices, requests, users or team members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := models.ParseKind(args[0])
			if err != nil {
				return err
			}
			a, err := g.openApp(cmd, nil)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if status != "" {
				if filters == nil {
					filters = map[string]string{}
				}
				filters["status"] = status
			}

			result, err := a.facade.ListPage(cmd.Context(), kind, page, filters, search)
			if err != nil {
				return err
			}
			printPage(cmd.OutOrStdout(), kind, result)
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().StringVar(&status, "status", "", "Only records in this status")
	cmd.Flags().StringVar(&search, "search", "", "Case-insensitive text search")
	cmd.Flags().StringToStringVar(&filters, "filter", nil, "Field filters, e.g. --filter type=laptop")
	return cmd
}

func printPage(out io.Writer, kind models.Kind, page *models.PageResult) {
	if page == nil || len(page.Items) == 0 {
		_, _ = fmt.Fprintf(out, "No %s found\n", kind.Collection())
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tACTIONS")
	_, _ = fmt.Fprintln(w, "--\t-----\t------\t-------")
	for _, rec := range page.Items {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			rec.ID, rec.Title(), rec.Status, actionList(moderation.Allowed(kind, rec.Status)))
	}
	_ = w.Flush()

	_, _ = fmt.Fprintf(out, "\nPage %d of %d (%d total)\n", page.Page, max(page.TotalPages, 1), page.Total)
}

func actionList(actions []models.Action) string {
	if len(actions) == 0 {
		return "-"
	}
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = string(a)
	}
	return strings.Join(names, ",")
}

func newShowCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <kind> <id>",
		Short: "Show one record with its allowed actions",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := models.ParseKind(args[0])
			if err != nil {
				return err
			}
			a, err := g.openApp(cmd, nil)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			rec, err := a.facade.Get(cmd.Context(), kind, args[1])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printRecord(out, rec)

			if a.backend == nil {
				return nil
			}
			trail, err := a.backend.AuditTrail(cmd.Context(), kind, rec.ID)
			if err != nil {
				return fmt.Errorf("failed to load audit trail: %w", err)
			}
			if len(trail) > 0 {
				_, _ = fmt.Fprintln(out, "\nHistory:")
				for _, e := range trail {
					line := fmt.Sprintf("  %s  %s: %s → %s", e.CreatedAt.Format("2006-01-02 15:04"), e.Action, e.FromStatus, e.ToStatus)
					if reason := e.RejectionReason + e.ResetReason; reason != "" {
						line += " (" + reason + ")"
					}
					_, _ = fmt.Fprintln(out, line)
				}
			}
			return nil
		},
	}
}

func printRecord(out io.Writer, rec *models.Record) {
	_, _ = fmt.Fprintf(out, "%s: %s\n", strings.ToUpper(rec.Kind.Noun()), rec.Title())
	_, _ = fmt.Fprintf(out, "ID:      %s\n", rec.ID)
	_, _ = fmt.Fprintf(out, "Status:  %s\n", rec.Status)
	_, _ = fmt.Fprintf(out, "Actions: %s\n", actionList(moderation.Allowed(rec.Kind, rec.Status)))
	if !rec.CreatedAt.IsZero() {
		_, _ = fmt.Fprintf(out, "Created: %s\n", rec.CreatedAt.Format("2006-01-02 15:04"))
	}

	fields, err := models.PayloadToMap(rec.Payload)
	if err != nil || len(fields) == 0 {
		return
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	_, _ = fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, k := range keys {
		_, _ = fmt.Fprintf(w, "  %s\t%v\n", k, fields[k])
	}
	_ = w.Flush()
}

// auditFor places --reason in the audit field action requires.
func auditFor(kind models.Kind, action models.Action, reason, notes string) (models.AuditFields, error) {
	audit := models.AuditFields{AdminNotes: notes}
	if reason == "" {
		return audit, nil
	}
	switch moderation.Requires(kind, action) {
	case moderation.FieldRejectionReason:
		audit.RejectionReason = reason
	case moderation.FieldResetReason:
		audit.ResetReason = reason
	default:
		return audit, fmt.Errorf("--reason does not apply to %s; use --notes", action)
	}
	return audit, nil
}

func runTransition(ctx context.Context, cmd *cobra.Command, g *globalFlags, kind models.Kind, id string, action models.Action, reason, notes string) error {
	audit, err := auditFor(kind, action, reason, notes)
	if err != nil {
		return err
	}
	a, err := g.openApp(cmd, nil)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	rec, err := a.facade.Transition(ctx, kind, id, action, audit)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ %s %s is now %s\n", kind.Noun(), rec.ID, rec.Status)
	return nil
}

func newTransitionCmd(g *globalFlags) *cobra.Command {
	var reason, notes string

	cmd := &cobra.Command{
		Use:   "transition <kind> <id> <action>",
		Short: "Apply a moderation action to a record",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := models.ParseKind(args[0])
			if err != nil {
				return err
			}
			action, err := models.ParseAction(args[2])
			if err != nil {
				return err
			}
			return runTransition(cmd.Context(), cmd, g, kind, args[1], action, reason, notes)
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Rejection or reset reason")
	cmd.Flags().StringVar(&notes, "notes", "", "Admin notes")
	return cmd
}

func newActionCmd(g *globalFlags, action models.Action) *cobra.Command {
	var reason, notes string

	cmd := &cobra.Command{
		Use:   string(action) + " <kind> <id>",
		Short: fmt.Sprintf("Shortcut for transition <kind> <id> %s", action),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := models.ParseKind(args[0])
			if err != nil {
				return err
			}
			return runTransition(cmd.Context(), cmd, g, kind, args[1], action, reason, notes)
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Rejection or reset reason")
	cmd.Flags().StringVar(&notes, "notes", "", "Admin notes")
	return cmd
}

func newEditCmd(g *globalFlags) *cobra.Command {
	var sets map[string]string

	cmd := &cobra.Command{
		Use:   "edit <kind> <id>",
		Short: "Change payload fields of a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := models.ParseKind(args[0])
			if err != nil {
				return err
			}
			if len(sets) == 0 {
				return fmt.Errorf("nothing to change: pass at least one --set field=value")
			}
			patch, err := models.FieldsFromStrings(sets)
			if err != nil {
				return err
			}

			a, err := g.openApp(cmd, nil)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			rec, err := a.facade.EditFields(cmd.Context(), kind, args[1], patch)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ %s updated: %s (ID: %s)\n", kind.Noun(), rec.Title(), rec.ID)
			return nil
		},
	}
	cmd.Flags().StringToStringVar(&sets, "set", nil, "Field to change, e.g. --set condition=good")
	return cmd
}

func newCreateCmd(g *globalFlags) *cobra.Command {
	var (
		sets  map[string]string
		token string
	)

	cmd := &cobra.Command{
		Use:   "create <kind>",
		Short: "Create a record in its initial status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := models.ParseKind(args[0])
			if err != nil {
				return err
			}
			fields, err := models.FieldsFromStrings(sets)
			if err != nil {
				return err
			}
			payload, err := models.PayloadFromMap(kind, fields)
			if err != nil {
				return err
			}
			if payload.Title() == "" {
				field := "name"
				if kind == models.KindRequest {
					field = "requester"
				}
				return fmt.Errorf("a %s needs --set %s=...", kind.Noun(), field)
			}

			a, err := g.openApp(cmd, nil)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if token == "" {
				token = engine.NewSubmissionToken()
			}
			rec, err := a.facade.Create(cmd.Context(), kind, token, payload)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "✓ %s created: %s (ID: %s)\n", kind.Noun(), rec.Title(), rec.ID)
			_, _ = fmt.Fprintf(out, "  Status: %s\n", rec.Status)
			return nil
		},
	}
	cmd.Flags().StringToStringVar(&sets, "set", nil, "Field value, e.g. --set name=\"ThinkPad X1\"")
	cmd.Flags().StringVar(&token, "token", "", "Submission token; reusing one returns the original record")
	return cmd
}

func newRemoveCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <kind> <id>",
		Aliases: []string{"delete", "rm"},
		Short:   "Delete a record",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := models.ParseKind(args[0])
			if err != nil {
				return err
			}
			a, err := g.openApp(cmd, nil)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.facade.Remove(cmd.Context(), kind, args[1]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ %s %s removed\n", kind.Noun(), args[1])
			return nil
		},
	}
}
