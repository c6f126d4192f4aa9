// ABOUTME: CLI commands for saved filter presets kept in Charm KV
// ABOUTME: show, clear, sync and status; charm authenticates with SSH keys so there is no login step
package cli

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harperreed/devicedrop/models"
	"github.com/harperreed/devicedrop/prefs"
)

// openPrefsClient is swapped in tests for a badger-backed client.
var openPrefsClient = func(autoSync bool) (*prefs.Client, error) {
	if err := prefs.InitClient(autoSync); err != nil {
		return nil, fmt.Errorf("failed to open charm kv: %w", err)
	}
	return prefs.GetClient()
}

func newPrefsCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Manage saved default filters",
	}
	cmd.AddCommand(newPrefsShowCmd(g))
	cmd.AddCommand(newPrefsClearCmd(g))
	cmd.AddCommand(newPrefsSyncCmd(g))
	cmd.AddCommand(newPrefsStatusCmd(g))
	return cmd
}

func (g *globalFlags) prefsClient() (*prefs.Client, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	return openPrefsClient(cfg.PrefsSync)
}

func newPrefsShowCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "List saved filters per collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.prefsClient()
			if err != nil {
				return err
			}
			all, err := prefs.NewStore(c).All()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(all) == 0 {
				_, _ = fmt.Fprintln(out, "No saved filters")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "COLLECTION\tFILTERS\tSEARCH")
			_, _ = fmt.Fprintln(w, "----------\t-------\t------")
			for _, kind := range models.AllKinds {
				p, ok := all[kind]
				if !ok {
					continue
				}
				search := p.Search
				if search == "" {
					search = "-"
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", kind.Collection(), formatFilters(p.Filters), search)
			}
			return w.Flush()
		},
	}
}

func formatFilters(filters map[string]string) string {
	if len(filters) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(filters))
	for k, v := range filters {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

func newPrefsClearCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "clear [kind]",
		Short: "Forget saved filters for one collection, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds := models.AllKinds
			if len(args) == 1 {
				kind, err := models.ParseKind(args[0])
				if err != nil {
					return err
				}
				kinds = []models.Kind{kind}
			}

			c, err := g.prefsClient()
			if err != nil {
				return err
			}
			store := prefs.NewStore(c)
			for _, kind := range kinds {
				if err := store.Clear(kind); err != nil {
					return fmt.Errorf("failed to clear %s filters: %w", kind.Collection(), err)
				}
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Cleared saved filters for %d collection(s)\n", len(kinds))
			return nil
		},
	}
}

func newPrefsSyncCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Sync saved filters with the charm server now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.prefsClient()
			if err != nil {
				return err
			}
			if err := c.Sync(); err != nil {
				return fmt.Errorf("sync failed: %w", err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "✓ Saved filters synced")
			return nil
		},
	}
}

func newPrefsStatusCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show charm server and link status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.prefsClient()
			if err != nil {
				return err
			}
			cfg := c.Config()
			out := cmd.OutOrStdout()

			_, _ = fmt.Fprintln(out, "Charm Sync Status")
			_, _ = fmt.Fprintln(out, "─────────────────")
			_, _ = fmt.Fprintf(out, "Server:    %s\n", cfg.Host)
			_, _ = fmt.Fprintf(out, "Auto-sync: %v\n", cfg.AutoSync)

			if id, err := c.ID(); err != nil {
				_, _ = fmt.Fprintln(out, "Status:    Not linked")
			} else {
				_, _ = fmt.Fprintf(out, "Status:    Linked (%s)\n", id)
			}

			if keys, err := c.KeysWithPrefix(nil); err == nil {
				_, _ = fmt.Fprintf(out, "Keys:      %d\n", len(keys))
			}
			return nil
		},
	}
}
