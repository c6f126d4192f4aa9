// ABOUTME: Visualization CLI commands
// ABOUTME: Renders moderation workflow diagrams and the review dashboard
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harperreed/devicedrop/models"
	"github.com/harperreed/devicedrop/viz"
)

func newVizCmd(g *globalFlags) *cobra.Command {
	var format, output string

	cmd := &cobra.Command{
		Use:   "viz <kind>",
		Short: "Draw a kind's moderation workflow with Graphviz",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := models.ParseKind(args[0])
			if err != nil {
				return err
			}

			if output == "" {
				return viz.RenderWorkflow(cmd.Context(), kind, format, cmd.OutOrStdout())
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", output, err)
			}
			if err := viz.RenderWorkflow(cmd.Context(), kind, format, f); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s workflow to %s\n", kind.Noun(), output)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "dot", "Output format: dot, svg or png")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	return cmd
}

func newDashboardCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show record counts by status for every collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := g.openApp(cmd, nil)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			stats, err := viz.GenerateDashboardStats(cmd.Context(), a.api)
			if err != nil {
				return fmt.Errorf("failed to generate dashboard stats: %w", err)
			}
			_, _ = fmt.Fprint(cmd.OutOrStdout(), viz.RenderDashboard(stats))
			return nil
		},
	}
}
