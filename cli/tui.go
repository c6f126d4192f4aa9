// ABOUTME: tui subcommand that opens the interactive moderation console
// ABOUTME: Logs go to a file so they never draw over the alt screen
package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/harperreed/devicedrop/models"
	"github.com/harperreed/devicedrop/tui"
)

func newTUICmd(g *globalFlags) *cobra.Command {
	var preload bool

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive moderation console",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			logFile, err := cfg.OpenLogFile()
			if err != nil {
				return err
			}
			defer func() { _ = logFile.Close() }()

			a, err := newApp(cfg, cfg.NewLogger(logFile))
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
			defer stop()

			opts := tui.Options{Context: ctx, Facade: a.facade, Logger: a.logger}
			store := a.presets()
			if store != nil {
				opts.Presets = store
			}
			opts.Loader = a.newLoader(store)

			if preload {
				if err := opts.Loader.LoadAll(ctx, models.AllKinds...); err != nil {
					a.logger.Warn("preload incomplete", "err", err)
				}
			}

			p := tea.NewProgram(tui.NewModel(opts), tea.WithAltScreen(), tea.WithContext(ctx))
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("error running TUI: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&preload, "preload", false, "Load every tab before the console opens")
	return cmd
}
