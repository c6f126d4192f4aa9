// ABOUTME: Root cobra command and global flags for the devicedrop console
// ABOUTME: Resolves config precedence (file, .env, environment, flags) before any subcommand runs
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harperreed/devicedrop/config"
)

var (
	version = "dev"
	commit  = "none"
)

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	configPath string
	backend    string
	apiURL     string
	dbPath     string
	logLevel   string
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           "devicedrop",
		Short:         "Moderation console for the device donation marketplace",
		Long:          "Review, approve and manage devices, requests, users and team members.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&g.configPath, "config", "", "Config file (default: "+config.Path()+")")
	rootCmd.PersistentFlags().StringVar(&g.backend, "backend", "", "Data backend: http or local")
	rootCmd.PersistentFlags().StringVar(&g.apiURL, "api-url", "", "Admin API base URL")
	rootCmd.PersistentFlags().StringVar(&g.dbPath, "db-path", "", "SQLite database path for the local backend")
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(newTUICmd(g))
	rootCmd.AddCommand(newListCmd(g))
	rootCmd.AddCommand(newShowCmd(g))
	rootCmd.AddCommand(newTransitionCmd(g))
	for _, action := range actionShortcuts {
		rootCmd.AddCommand(newActionCmd(g, action))
	}
	rootCmd.AddCommand(newEditCmd(g))
	rootCmd.AddCommand(newCreateCmd(g))
	rootCmd.AddCommand(newRemoveCmd(g))
	rootCmd.AddCommand(newServeCmd(g))
	rootCmd.AddCommand(newSeedCmd(g))
	rootCmd.AddCommand(newMCPCmd(g))
	rootCmd.AddCommand(newVizCmd(g))
	rootCmd.AddCommand(newDashboardCmd(g))
	rootCmd.AddCommand(newLoginCmd(g))
	rootCmd.AddCommand(newConfigCmd(g))
	rootCmd.AddCommand(newPrefsCmd(g))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// loadConfig applies flag overrides on top of config.Load. Flags win over
// everything else.
func (g *globalFlags) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	if g.backend != "" {
		cfg.Backend = g.backend
	}
	if g.apiURL != "" {
		cfg.APIURL = g.apiURL
		if g.backend == "" {
			cfg.Backend = config.BackendHTTP
		}
	}
	if g.dbPath != "" {
		cfg.DBPath = g.dbPath
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the devicedrop version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "devicedrop version %s (commit: %s)\n", version, commit)
			return nil
		},
	}
}
