// ABOUTME: login and config commands
// ABOUTME: Stores the admin API token in the config file and prints the resolved config
package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/harperreed/devicedrop/config"
)

func newLoginCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Save an admin API token for the http backend",
		Long:  "Prompts for a bearer token without echoing it and saves it, with --api-url if given, to the config file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if cfg.APIURL == "" {
				return fmt.Errorf("no api url configured: pass --api-url")
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Token for %s: ", cfg.APIURL)
			token, err := readSecret(cmd.InOrStdin())
			_, _ = fmt.Fprintln(out)
			if err != nil {
				return fmt.Errorf("failed to read token: %w", err)
			}
			if token == "" {
				return fmt.Errorf("token cannot be empty")
			}

			cfg.Token = token
			cfg.Backend = config.BackendHTTP
			if err := cfg.Save(); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "✓ Token saved to %s\n", cfg.FilePath())
			return nil
		},
	}
}

// readSecret reads without echo from a terminal, or a single line otherwise.
func readSecret(in io.Reader) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func newConfigCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect console configuration",
	}
	cmd.AddCommand(newConfigShowCmd(g))
	return cmd
}

func newConfigShowCmd(g *globalFlags) *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display the resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			shown := *cfg
			if !reveal {
				shown = cfg.Redacted()
			}
			data, err := json.MarshalIndent(shown, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "# %s\n%s\n", cfg.FilePath(), data)
			return nil
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "Show secrets unmasked")
	return cmd
}
