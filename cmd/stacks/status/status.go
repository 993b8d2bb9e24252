// Package statuscmder provides the status command for displaying the state of
// the resolved .stacks directory.
package statuscmder

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/stacks/pkg/cliui"
	"github.com/papercomputeco/stacks/pkg/config"
	"github.com/papercomputeco/stacks/pkg/credentials"
	"github.com/papercomputeco/stacks/pkg/dotdir"
	"github.com/papercomputeco/stacks/pkg/serverstate"
)

const statusLongDesc string = `Show the state of the stacks directory.

Reads the local .stacks/ directory (or ~/.stacks/) and prints the config
file, the chunk store and providers in effect (and where their API keys
come from), the bucket selected with "stacks use" and whether a
"stacks serve" is running against it.

Examples:
  stacks status
  stacks status --config-dir /srv/stacks`

const statusShortDesc string = "Show the stacks directory state"

var flagKeys = append(append([]string{}, config.StoreFlags...), config.ProviderFlags...)

func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: statusShortDesc,
		Long:  statusLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			cfg, err := config.LoadForCommand(cmd, flagKeys)
			if err != nil {
				return err
			}

			return runStatus(cmd.OutOrStdout(), configDir, cfg)
		},
	}

	config.AddFlags(cmd, config.Registry, flagKeys)

	return cmd
}

func runStatus(w io.Writer, configDir string, cfg *config.Config) error {
	manager := dotdir.NewManager()

	loc, err := manager.Locate(configDir)
	if err != nil {
		return err
	}
	dir := loc.Dir

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	current, err := manager.LoadCurrentBucket(configDir)
	if err != nil {
		return err
	}

	states, err := serverstate.NewManager(configDir)
	if err != nil {
		return err
	}
	state, err := states.LoadState()
	if err != nil {
		return err
	}

	creds, err := credentials.NewManager(dir)
	if err != nil {
		return err
	}
	keyNote := func(service string) string {
		if !credentials.IsSupported(service) {
			return ""
		}
		return " " + describeKey(creds, service)
	}

	row := func(key, value string) {
		fmt.Fprintf(w, "  %s %s\n", cliui.KeyStyle.Render(fmt.Sprintf("%-12s", key+":")), value)
	}

	fmt.Fprintln(w)
	row("Directory", cliui.ValueStyle.Render(dir)+" "+cliui.DimStyle.Render("("+string(loc.Origin)+")"))
	row("Config", cliui.DimStyle.Render(cfger.GetTarget()))
	row("Store", cliui.NameStyle.Render(cfg.VectorStore.Provider)+keyNote(cfg.VectorStore.Provider))
	row("Embedding", cliui.ValueStyle.Render(fmt.Sprintf("%s/%s", cfg.Embedding.Provider, cfg.Embedding.Model))+keyNote(cfg.Embedding.Provider))
	if cfg.Generation.Provider == "" || cfg.Generation.Provider == "none" {
		row("Generation", cliui.DimStyle.Render("disabled"))
	} else {
		row("Generation", cliui.ValueStyle.Render(fmt.Sprintf("%s/%s", cfg.Generation.Provider, cfg.Generation.Model))+keyNote(cfg.Generation.Provider))
	}

	if current != nil {
		row("Bucket", cliui.NameStyle.Render(current.Name))
	} else {
		row("Bucket", cliui.DimStyle.Render("<none selected>"))
	}

	switch {
	case state == nil:
		row("Server", cliui.DimStyle.Render("not running"))
	case !state.Alive():
		row("Server", cliui.WarnStyle.Render(fmt.Sprintf("stale state (pid %d is gone)", state.PID)))
	default:
		row("Server", cliui.ValueStyle.Render(fmt.Sprintf("running on %s", state.Listen))+" "+
			cliui.DimStyle.Render(fmt.Sprintf("(pid %d, since %s)", state.PID, state.StartedAt.Format("2006-01-02 15:04:05"))))
	}
	fmt.Fprintln(w)

	return nil
}

// describeKey says where service's API key comes from.
func describeKey(creds *credentials.Manager, service string) string {
	r, err := creds.Resolve(service)
	if err != nil {
		return cliui.WarnStyle.Render("(key unreadable)")
	}

	switch r.Source {
	case credentials.SourceCredentials:
		return cliui.DimStyle.Render("(key: credentials.toml)")
	case credentials.SourceEnv:
		return cliui.DimStyle.Render("(key: $" + r.EnvVar + ")")
	default:
		return cliui.WarnStyle.Render("(no key)")
	}
}
