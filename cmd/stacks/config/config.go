// Package configcmder provides the config command for managing persistent
// stacks configuration stored in the .stacks/ directory.
package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/stacks/pkg/cliui"
	"github.com/papercomputeco/stacks/pkg/config"
)

const configLongDesc string = `Manage persistent stacks configuration.

Configuration is stored as config.toml in the .stacks/ directory and provides
default values for command flags. CLI flags and STACKS_* environment
variables take precedence over config file values.

Keys use dotted notation matching the TOML section structure, e.g.
  vector_store.provider, embedding.model, generation.provider,
  retrieval.metric, retrieval.top_k, ingest.chunk_size

Run "stacks config list" to see every key.

Examples:
  stacks config set vector_store.provider postgres
  stacks config set storage.postgres_dsn postgres://localhost/stacks
  stacks config set retrieval.top_k 6
  stacks config get embedding.model
  stacks config list`

const configShortDesc string = "Manage persistent stacks configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func checkKey(key string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}
	return nil
}

func printTarget(w io.Writer, cfger *config.Configer) {
	if target := cfger.GetTarget(); target != "" {
		fmt.Fprintf(w, "\n  %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
		)
		return
	}
	fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
}
