// Package initcmder provides the init command for initializing a local .stacks
// directory in the current working directory.
package initcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/stacks/pkg/cliui"
	"github.com/papercomputeco/stacks/pkg/config"
)

const (
	dirName = ".stacks"

	// fetchTimeout bounds downloading a remote preset.
	fetchTimeout = 15 * time.Second
)

const initLongDesc string = `Initialize a new .stacks/ directory in the current working directory.

Creates a local .stacks/ directory that takes precedence over ~/.stacks/ for
configuration, credentials, the default SQLite chunk store and the selected
bucket. A config.toml with default values is written unless one exists.

--preset writes provider defaults instead, overwriting any existing
config.toml. It takes a preset name (openai, gemini, anthropic, ollama) or
an http(s) URL to a config.toml to download.

Examples:
  stacks init
  stacks init --preset openai
  stacks init --preset https://example.com/team/stacks.toml`

const initShortDesc string = "Initialize a local .stacks/ directory"

type initCommander struct {
	preset string
	out    io.Writer
}

func NewInitCmd() *cobra.Command {
	cmder := &initCommander{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.out = cmd.OutOrStdout()
			return cmder.run(cmd.Context())
		},
		ValidArgsFunction: cobra.NoFileCompletions,
	}

	cmd.Flags().StringVar(&cmder.preset, "preset", "", "Provider preset name or URL to a config.toml")
	_ = cmd.RegisterFlagCompletionFunc("preset", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return config.ValidPresetNames(), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func (c *initCommander) run(ctx context.Context) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	// Resolve the preset before touching the filesystem so a bad preset
	// leaves nothing behind.
	var cfg *config.Config
	if c.preset != "" {
		cfg, err = c.resolvePreset(ctx)
		if err != nil {
			return err
		}
	}

	existed := false
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		existed = true
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating .stacks directory: %w", err)
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	configPath := filepath.Join(dir, "config.toml")
	_, statErr := os.Stat(configPath)
	configExists := statErr == nil

	switch {
	case cfg != nil:
		if err := cfger.SaveConfig(cfg); err != nil {
			return err
		}
	case !configExists:
		if err := cfger.SaveConfig(config.NewDefaultConfig()); err != nil {
			return err
		}
	}

	if existed {
		fmt.Fprintf(c.out, "\n  %s Already initialized: %s\n", cliui.DimStyle.Render("●"), dir)
	} else {
		fmt.Fprintf(c.out, "\n  %s Initialized %s\n", cliui.SuccessMark, cliui.KeyStyle.Render(dir))
	}
	if cfg != nil {
		fmt.Fprintf(c.out, "  %s Wrote preset %s to %s\n",
			cliui.SuccessMark,
			cliui.NameStyle.Render(c.preset),
			cliui.DimStyle.Render(configPath),
		)
	}
	fmt.Fprintln(c.out)

	return nil
}

func (c *initCommander) resolvePreset(ctx context.Context) (*config.Config, error) {
	if strings.HasPrefix(c.preset, "http://") || strings.HasPrefix(c.preset, "https://") {
		return fetchRemoteConfig(ctx, c.preset)
	}
	return config.PresetConfig(c.preset)
}

func fetchRemoteConfig(ctx context.Context, url string) (*config.Config, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching remote config: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("fetching remote config: empty response")
	}

	cfg, err := config.ParseConfigTOML(data)
	if err != nil {
		return nil, fmt.Errorf("parsing remote config: %w", err)
	}
	return cfg, nil
}
