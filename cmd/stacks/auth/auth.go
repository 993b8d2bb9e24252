// Package authcmder provides the auth command for storing provider API keys.
package authcmder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/stacks/pkg/cliui"
	"github.com/papercomputeco/stacks/pkg/credentials"
)

const authLongDesc string = `Store API keys for embedding and generation providers and the qdrant
vector store.

Keys are stored in credentials.toml in the .stacks/ directory. When a
command builds a provider or store it uses the stored key, falling back to
the service's environment variable (e.g. OPENAI_API_KEY). "stacks status"
shows which one is in effect.

Supported services: openai, anthropic, gemini, qdrant

Examples:
  stacks auth openai              Prompt for an OpenAI API key
  stacks auth qdrant              Prompt for a Qdrant Cloud API key
  stacks auth --list              List stored credentials
  stacks auth --remove openai     Remove stored OpenAI credentials
  echo $KEY | stacks auth openai  Pipe the key from stdin`

const authShortDesc string = "Store API keys for providers and stores"

type authCommander struct {
	list   bool
	remove string

	configDir string
	in        io.Reader
	out       io.Writer
}

func NewAuthCmd() *cobra.Command {
	cmder := &authCommander{}

	cmd := &cobra.Command{
		Use:   "auth [service]",
		Short: authShortDesc,
		Long:  authLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()

			switch {
			case cmder.list:
				return cmder.runList()
			case cmder.remove != "":
				return cmder.runRemove(cmder.remove)
			default:
				if len(args) == 0 {
					return fmt.Errorf("service argument required\n\nSupported services: %s",
						strings.Join(credentials.Services(), ", "))
				}
				return cmder.runAuth(args[0])
			}
		},
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return credentials.Services(), cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
	}

	cmd.Flags().BoolVar(&cmder.list, "list", false, "List stored credentials")
	cmd.Flags().StringVar(&cmder.remove, "remove", "", "Remove stored credentials for a service")

	return cmd
}

func (c *authCommander) runAuth(service string) error {
	service = strings.ToLower(strings.TrimSpace(service))

	if !credentials.IsSupported(service) {
		return fmt.Errorf("unsupported service: %q\n\nSupported services: %s",
			service, strings.Join(credentials.Services(), ", "))
	}

	apiKey, err := c.readAPIKey(service)
	if err != nil {
		return err
	}

	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return errors.New("API key cannot be empty")
	}

	mgr, err := credentials.NewManager(c.configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	if err := mgr.Set(service, apiKey); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "\n  %s Stored %s credentials %s\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(service),
		cliui.DimStyle.Render("(overrides "+credentials.EnvVar(service)+")"),
	)
	return nil
}

func (c *authCommander) runList() error {
	mgr, err := credentials.NewManager(c.configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	stored, err := mgr.List()
	if err != nil {
		return err
	}

	if len(stored) == 0 {
		fmt.Fprintf(c.out, "\n  %s No stored credentials.\n", cliui.DimStyle.Render("●"))
		fmt.Fprintf(c.out, "  Use 'stacks auth <service>' to store credentials.\n")
		fmt.Fprintf(c.out, "  Supported services: %s\n\n", strings.Join(credentials.Services(), ", "))
		return nil
	}

	fmt.Fprintf(c.out, "\n  %s\n\n", cliui.HeaderStyle.Render("Stored credentials"))
	for _, s := range stored {
		when := "unknown"
		if !s.StoredAt.IsZero() {
			when = s.StoredAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(c.out, "  %s  %-10s %s\n",
			cliui.SuccessMark,
			cliui.NameStyle.Render(s.Service),
			cliui.DimStyle.Render("stored "+when+", overrides "+credentials.EnvVar(s.Service)),
		)
	}
	fmt.Fprintln(c.out)

	return nil
}

func (c *authCommander) runRemove(service string) error {
	service = strings.ToLower(strings.TrimSpace(service))

	mgr, err := credentials.NewManager(c.configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	removed, err := mgr.Remove(service)
	if err != nil {
		return err
	}
	if !removed {
		fmt.Fprintf(c.out, "\n  %s No stored credentials for %s.\n\n", cliui.DimStyle.Render("●"), cliui.NameStyle.Render(service))
		return nil
	}

	fmt.Fprintf(c.out, "\n  %s Removed %s credentials.\n\n", cliui.SuccessMark, cliui.NameStyle.Render(service))
	return nil
}

// readAPIKey prompts with hidden input when stdin is a terminal and reads the
// first line otherwise.
func (c *authCommander) readAPIKey(service string) (string, error) {
	if f, ok := c.in.(*os.File); ok && cliui.IsTerminal(f) {
		fmt.Fprintf(c.out, "Enter API key for %s (%s): ", service, credentials.EnvVar(service))

		keyBytes, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(c.out)
		if err != nil {
			return "", fmt.Errorf("reading API key: %w", err)
		}
		return string(keyBytes), nil
	}

	scanner := bufio.NewScanner(c.in)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return "", errors.New("no input received on stdin")
}
