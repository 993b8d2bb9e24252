// Package chatcmder provides the chat command for an interactive question
// loop over one bucket.
package chatcmder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	askcmder "github.com/papercomputeco/stacks/cmd/stacks/ask"
	"github.com/papercomputeco/stacks/pkg/cliui"
	"github.com/papercomputeco/stacks/pkg/config"
	"github.com/papercomputeco/stacks/pkg/dotdir"
	"github.com/papercomputeco/stacks/pkg/engine"
	"github.com/papercomputeco/stacks/pkg/logger"
	"github.com/papercomputeco/stacks/pkg/retrieval"
)

var userPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")

type chatCommander struct {
	bucket      string
	showSources bool

	configDir string
	cfg       *config.Config
	in        io.Reader
	out       io.Writer
	errOut    io.Writer

	debug  bool
	logger *slog.Logger
}

const chatLongDesc string = `Start an interactive question loop over a bucket.

Every line typed is answered from the bucket's contents like "stacks ask".
All questions share one retrieval session. Type "exit" or press Ctrl+D to
quit. A failed question is reported and the loop continues.

The bucket argument may be omitted after selecting one with "stacks use".

Examples:
  stacks chat handbook
  stacks chat --sources
  stacks chat handbook --top-k 6 --generation-model llama3.2`

const chatShortDesc string = "Interactive question loop over a bucket"

var flagKeys = func() []string {
	keys := append([]string{}, config.StoreFlags...)
	keys = append(keys, config.ProviderFlags...)
	return append(keys, config.RetrievalFlags...)
}()

// exitCommands end the loop.
var exitCommands = map[string]bool{
	"exit":  true,
	"quit":  true,
	"/exit": true,
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat [bucket]",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.cfg, err = config.LoadForCommand(cmd, flagKeys)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			cmder.errOut = cmd.ErrOrStderr()

			explicit := ""
			if len(args) == 1 {
				explicit = args[0]
			}
			cmder.bucket, err = dotdir.NewManager().ResolveBucket(explicit, cmder.configDir)
			if err != nil {
				return err
			}

			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&cmder.showSources, "sources", false, "Print the chunks each answer was generated from")
	config.AddFlags(cmd, config.Registry, flagKeys)

	return cmd
}

func (c *chatCommander) run(ctx context.Context) error {
	c.logger = logger.NewLogger(c.debug)

	e, err := engine.New(ctx, engine.Options{
		Config:    c.cfg,
		ConfigDir: c.configDir,
		Logger:    c.logger,
	})
	if err != nil {
		return err
	}
	defer e.Close()

	if !e.Service.CanAnswer() {
		return retrieval.ErrNoGenerator
	}

	info, err := e.Service.Bucket(ctx, c.bucket)
	if err != nil {
		return err
	}

	session, err := e.Service.NewSession(func(from, to retrieval.State) {
		c.logger.Debug("session state", "from", from.String(), "to", to.String())
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "\n  %s %s %s\n",
		cliui.KeyStyle.Render("Bucket:"),
		cliui.NameStyle.Render(info.Name),
		cliui.DimStyle.Render(fmt.Sprintf("(%d chunks)", info.Size)),
	)
	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render(`Type a question and press Enter. "exit" or Ctrl+D to quit.`))

	return c.loop(ctx, session)
}

func (c *chatCommander) loop(ctx context.Context, session *retrieval.Session) error {
	scanner := bufio.NewScanner(c.in)

	for {
		fmt.Fprint(c.out, userPrompt)
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if exitCommands[strings.ToLower(input)] {
			break
		}

		answer, err := session.Ask(ctx, c.bucket, input)
		if err != nil {
			fmt.Fprintf(c.errOut, "  %s %v\n\n", cliui.FailMark, err)
			continue
		}

		askcmder.PrintAnswer(c.out, askcmder.FromAnswer(c.bucket, answer), c.showSources)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(c.out)
	return nil
}
