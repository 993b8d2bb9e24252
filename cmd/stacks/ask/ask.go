// Package askcmder provides the ask command for answering a question from a
// bucket's contents.
package askcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/stacks/api/client"
	querycmder "github.com/papercomputeco/stacks/cmd/stacks/query"
	"github.com/papercomputeco/stacks/pkg/cliui"
	"github.com/papercomputeco/stacks/pkg/config"
	"github.com/papercomputeco/stacks/pkg/dotdir"
	"github.com/papercomputeco/stacks/pkg/engine"
	"github.com/papercomputeco/stacks/pkg/logger"
	"github.com/papercomputeco/stacks/pkg/retrieval"
	"github.com/papercomputeco/stacks/pkg/similarity"
	"github.com/papercomputeco/stacks/pkg/utils"
)

type askCommander struct {
	bucket      string
	question    string
	jsonOut     bool
	remote      bool
	showSources bool

	configDir string
	cfg       *config.Config
	out       io.Writer

	debug  bool
	logger *slog.Logger
}

// Output is the result printed by "stacks ask".
type Output struct {
	Bucket   string             `json:"bucket"`
	Question string             `json:"question"`
	Answer   string             `json:"answer"`
	Found    bool               `json:"found"`
	Sources  []similarity.Match `json:"sources"`
}

const askLongDesc string = `Answer a question from the contents of a bucket.

The most similar chunks are retrieved as in "stacks query" and handed to the
configured generation provider together with the question. When the bucket
holds nothing relevant the generator is not called and a "No relevant
information found" message is printed instead.

The bucket argument may be omitted after selecting one with "stacks use".

Examples:
  stacks ask handbook "How many vacation days do I get?"
  stacks ask "How many vacation days do I get?" --sources
  stacks ask handbook "Who approves expenses?" --generation-provider anthropic --generation-model claude-sonnet-4-5
  stacks ask handbook "Who approves expenses?" --remote`

const askShortDesc string = "Answer a question from a bucket"

var flagKeys = func() []string {
	keys := append([]string{}, config.StoreFlags...)
	keys = append(keys, config.ProviderFlags...)
	keys = append(keys, config.RetrievalFlags...)
	return append(keys, config.FlagAPITarget)
}()

func NewAskCmd() *cobra.Command {
	cmder := &askCommander{}

	cmd := &cobra.Command{
		Use:   "ask [bucket] <question>",
		Short: askShortDesc,
		Long:  askLongDesc,
		Args:  cobra.RangeArgs(1, 2),
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
			cmder.out = cmd.OutOrStdout()

			explicit, question := querycmder.SplitArgs(args)
			cmder.question = question
			cmder.bucket, err = dotdir.NewManager().ResolveBucket(explicit, cmder.configDir)
			if err != nil {
				return err
			}

			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print the result as JSON")
	cmd.Flags().BoolVar(&cmder.remote, "remote", false, "Ask a running stacks server instead of the local store")
	cmd.Flags().BoolVar(&cmder.showSources, "sources", false, "Print the chunks the answer was generated from")
	config.AddFlags(cmd, config.Registry, flagKeys)

	return cmd
}

func (c *askCommander) run(ctx context.Context) error {
	c.logger = logger.NewLogger(c.debug)

	var (
		output *Output
		err    error
	)
	if c.remote {
		output, err = c.askRemote(ctx)
	} else {
		output, err = c.askLocal(ctx)
	}
	if err != nil {
		return err
	}

	if c.jsonOut {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(output)
	}

	PrintAnswer(c.out, output, c.showSources)
	return nil
}

func (c *askCommander) askLocal(ctx context.Context) (*Output, error) {
	e, err := engine.New(ctx, engine.Options{
		Config:    c.cfg,
		ConfigDir: c.configDir,
		Logger:    c.logger,
	})
	if err != nil {
		return nil, err
	}
	defer e.Close()

	var answer *retrieval.Answer
	askFn := func() error {
		var askErr error
		answer, askErr = e.Service.Ask(ctx, c.bucket, c.question)
		return askErr
	}
	if c.jsonOut {
		err = askFn()
	} else {
		err = cliui.Step(c.out, fmt.Sprintf("Asking %s", c.bucket), askFn)
	}
	if err != nil {
		return nil, err
	}

	return FromAnswer(c.bucket, answer), nil
}

func (c *askCommander) askRemote(ctx context.Context) (*Output, error) {
	cl, err := client.New(c.cfg.Client.APITarget)
	if err != nil {
		return nil, err
	}

	resp, err := cl.Ask(ctx, c.bucket, c.question)
	if err != nil {
		return nil, err
	}

	return &Output{
		Bucket:   resp.Bucket,
		Question: resp.Question,
		Answer:   resp.Answer,
		Found:    resp.Found,
		Sources:  resp.Sources,
	}, nil
}

// FromAnswer converts a session answer into printable output, substituting
// the not-found message when nothing was retrieved.
func FromAnswer(bucket string, answer *retrieval.Answer) *Output {
	output := &Output{
		Bucket:   bucket,
		Question: answer.Question,
		Answer:   answer.Answer,
		Found:    answer.Found(),
		Sources:  answer.Sources,
	}
	if !output.Found {
		output.Answer = retrieval.NotFoundMessage(bucket)
	}
	return output
}

// PrintAnswer renders an answer for the terminal.
func PrintAnswer(w io.Writer, output *Output, showSources bool) {
	if !output.Found {
		fmt.Fprintf(w, "\n  %s %s\n\n", cliui.WarnStyle.Render("●"), output.Answer)
		return
	}

	rendered, err := cliui.RenderMarkdown(output.Answer)
	if err != nil {
		rendered = output.Answer + "\n"
	}
	fmt.Fprintf(w, "\n%s", rendered)

	if !showSources {
		fmt.Fprintf(w, "  %s\n\n", cliui.DimStyle.Render(fmt.Sprintf("answered from %d chunk(s)", len(output.Sources))))
		return
	}

	fmt.Fprintf(w, "  %s\n", cliui.HeaderStyle.Render("Sources"))
	for _, m := range output.Sources {
		fmt.Fprintf(w, "  %s  %s\n",
			cliui.Score(m.Score),
			cliui.ValueStyle.Render(utils.Preview(m.Text, 120)),
		)
	}
	fmt.Fprintln(w)
}
