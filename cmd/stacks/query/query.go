// Package querycmder provides the query command for ranking a bucket's chunks
// against a question.
package querycmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/stacks/api/client"
	"github.com/papercomputeco/stacks/pkg/cliui"
	"github.com/papercomputeco/stacks/pkg/config"
	"github.com/papercomputeco/stacks/pkg/dotdir"
	"github.com/papercomputeco/stacks/pkg/engine"
	"github.com/papercomputeco/stacks/pkg/logger"
	"github.com/papercomputeco/stacks/pkg/similarity"
	"github.com/papercomputeco/stacks/pkg/utils"
)

type queryCommander struct {
	bucket   string
	question string
	jsonOut  bool
	remote   bool

	configDir string
	cfg       *config.Config
	out       io.Writer

	debug  bool
	logger *slog.Logger
}

// Output is the result printed by "stacks query".
type Output struct {
	Bucket   string             `json:"bucket"`
	Question string             `json:"question"`
	Metric   string             `json:"metric"`
	Matches  []similarity.Match `json:"matches"`
	Excluded int                `json:"excluded"`
}

const queryLongDesc string = `Show the chunks of a bucket most similar to a question.

The question is embedded with the configured embedding provider and every
chunk in the bucket is scored against it. The top-K chunks are printed,
highest score first. No answer is generated; use "stacks ask" for that.

The bucket argument may be omitted after selecting one with "stacks use".

Use --remote to send the query to a running "stacks serve" at --api-target
instead of opening the chunk store locally.

Examples:
  stacks query handbook "vacation policy"
  stacks query "vacation policy" --top-k 8
  stacks query handbook "vacation policy" --json
  stacks query handbook "vacation policy" --remote`

const queryShortDesc string = "Show the chunks most similar to a question"

var flagKeys = func() []string {
	keys := append([]string{}, config.StoreFlags...)
	keys = append(keys, config.FlagEmbeddingProv, config.FlagEmbeddingTgt, config.FlagEmbeddingModel)
	keys = append(keys, config.RetrievalFlags...)
	return append(keys, config.FlagAPITarget)
}()

func NewQueryCmd() *cobra.Command {
	cmder := &queryCommander{}

	cmd := &cobra.Command{
		Use:   "query [bucket] <question>",
		Short: queryShortDesc,
		Long:  queryLongDesc,
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

			explicit, question := SplitArgs(args)
			cmder.question = question
			cmder.bucket, err = dotdir.NewManager().ResolveBucket(explicit, cmder.configDir)
			if err != nil {
				return err
			}

			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print the result as JSON")
	cmd.Flags().BoolVar(&cmder.remote, "remote", false, "Query a running stacks server instead of the local store")
	config.AddFlags(cmd, config.Registry, flagKeys)

	return cmd
}

// SplitArgs splits "[bucket] <question>" positional arguments.
func SplitArgs(args []string) (bucket, question string) {
	if len(args) == 2 {
		return args[0], args[1]
	}
	return "", args[0]
}

func (c *queryCommander) run(ctx context.Context) error {
	c.logger = logger.NewLogger(c.debug)

	var (
		output *Output
		err    error
	)
	if c.remote {
		output, err = c.queryRemote(ctx)
	} else {
		output, err = c.queryLocal(ctx)
	}
	if err != nil {
		return err
	}

	if c.jsonOut {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(output)
	}

	PrintMatches(c.out, output)
	return nil
}

func (c *queryCommander) queryLocal(ctx context.Context) (*Output, error) {
	e, err := engine.New(ctx, engine.Options{
		Config:        c.cfg,
		ConfigDir:     c.configDir,
		SkipGenerator: true,
		Logger:        c.logger,
	})
	if err != nil {
		return nil, err
	}
	defer e.Close()

	result, err := e.Service.Query(ctx, c.bucket, c.question, int(c.cfg.Retrieval.TopK))
	if err != nil {
		return nil, err
	}

	return &Output{
		Bucket:   c.bucket,
		Question: c.question,
		Metric:   result.Metric.String(),
		Matches:  result.Matches,
		Excluded: result.Excluded,
	}, nil
}

func (c *queryCommander) queryRemote(ctx context.Context) (*Output, error) {
	cl, err := client.New(c.cfg.Client.APITarget)
	if err != nil {
		return nil, err
	}

	resp, err := cl.Query(ctx, c.bucket, c.question, int(c.cfg.Retrieval.TopK))
	if err != nil {
		return nil, err
	}

	return &Output{
		Bucket:   resp.Bucket,
		Question: resp.Question,
		Metric:   resp.Metric,
		Matches:  resp.Matches,
		Excluded: resp.Excluded,
	}, nil
}

// PrintMatches renders ranked matches for the terminal.
func PrintMatches(w io.Writer, output *Output) {
	fmt.Fprintf(w, "\n  %s %s %s\n\n",
		cliui.HeaderStyle.Render("Results for"),
		cliui.NameStyle.Render(fmt.Sprintf("%q", output.Question)),
		cliui.DimStyle.Render(fmt.Sprintf("in %s (%s)", output.Bucket, output.Metric)),
	)

	if len(output.Matches) == 0 {
		fmt.Fprintf(w, "  %s No chunks found in the '%s' bucket.\n\n", cliui.DimStyle.Render("●"), output.Bucket)
		return
	}

	for i, m := range output.Matches {
		fmt.Fprintf(w, "  %s  %s  %s\n",
			cliui.KeyStyle.Render(fmt.Sprintf("#%d", i+1)),
			cliui.Score(m.Score),
			cliui.DimStyle.Render(fmt.Sprintf("chunk %d", m.ID)),
		)
		fmt.Fprintf(w, "      %s\n\n", cliui.ValueStyle.Render(utils.Preview(m.Text, 160)))
	}

	if output.Excluded > 0 {
		fmt.Fprintf(w, "  %s %d chunk(s) excluded: undefined similarity\n\n",
			cliui.WarnStyle.Render("!"), output.Excluded)
	}
}
