// Package bucketscmder provides the buckets command for listing and managing
// buckets in the chunk store.
package bucketscmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/stacks/pkg/chunkstore"
	"github.com/papercomputeco/stacks/pkg/cliui"
	"github.com/papercomputeco/stacks/pkg/config"
	"github.com/papercomputeco/stacks/pkg/dotdir"
	"github.com/papercomputeco/stacks/pkg/engine"
	"github.com/papercomputeco/stacks/pkg/logger"
	"github.com/papercomputeco/stacks/pkg/retrieval"
)

const bucketsLongDesc string = `List and manage buckets.

A bucket is a named collection of embedded chunks, usually built from one
document with "stacks ingest".

Examples:
  stacks buckets list
  stacks buckets list --json
  stacks buckets create notes
  stacks buckets delete handbook`

const bucketsShortDesc string = "List and manage buckets"

var flagKeys = func() []string {
	keys := append([]string{}, config.StoreFlags...)
	return append(keys, config.FlagEmbeddingProv, config.FlagEmbeddingTgt, config.FlagEmbeddingModel,
		config.FlagKafkaBrokers, config.FlagKafkaTopic)
}()

// bucketsCommander holds the state shared by the subcommands.
type bucketsCommander struct {
	configDir string
	cfg       *config.Config
	out       io.Writer

	debug  bool
	logger *slog.Logger
}

func NewBucketsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "buckets",
		Aliases: []string{"bucket"},
		Short:   bucketsShortDesc,
		Long:    bucketsLongDesc,
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newCreateCmd())
	cmd.AddCommand(newDeleteCmd())

	return cmd
}

// newSubcommand wires config loading and flags shared by every subcommand.
func newSubcommand(cmd *cobra.Command, run func(ctx context.Context, c *bucketsCommander, args []string) error) *cobra.Command {
	cmder := &bucketsCommander{}

	cmd.PreRunE = func(cmd *cobra.Command, _ []string) error {
		var err error
		cmder.cfg, err = config.LoadForCommand(cmd, flagKeys)
		return err
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		var err error
		cmder.debug, err = cmd.Flags().GetBool("debug")
		if err != nil {
			return fmt.Errorf("could not get debug flag: %w", err)
		}
		cmder.configDir, _ = cmd.Flags().GetString("config-dir")
		cmder.out = cmd.OutOrStdout()
		cmder.logger = logger.NewLogger(cmder.debug)

		return run(cmd.Context(), cmder, args)
	}
	config.AddFlags(cmd, config.Registry, flagKeys)

	return cmd
}

func (c *bucketsCommander) engine(ctx context.Context) (*engine.Engine, error) {
	return engine.New(ctx, engine.Options{
		Config:        c.cfg,
		ConfigDir:     c.configDir,
		SkipGenerator: true,
		Logger:        c.logger,
	})
}

func newListCmd() *cobra.Command {
	var jsonOut bool

	cmd := newSubcommand(&cobra.Command{
		Use:   "list",
		Short: "List buckets",
		Args:  cobra.NoArgs,
	}, func(ctx context.Context, c *bucketsCommander, _ []string) error {
		e, err := c.engine(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		buckets, err := e.Service.Buckets(ctx)
		if err != nil {
			return err
		}

		if jsonOut {
			enc := json.NewEncoder(c.out)
			enc.SetIndent("", "  ")
			return enc.Encode(buckets)
		}

		current, _ := dotdir.NewManager().LoadCurrentBucket(c.configDir)
		printBuckets(c.out, buckets, current)
		return nil
	})

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the buckets as JSON")
	return cmd
}

func newCreateCmd() *cobra.Command {
	return newSubcommand(&cobra.Command{
		Use:   "create <bucket>",
		Short: "Create an empty bucket",
		Args:  cobra.ExactArgs(1),
	}, func(ctx context.Context, c *bucketsCommander, args []string) error {
		e, err := c.engine(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.Service.CreateBucket(ctx, args[0]); err != nil {
			return err
		}

		fmt.Fprintf(c.out, "\n  %s Created bucket %s\n\n", cliui.SuccessMark, cliui.NameStyle.Render(args[0]))
		return nil
	})
}

func newDeleteCmd() *cobra.Command {
	return newSubcommand(&cobra.Command{
		Use:     "delete <bucket>",
		Aliases: []string{"rm"},
		Short:   "Delete a bucket and its chunks",
		Args:    cobra.ExactArgs(1),
	}, func(ctx context.Context, c *bucketsCommander, args []string) error {
		e, err := c.engine(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.Service.DeleteBucket(ctx, args[0], retrieval.WithOrigin("cli")); err != nil {
			return err
		}

		fmt.Fprintf(c.out, "\n  %s Deleted bucket %s\n\n", cliui.SuccessMark, cliui.NameStyle.Render(args[0]))
		return nil
	})
}

func printBuckets(w io.Writer, buckets []chunkstore.CollectionInfo, current *dotdir.CurrentBucket) {
	if len(buckets) == 0 {
		fmt.Fprintf(w, "\n  %s No buckets. Use 'stacks ingest <file>' to create one.\n\n", cliui.DimStyle.Render("●"))
		return
	}

	nameWidth := 0
	for _, b := range buckets {
		nameWidth = max(nameWidth, len(b.Name))
	}

	fmt.Fprintf(w, "\n  %s\n\n", cliui.HeaderStyle.Render("Buckets"))
	for _, b := range buckets {
		marker := " "
		if current != nil && current.Name == b.Name {
			marker = cliui.SuccessMark
		}
		fmt.Fprintf(w, "  %s %s  %s\n",
			marker,
			cliui.NameStyle.Render(fmt.Sprintf("%-*s", nameWidth, b.Name)),
			cliui.DimStyle.Render(fmt.Sprintf("%d chunk(s), %d dims", b.Size, b.Dimensions)),
		)
	}
	fmt.Fprintln(w)
}
