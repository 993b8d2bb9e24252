// Package ingestcmder provides the ingest command for loading documents into
// buckets.
package ingestcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/stacks/pkg/cliui"
	"github.com/papercomputeco/stacks/pkg/config"
	"github.com/papercomputeco/stacks/pkg/engine"
	"github.com/papercomputeco/stacks/pkg/ingest"
	"github.com/papercomputeco/stacks/pkg/logger"
	"github.com/papercomputeco/stacks/pkg/retrieval"
	"github.com/papercomputeco/stacks/pkg/watch"
)

type ingestCommander struct {
	files  []string
	dir    string
	bucket string
	append bool
	watch  bool

	configDir string
	cfg       *config.Config
	out       io.Writer

	debug  bool
	logger *slog.Logger
}

const ingestLongDesc string = `Load documents into buckets.

Each document is extracted to text, split into overlapping chunks, embedded
and written to a bucket. By default a document replaces the bucket's previous
contents; --append adds its chunks after the existing ones instead.

Files are loaded into a bucket named after the file (the lower-cased name
without its extension) unless --bucket is given. With --bucket and several
files, the first file replaces the bucket and the rest are appended.

--dir loads every PDF in a directory into its own bucket. Empty or unreadable
documents are skipped. Add --watch to keep running and re-ingest PDFs as
they change; removing a PDF deletes its bucket.

Examples:
  stacks ingest handbook.pdf
  stacks ingest notes.txt --bucket handbook --append
  stacks ingest --dir ./docs
  stacks ingest --dir ./docs --watch`

const ingestShortDesc string = "Load documents into buckets"

var flagKeys = func() []string {
	keys := append([]string{}, config.StoreFlags...)
	keys = append(keys, config.FlagEmbeddingProv, config.FlagEmbeddingTgt, config.FlagEmbeddingModel)
	return append(keys, config.IngestFlags...)
}()

var errNothingToIngest = errors.New("no documents given: pass files or --dir")

func NewIngestCmd() *cobra.Command {
	cmder := &ingestCommander{}

	cmd := &cobra.Command{
		Use:   "ingest [files...]",
		Short: ingestShortDesc,
		Long:  ingestLongDesc,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case len(args) == 0 && cmder.dir == "":
				return errNothingToIngest
			case len(args) > 0 && cmder.dir != "":
				return errors.New("--dir cannot be combined with file arguments")
			case cmder.watch && cmder.dir == "":
				return errors.New("--watch requires --dir")
			case cmder.bucket != "" && cmder.dir != "":
				return errors.New("--bucket cannot be combined with --dir; each PDF gets its own bucket")
			}

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
			cmder.files = args

			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&cmder.dir, "dir", "", "Load every PDF in this directory into its own bucket")
	cmd.Flags().StringVarP(&cmder.bucket, "bucket", "b", "", "Bucket to load files into (default: derived from the file name)")
	cmd.Flags().BoolVar(&cmder.append, "append", false, "Append to the bucket instead of replacing its contents")
	cmd.Flags().BoolVar(&cmder.watch, "watch", false, "Keep running and re-ingest PDFs in --dir as they change")
	config.AddFlags(cmd, config.Registry, flagKeys)

	return cmd
}

func (c *ingestCommander) run(ctx context.Context) error {
	c.logger = logger.NewLogger(c.debug)

	e, err := engine.New(ctx, engine.Options{
		Config:        c.cfg,
		ConfigDir:     c.configDir,
		SkipGenerator: true,
		Logger:        c.logger,
	})
	if err != nil {
		return err
	}
	defer e.Close()

	opts := []retrieval.IngestOption{retrieval.WithOrigin("cli")}
	if c.append {
		opts = append(opts, retrieval.WithAppend())
	}

	fmt.Fprintln(c.out)

	if c.dir == "" {
		return c.ingestFiles(ctx, e.Pipeline, opts)
	}

	if err := c.ingestDir(ctx, e.Pipeline, opts); err != nil {
		return err
	}

	if !c.watch {
		return nil
	}

	return c.watchDir(ctx, e.Pipeline)
}

func (c *ingestCommander) ingestFiles(ctx context.Context, pipeline *ingest.Pipeline, opts []retrieval.IngestOption) error {
	for i, path := range c.files {
		bucket := c.bucket
		fileOpts := opts
		if bucket == "" {
			bucket = ingest.BucketName(path)
		} else if i > 0 {
			fileOpts = append(fileOpts, retrieval.WithAppend())
		}

		var res *retrieval.IngestResult
		err := cliui.Step(c.out, fmt.Sprintf("Ingesting %s into %s", path, bucket), func() error {
			var ingestErr error
			res, ingestErr = pipeline.IngestFile(ctx, bucket, path, fileOpts...)
			return ingestErr
		})
		if err != nil {
			return err
		}

		c.printResult(res)
	}

	fmt.Fprintln(c.out)
	return nil
}

func (c *ingestCommander) ingestDir(ctx context.Context, pipeline *ingest.Pipeline, opts []retrieval.IngestOption) error {
	var results []ingest.FileResult
	err := cliui.Step(c.out, fmt.Sprintf("Ingesting PDFs in %s", c.dir), func() error {
		var ingestErr error
		results, ingestErr = pipeline.IngestDir(ctx, c.dir, opts...)
		return ingestErr
	})
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Fprintf(c.out, "  %s No PDFs found in %s\n\n", cliui.DimStyle.Render("●"), c.dir)
		return nil
	}

	for _, r := range results {
		if r.Skipped {
			fmt.Fprintf(c.out, "  %s %s %s\n",
				cliui.WarnStyle.Render("!"),
				cliui.KeyStyle.Render(r.Path),
				cliui.DimStyle.Render(fmt.Sprintf("skipped: %v", r.Err)),
			)
			continue
		}
		c.printResult(r.Result)
	}

	fmt.Fprintln(c.out)
	return nil
}

func (c *ingestCommander) watchDir(ctx context.Context, pipeline *ingest.Pipeline) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := watch.New(watch.Config{
		Dir:        c.dir,
		Extensions: []string{".pdf"},
		Handler:    pipeline.DirHandler(retrieval.WithOrigin("watch")),
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "  %s Watching %s %s\n\n",
		cliui.SuccessMark,
		cliui.KeyStyle.Render(c.dir),
		cliui.DimStyle.Render("(Ctrl+C to stop)"),
	)

	return w.Run(ctx)
}

func (c *ingestCommander) printResult(res *retrieval.IngestResult) {
	detail := fmt.Sprintf("(%d dims)", res.Dimensions)
	if res.Replaced {
		detail = fmt.Sprintf("(%d dims, replaced)", res.Dimensions)
	}

	fmt.Fprintf(c.out, "    %s %s %s\n",
		cliui.NameStyle.Render(res.Collection),
		cliui.ValueStyle.Render(fmt.Sprintf("%d chunk(s)", res.Chunks)),
		cliui.DimStyle.Render(detail),
	)
}
