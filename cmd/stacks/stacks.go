// Package stackscmder
package stackscmder

import (
	"os"

	"github.com/spf13/cobra"

	askcmder "github.com/papercomputeco/stacks/cmd/stacks/ask"
	authcmder "github.com/papercomputeco/stacks/cmd/stacks/auth"
	bucketscmder "github.com/papercomputeco/stacks/cmd/stacks/buckets"
	chatcmder "github.com/papercomputeco/stacks/cmd/stacks/chat"
	configcmder "github.com/papercomputeco/stacks/cmd/stacks/config"
	ingestcmder "github.com/papercomputeco/stacks/cmd/stacks/ingest"
	initcmder "github.com/papercomputeco/stacks/cmd/stacks/init"
	querycmder "github.com/papercomputeco/stacks/cmd/stacks/query"
	servecmder "github.com/papercomputeco/stacks/cmd/stacks/serve"
	statuscmder "github.com/papercomputeco/stacks/cmd/stacks/status"
	usecmder "github.com/papercomputeco/stacks/cmd/stacks/use"
	versioncmder "github.com/papercomputeco/stacks/cmd/version"
	"github.com/papercomputeco/stacks/pkg/cliui"
)

const stacksLongDesc string = `Stacks answers questions from your documents.

Documents are split into chunks, embedded, and stored in named buckets.
Questions are embedded the same way and matched against a bucket's chunks
by similarity; the best matches are handed to a language model to answer.

Get started:
  stacks ingest handbook.pdf         Ingest a document into the "handbook" bucket
  stacks use handbook                Select the bucket for later commands
  stacks query "vacation policy"     Show the most similar chunks
  stacks ask "how many vacation days do I get?"
  stacks chat                        Ask questions interactively
  stacks serve                       Run the HTTP API and MCP server`

const stacksShortDesc string = "Stacks - Document Retrieval"

func NewStacksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "stacks",
		Short:        stacksShortDesc,
		Long:         stacksLongDesc,
		SilenceUsage: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			cliui.ConfigureColor(os.Stdout)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .stacks/ config directory")

	// Add subcommands
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(ingestcmder.NewIngestCmd())
	cmd.AddCommand(bucketscmder.NewBucketsCmd())
	cmd.AddCommand(usecmder.NewUseCmd())
	cmd.AddCommand(querycmder.NewQueryCmd())
	cmd.AddCommand(askcmder.NewAskCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(statuscmder.NewStatusCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
