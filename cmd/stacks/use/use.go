// Package usecmder provides the use command for selecting the bucket that
// query, ask and chat fall back to.
package usecmder

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/stacks/pkg/cliui"
	"github.com/papercomputeco/stacks/pkg/dotdir"
)

const useLongDesc string = `Select the bucket used when a command's bucket argument is omitted.

The selection is stored in current.json in the .stacks/ directory. It is
not checked against the chunk store; a missing bucket is reported when a
command uses it.

Run without arguments to show the current selection.

Examples:
  stacks use handbook
  stacks use
  stacks use --clear`

const useShortDesc string = "Select the default bucket"

func NewUseCmd() *cobra.Command {
	var clearFlag bool

	cmd := &cobra.Command{
		Use:   "use [bucket]",
		Short: useShortDesc,
		Long:  useLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			w := cmd.OutOrStdout()

			switch {
			case clearFlag:
				return runClear(w, configDir)
			case len(args) == 1:
				return runUse(w, args[0], configDir)
			default:
				return runShow(w, configDir)
			}
		},
	}

	cmd.Flags().BoolVar(&clearFlag, "clear", false, "Clear the selected bucket")

	return cmd
}

func runUse(w io.Writer, bucket, configDir string) error {
	err := dotdir.NewManager().SaveCurrentBucket(&dotdir.CurrentBucket{
		Name:       bucket,
		SelectedAt: time.Now(),
	}, configDir)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\n  %s Using bucket %s\n\n", cliui.SuccessMark, cliui.NameStyle.Render(bucket))
	return nil
}

func runClear(w io.Writer, configDir string) error {
	if err := dotdir.NewManager().ClearCurrentBucket(configDir); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n  %s Cleared bucket selection\n\n", cliui.SuccessMark)
	return nil
}

func runShow(w io.Writer, configDir string) error {
	current, err := dotdir.NewManager().LoadCurrentBucket(configDir)
	if err != nil {
		return err
	}

	if current == nil {
		fmt.Fprintf(w, "\n  %s No bucket selected. Use 'stacks use <bucket>' to select one.\n\n", cliui.DimStyle.Render("●"))
		return nil
	}

	fmt.Fprintf(w, "\n  %s %s %s\n\n",
		cliui.KeyStyle.Render("Bucket:"),
		cliui.NameStyle.Render(current.Name),
		cliui.DimStyle.Render("(selected "+current.SelectedAt.Format("2006-01-02 15:04")+")"),
	)
	return nil
}
