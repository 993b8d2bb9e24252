// Package versioncmder
package versioncmder

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/stacks/pkg/utils"
)

type versionCommander struct {
	jsonOut bool
}

func NewVersionCmd() *cobra.Command {
	cmder := &versionCommander{}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "displays version",
		Long:  "displays the version of this CLI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print the version as JSON")

	return cmd
}

func (c *versionCommander) run(w io.Writer) error {
	b := utils.BuildInfo()
	if c.jsonOut {
		return json.NewEncoder(w).Encode(b)
	}

	fmt.Fprintf(w, "Version: %s\nSha: %s\nBuilt at: %s\nGo: %s\n", b.Version, b.Sha, b.BuiltAt, b.GoVersion)
	return nil
}
