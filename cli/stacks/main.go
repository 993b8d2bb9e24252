package main

import (
	"os"

	stackscmder "github.com/papercomputeco/stacks/cmd/stacks"
)

func main() {
	cmd := stackscmder.NewStacksCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
