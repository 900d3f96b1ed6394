package main

import (
	"os"

	cmd "github.com/layer-3/gamegate/cmd/gamegate/commands"
)

func main() {
	rootCmd := cmd.RootCmd

	rootCmd.AddCommand(
		cmd.NewRunCmd(),
		cmd.NewKeygenCmd(),
		cmd.NewOpsTokenCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
