package commands

import (
	"github.com/spf13/cobra"
)

// RootCmd is the root command for gamegate
var RootCmd = &cobra.Command{
	Use:              "gamegate",
	Short:            "proof-of-work gated smart contract challenge server",
	TraverseChildren: true,
	SilenceUsage:     true,
}
