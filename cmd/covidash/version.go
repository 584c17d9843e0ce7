package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/covidash"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of covidash",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "covidash version %s\n", strings.TrimSpace(covidash.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
