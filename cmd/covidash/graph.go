package main

import (
	"fmt"

	"github.com/aretw0/covidash/internal/cli"
	"github.com/aretw0/covidash/internal/presentation/graph"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the dependency graph of a session",
	Long: `Opens a session (restoring its stored inputs) and prints a Mermaid diagram
of the reactive graph, with each node's epoch and the dirty nodes marked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger, err := loadLogger(cmd, cfg)
		if err != nil {
			return err
		}
		sessionID, _ := cmd.Flags().GetString("session")
		highlight, _ := cmd.Flags().GetStringSlice("highlight")

		stack, err := cli.Build(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer stack.Close()

		id, err := stack.Engine.Start(cmd.Context(), sessionID)
		if err != nil {
			return err
		}
		nodes, err := stack.Engine.Inspect(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("error inspecting graph: %w", err)
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(nodes, &graph.GraphOverlay{
			Dirty:     true,
			Epochs:    true,
			Highlight: highlight,
		}))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("session", cli.DefaultSessionID, "Session whose inputs are used")
	graphCmd.Flags().StringSlice("highlight", nil, "Nodes to highlight")
}
