package main

import (
	"os"

	"github.com/aretw0/covidash/internal/cli"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the interactive dashboard",
	Long: `Starts an interactive dashboard session in the terminal. Inputs are
changed with commands (type help) and saved per session, so running again
with the same --session resumes where you stopped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		sessionID, _ := cmd.Flags().GetString("session")
		watch, _ := cmd.Flags().GetBool("watch")
		fresh, _ := cmd.Flags().GetBool("fresh")
		debug, _ := cmd.Flags().GetBool("debug")
		jsonMode, _ := cmd.Flags().GetBool("json")

		return cli.Execute(cli.RunOptions{
			Config:    cfg,
			SessionID: sessionID,
			Watch:     watch,
			Debug:     debug,
			Fresh:     fresh,
			JSON:      jsonMode,
			Quiet:     jsonMode,
			In:        os.Stdin,
			Out:       os.Stdout,
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("session", cli.DefaultSessionID, "Session ID to create or resume")
	runCmd.Flags().BoolP("watch", "w", false, "Refresh the dashboard when a local table changes")
	runCmd.Flags().Bool("json", false, "Run headless over JSON Lines (patches in, views out)")
	runCmd.Flags().Bool("fresh", false, "Forget the stored inputs of the session before starting")

	// 'run' is the default command.
	rootCmd.RunE = runCmd.RunE
	rootCmd.Flags().AddFlagSet(runCmd.Flags())
}
