package cli

import "fmt"

// Execute handles the run command, dispatching to the interactive or the
// JSON session.
func Execute(opts RunOptions) error {
	if opts.JSON {
		if opts.Watch {
			return fmt.Errorf("--watch and --json cannot be used together")
		}
		return RunJSON(opts)
	}
	return RunSession(opts)
}
