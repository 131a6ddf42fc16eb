/*
Package cli provides command-line utilities for the janus command.

It includes output formatters for command results, typed command errors,
and signal helpers for graceful shutdown.

Output Formatting:

Command results can be rendered as text, JSON, or CSV:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, result); err != nil {
		return err
	}

CSV output requires the data to implement the Tabular interface.

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx := cli.SetupSignalHandler()
	// Use ctx for operations that should be cancelled on shutdown
*/
package cli
