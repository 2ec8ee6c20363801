package client

import (
	"github.com/spf13/cobra"
)

// AddCommands registers every client command on root.
func AddCommands(root *cobra.Command, baseURL BaseURLFunc) {
	root.AddCommand(
		NewAppendCommand(baseURL),
		NewReadCommand(baseURL),
		NewStateCommand(baseURL),
		NewCompactCommand(baseURL),
		NewStatsCommand(baseURL),
		NewDocsCommand(baseURL),
		NewPagesCommand(baseURL),
	)
}
