package punch

import (
	"github.com/spf13/cobra"

	"punchclock/internal/app/client"
)

var ShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Показать отметку",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := client.FromContext(cmd.Context())
		if err != nil {
			return err
		}

		ev, err := app.Event(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(ev)
		}
		printEvent(ev)
		return nil
	},
}
