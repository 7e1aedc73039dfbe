package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Seancheey/linea-game-ai/pkg/catalog"
)

func newSessionsCmd(app *App) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recorded sessions from the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := catalog.Open(app.Config.Paths.CatalogPath)
			if err != nil {
				return fmt.Errorf("open session catalog: %w", err)
			}
			defer store.Close()

			sessions, err := store.ListSessions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sessions recorded yet.")
				return nil
			}

			writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(writer, "STARTED\tSTATUS\tITEMS\tFRAMES\tKEY EVENTS\tFPS\tEXPORT DIR")
			for _, session := range sessions {
				fps := "-"
				if session.AverageFPS > 0 {
					fps = fmt.Sprintf("%.2f", session.AverageFPS)
				}
				dir := session.ExportDir
				if dir == "" {
					dir = "-"
				}
				fmt.Fprintf(writer, "%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
					session.StartedAt.UTC().Format(time.RFC3339),
					session.Status,
					session.ItemCount,
					session.FrameCount,
					session.KeyEventCount,
					fps,
					dir)
			}
			return writer.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of sessions to list")
	return cmd
}
