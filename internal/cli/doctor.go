package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Seancheey/linea-game-ai/pkg/catalog"
	"github.com/Seancheey/linea-game-ai/pkg/screen"
)

func newDoctorCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that the capture backends and storage are usable",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			failures := 0

			failures += check(stdout, "screen capture", func() error {
				provider, err := screen.NewDisplayProvider(screen.Region(app.Config.Capture.Region))
				if err != nil {
					return err
				}
				_, err = provider.Grab(cmd.Context())
				return err
			})

			failures += check(stdout, "data directory", func() error {
				if err := os.MkdirAll(app.Config.Paths.DataDir, 0o755); err != nil {
					return err
				}
				probe := filepath.Join(app.Config.Paths.DataDir, ".doctor-probe")
				if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
					return err
				}
				return os.Remove(probe)
			})

			failures += check(stdout, "session catalog", func() error {
				store, err := catalog.Open(app.Config.Paths.CatalogPath)
				if err != nil {
					return err
				}
				return store.Close()
			})

			if failures > 0 {
				return fmt.Errorf("%d check(s) failed", failures)
			}
			fmt.Fprintln(stdout, "All checks passed.")
			return nil
		},
	}
}

func check(stdout io.Writer, name string, probe func() error) int {
	if err := probe(); err != nil {
		fmt.Fprintf(stdout, "FAIL %s: %v\n", name, err)
		return 1
	}
	fmt.Fprintf(stdout, "OK   %s\n", name)
	return 0
}
