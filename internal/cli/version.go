package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/Seancheey/linea-game-ai/internal/buildinfo"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "recorder %s (%s/%s, %s)\n",
				buildinfo.Version(), runtime.GOOS, runtime.GOARCH, runtime.Version())
		},
	}
}
