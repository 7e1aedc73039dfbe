package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/Seancheey/linea-game-ai/internal/cli"
)

func main() {
	// Optional; environment overrides work without a .env file.
	_ = godotenv.Load()

	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
