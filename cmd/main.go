package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}
