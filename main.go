package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/conneroisu/sitebuild/cmd"
)

func main() {
	// SITEBUILD_ overrides may live in a local .env file.
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
