package main

import (
	"os"

	"github.com/patinahq/patina/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
