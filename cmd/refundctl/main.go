package main

import (
	"os"

	"github.com/dvloznov/refund-explainer/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
