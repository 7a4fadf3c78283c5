package main

import (
	"os"

	"quotechart/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
