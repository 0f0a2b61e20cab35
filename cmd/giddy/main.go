package main

import (
	"os"

	"github.com/OFiDCrypt/giddy-swaps/internal/cli"
)

func main() {
	runner := cli.NewRunner()
	os.Exit(runner.Run(os.Args[1:]))
}
