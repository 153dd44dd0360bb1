package main

import (
	"os"

	"github.com/wsgreco/sidica/internal/cli"
	"github.com/wsgreco/sidica/internal/term"
)

func main() {
	cl := cli.NewCLI(os.Stdout, os.Stderr, os.Stdin, term.IsTerminal(os.Stderr))
	os.Exit(cl.Run(os.Args))
}
