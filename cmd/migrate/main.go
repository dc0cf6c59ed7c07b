// Command migrate applies embedded-style SQL migrations from a directory.
package main

import (
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/aqasim81/embedmigrate/internal/cli"
)

func main() {
	cli.Execute(
		colorable.NewColorable(os.Stdout),
		colorable.NewColorable(os.Stderr),
		isatty.IsTerminal(os.Stderr.Fd()),
	)
}
