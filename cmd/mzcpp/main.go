package main

import (
	"io"
	"os"

	"github.com/fwessels/mzcpp"
	"github.com/mattn/go-isatty"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	return mzcpp.Run(args, mzcpp.Options{
		Stdout: stdout,
		Stderr: stderr,
		Color:  terminal(stderr),
	})
}

// terminal reports whether w is a console, where diagnostics are
// highlighted.
func terminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
