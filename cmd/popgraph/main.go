// Command popgraph ingests population-by-age spreadsheets into a dataset store
// and renders bar charts of the latest or a chosen dataset.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"popgraph/pkg/domain"
)

// Exit codes.
const (
	exitOK     = 0
	exitError  = 1
	exitNoData = 2
)

var exitFunc = os.Exit

func main() {
	exitFunc(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := newRootCommand(stdin, stdout, stderr)
	root.SetArgs(args)
	err := root.Execute()
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, domain.ErrNoData):
		fmt.Fprintf(stderr, "%v\ningest a spreadsheet first: popgraph ingest <file.xlsx>\n", err)
		return exitNoData
	default:
		fmt.Fprintln(stderr, err)
		return exitError
	}
}
