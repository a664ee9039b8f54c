// Command keyman generates license keys and keeps them in a sealed vault file.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/awnumar/memguard"
)

const cliVersion = "0.2.0"

type userError struct {
	msg string
}

func (e userError) Error() string { return e.msg }

func main() {
	memguard.CatchInterrupt()
	err := newApp(os.Stdin, os.Stdout, os.Stderr).execute(os.Args[1:])
	memguard.Purge()
	os.Exit(exitCode(os.Stderr, err))
}

// exitCode prints err and maps it to the process status: 1 for user errors,
// 2 for anything unexpected.
func exitCode(w io.Writer, err error) int {
	if err == nil {
		return 0
	}

	var uerr userError
	if errors.As(err, &uerr) {
		fmt.Fprintln(w, uerr.Error())
		return 1
	}

	fmt.Fprintf(w, "unexpected error: %v\n", err)
	return 2
}
