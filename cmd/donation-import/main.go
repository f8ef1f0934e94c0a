// Command donation-import runs bulk donation imports from the command line.
//
//	donation-import run donations.csv
//	donation-import run donations.csv --json
//	donation-import history --limit 20
//	donation-import migrate
//
// Configuration comes from the same environment variables as the server.
// --driver and --database-url override DATABASE_DRIVER and DATABASE_URL.
// Logs go to stderr; results go to stdout.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs the CLI and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{}
	defer a.close()

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	if msg := err.Error(); msg != "" {
		fmt.Fprintln(stderr, "error:", msg)
	}
	return exitCode(err)
}
