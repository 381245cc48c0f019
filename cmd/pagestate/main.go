// Package main is the entry point for the pagestate CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/unkn0wn-root/pagestate/cmd/pagestate/commands"
	"github.com/unkn0wn-root/pagestate/internal/app"
	"github.com/unkn0wn-root/pagestate/internal/config"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func open(ctx context.Context, opts app.Options) (commands.Workspace, error) {
	return app.Open(ctx, opts)
}

func run(args []string) int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := config.LoadDotEnv(); err != nil {
		_, _ = os.Stderr.WriteString("Error: " + err.Error() + "\n")
		return 1
	}

	cli := commands.New(open)
	cli.SetArgs(args)
	if err := cli.Execute(ctx); err != nil {
		_, _ = os.Stderr.WriteString("Error: " + err.Error() + "\n")
		return 1
	}
	return 0
}
