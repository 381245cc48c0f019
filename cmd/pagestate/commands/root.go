// Package commands implements the pagestate CLI commands.
package commands

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/pagestate/internal/app"
)

// Version is set at build time.
var Version = "dev"

// Workspace is the open store the commands operate on.
type Workspace interface {
	Namespace() string
	Inspect() []app.Row
	Reset(ctx context.Context, page string) error
	Clear(ctx context.Context) (int, error)
	Close(ctx context.Context) error
}

// OpenFunc opens a Workspace for the global flags.
type OpenFunc func(ctx context.Context, opts app.Options) (Workspace, error)

// CLI represents the command line interface for pagestate.
type CLI struct {
	open    OpenFunc
	rootCmd *cobra.Command
}

// New creates a new CLI that opens workspaces with open.
func New(open OpenFunc) *CLI {
	rootCmd := &cobra.Command{
		Use:           "pagestate",
		Short:         "Inspect and reset persisted page state",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
	}

	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the YAML configuration file")
	rootCmd.PersistentFlags().StringP("namespace", "n", "", "Namespace to operate on (overrides the configuration)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")

	c := &CLI{
		open:    open,
		rootCmd: rootCmd,
	}

	rootCmd.AddCommand(c.newInspectCmd())
	rootCmd.AddCommand(c.newResetCmd())
	rootCmd.AddCommand(c.newClearCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets stdout and stderr for the root command. Used for testing.
func (c *CLI) SetOutput(out, errOut io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(errOut)
}

// withWorkspace opens a workspace from the global flags, runs fn and closes it.
func (c *CLI) withWorkspace(cmd *cobra.Command, fn func(ws Workspace) error) (err error) {
	configPath, _ := cmd.Flags().GetString("config")
	namespace, _ := cmd.Flags().GetString("namespace")
	verbose, _ := cmd.Flags().GetBool("verbose")

	ws, err := c.open(cmd.Context(), app.Options{
		ConfigPath: configPath,
		Namespace:  namespace,
		Verbose:    verbose,
		Stderr:     cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := ws.Close(cmd.Context()); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(ws)
}
