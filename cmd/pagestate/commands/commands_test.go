package commands_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/pagestate"
	"github.com/unkn0wn-root/pagestate/cmd/pagestate/commands"
	"github.com/unkn0wn-root/pagestate/internal/app"
)

type mockWorkspace struct {
	rows     []app.Row
	resetErr error
	reset    []string
	cleared  bool
	closed   bool
}

func (m *mockWorkspace) Namespace() string  { return "web" }
func (m *mockWorkspace) Inspect() []app.Row { return m.rows }
func (m *mockWorkspace) Reset(_ context.Context, page string) error {
	m.reset = append(m.reset, page)
	return m.resetErr
}
func (m *mockWorkspace) Clear(context.Context) (int, error) {
	m.cleared = true
	return len(m.rows), nil
}
func (m *mockWorkspace) Close(context.Context) error {
	m.closed = true
	return nil
}

func newCLI(ws *mockWorkspace, captured *app.Options) *commands.CLI {
	return commands.New(func(_ context.Context, opts app.Options) (commands.Workspace, error) {
		if captured != nil {
			*captured = opts
		}
		return ws, nil
	})
}

func TestCommands_Inspect(t *testing.T) {
	t.Run("lists rows", func(t *testing.T) {
		ws := &mockWorkspace{rows: []app.Row{
			{EntryInfo: pagestate.EntryInfo{PageKey: "jobs", Version: 3, LastFetched: 1, Size: 2048}, Age: 6 * time.Minute, Stale: true},
			{EntryInfo: pagestate.EntryInfo{PageKey: "candidates"}},
		}}
		var opts app.Options
		cli := newCLI(ws, &opts)
		out := new(bytes.Buffer)
		cli.SetOutput(out, new(bytes.Buffer))
		cli.SetArgs([]string{"inspect", "--config", "ps.yaml", "--namespace", "web", "--verbose"})

		require.NoError(t, cli.Execute(context.Background()))
		assert.Equal(t, "ps.yaml", opts.ConfigPath)
		assert.Equal(t, "web", opts.Namespace)
		assert.True(t, opts.Verbose)
		assert.True(t, ws.closed)

		s := out.String()
		assert.Contains(t, s, "PAGE")
		assert.Contains(t, s, "jobs")
		assert.Contains(t, s, "6 minutes ago")
		assert.Contains(t, s, "2.0 kB")
		assert.Contains(t, s, "never")
	})

	t.Run("empty namespace", func(t *testing.T) {
		cli := newCLI(&mockWorkspace{}, nil)
		out := new(bytes.Buffer)
		cli.SetOutput(out, new(bytes.Buffer))
		cli.SetArgs([]string{"inspect"})

		require.NoError(t, cli.Execute(context.Background()))
		assert.Contains(t, out.String(), `no stored pages in namespace "web"`)
	})
}

func TestCommands_Reset(t *testing.T) {
	t.Run("resets page", func(t *testing.T) {
		ws := &mockWorkspace{}
		cli := newCLI(ws, nil)
		out := new(bytes.Buffer)
		cli.SetOutput(out, new(bytes.Buffer))
		cli.SetArgs([]string{"reset", "jobs"})

		require.NoError(t, cli.Execute(context.Background()))
		assert.Equal(t, []string{"jobs"}, ws.reset)
		assert.Contains(t, out.String(), "reset jobs")
	})

	t.Run("requires a page", func(t *testing.T) {
		cli := newCLI(&mockWorkspace{}, nil)
		cli.SetOutput(new(bytes.Buffer), new(bytes.Buffer))
		cli.SetArgs([]string{"reset"})
		require.Error(t, cli.Execute(context.Background()))
	})

	t.Run("propagates errors", func(t *testing.T) {
		ws := &mockWorkspace{resetErr: app.ErrPageNotFound}
		cli := newCLI(ws, nil)
		cli.SetOutput(new(bytes.Buffer), new(bytes.Buffer))
		cli.SetArgs([]string{"reset", "nope"})

		err := cli.Execute(context.Background())
		require.ErrorIs(t, err, app.ErrPageNotFound)
		assert.True(t, ws.closed)
	})
}

func TestCommands_Clear(t *testing.T) {
	ws := &mockWorkspace{rows: []app.Row{{}, {}}}
	cli := newCLI(ws, nil)
	out := new(bytes.Buffer)
	cli.SetOutput(out, new(bytes.Buffer))
	cli.SetArgs([]string{"clear"})

	require.NoError(t, cli.Execute(context.Background()))
	assert.True(t, ws.cleared)
	assert.Contains(t, out.String(), `cleared 2 pages in namespace "web"`)
}

func TestCommands_OpenError(t *testing.T) {
	cli := commands.New(func(context.Context, app.Options) (commands.Workspace, error) {
		return nil, errors.New("simulated error")
	})
	cli.SetOutput(new(bytes.Buffer), new(bytes.Buffer))
	cli.SetArgs([]string{"clear"})

	err := cli.Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "simulated error")
}

func TestCommands_Version(t *testing.T) {
	cli := newCLI(&mockWorkspace{}, nil)
	out := new(bytes.Buffer)
	cli.SetOutput(out, new(bytes.Buffer))
	cli.SetArgs([]string{"version"})

	require.NoError(t, cli.Execute(context.Background()))
	assert.Contains(t, out.String(), "pagestate version dev")
}
