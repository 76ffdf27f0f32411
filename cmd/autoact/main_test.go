package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/entrhq/autoact/pkg/config"
	"github.com/entrhq/autoact/pkg/knowledgebase"
	"github.com/entrhq/autoact/pkg/types"
	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	pterm.DisableOutput()
	os.Exit(m.Run())
}

func strPtr(s string) *string { return &s }

func TestContextsCmd(t *testing.T) {
	ctx := context.Background()
	store := knowledgebase.NewMemoryStore()
	c := ContextsCmd{store: store}

	require.NoError(t, c.List(ctx))

	require.NoError(t, c.Add(ctx, types.ContextFormValues{Title: "Shipping", Description: "Ships in 2 days"}))
	assert.ErrorIs(t, c.Add(ctx, types.ContextFormValues{Title: " ", Description: "x"}), types.ErrEmptyTitle)

	items, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	id := items[0].ID

	require.NoError(t, c.Get(ctx, id))
	assert.ErrorIs(t, c.Get(ctx, "missing"), knowledgebase.ErrNotFound)

	assert.Error(t, c.Update(ctx, UpdateContextInput{ID: id}))
	require.NoError(t, c.Update(ctx, UpdateContextInput{ID: id, Description: strPtr("Ships in 3 days")}))

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.ContextItem{ID: id, Title: "Shipping", Description: "Ships in 3 days"}, got)

	assert.ErrorIs(t, c.Update(ctx, UpdateContextInput{ID: id, Title: strPtr("")}), types.ErrEmptyTitle)
	require.NoError(t, c.List(ctx))
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, "a b", summarize(" a\n\tb ", 10))
	assert.Equal(t, "abcd…", summarize("abcdefgh", 5))
	assert.Equal(t, "héllo", summarize("héllo", 5))
}

func TestHostOptionsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Toolbar.AnchorOffset = 9
	cfg.Bus.DiscardStaleResponses = false

	opts := hostOptions(cfg)
	assert.Equal(t, cfg.Browser.StartURL, opts.StartURL)
	assert.Equal(t, cfg.Browser.Viewport, opts.Viewport)
	assert.Equal(t, "btnAddToKnowledgebase", opts.Script.ControlID)
	assert.Equal(t, 9.0, opts.Script.AnchorOffset)
	assert.False(t, opts.Script.DiscardStale)
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		configPath, verbosity = "", ""
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "AutoAct v"+version+"\n", out)
}

func TestCommandsUseConfiguredStore(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "kb.db")
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("knowledge_base:\n  path: "+dbPath+"\n"), 0600))

	_, err := execute(t, "--config", cfgPath, "contexts", "add", "--title", "Returns", "--description", "30 days")
	require.NoError(t, err)

	store, err := knowledgebase.OpenSQLite(dbPath)
	require.NoError(t, err)
	items, err := store.List(context.Background())
	require.NoError(t, store.Close())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Returns", items[0].Title)

	out, err := execute(t, "--config", cfgPath, "config")
	require.NoError(t, err)
	assert.Contains(t, out, dbPath)

	_, err = execute(t, "--config", cfgPath, "--verbosity", "loud", "contexts", "list")
	assert.Error(t, err)
}
