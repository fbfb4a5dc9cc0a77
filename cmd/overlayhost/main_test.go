package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jask/overlayhost/internal/database"
	"github.com/jask/overlayhost/internal/database/repository"
)

func TestCheckLayerSuggests(t *testing.T) {
	t.Parallel()

	require.NoError(t, checkLayer("root", []string{"sheet", "alert"}))
	require.NoError(t, checkLayer("alert", []string{"sheet", "alert"}))
	err := checkLayer("alrt", []string{"sheet", "alert"})
	require.Error(t, err)
	require.Contains(t, err.Error(), `did you mean "alert"`)
}

func TestPrintHistoryFiltersAndTotals(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := database.OpenMigrated(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	repo := repository.NewEventRepo(db)

	at := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.InsertBatch(ctx, []repository.Event{
		{ID: "e1", Layer: "", LinkID: "r1", Kind: repository.KindPresent, CreatedAt: at},
		{ID: "e2", Layer: "alert", LinkID: "m1", Kind: repository.KindPresent, CreatedAt: at.Add(time.Second)},
		{ID: "e3", Layer: "alert", LinkID: "m1", Kind: repository.KindInteraction, Detail: "outside-tap", CreatedAt: at.Add(2 * time.Second)},
	}))

	var buf bytes.Buffer
	require.NoError(t, printHistory(ctx, &buf, repo, 10, "alert"))
	out := buf.String()
	require.Contains(t, out, "outside-tap")
	require.NotContains(t, out, "r1")
	require.Contains(t, out, "totals: interaction=1 present=2")

	buf.Reset()
	require.NoError(t, printHistory(ctx, &buf, repo, 10, "root"))
	require.Contains(t, buf.String(), "r1")
}

func TestConfigCommandPrintsEffectiveValues(t *testing.T) {
	t.Setenv("OVERLAYHOST_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))

	root := newRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"config", "--easing", "linear", "--fps", "60"})
	require.NoError(t, root.Execute())
	require.Contains(t, buf.String(), "overlay.easing       = linear")
	require.Contains(t, buf.String(), "overlay.frame_rate   = 60")
}

func TestConfigCommandRejectsUnknownEasing(t *testing.T) {
	t.Setenv("OVERLAYHOST_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"config", "--easing", "outCubik"})
	err := root.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), `did you mean "outCubic"`)
}

func TestHistoryCommandSeedsAndResets(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("OVERLAYHOST_CONFIG", filepath.Join(dir, "missing.toml"))
	dbPath := filepath.Join(dir, "journal.db")

	root := newRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"history", "--db", dbPath, "--seed", "3", "-n", "100"})
	require.NoError(t, root.Execute())
	require.Contains(t, buf.String(), "present=3")

	root = newRootCmd()
	buf.Reset()
	root.SetOut(&buf)
	root.SetArgs([]string{"history", "--db", dbPath, "--reset"})
	require.NoError(t, root.Execute())
	require.Contains(t, buf.String(), "removed ")
	require.Contains(t, buf.String(), "totals: \n")
}
