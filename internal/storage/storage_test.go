package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/omp-launcher/internal/models"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()

	repo, err := New(context.Background(), MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	return repo
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "launcher.db")
	ctx := context.Background()

	repo, err := New(ctx, path)
	require.NoError(t, err)
	require.NoError(t, repo.SetItem(ctx, "k", "v"))
	require.NoError(t, repo.Close())

	repo, err = New(ctx, path)
	require.NoError(t, err)
	defer func() { _ = repo.Close() }()

	v, ok, err := repo.GetItem(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	files, err := migrationFiles()
	require.NoError(t, err)
	var applied int
	require.NoError(t, repo.db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&applied))
	assert.Equal(t, len(files), applied)
}

func TestKeyValue(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, ok, err := repo.GetItem(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.SetItem(ctx, "nickname", "Player"))
	require.NoError(t, repo.SetItem(ctx, "theme", "dark"))
	require.NoError(t, repo.SetItem(ctx, "theme", "light"))

	v, ok, err := repo.GetItem(ctx, "theme")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "light", v)

	all, err := repo.AllItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"nickname": "Player", "theme": "light"}, all)

	require.NoError(t, repo.RemoveItem(ctx, "theme"))
	require.NoError(t, repo.RemoveItem(ctx, "theme"))
	_, ok, err = repo.GetItem(ctx, "theme")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Clear(ctx))
	all, err = repo.AllItems(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestImportLegacy(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	dir := t.TempDir()

	n, err := repo.ImportLegacy(ctx, filepath.Join(dir, "absent.json"))
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, repo.SetItem(ctx, "nickname", "Kept"))

	legacy := filepath.Join(dir, "storage.json")
	require.NoError(t, os.WriteFile(legacy, []byte(`{"nickname":"Old","favorites":"[]","count":3}`), 0o600))

	n, err = repo.ImportLegacy(ctx, legacy)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	all, err := repo.AllItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"nickname": "Kept", "favorites": "[]"}, all)

	require.NoError(t, os.WriteFile(legacy, []byte(`not json`), 0o600))
	_, err = repo.ImportLegacy(ctx, legacy)
	assert.Error(t, err)
}

func TestServerHistory(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	rec := models.ServerRecord{
		Host: "127.0.0.1", Port: 7777, CountryCode: "DE",
		Hostname: "Test", Gamemode: "Freeroam", Language: "en",
		Players: 5, MaxPlayers: 32, Ping: 40, LastSeen: t0,
	}
	require.NoError(t, repo.UpsertServer(ctx, rec))

	// empty text fields keep previous values
	update := rec
	update.Hostname, update.Gamemode, update.Language, update.CountryCode = "", "", "", ""
	update.Players = 7
	update.Ping = -1
	update.LastSeen = t0.Add(time.Hour)
	require.NoError(t, repo.UpsertServer(ctx, update))

	got, err := repo.GetServer(ctx, "127.0.0.1", 7777)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Test", got.Hostname)
	assert.Equal(t, "Freeroam", got.Gamemode)
	assert.Equal(t, "DE", got.CountryCode)
	assert.Equal(t, 7, got.Players)
	assert.Equal(t, 40, got.Ping, "unmeasured ping keeps the stored value")
	assert.Equal(t, int64(2), got.Count)
	assert.True(t, got.FirstSeen.Equal(t0))
	assert.True(t, got.LastSeen.Equal(t0.Add(time.Hour)))

	other := models.ServerRecord{Host: "10.0.0.1", Port: 7778, Hostname: "Other", LastSeen: t0.Add(2 * time.Hour)}
	require.NoError(t, repo.UpsertServer(ctx, other))

	all, err := repo.GetServers(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Other", all[0].Hostname, "most recent first")

	missing, err := repo.GetServer(ctx, "1.1.1.1", 1)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStaleServers(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for i, age := range []time.Duration{0, 24 * time.Hour, 72 * time.Hour} {
		require.NoError(t, repo.UpsertServer(ctx, models.ServerRecord{
			Host: "10.0.0.1", Port: 7000 + i, Hostname: "s", LastSeen: t0.Add(-age),
		}))
	}

	cutoff := t0.Add(-48 * time.Hour)
	stale, err := repo.GetStaleServers(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, 7002, stale[0].Port)

	n, err := repo.DeleteStaleServers(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, repo.DeleteServer(ctx, "10.0.0.1", 7000))
	all, err := repo.GetServers(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 7001, all[0].Port)
}
