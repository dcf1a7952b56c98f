package geoip

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDB(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("mmdb"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "geo", "country.mmdb")
	ctx := context.Background()

	require.NoError(t, EnsureDB(ctx, srv.Client(), path, srv.URL, time.Hour))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "mmdb", string(b))
	assert.Equal(t, int32(1), hits.Load())

	require.NoError(t, EnsureDB(ctx, srv.Client(), path, srv.URL, time.Hour))
	assert.Equal(t, int32(1), hits.Load(), "fresh database is not downloaded again")

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))
	require.NoError(t, EnsureDB(ctx, srv.Client(), path, srv.URL, time.Hour))
	assert.Equal(t, int32(2), hits.Load())

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestEnsureDBBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "country.mmdb")
	err := EnsureDB(context.Background(), srv.Client(), path, srv.URL, time.Hour)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestOpenInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.mmdb")
	require.NoError(t, os.WriteFile(path, []byte("not a database"), 0o600))

	_, err := Open(path)
	assert.Error(t, err)
}

func TestNilProvider(t *testing.T) {
	var p *Provider
	assert.Equal(t, "", p.CountryCode("8.8.8.8"))
	assert.NoError(t, p.Close())
}
