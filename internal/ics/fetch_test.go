package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchUsesETagAndFallsBackToCache(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.Header().Set("ETag", `"v1"`)
			_, _ = w.Write(sample)
		case 2:
			assert.Equal(t, `"v1"`, r.Header.Get("If-None-Match"))
			w.WriteHeader(http.StatusNotModified)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	f := NewFetcher(t.TempDir(), srv.Client())
	src := Source{ID: "work", URL: srv.URL + "/cal.ics"}

	first, err := f.FetchOne(ctx, src)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, sample, first.Body)

	second, err := f.FetchOne(ctx, src)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, sample, second.Body)

	third, err := f.FetchOne(ctx, src)
	require.NoError(t, err)
	assert.True(t, third.FromCache)
}

func TestFetchErrorWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), srv.Client())
	results, errs := f.FetchAll(context.Background(), []Source{{ID: "gone", URL: srv.URL}})
	assert.Empty(t, results)
	require.Len(t, errs, 1)
}

func TestFetchLocalFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cal.ics")
	require.NoError(t, os.WriteFile(path, sample, 0o600))

	f := NewFetcher(t.TempDir(), nil)
	for _, u := range []string{path, "file://" + path} {
		res, err := f.FetchOne(context.Background(), Source{ID: "local", URL: u})
		require.NoError(t, err)
		assert.Equal(t, sample, res.Body)
	}

	_, err := f.FetchOne(context.Background(), Source{ID: "empty"})
	assert.Error(t, err)
}
