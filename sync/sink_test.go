package sync

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandeepkandula/archivesync/auth"
)

func TestHTTPSink_streamsToDestination(t *testing.T) {
	payload := strings.Repeat("x", 1<<20)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"), "pre-signed locators must not receive the token")
		io.WriteString(w, payload)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "nested", "downloads")
	sink := NewHTTPSink(srv.Client())

	err := sink.Store(context.Background(), auth.Bearer("tok", time.Time{}), srv.URL+"/dl", dest, "Atos_RHEL9.zip")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dest, "Atos_RHEL9.zip"))
	require.NoError(t, err)
	assert.Equal(t, len(payload), len(data))
}

func TestHTTPSink_authorize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	sink := NewHTTPSink(srv.Client())
	dest := t.TempDir()

	err := sink.Store(context.Background(), auth.Bearer("tok", time.Time{}), srv.URL, dest, "a.zip")
	var ae *auth.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusUnauthorized, ae.StatusCode)

	sink.Authorize = true
	require.NoError(t, sink.Store(context.Background(), auth.Bearer("tok", time.Time{}), srv.URL, dest, "a.zip"))
	assert.FileExists(t, filepath.Join(dest, "a.zip"))
}

func TestHTTPSink_errorStatusCreatesNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "downloads")
	err := NewHTTPSink(srv.Client()).Store(context.Background(), auth.Credential{}, srv.URL, dest, "a.zip")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "410")

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestHTTPSink_overwritesExisting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "new")
	}))
	defer srv.Close()

	dest := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dest, "a.zip"), []byte("old contents"), 0o644))

	require.NoError(t, NewHTTPSink(srv.Client()).Store(context.Background(), auth.Credential{}, srv.URL, dest, "a.zip"))

	data, err := os.ReadFile(filepath.Join(dest, "a.zip"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestWriteLocal_longFileName(t *testing.T) {
	dest := t.TempDir()
	name := strings.Repeat("a", 251) + ".zip"

	require.NoError(t, writeLocal(dest, name, func(f *os.File) error {
		_, err := f.WriteString("ok")
		return err
	}))

	data, err := os.ReadFile(filepath.Join(dest, name))
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))

	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp file left behind")
}

func TestDryRunSink(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "never")
	require.NoError(t, NewDryRunSink(nil).Store(context.Background(), auth.Credential{}, "loc", dest, "a.zip"))

	_, err := os.Stat(dest)
	assert.True(t, os.IsNotExist(err))
}

func TestCheckFileName(t *testing.T) {
	for _, bad := range []string{"", ".", "..", "../x.zip", "a/b.zip", `a\b.zip`} {
		assert.Error(t, checkFileName(bad), "name %q", bad)
	}
	for _, good := range []string{"a.zip", "Atos_Ubuntu22.04_OVF_31_07_2025.zip", ".hidden"} {
		assert.NoError(t, checkFileName(good), "name %q", good)
	}
}
