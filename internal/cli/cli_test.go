package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	pterm.DisableStyling()
	os.Exit(m.Run())
}

type harness struct {
	t         *testing.T
	server    *httptest.Server
	configDir string
	tokenFile string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login/", func(w http.ResponseWriter, r *http.Request) {
		var creds map[string]string
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds["password"] != "secret" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"non_field_errors":["Unable to log in with provided credentials."]}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"data":{"token":"T","refresh_token":"R","user":{"username":"ada"}}}`))
	})
	mux.HandleFunc("/api/auth/me/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token T" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"detail":"Authentication credentials were not provided."}`))
			return
		}
		_, _ = w.Write([]byte(`{"username":"ada","email":"ada@example.com"}`))
	})
	mux.HandleFunc("/api/auth/logout/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/api/courses/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":1,"title":"Algebra"}]`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	dir := t.TempDir()
	return &harness{
		t:         t,
		server:    server,
		configDir: dir,
		tokenFile: filepath.Join(dir, "tokens.json"),
	}
}

func (h *harness) run(args ...string) (string, string, error) {
	h.t.Helper()

	var out, errOut bytes.Buffer
	root := NewRootCommand(&out, &errOut)
	root.SetArgs(append([]string{
		"--api-url", h.server.URL + "/api",
		"--config-dir", h.configDir,
		"--store", "file",
		"--token-file", h.tokenFile,
	}, args...))

	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestLoginWhoamiLogout(t *testing.T) {
	h := newHarness(t)

	out, _, err := h.run("whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in")

	out, _, err = h.run("login", "-u", "ada", "-p", "secret")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as ada")

	stored, err := os.ReadFile(h.tokenFile)
	require.NoError(t, err)
	assert.Contains(t, string(stored), `"T"`)

	out, _, err = h.run("whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Current user: ada")

	out, _, err = h.run("logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")

	out, _, err = h.run("whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in")
}

func TestLoginRejected(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.run("login", "-u", "ada", "-p", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unable to log in with provided credentials.")
}

func TestGetPrintsIndentedJSON(t *testing.T) {
	h := newHarness(t)

	out, _, err := h.run("get", "/courses/")
	require.NoError(t, err)
	assert.Contains(t, out, `"title": "Algebra"`)

	_, _, err = h.run("get")
	assert.Error(t, err)
}

func TestStatus(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.run("login", "-u", "ada", "-p", "secret")
	require.NoError(t, err)

	out, _, err := h.run("status")
	require.NoError(t, err)
	assert.Contains(t, out, h.server.URL+"/api")
	assert.Contains(t, out, "file")
	assert.Contains(t, out, "yes")
}

func TestUnknownStore(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.run("--store", "vault", "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown token store")
}

func TestVersionNeedsNoConfig(t *testing.T) {
	var out bytes.Buffer
	root := NewRootCommand(&out, &out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "tutorapi v")
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "ada", displayName(json.RawMessage(`{"user":{"username":"ada"}}`), "x"))
	assert.Equal(t, "ada@example.com", displayName(json.RawMessage(`{"email":"ada@example.com"}`), "x"))
	assert.Equal(t, "x", displayName(json.RawMessage(`[1,2]`), "x"))
	assert.Equal(t, "x", displayName(nil, "x"))
}

func TestGetHasNoCacheFlags(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.run("get", "/courses/", "--fresh")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown flag")
}
