package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, apiURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "butterflymx.yaml")
	content := fmt.Sprintf(`
api_url: %s
auth:
  refresh_token: ${BMX_CLI_TEST_REFRESH}
  access_token: tok
  access_token_expires_at: 4102444800
log:
  level: error
`, apiURL)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func runCLI(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.ExecuteContext(t.Context())
	return stdout.String(), stderr.String(), err
}

func TestCommands(t *testing.T) {
	t.Setenv("BMX_CLI_TEST_REFRESH", "r-from-env")

	queries := make(chan string, 4)
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Query string `json:"query"`
		}
		_ = json.Unmarshal(body, &req)
		queries <- req.Query

		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.Contains(req.Query, "tenants"):
			fmt.Fprint(w, `{"data": {"tenants": {"nodes": [{"id": "t1", "name": "Home", "accessPoints": {"nodes": []}}]}}}`)
		default:
			fmt.Fprint(w, `{"data": {"ping": "pong"}}`)
		}
	}))
	t.Cleanup(api.Close)

	cfgPath := writeConfig(t, api.URL)
	envFile := filepath.Join(t.TempDir(), "none.env")

	t.Run("Tenants", func(t *testing.T) {
		out, _, err := runCLI(t, "", "tenants", "-c", cfgPath, "--env-file", envFile)
		require.NoError(t, err)

		var tenants []map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &tenants))
		require.Len(t, tenants, 1)
		assert.Equal(t, "t1", tenants[0]["id"])
		<-queries
	})

	t.Run("QueryFromStdin", func(t *testing.T) {
		out, _, err := runCLI(t, "{ ping }", "query", "-", "-c", cfgPath, "--env-file", envFile)
		require.NoError(t, err)
		assert.JSONEq(t, `{"ping": "pong"}`, out)
		assert.Equal(t, "{ ping }", <-queries)
	})

	t.Run("ShowRefreshToken", func(t *testing.T) {
		_, errOut, err := runCLI(t, "", "query", "{ ping }", "-c", cfgPath, "--env-file", envFile, "--show-refresh-token")
		require.NoError(t, err)
		assert.Contains(t, errOut, "refresh token: r-from-env")
		<-queries
	})

	t.Run("EmptyDocument", func(t *testing.T) {
		_, _, err := runCLI(t, "  \n", "query", "-", "-c", cfgPath, "--env-file", envFile)
		assert.ErrorContains(t, err, "empty document")
	})

	t.Run("OpenNeedsTwoArgs", func(t *testing.T) {
		_, _, err := runCLI(t, "", "open", "t1", "-c", cfgPath)
		assert.Error(t, err)
	})

	t.Run("MissingConfig", func(t *testing.T) {
		_, _, err := runCLI(t, "", "tenants", "-c", filepath.Join(t.TempDir(), "nope.yaml"), "--env-file", envFile)
		assert.Error(t, err)
	})
}
