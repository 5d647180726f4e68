package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"shelfsync/internal/config"
	"shelfsync/internal/testsupport"
)

const gamesDB = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
}

// setupCLITestEnv writes a sqlite-backed games configuration whose IGDb
// endpoints point at a local stub.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	t.Setenv("HOME", t.TempDir())
	for _, key := range []string{"NOTION_TOKEN", "IGDB_CLIENT_ID", "IGDB_CLIENT_SECRET"} {
		t.Setenv(key, "")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth2/token":
			_, _ = w.Write([]byte(`{"access_token":"twitch-token","expires_in":3600,"token_type":"bearer"}`))
		case "/igdb/games":
			_, _ = w.Write([]byte(`[{"id":1942,"name":"The Witcher 3: Wild Hunt",
				"first_release_date":1431993600,"genres":[{"name":"Adventure"}]}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	cfg := testsupport.NewConfig(t,
		testsupport.WithGamesTarget(gamesDB),
		testsupport.WithProviderBaseURL(srv.URL),
	)
	cfg.RateLimit.InitialDelayMS = 1
	cfg.RateLimit.MinDelayMS = 1
	cfg.RateLimit.MaxDelayMS = 5

	encoded, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	path := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	if err := os.WriteFile(path, encoded, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return &cliTestEnv{cfg: cfg, configPath: path}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommandWith(func(c *commandContext) {
		c.clock = func() time.Time { return fixedNow }
	})
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
