package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"shelfsync/internal/merge"
	"shelfsync/internal/runlock"
	"shelfsync/internal/services"
	"shelfsync/internal/store"
	"shelfsync/internal/store/sqlite"
	"shelfsync/internal/syncer"
	"shelfsync/internal/testsupport"
)

// seedGame initialises the mirror schema through the CLI and stores one
// game page carrying only its IGDb id.
func seedGame(t *testing.T, env *cliTestEnv) string {
	t.Helper()
	out, _, err := runCLI(t, []string{"schema", "init", "games"}, env.configPath)
	if err != nil {
		t.Fatalf("schema init: %v", err)
	}
	requireContains(t, out, "Defined games")

	mirror, err := sqlite.Open(env.cfg.Destination.SQLitePath, sqlite.WithClock(func() time.Time { return fixedNow.Add(-time.Hour) }))
	if err != nil {
		t.Fatalf("open mirror: %v", err)
	}
	defer mirror.Close()
	id, err := mirror.Create(context.Background(), gamesDB, merge.Properties{
		"Name":    merge.Text("witcher"),
		"IGDB ID": merge.Text("1942"),
	}, store.Decoration{})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return id
}

func TestConfigInitValidateShow(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Target games: games")
	requireContains(t, out, "Configuration valid")

	out, _, err = runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "sqlite")
	requireContains(t, out, "***")
	if strings.Contains(out, "igdb-secret") {
		t.Fatalf("config show leaked a secret:\n%s", out)
	}

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
}

func TestSyncUpdatesThenSkips(t *testing.T) {
	env := setupCLITestEnv(t)
	id := seedGame(t, env)

	out, _, err := runCLI(t, []string{"sync", "games", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	var report struct {
		Target   string          `json:"target"`
		Counters syncer.Counters `json:"counters"`
		Outcomes []struct {
			RecordID string `json:"record_id"`
			Status   string `json:"status"`
		} `json:"outcomes"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report: %v\n%s", err, out)
	}
	if report.Counters.Updated != 1 || len(report.Outcomes) != 1 || report.Outcomes[0].RecordID != id {
		t.Fatalf("unexpected report %+v", report)
	}

	out, _, err = runCLI(t, []string{"sync", "games"}, env.configPath)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	requireContains(t, out, "games · cli · all")
	requireContains(t, out, "Skipped")
	if report.Target != "games" {
		t.Fatalf("target = %q", report.Target)
	}
}

func TestSyncRecordFailureKeepsExitSuccess(t *testing.T) {
	env := setupCLITestEnv(t)
	seedGame(t, env)

	mirror, err := sqlite.Open(env.cfg.Destination.SQLitePath)
	if err != nil {
		t.Fatalf("open mirror: %v", err)
	}
	blank, err := mirror.Create(context.Background(), gamesDB, merge.Properties{}, store.Decoration{})
	_ = mirror.Close()
	if err != nil {
		t.Fatalf("seed blank page: %v", err)
	}

	out, stderr, err := runCLI(t, []string{"sync", "games", "--json"}, env.configPath)
	if code := exitCode(err); code != 0 {
		t.Fatalf("exit code = %d (%v), want 0", code, err)
	}
	requireContains(t, stderr, "1 record(s) failed")
	var report struct {
		Counters syncer.Counters `json:"counters"`
		Outcomes []struct {
			RecordID string `json:"record_id"`
			Status   string `json:"status"`
		} `json:"outcomes"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report: %v\n%s", err, out)
	}
	if report.Counters.Failed != 1 || report.Counters.Updated != 1 {
		t.Fatalf("unexpected counters %+v", report.Counters)
	}
	var failed []string
	for _, o := range report.Outcomes {
		if o.Status == string(syncer.StatusFailed) {
			failed = append(failed, o.RecordID)
		}
	}
	if len(failed) != 1 || failed[0] != blank {
		t.Fatalf("failed outcomes = %v, want [%s]", failed, blank)
	}
}

func TestSyncDryRunRendersTable(t *testing.T) {
	env := setupCLITestEnv(t)
	seedGame(t, env)

	out, _, err := runCLI(t, []string{"sync", "games", "--dry-run", "--last-page"}, env.configPath)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	requireContains(t, out, "(dry run)")
	requireContains(t, out, "updated")
	requireContains(t, out, "Release")
}

func TestSyncRejectsConflictingScopes(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"sync", "games", "--page-id", gamesDB, "--last-page"}, env.configPath)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if exitCode(err) != 2 {
		t.Fatalf("exit code = %d", exitCode(err))
	}
}

func TestSyncHonoursRunLock(t *testing.T) {
	env := setupCLITestEnv(t)
	lock, err := runlock.Acquire(env.cfg.Paths.StateDir, "games")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	t.Cleanup(func() { _ = lock.Release() })

	_, _, err = runCLI(t, []string{"sync", "games"}, env.configPath)
	if !errors.Is(err, runlock.ErrLocked) {
		t.Fatalf("expected lock error, got %v", err)
	}
}

func TestRoutePageAndPayload(t *testing.T) {
	env := setupCLITestEnv(t)
	id := seedGame(t, env)

	out, _, err := runCLI(t, []string{"route", "https://www.notion.so/Witcher-" + id}, env.configPath)
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	requireContains(t, out, "Target:   games")
	requireContains(t, out, "Scope:    single")
	requireContains(t, out, "Trigger:  webhook")

	payload := testsupport.WriteFile(t, filepath.Join(t.TempDir(), "hooks", "payload.json"), fmt.Sprintf(`{"data":{"id":%q}}`, id))
	out, _, err = runCLI(t, []string{"route", payload, "--run", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("route --run: %v", err)
	}
	requireContains(t, out, `"trigger": "webhook"`)
	requireContains(t, out, `"updated": 1`)
}

func TestSchemaCheck(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"schema", "check", "games"}, env.configPath); !errors.Is(err, services.ErrSchema) {
		t.Fatalf("expected schema error before init, got %v", err)
	}
	seedGame(t, env)
	out, _, err := runCLI(t, []string{"schema", "check", "games"}, env.configPath)
	if err != nil {
		t.Fatalf("schema check: %v", err)
	}
	requireContains(t, out, "ok")
}

func TestSyncRequestFromFlags(t *testing.T) {
	opts := syncOptions{createdAfter: "today", database: "all", trigger: "scheduled", workers: 2}
	req, err := opts.request("Music", fixedNow)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if req.Target != "music" || req.Database != "" || req.Trigger != syncer.TriggerScheduled || req.Workers != 2 {
		t.Fatalf("unexpected request %+v", req)
	}
	if !req.CreatedAfter.Equal(fixedNow.Truncate(24 * time.Hour)) {
		t.Fatalf("created after = %v", req.CreatedAfter)
	}

	if _, err := (syncOptions{createdAfter: "today", lastPage: true}).request("games", fixedNow); err == nil {
		t.Fatal("expected created-after to be rejected with --last-page")
	}
	if _, err := (syncOptions{}).request("podcasts", fixedNow); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for unknown target, got %v", err)
	}
}

func TestExitCodes(t *testing.T) {
	cases := map[error]int{
		nil: 0,
		services.Wrap(services.ErrConfiguration, "x", "y", "", nil): 2,
		services.Wrap(services.ErrAuth, "x", "y", "", nil):          3,
		fmt.Errorf("games: %w", runlock.ErrLocked):                  75,
		errors.New("boom"): 1,
	}
	for err, want := range cases {
		if got := exitCode(err); got != want {
			t.Errorf("exitCode(%v) = %d, want %d", err, got, want)
		}
	}
}
