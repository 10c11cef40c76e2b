package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dev-tams/mydumpkit/internal/compression"
	"github.com/dev-tams/mydumpkit/internal/config"
	"github.com/dev-tams/mydumpkit/internal/notify"
	"github.com/dev-tams/mydumpkit/internal/storage/local"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDumper struct {
	names  []string
	dumps  map[string][]string
	failOn string
}

func (f *fakeDumper) Databases(context.Context) ([]string, error) {
	return f.names, nil
}

func (f *fakeDumper) Dump(_ context.Context, name string) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for _, chunk := range f.dumps[name] {
			if !yield([]byte(chunk), nil) {
				return
			}
		}
		if name == f.failOn {
			yield(nil, errors.New("exit status 2"))
		}
	}
}

func fixedClock(t *testing.T) time.Time {
	t.Helper()
	at := time.Date(2026, 2, 18, 12, 0, 0, 0, time.Local)
	prev := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = prev })
	return at
}

func captureStdout(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = prev })
	return &buf
}

func baseConfig() *config.Config {
	return &config.Config{
		Compress:  compression.None,
		ChunkSize: config.DefaultChunkSize,
	}
}

func TestRunDumpDirectoryMode(t *testing.T) {
	fixedClock(t)
	out := captureStdout(t)
	dir := t.TempDir()

	cfg := baseConfig()
	cfg.OutDir = dir
	dumper := &fakeDumper{
		names: []string{"a", "information_schema", "b"},
		dumps: map[string][]string{"a": {"X"}, "information_schema": {"nope"}},
	}

	results, err := runDump(context.Background(), cfg, dumper, local.New("local", dir))
	require.NoError(t, err)

	want := filepath.Join(dir, "a-20260218120000.sql")
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].DB)
	assert.Equal(t, want, results[0].Dest)
	assert.Equal(t, int64(1), results[0].Bytes)
	assert.Equal(t, want+"\n", out.String())

	data, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, "X", string(data))
	assert.Equal(t, []string{"a-20260218120000.sql"}, remaining(t, dir), "empty and excluded databases produce no file")
}

func TestRunDumpExpiresOldFiles(t *testing.T) {
	fixedClock(t)
	captureStdout(t)
	dir := t.TempDir()
	writeAged(t, dir, "a-20260101000000.sql.gz", 48*time.Hour)
	writeAged(t, dir, "a-20260102000000.sql.gz", 24*time.Hour)
	writeAged(t, dir, "a-20260101000000.sql", 72*time.Hour)
	writeAged(t, dir, "b-20260101000000.sql.gz", 72*time.Hour)

	cfg := baseConfig()
	cfg.OutDir = dir
	cfg.Compress = compression.Gzip
	cfg.Keep = 2
	dumper := &fakeDumper{names: []string{"a"}, dumps: map[string][]string{"a": {"CREATE TABLE t (id int);"}}}

	results, err := runDump(context.Background(), cfg, dumper, local.New("local", dir))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []string{"a-20260101000000.sql.gz"}, results[0].Pruned)

	assert.ElementsMatch(t, []string{
		"a-20260218120000.sql.gz",
		"a-20260102000000.sql.gz",
		"a-20260101000000.sql",
		"b-20260101000000.sql.gz",
	}, remaining(t, dir))
}

func TestRunDumpSingleStreamFile(t *testing.T) {
	target := filepath.Join(t.TempDir(), "all.sql")
	cfg := baseConfig()
	cfg.OutFile = target
	dumper := &fakeDumper{names: []string{"a", "b"}, dumps: map[string][]string{"a": {"A1", "A2"}, "b": {"B"}}}

	results, err := runDump(context.Background(), cfg, dumper, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "", results[0].DB)
	assert.Equal(t, int64(5), results[0].Bytes)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "A1A2B", string(data))
}

func TestRunDumpNotifiesSuccessAndFailure(t *testing.T) {
	captureStdout(t)
	var (
		mu     sync.Mutex
		events []notify.Event
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev notify.Event
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&ev))
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	dir := t.TempDir()
	cfg := baseConfig()
	cfg.OutDir = dir
	cfg.Notifications = []config.NotificationConfig{{
		Type:   "webhook",
		On:     []string{"both"},
		Config: config.NotificationDetails{URL: srv.URL},
	}}
	dumper := &fakeDumper{
		names:  []string{"a", "b"},
		dumps:  map[string][]string{"a": {"A"}, "b": {"B"}},
		failOn: "b",
	}

	_, err := runDump(context.Background(), cfg, dumper, local.New("local", dir))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dump b")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 2)
	assert.Equal(t, notify.StatusSuccess, events[0].Status)
	assert.Equal(t, "a", events[0].DB)
	assert.Equal(t, notify.StatusFailure, events[1].Status)
	assert.Contains(t, events[1].Error, "exit status 2")
	assert.Equal(t, events[0].RunID, events[1].RunID)
	assert.NotEmpty(t, events[0].RunID)
}

func TestRunDumpRejectsConflictingTargets(t *testing.T) {
	cfg := baseConfig()
	cfg.OutFile = "x.sql"
	cfg.OutDir = t.TempDir()

	_, err := RunDumpWithResults(context.Background(), cfg)
	assert.ErrorIs(t, err, config.ErrConflictingOutputTargets)
}

func TestRunDumpCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := baseConfig()
	cfg.OutFile = filepath.Join(t.TempDir(), "all.sql")
	dumper := &cancelingDumper{}

	_, err := runDump(ctx, cfg, dumper, nil)
	require.Error(t, err)
	assert.True(t, IsInterrupt(err))
}

type cancelingDumper struct{}

func (cancelingDumper) Databases(ctx context.Context) ([]string, error) {
	return nil, ctx.Err()
}

func (cancelingDumper) Dump(context.Context, string) iter.Seq2[[]byte, error] {
	return func(func([]byte, error) bool) {}
}

func TestNotificationContextIgnoresParentCancelAndPreservesValues(t *testing.T) {
	type key string
	const k key = "trace"

	parent, stop := context.WithCancel(context.WithValue(context.Background(), k, "abc"))
	stop()

	ctx, cancel := notificationContext(parent)
	defer cancel()

	select {
	case <-ctx.Done():
		t.Fatalf("notification context should not be canceled by parent cancel")
	default:
	}
	assert.Equal(t, "abc", ctx.Value(k))
}

func TestNotificationContextAppliesTimeout(t *testing.T) {
	ctx, cancel := notificationContext(context.Background())
	defer cancel()

	dl, ok := ctx.Deadline()
	require.True(t, ok, "expected deadline to be set")

	remaining := time.Until(dl)
	assert.True(t, remaining > 0 && remaining <= notificationTimeout+time.Second, "unexpected deadline window: %s", remaining)
}

func TestRunDumpExplicitPatternSelectsSystemSchema(t *testing.T) {
	fixedClock(t)
	captureStdout(t)
	dir := t.TempDir()

	cfg := baseConfig()
	cfg.OutDir = dir
	cfg.DBPattern = "^(sys|information_schema)$"
	dumper := &fakeDumper{
		names: []string{"information_schema", "shop", "sys"},
		dumps: map[string][]string{"information_schema": {"I"}, "shop": {"S"}, "sys": {"Y"}},
	}

	_, err := runDump(context.Background(), cfg, dumper, local.New("local", dir))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"information_schema-20260218120000.sql",
		"sys-20260218120000.sql",
	}, remaining(t, dir))
}

// signaledDumper mimics a tool killed by the same interrupt that cancels
// the run: it reports its own exit status, not the context error.
type signaledDumper struct {
	cancel context.CancelFunc
}

func (signaledDumper) Databases(context.Context) ([]string, error) {
	return []string{"a"}, nil
}

func (d signaledDumper) Dump(context.Context, string) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		d.cancel()
		yield(nil, errors.New("mysqldump: exit code -1"))
	}
}

func TestRunDumpReportsInterruptOverToolFailure(t *testing.T) {
	captureStdout(t)
	for _, outDir := range []string{"", t.TempDir()} {
		ctx, cancel := context.WithCancel(context.Background())

		cfg := baseConfig()
		cfg.OutDir = outDir
		if outDir == "" {
			cfg.OutFile = filepath.Join(t.TempDir(), "all.sql")
		}
		var st *local.Storage
		if outDir != "" {
			st = local.New("local", outDir)
		}

		var err error
		if st != nil {
			_, err = runDump(ctx, cfg, signaledDumper{cancel: cancel}, st)
		} else {
			_, err = runDump(ctx, cfg, signaledDumper{cancel: cancel}, nil)
		}
		require.Error(t, err)
		assert.True(t, IsInterrupt(err), "outDir=%q: %v", outDir, err)
		assert.Contains(t, err.Error(), "exit code -1")
		cancel()
	}
}
