package backup

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/dev-tams/mydumpkit/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTool installs an executable shell script named name on PATH and
// points TMPDIR at a fresh directory so leftover artifacts can be detected.
func fakeTool(t *testing.T, name, script string) (tmpDir string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fakes need a unix shell")
	}

	bin := t.TempDir()
	body := "#!/bin/sh\n" + script + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(bin, name), []byte(body), 0o755))
	t.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))

	tmpDir = t.TempDir()
	t.Setenv("TMPDIR", tmpDir)
	return tmpDir
}

func assertNoArtifacts(t *testing.T, tmpDir string) {
	t.Helper()
	entries, err := os.ReadDir(tmpDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "defaults artifact should be removed")
}

func collect(t *testing.T, inv *Invoker, tool string, args ...string) ([][]byte, error) {
	t.Helper()
	var chunks [][]byte
	for chunk, err := range inv.Run(context.Background(), tool, args...) {
		if err != nil {
			return chunks, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

func TestRunStreamsFixedSizeChunks(t *testing.T) {
	tmp := fakeTool(t, "fake-dump", `printf 'abcdefghij'`)

	chunks, err := collect(t, &Invoker{ChunkSize: 4}, "fake-dump")
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("abcd"), []byte("efgh"), []byte("ij")}, chunks)
	assertNoArtifacts(t, tmp)
}

func TestRunPassesCredentialsThroughDefaultsFile(t *testing.T) {
	tmp := fakeTool(t, "fake-dump", `
case "$1" in
--defaults-file=*) cat "${1#--defaults-file=}" ;;
*) echo "missing defaults file" >&2; exit 2 ;;
esac
echo "db=$2"`)

	inv := &Invoker{
		Conn:    config.ConnectionConfig{Host: "h", User: "u", Password: "secret"},
		Options: []config.DumpOption{{Key: "quick"}},
	}
	chunks, err := collect(t, inv, "fake-dump", "shop")
	require.NoError(t, err)

	got := string(bytes.Join(chunks, nil))
	assert.Equal(t, "[client]\nhost=\"h\"\nuser=\"u\"\npassword=\"secret\"\n[mysqldump]\nquick\ndb=shop\n", got)
	assertNoArtifacts(t, tmp)
}

func TestRunReportsExitCodeAndStderr(t *testing.T) {
	tmp := fakeTool(t, "fake-dump", `printf 'partial'; echo "Access denied" >&2; exit 3`)

	chunks, err := collect(t, &Invoker{}, "fake-dump", "shop")
	assert.Equal(t, [][]byte{[]byte("partial")}, chunks)

	var subErr *SubprocessError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, 3, subErr.ExitCode)
	assert.Contains(t, subErr.Stderr, "Access denied")
	assert.Contains(t, subErr.Command, "fake-dump --defaults-file=")
	assert.Contains(t, subErr.Command, " shop")
	assert.NotContains(t, subErr.Command, "secret")
	assertNoArtifacts(t, tmp)
}

func TestRunExecutableNotFound(t *testing.T) {
	orig := execLookPath
	defer func() { execLookPath = orig }()
	execLookPath = func(file string) (string, error) {
		return "", errors.New("not found")
	}

	_, err := collect(t, &Invoker{}, "mysqldump")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExecutableNotFound))
	assert.Contains(t, err.Error(), "mysqldump")
}

func TestRunStopsToolWhenConsumerBreaks(t *testing.T) {
	tmp := fakeTool(t, "fake-dump", `while :; do echo "INSERT INTO t VALUES (1);"; done`)

	seen := 0
	for chunk, err := range (&Invoker{ChunkSize: 64}).Run(context.Background(), "fake-dump") {
		require.NoError(t, err)
		require.Len(t, chunk, 64)
		seen++
		if seen == 3 {
			break
		}
	}
	assert.Equal(t, 3, seen)
	assertNoArtifacts(t, tmp)
}

func TestRunHonoursCancellation(t *testing.T) {
	fakeTool(t, "fake-dump", `while :; do echo line; done`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var err error
	for _, e := range (&Invoker{ChunkSize: 16}).Run(ctx, "fake-dump") {
		if e != nil {
			err = e
			break
		}
		cancel()
	}
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
