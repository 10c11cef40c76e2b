package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os/exec"
	"strings"
	"time"

	"github.com/dev-tams/mydumpkit/internal/config"
	"github.com/dev-tams/mydumpkit/internal/logging"
)

const DefaultChunkSize = config.DefaultChunkSize

// waitDelay bounds Wait when a killed tool left children holding stderr.
const waitDelay = 5 * time.Second

var execLookPath = exec.LookPath

// Invoker runs MySQL client tools. Connection parameters reach the tool
// through a transient --defaults-file, never through argv.
type Invoker struct {
	Conn      config.ConnectionConfig
	Options   []config.DumpOption
	ChunkSize int
}

// Run starts tool with args and yields its stdout in chunks of at most
// ChunkSize bytes. Each chunk is a fresh slice. A non-zero exit is reported
// as a *SubprocessError after the output is drained.
func (inv *Invoker) Run(ctx context.Context, tool string, args ...string) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		path, err := execLookPath(tool)
		if err != nil {
			yield(nil, fmt.Errorf("cannot find %s: %w", tool, ErrExecutableNotFound))
			return
		}

		defaults, err := newDefaultsFile(renderOptionFile(inv.Conn, inv.Options))
		if err != nil {
			yield(nil, err)
			return
		}
		defer func() {
			if err := defaults.Remove(); err != nil {
				logging.L().Warn().Err(err).Str("path", defaults.Path()).Msg("remove defaults file")
			}
		}()

		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		argv := append([]string{"--defaults-file=" + defaults.Path()}, args...)
		cmd := exec.CommandContext(runCtx, path, argv...)
		cmd.WaitDelay = waitDelay
		detach(cmd)
		command := strings.Join(cmd.Args, " ")

		var stderr bytes.Buffer
		cmd.Stderr = &stderr

		stdout, err := cmd.StdoutPipe()
		if err != nil {
			yield(nil, fmt.Errorf("%s stdout: %w", tool, err))
			return
		}

		logging.L().Debug().Str("command", command).Msg("invoke")
		if err := cmd.Start(); err != nil {
			yield(nil, fmt.Errorf("start %s: %w", tool, err))
			return
		}

		waited := false
		defer func() {
			if !waited {
				// consumer stopped early or reading failed
				cancel()
				_ = cmd.Wait()
			}
		}()

		chunkSize := inv.ChunkSize
		if chunkSize <= 0 {
			chunkSize = DefaultChunkSize
		}

		for {
			buf := make([]byte, chunkSize)
			n, readErr := io.ReadFull(stdout, buf)
			if n > 0 {
				if !yield(buf[:n], nil) {
					return
				}
			}
			if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
				break
			}
			if readErr != nil {
				yield(nil, fmt.Errorf("read %s output: %w", tool, readErr))
				return
			}
		}

		waited = true
		waitErr := cmd.Wait()
		if ctx.Err() != nil {
			yield(nil, fmt.Errorf("%s: %w", tool, ctx.Err()))
			return
		}
		if waitErr != nil {
			var exitErr *exec.ExitError
			if errors.As(waitErr, &exitErr) {
				yield(nil, &SubprocessError{
					Command:  command,
					ExitCode: exitErr.ExitCode(),
					Stderr:   stderr.String(),
				})
				return
			}
			yield(nil, fmt.Errorf("wait %s: %w", tool, waitErr))
		}
	}
}
