package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dev-tams/mydumpkit/internal/backup"
	"github.com/dev-tams/mydumpkit/internal/compression"
	"github.com/dev-tams/mydumpkit/internal/config"
	"github.com/dev-tams/mydumpkit/internal/logging"
	"github.com/dev-tams/mydumpkit/internal/notify"
	"github.com/dev-tams/mydumpkit/internal/output"
	"github.com/dev-tams/mydumpkit/internal/storage"
	"github.com/dev-tams/mydumpkit/internal/storage/prunable"
	"github.com/dev-tams/mydumpkit/internal/stream"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	notificationTimeout = 5 * time.Second
	timestampLayout     = "20060102150405"
)

var (
	// stdout receives the location of every finished per-database file.
	stdout io.Writer = os.Stdout
	now              = time.Now
)

// DumpResult describes one finished output. DB is empty for a combined
// single-stream dump.
type DumpResult struct {
	DB       string
	Status   string
	Bytes    int64
	Dest     string
	Duration time.Duration
	Pruned   []string
	Err      error
}

// RunDump validates cfg and performs one dump run against the mysql client
// tools found on PATH.
func RunDump(ctx context.Context, cfg *config.Config) error {
	_, err := RunDumpWithResults(ctx, cfg)
	return err
}

func RunDumpWithResults(ctx context.Context, cfg *config.Config) ([]DumpResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := cfg.DumpOptions()
	if err != nil {
		return nil, err
	}

	var st storage.Storage
	if !cfg.SingleStream() {
		st, err = storage.FromTarget(ctx, cfg.OutDir, cfg.S3)
		if err != nil {
			return nil, err
		}
	}

	return runDump(ctx, cfg, backup.NewMySQL(cfg.Connection(), opts, cfg.ChunkSize), st)
}

// runDump drives the stream produced from dumper into a single target, or
// into st when cfg is in directory mode. cfg must already be validated.
func runDump(ctx context.Context, cfg *config.Config, dumper backup.Dumper, st storage.Storage) ([]DumpResult, error) {
	dispatcher, err := notify.NewDispatcher(cfg.Notifications)
	if err != nil {
		return nil, err
	}
	factory, err := compression.NewFactory(cfg.Compress)
	if err != nil {
		return nil, err
	}
	typeSuffix, err := compression.Suffix(cfg.Compress)
	if err != nil {
		return nil, err
	}
	include, exclude, err := cfg.Patterns()
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := logging.WithRun(runID)

	composer := &stream.Composer{
		Dumper:        dumper,
		Filter:        stream.Filter{Include: include, Exclude: exclude},
		NewCompressor: factory,
		SingleStream:  cfg.SingleStream(),
	}

	started := now()
	log.Info().Str("compress", cfg.Compress).Bool("single_stream", composer.SingleStream).Msg("dump started")

	if composer.SingleStream {
		target := cfg.Target()
		n, err := output.WriteToFile(composer.Stream(ctx), target)
		err = interrupted(ctx, err)
		res := DumpResult{
			Status:   notify.StatusSuccess,
			Bytes:    n,
			Dest:     target,
			Duration: time.Since(started),
			Err:      err,
		}
		if err != nil {
			res.Status = notify.StatusFailure
		}
		notifyResult(ctx, dispatcher, log, runID, res)
		if err != nil {
			return []DumpResult{res}, err
		}
		log.Info().Str("target", target).Int64("bytes", n).Dur("took", res.Duration).Msg("dump finished")
		return []DumpResult{res}, nil
	}

	suffix := "-" + started.Format(timestampLayout) + typeSuffix
	pruner, canPrune := st.(prunable.Prunable)
	if cfg.Keep > 0 && !canPrune {
		log.Warn().Str("storage", st.Name()).Msg("storage does not support retention; keep ignored")
	}

	var results []DumpResult
	last := started
	for w, err := range output.WriteToDir(ctx, composer.Stream(ctx), st, suffix) {
		if err != nil {
			err = interrupted(ctx, err)
			res := DumpResult{Status: notify.StatusFailure, Duration: time.Since(last), Err: err}
			notifyResult(ctx, dispatcher, log, runID, res)
			return append(results, res), err
		}

		res := DumpResult{
			DB:       w.DB,
			Status:   notify.StatusSuccess,
			Bytes:    w.Bytes,
			Dest:     w.Location,
			Duration: time.Since(last),
		}
		last = now()
		fmt.Fprintln(stdout, w.Location)
		log.Info().Str("db", w.DB).Str("location", w.Location).Int64("bytes", w.Bytes).Msg("database dumped")

		if cfg.Keep > 0 && canPrune {
			deleted, err := ApplyRetention(ctx, pruner, expirePattern(w.DB, typeSuffix), cfg.Keep)
			res.Pruned = deleted
			for _, key := range deleted {
				log.Info().Str("db", w.DB).Str("key", key).Msg("expired")
			}
			if err != nil {
				err = interrupted(ctx, err)
				res.Status = notify.StatusFailure
				res.Err = err
				notifyResult(ctx, dispatcher, log, runID, res)
				return append(results, res), err
			}
		}

		notifyResult(ctx, dispatcher, log, runID, res)
		results = append(results, res)
	}

	log.Info().Int("files", len(results)).Dur("took", time.Since(started)).Msg("dump finished")
	return results, nil
}

func notifyResult(ctx context.Context, dispatcher *notify.Dispatcher, log zerolog.Logger, runID string, res DumpResult) {
	if dispatcher == nil {
		return
	}

	event := notify.Event{
		RunID:    runID,
		DB:       res.DB,
		Status:   res.Status,
		Bytes:    res.Bytes,
		Dest:     res.Dest,
		Duration: res.Duration.Round(time.Millisecond).String(),
	}
	if res.Err != nil {
		event.Error = res.Err.Error()
	}

	notifyCtx, cancel := notificationContext(ctx)
	defer cancel()

	if err := dispatcher.Notify(notifyCtx, event); err != nil {
		log.Warn().Err(err).Str("db", res.DB).Str("status", res.Status).Msg("notification failed")
	}
}

// notificationContext detaches from ctx cancellation so a failure caused by
// an interrupt is still reported, but keeps ctx values.
func notificationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), notificationTimeout)
	}
	return context.WithTimeout(context.WithoutCancel(ctx), notificationTimeout)
}

// interrupted reports err as a cancellation when ctx is done, so a tool that
// died from the same signal is not mistaken for a dump failure.
func interrupted(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if cerr := ctx.Err(); cerr != nil && !errors.Is(err, cerr) {
		return fmt.Errorf("%w: %w", cerr, err)
	}
	return err
}

// IsInterrupt reports whether err was caused by the run being canceled.
func IsInterrupt(err error) bool {
	return errors.Is(err, context.Canceled)
}
