package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dev-tams/mydumpkit/internal/app"
	"github.com/dev-tams/mydumpkit/internal/config"
	"github.com/dev-tams/mydumpkit/internal/logging"
	"github.com/urfave/cli/v2"
)

// flagKeys maps command line flags onto config keys. Only flags given
// explicitly override the config file and environment.
var flagKeys = map[string]string{
	"keep":           "keep",
	"username":       "username",
	"password":       "password",
	"host":           "host",
	"port":           "port",
	"compress":       "compress",
	"db-pattern":     "db_pattern",
	"db-exclude":     "db_exclude",
	"mysqldump-opts": "dump_opts",
	"out-file":       "out_file",
	"out-dir":        "out_dir",
	"chunk-size":     "chunk_size",
	"debug":          "debug",
	"log-format":     "log_format",
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cliApp := &cli.App{
		Name:      "mydumpkit",
		Usage:     "dump MySQL databases with mysqldump, compressed and rotated",
		UsageText: "mydumpkit [options]",
		Flags:     dumpFlags(),
		Action: func(c *cli.Context) error {
			cfg, err := loadValidatedConfig(c)
			if err != nil {
				return err
			}
			logging.Init(cfg.Debug, cfg.LogFormat)

			return app.RunDump(c.Context, cfg)
		},
	}

	if err := cliApp.RunContext(ctx, os.Args); err != nil {
		if app.IsInterrupt(err) {
			fmt.Fprintln(os.Stderr, "user interrupt")
		} else {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		}
		os.Exit(1)
	}
}

func dumpFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "path to config yaml (optional)",
		},
		&cli.IntFlag{
			Name:    "keep",
			Aliases: []string{"k"},
			Value:   -1,
			Usage:   "number of dumps to keep per database in --out-dir; <= 0 keeps everything",
		},
		&cli.StringFlag{
			Name:    "username",
			Aliases: []string{"u"},
			Usage:   "mysql user (default: $USER)",
		},
		&cli.StringFlag{
			Name:    "password",
			Aliases: []string{"p"},
			Usage:   "mysql password",
		},
		&cli.StringFlag{
			Name:  "host",
			Value: "localhost",
			Usage: "mysql host",
		},
		&cli.IntFlag{
			Name:  "port",
			Usage: "mysql port (0 leaves the client default)",
		},
		&cli.StringFlag{
			Name:    "compress",
			Aliases: []string{"z"},
			Value:   "none",
			Usage:   "compression: none, bz2, gzip or zstd",
		},
		&cli.StringFlag{
			Name:    "db-pattern",
			Aliases: []string{"d"},
			Usage:   "only dump databases matching this regexp; replaces the default system schema exclusion",
		},
		&cli.StringFlag{
			Name:  "db-exclude",
			Usage: "skip databases matching this regexp (default without any filter: " + config.DefaultExcludePattern + ")",
		},
		&cli.StringFlag{
			Name:    "mysqldump-opts",
			Aliases: []string{"dump-opts"},
			Usage:   "comma separated mysqldump options, e.g. single-transaction,max_allowed_packet=64M",
		},
		&cli.StringFlag{
			Name:    "out-file",
			Aliases: []string{"o"},
			Usage:   "write every database to one file; - is stdout",
		},
		&cli.StringFlag{
			Name:  "out-dir",
			Usage: "write one timestamped file per database to a directory or s3://bucket/prefix",
		},
		&cli.IntFlag{
			Name:  "chunk-size",
			Value: config.DefaultChunkSize,
			Usage: "bytes read from mysqldump per chunk",
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "enable debug logging",
		},
		&cli.StringFlag{
			Name:  "log-format",
			Value: "auto",
			Usage: "log format: auto, json or console",
		},
	}
}

func overrides(c *cli.Context) map[string]any {
	out := make(map[string]any)
	for flag, key := range flagKeys {
		if c.IsSet(flag) {
			out[key] = c.Value(flag)
		}
	}
	return out
}

func loadValidatedConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.String("config"), overrides(c))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
