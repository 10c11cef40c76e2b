package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/dev-tams/mydumpkit/internal/compression"
)

var ErrConflictingOutputTargets = errors.New("cannot have both out_file and out_dir")

func (c *Config) Validate() error {
	if c.OutFile != "" && c.OutDir != "" {
		return ErrConflictingOutputTargets
	}
	if _, err := compression.NewFactory(c.Compress); err != nil {
		return err
	}
	if _, _, err := c.Patterns(); err != nil {
		return err
	}
	if _, err := c.DumpOptions(); err != nil {
		return err
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be > 0, got %d", c.ChunkSize)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "auto", "json", "console":
	default:
		return fmt.Errorf("log_format must be auto, json or console, got %q", c.LogFormat)
	}
	for i, n := range c.Notifications {
		if strings.TrimSpace(n.Type) == "" {
			return fmt.Errorf("notifications[%d].type is required", i)
		}
	}
	return nil
}

// Target returns the single output path, defaulting to stdout when neither
// out_file nor out_dir is set. It returns "" in directory mode.
func (c *Config) Target() string {
	if c.OutDir != "" {
		return ""
	}
	if c.OutFile == "" {
		return StdoutTarget
	}
	return c.OutFile
}

// Patterns compiles the database include and exclude filters. An empty
// pattern yields a nil regexp, meaning "no constraint". With no filter
// configured at all, the system schemas are excluded.
func (c *Config) Patterns() (include, exclude *regexp.Regexp, err error) {
	if c.DBPattern == "" && c.DBExclude == "" {
		return nil, regexp.MustCompile(DefaultExcludePattern), nil
	}
	if c.DBPattern != "" {
		include, err = regexp.Compile(c.DBPattern)
		if err != nil {
			return nil, nil, fmt.Errorf("db_pattern: %w", err)
		}
	}
	if c.DBExclude != "" {
		exclude, err = regexp.Compile(c.DBExclude)
		if err != nil {
			return nil, nil, fmt.Errorf("db_exclude: %w", err)
		}
	}
	return include, exclude, nil
}

func (c *Config) DumpOptions() ([]DumpOption, error) {
	opts, err := ParseDumpOptions(c.DumpOpts)
	if err != nil {
		return nil, fmt.Errorf("dump_opts: %w", err)
	}
	return opts, nil
}
