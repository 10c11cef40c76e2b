package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const (
	EnvPrefix = "MYDUMPKIT"

	// StdoutTarget as out_file writes the combined stream to standard output.
	StdoutTarget = "-"

	// DefaultExcludePattern applies only when neither db_pattern nor
	// db_exclude is given.
	DefaultExcludePattern = `^(information_schema|performance_schema|sys)$`
	DefaultChunkSize      = 1024 * 1024
)

type Config struct {
	Keep      int    `mapstructure:"keep"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Compress  string `mapstructure:"compress"`
	DBPattern string `mapstructure:"db_pattern"`
	DBExclude string `mapstructure:"db_exclude"`
	DumpOpts  string `mapstructure:"dump_opts"`
	OutFile   string `mapstructure:"out_file"`
	OutDir    string `mapstructure:"out_dir"`
	ChunkSize int    `mapstructure:"chunk_size"`
	Debug     bool   `mapstructure:"debug"`
	LogFormat string `mapstructure:"log_format"`

	S3            S3Config             `mapstructure:"s3"`
	Notifications []NotificationConfig `mapstructure:"notifications"`
}

type ConnectionConfig struct {
	Host     string
	Port     int
	User     string
	Password string
}

type S3Config struct {
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	PathStyle bool   `mapstructure:"path_style"`
}

type NotificationConfig struct {
	Type   string              `mapstructure:"type"`
	On     []string            `mapstructure:"on"`
	Config NotificationDetails `mapstructure:"config"`
}

type NotificationDetails struct {
	SMTPHost string            `mapstructure:"smtp_host"`
	SMTPPort int               `mapstructure:"smtp_port"`
	From     string            `mapstructure:"from"`
	To       string            `mapstructure:"to"`
	Username string            `mapstructure:"username"`
	Password string            `mapstructure:"password"`
	URL      string            `mapstructure:"url"`
	Headers  map[string]string `mapstructure:"headers"`
}

// Connection returns the parameters written to the [client] option group.
func (c *Config) Connection() ConnectionConfig {
	return ConnectionConfig{
		Host:     c.Host,
		Port:     c.Port,
		User:     c.Username,
		Password: c.Password,
	}
}

// SingleStream reports whether all databases go into one combined output.
func (c *Config) SingleStream() bool {
	return c.OutDir == ""
}

// LoadConfig resolves settings with increasing precedence: defaults, the
// optional config file at path, MYDUMPKIT_* environment variables, then
// overrides (command-line flags that were explicitly set).
func LoadConfig(path string, overrides map[string]any) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	for k, val := range overrides {
		v.Set(k, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ModifyConfig(&cfg)

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("keep", -1)
	v.SetDefault("username", os.Getenv("USER"))
	v.SetDefault("password", "")
	v.SetDefault("host", "localhost")
	v.SetDefault("port", 0)
	v.SetDefault("compress", "none")
	v.SetDefault("db_pattern", "")
	v.SetDefault("db_exclude", "")
	v.SetDefault("dump_opts", "")
	v.SetDefault("out_file", "")
	v.SetDefault("out_dir", "")
	v.SetDefault("chunk_size", DefaultChunkSize)
	v.SetDefault("debug", false)
	v.SetDefault("log_format", "auto")

	v.SetDefault("s3.region", "")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")
	v.SetDefault("s3.path_style", false)
}

// ModifyConfig expands ${VAR} references in values that commonly come from a
// config file and carry secrets.
func ModifyConfig(cfg *Config) {
	cfg.Username = os.ExpandEnv(cfg.Username)
	cfg.Password = os.ExpandEnv(cfg.Password)
	cfg.Host = os.ExpandEnv(cfg.Host)
	cfg.OutFile = os.ExpandEnv(cfg.OutFile)
	cfg.OutDir = os.ExpandEnv(cfg.OutDir)

	cfg.S3.Region = os.ExpandEnv(cfg.S3.Region)
	cfg.S3.Endpoint = os.ExpandEnv(cfg.S3.Endpoint)
	cfg.S3.AccessKey = os.ExpandEnv(cfg.S3.AccessKey)
	cfg.S3.SecretKey = os.ExpandEnv(cfg.S3.SecretKey)

	for i := range cfg.Notifications {
		nt := &cfg.Notifications[i]
		nt.Type = os.ExpandEnv(nt.Type)
		for j := range nt.On {
			nt.On[j] = os.ExpandEnv(nt.On[j])
		}
		nt.Config.SMTPHost = os.ExpandEnv(nt.Config.SMTPHost)
		nt.Config.From = os.ExpandEnv(nt.Config.From)
		nt.Config.To = os.ExpandEnv(nt.Config.To)
		nt.Config.Username = os.ExpandEnv(nt.Config.Username)
		nt.Config.Password = os.ExpandEnv(nt.Config.Password)
		nt.Config.URL = os.ExpandEnv(nt.Config.URL)
		for k, v := range nt.Config.Headers {
			nt.Config.Headers[k] = os.ExpandEnv(v)
		}
	}
}
