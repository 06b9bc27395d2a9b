package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultFile is the configuration file looked up when none is given.
const DefaultFile = ".protoforge.yaml"

// Config holds all application configuration.
type Config struct {
	Toolchain ToolchainConfig `mapstructure:"toolchain"`
	Build     BuildConfig     `mapstructure:"build"`
	Suffixes  SuffixConfig    `mapstructure:"suffixes"`
	Log       LogConfig       `mapstructure:"log"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Graph     GraphConfig     `mapstructure:"graph"`
	Worker    WorkerConfig    `mapstructure:"worker"`
}

type ToolchainConfig struct {
	Package   string `mapstructure:"package"`
	Program   string `mapstructure:"program"`
	PkgConfig string `mapstructure:"pkg_config"`
	// Cache enables reuse of the probe result saved by `configure`.
	Cache bool `mapstructure:"cache"`
}

type BuildConfig struct {
	File      string        `mapstructure:"file"`
	SrcRoot   string        `mapstructure:"src_root"`
	OutDir    string        `mapstructure:"out_dir"`
	KeepGoing bool          `mapstructure:"keep_going"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// CacheDirName is the directory inside the output tree holding the
// cached toolchain location.
const CacheDirName = ".protoforge"

// SuffixConfig overrides the names of generated files.
type SuffixConfig struct {
	Source string `mapstructure:"source"`
	Header string `mapstructure:"header"`
	Script string `mapstructure:"script"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	Endpoint   string  `mapstructure:"endpoint"`
	SampleRate float64 `mapstructure:"sample_rate"`
}

type TemporalConfig struct {
	Host      string `mapstructure:"host"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type GraphConfig struct {
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type WorkerConfig struct {
	HealthAddr string `mapstructure:"health_addr"`
}

var defaults = map[string]any{
	"toolchain.package":    "protobuf",
	"toolchain.program":    "protoc",
	"toolchain.pkg_config": "pkg-config",
	"toolchain.cache":      true,
	"build.file":           "protobuild.yaml",
	"build.src_root":       ".",
	"build.out_dir":        "build",
	"build.keep_going":     false,
	"build.timeout":        "5m",
	"suffixes.source":      ".pb.cc",
	"suffixes.header":      ".pb.h",
	"suffixes.script":      "_pb2.py",
	"log.level":            "info",
	"log.format":           "text",
	"tracing.endpoint":     "",
	"tracing.sample_rate":  1.0,
	"temporal.host":        "localhost:7233",
	"temporal.namespace":   "default",
	"temporal.task_queue":  "protoforge",
	"graph.uri":            "",
	"graph.username":       "neo4j",
	"graph.password":       "",
	"worker.health_addr":   ":8081",
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	s := c.Suffixes
	if s.Source == s.Header || s.Source == s.Script || s.Header == s.Script {
		warnings = append(warnings, fmt.Sprintf("suffixes %q, %q and %q are not distinct", s.Source, s.Header, s.Script))
	}

	if c.Build.Timeout < 0 {
		warnings = append(warnings, fmt.Sprintf("build timeout %s is negative", c.Build.Timeout))
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		warnings = append(warnings, fmt.Sprintf("tracing sample_rate %.2f is outside [0.0, 1.0]", c.Tracing.SampleRate))
	}

	if c.Graph.URI != "" && c.Graph.Password == "" {
		warnings = append(warnings, "graph uri is set but password is empty")
	}

	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		warnings = append(warnings, fmt.Sprintf("unknown log format %q, using text", c.Log.Format))
	}

	return warnings
}

// Load reads configuration from file and environment. Environment
// variables use the PROTOFORGE_ prefix (PROTOFORGE_BUILD_OUT_DIR). A
// missing file at the default path is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix("PROTOFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missing := errors.Is(err, fs.ErrNotExist) || errors.As(err, &notFound)
		if explicit || !missing {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Validate configuration and print warnings
	if warnings := cfg.Validate(); len(warnings) > 0 {
		for _, warning := range warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}
	}

	return &cfg, nil
}
