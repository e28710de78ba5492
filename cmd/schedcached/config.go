// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"flag"
	"io/ioutil"
	"time"

	"github.com/diffeo/go-schedcache/backend"
	"github.com/diffeo/go-schedcache/cache"
	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// Config holds every daemon setting.  Each can come from the YAML
// configuration file or the command line; the command line wins.
type Config struct {
	HTTP        string        `mapstructure:"http"`
	Backend     string        `mapstructure:"backend"`
	PerDay      bool          `mapstructure:"per_day"`
	Location    string        `mapstructure:"location"`
	MaxRanges   int           `mapstructure:"max_ranges"`
	MaxAge      time.Duration `mapstructure:"max_age"`
	Sweep       string        `mapstructure:"sweep"`
	LogRequests bool          `mapstructure:"log_requests"`
	LogLevel    string        `mapstructure:"log_level"`
}

func defaultConfig() Config {
	return Config{
		HTTP:      ":5980",
		Backend:   "memory",
		PerDay:    true,
		MaxRanges: cache.DefaultMaxRanges,
		MaxAge:    15 * time.Minute,
		Sweep:     "@every 1m",
		Location:  "Local",
		LogLevel:  "info",
	}
}

// flagSet binds command-line flags to cfg, using its current values
// as the defaults.
func flagSet(cfg *Config, configFile *string) *flag.FlagSet {
	fs := flag.NewFlagSet("schedcached", flag.ContinueOnError)
	fs.StringVar(configFile, "config", *configFile,
		"global configuration YAML file")
	fs.StringVar(&cfg.HTTP, "http", cfg.HTTP,
		"[ip]:port for HTTP REST interface")
	fs.StringVar(&cfg.Backend, "backend", cfg.Backend,
		"impl[:address] of the event backend")
	fs.BoolVar(&cfg.PerDay, "per-day", cfg.PerDay,
		"cache whole days rather than individual ranges")
	fs.StringVar(&cfg.Location, "location", cfg.Location,
		"time zone that days are measured in")
	fs.IntVar(&cfg.MaxRanges, "max-ranges", cfg.MaxRanges,
		"maximum number of cached ranges")
	fs.DurationVar(&cfg.MaxAge, "max-age", cfg.MaxAge,
		"how long a loaded range may be served (0 for forever)")
	fs.StringVar(&cfg.Sweep, "sweep", cfg.Sweep,
		"cron schedule for dropping expired ranges (empty to disable)")
	fs.BoolVar(&cfg.LogRequests, "log-requests", cfg.LogRequests,
		"log all requests")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel,
		"minimum log level")
	return fs
}

// parseArgs builds the configuration from command-line arguments,
// reading the configuration file if one is named.
func parseArgs(args []string) (Config, error) {
	cfg := defaultConfig()
	var configFile string
	if err := flagSet(&cfg, &configFile).Parse(args); err != nil {
		return cfg, err
	}
	if configFile == "" {
		return cfg, nil
	}

	cfg = defaultConfig()
	if err := loadConfigYaml(configFile, &cfg); err != nil {
		return cfg, err
	}
	// Parse again so that explicit flags override the file
	err := flagSet(&cfg, &configFile).Parse(args)
	return cfg, err
}

// loadConfigYaml reads a YAML file and decodes it over cfg.
func loadConfigYaml(filename string, cfg *Config) error {
	bytes, err := ioutil.ReadFile(filename)
	if err != nil {
		return err
	}
	var raw map[string]interface{}
	if err = yaml.Unmarshal(bytes, &raw); err != nil {
		return err
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           cfg,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}

// cacheConfig converts the daemon settings into the cache's.
func (cfg Config) cacheConfig(logger logrus.FieldLogger) (cache.Config, error) {
	loc, err := time.LoadLocation(cfg.Location)
	if err != nil {
		return cache.Config{}, err
	}
	return cache.Config{
		PerDay:    cfg.PerDay,
		Location:  loc,
		MaxRanges: cfg.MaxRanges,
		MaxAge:    cfg.MaxAge,
		Logger:    logger,
	}, nil
}

// backend parses the backend setting.
func (cfg Config) backend() (backend.Backend, error) {
	var b backend.Backend
	err := b.Set(cfg.Backend)
	return b, err
}
