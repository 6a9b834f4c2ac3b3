package main

import (
	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

const (
	transportHTTP  = "http"
	transportStdio = "stdio"
)

// serverConfig is read from the environment; command line flags override it.
type serverConfig struct {
	Addr         string `env:"GODUAL_ADDR" envDefault:":8080"`
	Transport    string `env:"GODUAL_TRANSPORT" envDefault:"http"`
	LogLevel     string `env:"GODUAL_LOG_LEVEL" envDefault:"info"`
	MaxBodyBytes int64  `env:"GODUAL_MAX_BODY_BYTES" envDefault:"1048576"`
}

func loadConfig(args []string) (serverConfig, error) {
	var cfg serverConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, errors.Wrap(err, "parse env")
	}

	fs := pflag.NewFlagSet("mcp-server", pflag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "http or stdio")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	fs.Int64Var(&cfg.MaxBodyBytes, "max-body-bytes", cfg.MaxBodyBytes, "request body limit for POST /tool")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	return cfg, cfg.validate()
}

func (c serverConfig) validate() error {
	switch c.Transport {
	case transportHTTP, transportStdio:
	default:
		return errors.Errorf("transport %q: want %s or %s", c.Transport, transportHTTP, transportStdio)
	}
	if c.MaxBodyBytes <= 0 {
		return errors.Errorf("max body bytes must be positive, got %d", c.MaxBodyBytes)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "log level")
	}
	return nil
}
