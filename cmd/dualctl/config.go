package main

import (
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/njchilds90/godual/expr"
	"github.com/njchilds90/godual/tool"
)

// config holds defaults that flags override. Width and Height are inches.
type config struct {
	Mode    string  `toml:"mode"`
	Tol     float64 `toml:"tol"`
	Points  int     `toml:"points"`
	Workers int     `toml:"workers"`
	Width   float64 `toml:"width"`
	Height  float64 `toml:"height"`
}

func defaultConfig() config {
	return config{
		Mode:   string(expr.Eager),
		Tol:    tool.DefaultCheckTol,
		Points: tool.DefaultPoints,
		Width:  6,
		Height: 4,
	}
}

// loadConfig reads path over the defaults. An empty path returns the
// defaults unchanged.
func loadConfig(path string) (config, error) {
	c := defaultConfig()
	if path == "" {
		return c, nil
	}
	md, err := toml.DecodeFile(path, &c)
	if err != nil {
		return c, errors.Wrapf(err, "read config %s", path)
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		return c, errors.Errorf("config %s: unknown key %s", path, undec[0])
	}
	if _, err := expr.ParseMode(c.Mode); err != nil {
		return c, errors.Wrapf(err, "config %s", path)
	}
	return c, nil
}
