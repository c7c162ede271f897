package config

import "github.com/caarlos0/env/v11"

type validator interface {
	validate() error
}

// load parses T from the environment and runs its validate method, if any.
func load[T any]() (T, error) {
	var cfg T
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	if v, ok := any(cfg).(validator); ok {
		return cfg, v.validate()
	}
	return cfg, nil
}
