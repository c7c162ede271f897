package config

import "time"

type ClientConfig struct {
	ServerURL string        `env:"CHIPTALLY_SERVER" envDefault:"http://localhost:8080"`
	Timeout   time.Duration `env:"CHIPTALLY_TIMEOUT" envDefault:"10s"`
}

func LoadClient() (ClientConfig, error) {
	return load[ClientConfig]()
}
