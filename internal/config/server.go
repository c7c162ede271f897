package config

import (
	"fmt"
	"time"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

type ServerConfig struct {
	StoreDriver string `env:"STORE_DRIVER" envDefault:"memory"`
	PostgresDSN string `env:"POSTGRES_DSN"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"chiptally.db"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`

	RoomTTLDays        int           `env:"ROOM_TTL_DAYS" envDefault:"30"`
	JanitorInterval    time.Duration `env:"JANITOR_INTERVAL" envDefault:"10m"`
	CreateRoomAttempts int           `env:"CREATE_ROOM_ATTEMPTS" envDefault:"10"`

	MCPEnabled bool `env:"MCP_ENABLED" envDefault:"true"`

	RoomPushEnabled       bool   `env:"ROOM_PUSH_ENABLED" envDefault:"false"`
	RoomPushConfigPath    string `env:"ROOM_PUSH_CONFIG_PATH"`
	RoomPushConfigJSON    string `env:"ROOM_PUSH_CONFIG_JSON"`
	RoomPushWorkers       int    `env:"ROOM_PUSH_WORKERS" envDefault:"2"`
	RoomPushRetryMax      int    `env:"ROOM_PUSH_RETRY_MAX" envDefault:"3"`
	RoomPushRetryBaseMS   int    `env:"ROOM_PUSH_RETRY_BASE_MS" envDefault:"500"`
	RoomPushPanelUpdateMS int    `env:"ROOM_PUSH_PANEL_UPDATE_MS" envDefault:"2000"`
}

func LoadServer() (ServerConfig, error) {
	return load[ServerConfig]()
}

// TestStoreConfig points store tests at a scratch Postgres; they skip when
// it is unset.
type TestStoreConfig struct {
	PostgresDSN string `env:"TEST_POSTGRES_DSN,required,notEmpty"`
}

func LoadTestStore() (TestStoreConfig, error) {
	return load[TestStoreConfig]()
}

func (c ServerConfig) RoomTTL() time.Duration {
	return time.Duration(c.RoomTTLDays) * 24 * time.Hour
}

func (c ServerConfig) validate() error {
	switch c.StoreDriver {
	case StoreMemory:
	case StorePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required when STORE_DRIVER=%s", StorePostgres)
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when STORE_DRIVER=%s", StoreSQLite)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.RoomTTLDays <= 0 {
		return fmt.Errorf("ROOM_TTL_DAYS must be positive, got %d", c.RoomTTLDays)
	}
	if c.CreateRoomAttempts <= 0 {
		return fmt.Errorf("CREATE_ROOM_ATTEMPTS must be positive, got %d", c.CreateRoomAttempts)
	}
	return nil
}
