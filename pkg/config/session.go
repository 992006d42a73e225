package config

import (
	"fmt"
	"strings"
)

const (
	SessionStoreMemory = "memory"
	SessionStoreFile   = "file"
	SessionStoreRedis  = "redis"
)

// SessionConfig selects where the access token and identity are persisted between runs.
type SessionConfig struct {
	Store string `koanf:"store"`
	File  string `koanf:"file"`
	Redis struct {
		Addr     string `koanf:"addr"`
		Password string `koanf:"password"`
		DB       int    `koanf:"db"`
		Key      string `koanf:"key"`
	} `koanf:"redis"`
}

// String returns a string representation of the session configuration.
func (c *SessionConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Session ---\n")
	b.WriteString(fmt.Sprintf("  store: %s\n", c.Store))
	b.WriteString(fmt.Sprintf("  file: %s\n", c.File))
	b.WriteString(fmt.Sprintf("  redis.addr: %s\n", c.Redis.Addr))
	b.WriteString(fmt.Sprintf("  redis.db: %d\n", c.Redis.DB))
	b.WriteString(fmt.Sprintf("  redis.key: %s\n", c.Redis.Key))
	return b.String()
}

func (c *SessionConfig) Validate() error {
	switch c.Store {
	case "", SessionStoreMemory:
		c.Store = SessionStoreMemory
	case SessionStoreFile:
		if c.File == "" {
			return fmt.Errorf("session file store requires session.file")
		}
	case SessionStoreRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("session redis store requires session.redis.addr")
		}
		if c.Redis.Key == "" {
			c.Redis.Key = "storefront:session"
		}
	default:
		return fmt.Errorf("unknown session store: %q", c.Store)
	}
	return nil
}
