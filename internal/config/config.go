package config

import (
	"fmt"
	"time"
)

type Config struct {
	ServerAddr     string
	AllowedOrigins []string
	// ReapInterval is how often the reaper sweeps the room store.
	ReapInterval time.Duration
	// RoomRetention is how old an empty room must be before the
	// reaper deletes it.
	RoomRetention time.Duration
}

func NewConfig(serverAddr string, allowedOrigins []string, reapInterval, roomRetention time.Duration) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if reapInterval <= 0 {
		return nil, fmt.Errorf("reap interval must be positive")
	}
	if roomRetention <= 0 {
		return nil, fmt.Errorf("room retention must be positive")
	}

	return &Config{
		ServerAddr:     serverAddr,
		AllowedOrigins: allowedOrigins,
		ReapInterval:   reapInterval,
		RoomRetention:  roomRetention,
	}, nil
}
