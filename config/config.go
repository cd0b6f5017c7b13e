package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port          int
	LogPath       string
	ControlSocket string
	WriteTimeout  int // seconds
}

func Load() *Config {
	cfg := &Config{
		Port:          4455,
		LogPath:       "messages.log",
		ControlSocket: "/tmp/relaychat.sock",
		WriteTimeout:  30,
	}

	if portStr := os.Getenv("RELAY_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			cfg.Port = port
		}
	}

	if logPath := os.Getenv("RELAY_LOG_PATH"); logPath != "" {
		cfg.LogPath = logPath
	}

	if socket := os.Getenv("RELAY_CONTROL_SOCKET"); socket != "" {
		cfg.ControlSocket = socket
	}

	if timeoutStr := os.Getenv("RELAY_WRITE_TIMEOUT"); timeoutStr != "" {
		if timeout, err := strconv.Atoi(timeoutStr); err == nil {
			cfg.WriteTimeout = timeout
		}
	}

	return cfg
}
