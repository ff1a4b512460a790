// Process configuration

package main

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the host-interface configuration values the core consumes,
// per the external-interfaces contract: bind address/port, the initial
// per-session read-buffer capacity, the server's advertised chunk size,
// and the GOP-cache flag (parsed and stored, never consulted downstream).
type Config struct {
	Host           string
	Port           int
	ReadBufferSize int
	ChunkSize      uint32
	GopCache       bool
	AdminAddr      string // optional; empty disables the introspection endpoint
}

// LoadConfig loads an optional .env file (if present) into the process
// environment, then reads the values below from it. Missing values fall
// back to the RTMP defaults.
func LoadConfig() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		LogWarning("could not load .env file: " + err.Error())
	}

	cfg := Config{
		Host:           getEnvString("RTMP_HOST", ""),
		Port:           getEnvInt("RTMP_PORT", 1935),
		ReadBufferSize: getEnvInt("RTMP_READ_BUFFER_SIZE", 4096),
		ChunkSize:      uint32(getEnvInt("RTMP_CHUNK_SIZE", RTMP_CHUNK_SIZE)),
		GopCache:       getEnvBool("RTMP_GOP_CACHE", false),
		AdminAddr:      getEnvString("RTMP_ADMIN_ADDR", ""),
	}

	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = RTMP_CHUNK_SIZE
	}

	return cfg
}

func getEnvString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
