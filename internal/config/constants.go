package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Timeout for the startup ping of the store backend
const DBPingTimeout = 5 * time.Second

// Timeout for loading persisted state on startup
const InitializeTimeout = 10 * time.Second

const RedeemRateLimitWindow = time.Minute
