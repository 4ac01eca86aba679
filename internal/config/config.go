package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration values. Each field corresponds
// to an environment variable. Strings for identifiers and secrets, ints
// for durations and costs.
type Config struct {
	Env          string // application environment (e.g. "dev", "prod")
	Port         string // HTTP port to listen on
	DBUser       string // database username
	DBPass       string // database password (optional)
	DBHost       string // database host address
	DBPort       string // database port number
	DBName       string // database name
	JWTSecret    string // secret used to sign JWTs
	AccessTTLMin int    // access token time-to-live in minutes
	BcryptCost   int    // bcrypt cost for password hashing

	SlotDurationMin  int // length of one reservation slot in minutes
	CleanupBufferMin int // turnaround buffer between bookings in minutes
	HoldTTLMin       int // lifetime of an unconfirmed hold in minutes
	MaxHoldLimit     int // live holds allowed per user at once
	SweepIntervalSec int // background expiry sweep period in seconds
}

// Load reads configuration from environment variables. Required
// variables are enforced by must(); missing values exit with a fatal
// log message. The reservation policy knobs fall back to the product
// defaults so a minimal .env still boots.
func Load() Config {
	return Config{
		Env:          must("APP_ENV"),
		Port:         must("APP_PORT"),
		DBUser:       must("DB_USER"),
		DBPass:       os.Getenv("DB_PASS"), // empty allowed
		DBHost:       must("DB_HOST"),
		DBPort:       must("DB_PORT"),
		DBName:       must("DB_NAME"),
		JWTSecret:    must("JWT_SECRET"),
		AccessTTLMin: mustInt("ACCESS_TOKEN_TTL_MIN"),
		BcryptCost:   mustInt("BCRYPT_COST"),

		SlotDurationMin:  envInt("SLOT_DURATION_MIN", 60),
		CleanupBufferMin: envInt("CLEANUP_BUFFER_MIN", 15),
		HoldTTLMin:       envInt("HOLD_TTL_MIN", 5),
		MaxHoldLimit:     envInt("MAX_HOLD_LIMIT", 3),
		SweepIntervalSec: envInt("SWEEP_INTERVAL_SEC", 60),
	}
}

// SlotDuration returns the slot length as a duration.
func (c Config) SlotDuration() time.Duration {
	return time.Duration(c.SlotDurationMin) * time.Minute
}

// CleanupBuffer returns the turnaround buffer as a duration.
func (c Config) CleanupBuffer() time.Duration {
	return time.Duration(c.CleanupBufferMin) * time.Minute
}

// HoldTTL returns the hold lifetime as a duration.
func (c Config) HoldTTL() time.Duration {
	return time.Duration(c.HoldTTLMin) * time.Minute
}

// SweepInterval returns the expiry sweep period as a duration.
func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSec) * time.Second
}

// must retrieves a required environment variable. If the variable is
// unset or empty the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the value to an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
