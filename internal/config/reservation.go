package config

import "time"

// ReservationConfig holds the tunables of the reservation engine. The TTLs
// are product decisions, not derived from any invariant, so they are
// configuration rather than constants: HoldTTL bounds how long a buyer may
// sit in checkout, LockTTL bounds how long a crashed holder can block an
// event, and the retry pair controls how hard callers contend for a hot
// event before being told to back off.
type ReservationConfig struct {
	HoldTTL        time.Duration // lifetime of a session's hold
	LockTTL        time.Duration // lifetime of the per-event lock key
	LockMaxRetries int           // lock acquisition retries after the first attempt
	LockBaseDelay  time.Duration // base delay for exponential backoff between retries
}

// LoadReservationConfig reads environment variables to build a
// ReservationConfig. Defaults are used when variables are not set.
func LoadReservationConfig() ReservationConfig {
	cfg := ReservationConfig{
		HoldTTL:        envDur("RESERVATION_HOLD_TTL", 20*time.Minute),
		LockTTL:        envDur("RESERVATION_LOCK_TTL", 30*time.Second),
		LockMaxRetries: envInt("RESERVATION_LOCK_MAX_RETRIES", 4),
		LockBaseDelay:  envDur("RESERVATION_LOCK_BASE_DELAY", 100*time.Millisecond),
	}
	if cfg.HoldTTL <= 0 {
		cfg.HoldTTL = 20 * time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	if cfg.LockMaxRetries < 0 {
		cfg.LockMaxRetries = 0
	}
	if cfg.LockBaseDelay <= 0 {
		cfg.LockBaseDelay = 100 * time.Millisecond
	}
	return cfg
}
