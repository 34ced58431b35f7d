package synchronizer

import "time"

// Config holds the tick loop configuration.
// Designed for environment-based configuration with core/config.
type Config struct {
	TickInterval    time.Duration `env:"SYNC_TICK_INTERVAL" envDefault:"16ms"`
	ShutdownTimeout time.Duration `env:"SYNC_SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

// DefaultConfig returns roughly one tick per frame at 60 FPS.
func DefaultConfig() Config {
	return Config{
		TickInterval:    16 * time.Millisecond,
		ShutdownTimeout: 5 * time.Second,
	}
}
