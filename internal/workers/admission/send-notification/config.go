// internal/workers/admission/send-notification/config.go
package sendnotification

import "time"

type Config struct {
	BatchSize int
	Timeout   time.Duration
}

func LoadConfig() *Config {
	return &Config{
		BatchSize: 100,
		Timeout:   60 * time.Second,
	}
}
