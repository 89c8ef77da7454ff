// internal/workers/admission/shortlist-applicants/config.go
package shortlistapplicants

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 60 * time.Second,
	}
}
