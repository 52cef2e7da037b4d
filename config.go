package indicatorpipe

import "time"

type Config struct {
	Timeout  time.Duration
	FailFast bool
}

func DefaultConfig() Config {
	return Config{
		Timeout:  5 * time.Minute,
		FailFast: false,
	}
}
