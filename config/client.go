package config

import (
	tutorapi "github.com/ambiyansyah-risyal/tutorapi"
)

// ClientOptions translates the settings into client options. Storage and
// navigation are left to the caller.
func (c *Config) ClientOptions() []tutorapi.Option {
	opts := []tutorapi.Option{
		tutorapi.WithTimeout(c.Timeout),
		tutorapi.WithMaxRetries(c.MaxRetries),
		tutorapi.WithCacheTTL(c.CacheTTL),
	}
	if strategy, ok := tutorapi.ParseBackoffStrategy(c.Backoff); ok {
		opts = append(opts, tutorapi.WithBackoffStrategy(strategy))
	}
	if c.Debug {
		opts = append(opts, tutorapi.WithDebug())
	}
	return opts
}
