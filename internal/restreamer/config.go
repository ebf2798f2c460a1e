package restreamer

import "fmt"

// Config holds the connection settings for a Restreamer engine instance.
type Config struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	UseHTTPS bool   `toml:"use_https"`
}

// BaseURL returns the root URL for the engine, without a trailing slash.
func (c Config) BaseURL() string {
	scheme := "http"
	if c.UseHTTPS {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Host, c.Port)
}
