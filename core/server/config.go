package server

// Config holds configuration for the HTTP server.
type Config struct {
	// Port is the port where the server will listen.
	Port string `mapstructure:"port" default:"8080"`
	// ApiKey is the secret key required to access the API. Empty disables auth.
	ApiKey string `mapstructure:"api_key" default:""`
	// ReadOnly rejects requests that would change the repository.
	ReadOnly bool `mapstructure:"read_only" default:"true"`
}

// Address returns the listen address for Port.
func (c Config) Address() string {
	if c.Port == "" {
		return ":8080"
	}
	return ":" + c.Port
}

// IsProtected reports whether requests must carry the API key.
func (c Config) IsProtected() bool {
	return c.ApiKey != ""
}
