package config

// ControllerConfig holds configuration for the Huma control API.
type ControllerConfig struct {
	*Config

	BindAddr         string
	PortCandidates   []string
	PortAutoFallback bool
}

// LoadController reads controller configuration from environment variables.
func LoadController() (*ControllerConfig, error) {
	base, err := Load()
	if err != nil {
		return nil, err
	}
	cfg := &ControllerConfig{
		Config:           base,
		BindAddr:         getEnvOrDefault("DOCSMOKE_BIND_ADDR", "127.0.0.1:8190"),
		PortCandidates:   getEnvListOrDefault("DOCSMOKE_PORT_CANDIDATES", []string{"127.0.0.1:8191", "127.0.0.1:8192", "127.0.0.1:8193"}),
		PortAutoFallback: getEnvBoolOrDefault("DOCSMOKE_PORT_AUTO_FALLBACK", true),
	}
	if cfg.LogFile == "logs/docsmoke.log" {
		cfg.LogFile = getEnvOrDefault("DOCSMOKE_CONTROLLER_LOG_FILE", "logs/docsmoke_controller.log")
	}
	return cfg, nil
}
