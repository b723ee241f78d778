package config

import (
	_ "embed"
)

//go:embed param_default.yaml
var ParamDefaultFile []byte

type ServerParam struct {
	// StationsFolder overrides the default <configDir>/stations layout.
	StationsFolder string     `yaml:"stations_folder,omitempty"`
	AdcSpan        int        `yaml:"adc_span"`
	TickMillis     int64      `yaml:"tick_millis"`
	LoadRetryLimit int        `yaml:"load_retry_limit"`
	InputParam     InputParam `yaml:"input"`
	ApiParam       ApiParam   `yaml:"api"`
}

type InputParam struct {
	I2CBus        string `yaml:"i2c_bus"`
	BandSwitchPin string `yaml:"band_switch_pin"`
	Deadband      int    `yaml:"deadband"`
}

type ApiParam struct {
	Enabled bool   `yaml:"enabled"`
	SslPort int64  `yaml:"ssl_port"`
	ApiKey  string `yaml:"api_key"`
}
