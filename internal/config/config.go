package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	GPS    GPSConfig    `yaml:"gps"`
	LED    LEDConfig    `yaml:"led"`
	Trace  TraceConfig  `yaml:"trace"`
	Record RecordConfig `yaml:"record"`
	Mag    MagConfig    `yaml:"mag"`
	Web    WebConfig    `yaml:"web"`
}

type GPSConfig struct {
	Enable         bool          `yaml:"enable"`
	Device         string        `yaml:"device"`
	Baud           int           `yaml:"baud"`
	Protocol       string        `yaml:"protocol"`
	StatusInterval time.Duration `yaml:"status_interval"`
}

type LEDConfig struct {
	Enable bool          `yaml:"enable"`
	Pin    int           `yaml:"pin"`
	Period time.Duration `yaml:"period"`
}

type TraceConfig struct {
	// BufferKiB sizes the retained trace ring.
	BufferKiB int `yaml:"buffer_kib"`
	// Listen is the TCP address viewers attach to. Empty disables the
	// stream server.
	Listen string `yaml:"listen"`
	// Mirror is a UDP host:port receiving a copy of the flow. Optional.
	Mirror string `yaml:"mirror"`
	// Sink is an external command receiving the flow on stdin. Optional.
	Sink string `yaml:"sink"`
}

type RecordConfig struct {
	Enable bool   `yaml:"enable"`
	Path   string `yaml:"path"`
}

type MagConfig struct {
	Enable   bool          `yaml:"enable"`
	Bus      string        `yaml:"bus"`
	Addr     uint16        `yaml:"addr"`
	Interval time.Duration `yaml:"interval"`
}

type WebConfig struct {
	Listen string `yaml:"listen"`
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}

	if cfg.GPS.Baud == 0 {
		cfg.GPS.Baud = 38400
	}
	if cfg.GPS.Protocol == "" {
		cfg.GPS.Protocol = "nmea"
	}
	if cfg.GPS.Protocol != "nmea" && cfg.GPS.Protocol != "ubx" {
		return Config{}, fmt.Errorf("gps.protocol must be \"nmea\" or \"ubx\"")
	}
	if cfg.GPS.StatusInterval <= 0 {
		cfg.GPS.StatusInterval = 5 * time.Second
	}

	if cfg.LED.Enable && cfg.LED.Pin < 0 {
		return Config{}, fmt.Errorf("led.pin must be >= 0")
	}
	if cfg.LED.Period <= 0 {
		cfg.LED.Period = 500 * time.Millisecond
	}

	if cfg.Trace.BufferKiB <= 0 {
		cfg.Trace.BufferKiB = 64
	}

	if cfg.Record.Enable && cfg.Record.Path == "" {
		return Config{}, fmt.Errorf("record.path is required when record.enable is true")
	}

	if cfg.Mag.Enable && cfg.Mag.Bus == "" {
		return Config{}, fmt.Errorf("mag.bus is required when mag.enable is true")
	}
	if cfg.Mag.Interval <= 0 {
		cfg.Mag.Interval = time.Second
	}

	return cfg, nil
}
