package core

import (
	"fmt"
	"strings"
	"time"
)

type BufferConfig struct {
	IdleThresholdSeconds int `koanf:"idle_threshold_seconds" mapstructure:"idle_threshold_seconds"`
}

func (c BufferConfig) IdleThreshold() time.Duration {
	return time.Duration(c.IdleThresholdSeconds) * time.Second
}

type HandoffConfig struct {
	TimeoutMinutes int `koanf:"timeout_minutes" mapstructure:"timeout_minutes"`
}

func (c HandoffConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMinutes) * time.Minute
}

type WorkerConfig struct {
	TickSeconds  int `koanf:"tick_seconds" mapstructure:"tick_seconds"`
	SweepSeconds int `koanf:"sweep_seconds" mapstructure:"sweep_seconds"`
}

func (c WorkerConfig) Tick() time.Duration {
	return time.Duration(c.TickSeconds) * time.Second
}

func (c WorkerConfig) SweepEvery() time.Duration {
	return time.Duration(c.SweepSeconds) * time.Second
}

type LimitsConfig struct {
	// DailyMessages caps buffered-responder turns per customer per day.
	// Zero disables the limit.
	DailyMessages int `koanf:"daily_messages" mapstructure:"daily_messages"`
}

type Config struct {
	ServiceName      string        `koanf:"service_name" mapstructure:"service_name"`
	Operators        []string      `koanf:"operators" mapstructure:"operators"`
	EscalationPhrase string        `koanf:"escalation_phrase" mapstructure:"escalation_phrase"`
	Buffer           BufferConfig  `koanf:"buffer" mapstructure:"buffer"`
	Handoff          HandoffConfig `koanf:"handoff" mapstructure:"handoff"`
	Worker           WorkerConfig  `koanf:"worker" mapstructure:"worker"`
	Limits           LimitsConfig  `koanf:"limits" mapstructure:"limits"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:      "relay",
		EscalationPhrase: "Let me get a team member to help you with that.",
		Buffer:           BufferConfig{IdleThresholdSeconds: 30},
		Handoff:          HandoffConfig{TimeoutMinutes: 30},
		Worker:           WorkerConfig{TickSeconds: 1, SweepSeconds: 60},
		Limits:           LimitsConfig{},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Buffer.IdleThresholdSeconds <= 0 {
		return fmt.Errorf("core: buffer idle threshold must be positive")
	}
	if c.Handoff.TimeoutMinutes <= 0 {
		return fmt.Errorf("core: handoff timeout must be positive")
	}
	if c.Worker.TickSeconds <= 0 {
		return fmt.Errorf("core: worker tick must be positive")
	}
	if c.Worker.SweepSeconds < c.Worker.TickSeconds {
		return fmt.Errorf("core: sweep period must not be shorter than the worker tick")
	}
	if c.Limits.DailyMessages < 0 {
		return fmt.Errorf("core: daily message limit must not be negative")
	}
	return nil
}
