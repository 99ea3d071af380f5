// Package config loads the smsctl daemon configuration from TOML.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/smsctl/internal/bus"
	"github.com/danmuck/smsctl/internal/dispatch"
)

var ErrInvalidConfig = errors.New("config: invalid")

type Config struct {
	Name     string
	Bus      bus.Config
	Store    StoreConfig
	Prefs    PrefsConfig
	Admin    AdminConfig
	Dispatch DispatchConfig
	Strings  StringsConfig
	Alerts   AlertsConfig
	Kafka    KafkaConfig
}

type StoreConfig struct {
	Path string
}

type PrefsConfig struct {
	Path string
}

type AdminConfig struct {
	Listen      string
	CorsOrigins []string
	// History bounds the alert and captcha lists kept for the admin API.
	History int
}

type DispatchConfig struct {
	Concurrency int
}

type StringsConfig struct {
	SendFailed string
}

// AlertsConfig optionally runs a host notifier for every failure alert.
// The alert title and body are appended to Command.
type AlertsConfig struct {
	Command []string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Enabled reports whether the Kafka bridge should run.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

func Default() Config {
	return Config{
		Name:  "smsctl",
		Bus:   bus.DefaultConfig(),
		Store: StoreConfig{Path: "local/smsctl/messages.db"},
		Prefs: PrefsConfig{Path: "local/smsctl/prefs.toml"},
		Admin: AdminConfig{
			Listen:      "127.0.0.1:7480",
			CorsOrigins: []string{"http://localhost:3000"},
			History:     64,
		},
		Dispatch: DispatchConfig{Concurrency: dispatch.DefaultConcurrency},
		Strings:  StringsConfig{SendFailed: dispatch.DefaultSendFailed},
		Kafka:    KafkaConfig{Topic: bus.DefaultKafkaTopic},
	}
}

type fileConfig struct {
	Name string `toml:"name"`
	Bus  struct {
		Listen           string `toml:"listen"`
		Token            string `toml:"token"`
		SubscriberBuffer int    `toml:"subscriber_buffer"`
		PeerBuffer       int    `toml:"peer_buffer"`
		WriteTimeout     string `toml:"write_timeout"`
	} `toml:"bus"`
	Store struct {
		Path string `toml:"path"`
	} `toml:"store"`
	Prefs struct {
		Path string `toml:"path"`
	} `toml:"prefs"`
	Admin struct {
		Listen      string   `toml:"listen"`
		CorsOrigins []string `toml:"cors_origins"`
		History     int      `toml:"history"`
	} `toml:"admin"`
	Dispatch struct {
		Concurrency int `toml:"concurrency"`
	} `toml:"dispatch"`
	Strings struct {
		SendFailed string `toml:"send_failed"`
	} `toml:"strings"`
	Alerts struct {
		Command []string `toml:"command"`
	} `toml:"alerts"`
	Kafka struct {
		Brokers []string `toml:"brokers"`
		Topic   string   `toml:"topic"`
	} `toml:"kafka"`
}

// Load overlays the file at path onto Default and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load smsctl config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%w: unknown key %s", ErrInvalidConfig, undecoded[0])
	}

	if meta.IsDefined("name") {
		cfg.Name = strings.TrimSpace(raw.Name)
	}
	if meta.IsDefined("bus", "listen") {
		cfg.Bus.Listen = strings.TrimSpace(raw.Bus.Listen)
	}
	if meta.IsDefined("bus", "token") {
		cfg.Bus.Token = strings.TrimSpace(raw.Bus.Token)
	}
	if meta.IsDefined("bus", "subscriber_buffer") {
		cfg.Bus.SubscriberBuffer = raw.Bus.SubscriberBuffer
	}
	if meta.IsDefined("bus", "peer_buffer") {
		cfg.Bus.PeerBuffer = raw.Bus.PeerBuffer
	}
	if meta.IsDefined("bus", "write_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Bus.WriteTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse bus.write_timeout: %w", err)
		}
		cfg.Bus.WriteTimeout = d
	}
	if meta.IsDefined("store", "path") {
		cfg.Store.Path = strings.TrimSpace(raw.Store.Path)
	}
	if meta.IsDefined("prefs", "path") {
		cfg.Prefs.Path = strings.TrimSpace(raw.Prefs.Path)
	}
	if meta.IsDefined("admin", "listen") {
		cfg.Admin.Listen = strings.TrimSpace(raw.Admin.Listen)
	}
	if meta.IsDefined("admin", "cors_origins") {
		cfg.Admin.CorsOrigins = normalizeList(raw.Admin.CorsOrigins)
	}
	if meta.IsDefined("admin", "history") {
		cfg.Admin.History = raw.Admin.History
	}
	if meta.IsDefined("dispatch", "concurrency") {
		cfg.Dispatch.Concurrency = raw.Dispatch.Concurrency
	}
	if meta.IsDefined("strings", "send_failed") {
		cfg.Strings.SendFailed = strings.TrimSpace(raw.Strings.SendFailed)
	}
	if meta.IsDefined("alerts", "command") {
		cfg.Alerts.Command = normalizeList(raw.Alerts.Command)
	}
	if meta.IsDefined("kafka", "brokers") {
		cfg.Kafka.Brokers = normalizeList(raw.Kafka.Brokers)
	}
	if meta.IsDefined("kafka", "topic") {
		cfg.Kafka.Topic = strings.TrimSpace(raw.Kafka.Topic)
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func Validate(cfg Config) error {
	switch {
	case cfg.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidConfig)
	case cfg.Bus.Listen == "":
		return fmt.Errorf("%w: bus.listen is required", ErrInvalidConfig)
	case cfg.Admin.Listen == "":
		return fmt.Errorf("%w: admin.listen is required", ErrInvalidConfig)
	case cfg.Store.Path == "":
		return fmt.Errorf("%w: store.path is required", ErrInvalidConfig)
	case cfg.Dispatch.Concurrency < 1:
		return fmt.Errorf("%w: dispatch.concurrency must be at least 1", ErrInvalidConfig)
	case cfg.Bus.SubscriberBuffer < 1:
		return fmt.Errorf("%w: bus.subscriber_buffer must be at least 1", ErrInvalidConfig)
	case cfg.Kafka.Enabled() && cfg.Kafka.Topic == "":
		return fmt.Errorf("%w: kafka.topic is required when brokers are set", ErrInvalidConfig)
	}
	return nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
