package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/smsctl/internal/dispatch"
	"github.com/danmuck/smsctl/internal/testutil/testlog"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "smsctl.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsAndOverrides(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, `
name = "smsctl-test"

[bus]
token = " secret "
write_timeout = "3s"

[admin]
cors_origins = [" http://a ", ""]

[dispatch]
concurrency = 2

[strings]
send_failed = "Senden fehlgeschlagen:"

[alerts]
command = ["notify-send", "--urgency=critical"]

[kafka]
brokers = ["localhost:9092"]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Name != "smsctl-test" || cfg.Bus.Token != "secret" || cfg.Bus.WriteTimeout != 3*time.Second {
		t.Fatalf("bus overrides not applied: %+v", cfg.Bus)
	}
	if cfg.Bus.Listen != Default().Bus.Listen {
		t.Fatalf("unset listen should keep default, got %q", cfg.Bus.Listen)
	}
	if len(cfg.Admin.CorsOrigins) != 1 || cfg.Admin.CorsOrigins[0] != "http://a" {
		t.Fatalf("cors origins: %+v", cfg.Admin.CorsOrigins)
	}
	if cfg.Dispatch.Concurrency != 2 || cfg.Strings.SendFailed != "Senden fehlgeschlagen:" {
		t.Fatalf("dispatch overrides: %+v %+v", cfg.Dispatch, cfg.Strings)
	}
	if len(cfg.Alerts.Command) != 2 || cfg.Alerts.Command[0] != "notify-send" {
		t.Fatalf("alerts command: %q", cfg.Alerts.Command)
	}
	if !cfg.Kafka.Enabled() || cfg.Kafka.Topic != "smsctl.commands" {
		t.Fatalf("kafka: %+v", cfg.Kafka)
	}
}

func TestTemplateLoads(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "conf", "smsctl.toml")
	if err := WriteTemplate(path, "daemon", false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if err := WriteTemplate(path, "daemon", false); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("template should load: %v", err)
	}
	if cfg.Kafka.Enabled() {
		t.Fatalf("template must leave kafka disabled")
	}
	if cfg.Strings.SendFailed != dispatch.DefaultSendFailed {
		t.Fatalf("unexpected send_failed: %q", cfg.Strings.SendFailed)
	}
	if _, err := Template("nope"); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	testlog.Start(t)
	cases := map[string]string{
		"zero concurrency": "[dispatch]\nconcurrency = 0\n",
		"blank listen":     "[bus]\nlisten = \"  \"\n",
		"unknown key":      "[bus]\nlisen = \"x\"\n",
	}
	for name, body := range cases {
		if _, err := Load(writeConfig(t, body)); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: expected ErrInvalidConfig, got %v", name, err)
		}
	}
	if _, err := Load(writeConfig(t, "[bus]\nwrite_timeout = \"soon\"\n")); err == nil {
		t.Fatalf("expected duration parse error")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected missing file error")
	}
}
