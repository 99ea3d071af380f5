package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Template returns an example file for kind: "daemon" or "prefs".
func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "daemon", "":
		return daemonTemplate, nil
	case "prefs":
		return prefsTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const daemonTemplate = `name = "smsctl"

[bus]
listen = "127.0.0.1:7470"
token = ""
subscriber_buffer = 64
peer_buffer = 32
write_timeout = "10s"

[store]
path = "local/smsctl/messages.db"

[prefs]
path = "local/smsctl/prefs.toml"

[admin]
listen = "127.0.0.1:7480"
cors_origins = ["http://localhost:3000"]
history = 64

[dispatch]
concurrency = 8

[strings]
send_failed = "Sending failed:"

[alerts]
# command = ["notify-send", "--urgency=critical"]

[kafka]
brokers = []
topic = "smsctl.commands"
`

const prefsTemplate = `vibrate_on_fail = false
sound_on_fail = ""
`
