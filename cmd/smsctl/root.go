package main

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danmuck/smsctl/internal/config"
	"github.com/danmuck/smsctl/internal/server"
)

const (
	envConfig         = "SMSCTL_CONFIG"
	defaultConfigPath = "smsctl.toml"
)

// globals are the persistent flags shared by every subcommand.
type globals struct {
	configPath string
	adminURL   string
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	cmd := &cobra.Command{
		Use:           "smsctl",
		Short:         "SMS connector core",
		Long:          "smsctl runs the connector core daemon and sends it operator commands.",
		Version:       "smsctl " + server.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("{{.Version}}\n")
	cmd.PersistentFlags().StringVar(&g.configPath, "config", configPathFromEnv(),
		"daemon config file (env "+envConfig+")")
	cmd.PersistentFlags().StringVar(&g.adminURL, "admin", "",
		"admin API base URL (defaults to http://<admin.listen>)")

	cmd.AddCommand(
		newServeCmd(g),
		newBootstrapCmd(g),
		newUpdateCmd(g),
		newSendCmd(g),
		newConnectorsCmd(g),
		newAlertsCmd(g),
		newMessagesCmd(g),
		newConfigCmd(g),
		newPrefsCmd(g),
		newSimulateCmd(g),
	)
	return cmd
}

func configPathFromEnv() string {
	if v := strings.TrimSpace(os.Getenv(envConfig)); v != "" {
		return v
	}
	return defaultConfigPath
}

// loadConfig reads the config file. A missing file at the default path
// yields the built-in defaults; an explicitly named file must exist.
func (g *globals) loadConfig() (config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil && errors.Is(err, fs.ErrNotExist) && g.configPath == defaultConfigPath {
		return config.Default(), nil
	}
	return cfg, err
}

func (g *globals) client() (*adminClient, error) {
	if g.adminURL != "" {
		return newAdminClient(g.adminURL), nil
	}
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	return newAdminClient("http://" + cfg.Admin.Listen), nil
}
