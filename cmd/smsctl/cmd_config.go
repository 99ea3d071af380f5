package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/danmuck/smsctl/internal/config"
	"github.com/danmuck/smsctl/internal/prefs"
)

func newConfigCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or check config files",
	}
	cmd.AddCommand(newConfigInitCmd(g), newConfigValidateCmd(g))
	return cmd
}

func newConfigInitCmd(g *globals) *cobra.Command {
	var (
		kind   string
		output string
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := output
			if target == "" {
				target = g.configPath
				if kind == "prefs" {
					cfg, err := g.loadConfig()
					if err != nil {
						return err
					}
					target = cfg.Prefs.Path
				}
			}
			if err := config.WriteTemplate(target, kind, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s config template to %s\n", kind, target)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "daemon", "config kind: daemon|prefs")
	cmd.Flags().StringVar(&output, "output", "", "output path (defaults to --config, or prefs.path for prefs)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newConfigValidateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [path]",
		Short: "Validate a daemon config file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := g.configPath
			if len(args) == 1 {
				path = args[0]
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Validated config %q at %s\n", cfg.Name, path)
			return nil
		},
	}
}

func newPrefsCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show or change alert preferences",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the current alert preferences",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				file, err := g.prefsFile()
				if err != nil {
					return err
				}
				v, err := file.Load()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "vibrate_on_fail = %t\nsound_on_fail = %q\n", v.VibrateOnFail, v.SoundOnFail)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <vibrate_on_fail|sound_on_fail> <value>",
			Short: "Change one alert preference",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				file, err := g.prefsFile()
				if err != nil {
					return err
				}
				v, err := file.Load()
				if err != nil {
					return err
				}
				if v, err = setPref(v, args[0], args[1]); err != nil {
					return err
				}
				if err := file.Save(v); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Set %s in %s\n", args[0], file.Path)
				return nil
			},
		},
	)
	return cmd
}

func setPref(v prefs.Values, key, value string) (prefs.Values, error) {
	switch key {
	case "vibrate_on_fail":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return v, fmt.Errorf("prefs: vibrate_on_fail wants true or false, got %q", value)
		}
		v.VibrateOnFail = b
	case "sound_on_fail":
		v.SoundOnFail = value
	default:
		return v, fmt.Errorf("prefs: unknown key %q", key)
	}
	return v, nil
}

func (g *globals) prefsFile() (*prefs.File, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	return prefs.NewFile(cfg.Prefs.Path), nil
}
