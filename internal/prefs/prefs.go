// Package prefs reads the user's alert preferences from a TOML file. The file
// is read on every lookup so edits apply to the next alert.
package prefs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
)

// Values is the preference file layout.
type Values struct {
	VibrateOnFail bool   `toml:"vibrate_on_fail"`
	SoundOnFail   string `toml:"sound_on_fail"`
}

// File implements dispatch.Preferences over one TOML file. A missing or
// unreadable file yields the defaults: no vibration and no sound.
type File struct {
	Path string
}

func NewFile(path string) *File {
	return &File{Path: path}
}

// Load reads the file. A missing file is not an error.
func (f *File) Load() (Values, error) {
	var v Values
	if f == nil || f.Path == "" {
		return v, nil
	}
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return v, nil
	}
	if err != nil {
		return Values{}, fmt.Errorf("prefs load failed (%s): %w", f.Path, err)
	}
	if err := toml.Unmarshal(data, &v); err != nil {
		return Values{}, fmt.Errorf("prefs parse failed (%s): %w", f.Path, err)
	}
	return v, nil
}

func (f *File) VibrateOnFail() bool {
	return f.values().VibrateOnFail
}

func (f *File) SoundOnFail() string {
	return f.values().SoundOnFail
}

func (f *File) values() Values {
	v, err := f.Load()
	if err != nil {
		log.Warn().Err(err).Msg("prefs.File using defaults")
		return Values{}
	}
	return v
}

// Save writes v to the file, creating parent directories.
func (f *File) Save(v Values) error {
	if dir := filepath.Dir(f.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("prefs save failed (%s): %w", f.Path, err)
		}
	}
	data, err := toml.Marshal(v)
	if err != nil {
		return fmt.Errorf("prefs encode failed: %w", err)
	}
	if err := os.WriteFile(f.Path, data, 0o644); err != nil {
		return fmt.Errorf("prefs save failed (%s): %w", f.Path, err)
	}
	return nil
}
