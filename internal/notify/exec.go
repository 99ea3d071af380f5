package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"
)

// CommandRunner runs one host program and reports its output and exit code.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, code int32, err error)
}

// ExecRunner runs commands on the local host.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, int32, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), stderr.Bytes(), 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stdout.Bytes(), stderr.Bytes(), int32(exitErr.ExitCode()), err
	}
	code := int32(1)
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		code = 127
	}
	return stdout.Bytes(), stderr.Bytes(), code, err
}

// CommandSurface shows an alert by running a host notifier such as
// notify-send, with the alert title and body appended to the argv.
type CommandSurface struct {
	argv   []string
	runner CommandRunner
}

func NewCommandSurface(argv []string, runner CommandRunner) *CommandSurface {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &CommandSurface{argv: append([]string(nil), argv...), runner: runner}
}

func (s *CommandSurface) Post(ctx context.Context, a Alert) error {
	if len(s.argv) == 0 {
		return nil
	}
	args := append(append([]string(nil), s.argv[1:]...), a.Title, a.Body)
	_, stderr, code, err := s.runner.Run(ctx, s.argv[0], args...)
	if err != nil {
		return fmt.Errorf("notify: %s exited %d: %w (%s)", s.argv[0], code,
			err, strings.TrimSpace(string(stderr)))
	}
	log.Debug().Int("alert_id", a.ID).Str("command", s.argv[0]).Msg("notify.CommandSurface.Post")
	return nil
}

// Poster is anything an alert can be posted to.
type Poster interface {
	Post(ctx context.Context, a Alert) error
}

// Surfaces posts every alert to each surface in order and joins the errors.
type Surfaces []Poster

func (ss Surfaces) Post(ctx context.Context, a Alert) error {
	var errs []error
	for _, s := range ss {
		if err := s.Post(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
