package notify

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/danmuck/smsctl/internal/testutil/testlog"
)

type recordingRunner struct {
	name string
	args []string
	err  error
}

func (r *recordingRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, int32, error) {
	r.name, r.args = name, args
	if r.err != nil {
		return nil, []byte("no display\n"), 1, r.err
	}
	return nil, nil, 0, nil
}

func TestCommandSurfaceAppendsTitleAndBody(t *testing.T) {
	testlog.Start(t)
	runner := &recordingRunner{}
	argv := []string{"notify-send", "--urgency=critical"}
	s := NewCommandSurface(argv, runner)
	argv[1] = "mutated"

	if err := s.Post(context.Background(), Alert{ID: 2, Title: "Sending failed: timeout", Body: "+111"}); err != nil {
		t.Fatalf("post: %v", err)
	}
	want := []string{"--urgency=critical", "Sending failed: timeout", "+111"}
	if runner.name != "notify-send" || !reflect.DeepEqual(runner.args, want) {
		t.Fatalf("ran %s %q, want notify-send %q", runner.name, runner.args, want)
	}
}

func TestCommandSurfaceReportsFailure(t *testing.T) {
	testlog.Start(t)
	boom := errors.New("exit status 1")
	s := NewCommandSurface([]string{"notify-send"}, &recordingRunner{err: boom})
	if err := s.Post(context.Background(), Alert{}); !errors.Is(err, boom) {
		t.Fatalf("expected runner error, got %v", err)
	}
	if err := NewCommandSurface(nil, &recordingRunner{err: boom}).Post(context.Background(), Alert{}); err != nil {
		t.Fatalf("empty argv should be a no-op, got %v", err)
	}
}

func TestExecRunnerMissingBinary(t *testing.T) {
	testlog.Start(t)
	_, _, code, err := ExecRunner{}.Run(context.Background(), "smsctl-no-such-binary")
	if err == nil || code != 127 {
		t.Fatalf("expected exit 127 for a missing binary, got code=%d err=%v", code, err)
	}
}

func TestSurfacesPostsToAll(t *testing.T) {
	testlog.Start(t)
	logs := NewLogSurface(4)
	boom := errors.New("boom")
	ss := Surfaces{NewCommandSurface([]string{"x"}, &recordingRunner{err: boom}), logs}
	if err := ss.Post(context.Background(), Alert{ID: 2}); !errors.Is(err, boom) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if len(logs.Recent()) != 1 {
		t.Fatalf("later surfaces must still receive the alert")
	}
}
