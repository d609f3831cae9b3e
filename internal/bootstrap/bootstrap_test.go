package bootstrap

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/raulshma/tech-ticker-sub007/internal/infrastructure/logger"
)

func TestParseRoles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    []Role
		wantErr bool
	}{
		{in: "scheduler", want: []Role{RoleScheduler}},
		{in: " Executor , normalizer,executor", want: []Role{RoleExecutor, RoleNormalizer}},
		{in: "all", want: AllRoles},
		{in: "recorder,all", want: AllRoles},
		{in: "", wantErr: true},
		{in: "crawler", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseRoles(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseRoles(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseRoles(%q) error = %v", tt.in, err)
		}
		if len(got) != len(tt.want) {
			t.Fatalf("ParseRoles(%q) = %v, want %v", tt.in, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("ParseRoles(%q)[%d] = %s, want %s", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}

func TestNeedsDatabase(t *testing.T) {
	t.Parallel()

	if needsDatabase([]Role{RoleExecutor, RoleNormalizer}) {
		t.Error("executor and normalizer should not need the database")
	}
	for _, r := range []Role{RoleScheduler, RoleCorrelator, RoleRecorder, RoleAPI} {
		if !needsDatabase([]Role{RoleExecutor, r}) {
			t.Errorf("%s should need the database", r)
		}
	}
}

func TestConsumerID(t *testing.T) {
	t.Parallel()

	a, b := consumerID(RoleExecutor), consumerID(RoleExecutor)
	if !strings.HasPrefix(a, "executor-") || len(a) != len("executor-")+8 {
		t.Errorf("consumerID() = %q", a)
	}
	if a == b {
		t.Error("consumerID() should be unique per call")
	}
}

func TestRunAll_FailureStopsOtherRoles(t *testing.T) {
	t.Parallel()

	stopped := make(chan struct{})
	boom := errors.New("boom")
	runners := map[Role]Runner{
		RoleScheduler: func(ctx context.Context) error {
			<-ctx.Done()
			close(stopped)
			return nil
		},
		RoleExecutor: func(context.Context) error { return boom },
	}

	err := runAll(context.Background(), logger.NewNop(), runners)
	if !errors.Is(err, boom) {
		t.Fatalf("runAll() error = %v, want %v", err, boom)
	}
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("scheduler role was not cancelled")
	}
}

func TestRunAll_CancelStopsCleanly(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	runners := map[Role]Runner{
		RoleNormalizer: func(ctx context.Context) error { <-ctx.Done(); return nil },
		RoleRecorder:   func(ctx context.Context) error { <-ctx.Done(); return nil },
	}

	done := make(chan error, 1)
	go func() { done <- runAll(ctx, logger.NewNop(), runners) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runAll() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("runAll() did not return after cancel")
	}
}

func TestRun_NoRoles(t *testing.T) {
	t.Parallel()

	if err := Run(context.Background(), "unused.yml"); !errors.Is(err, ErrNoRoles) {
		t.Fatalf("Run() error = %v, want ErrNoRoles", err)
	}
}
