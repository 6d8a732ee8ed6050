package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunnerRunsJobsUntilCancelled(t *testing.T) {
	var runs atomic.Int32
	r := &Runner{Jobs: []Job{{
		Name:  "sweep",
		Every: 20 * time.Millisecond,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	}}}
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	if err := r.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if runs.Load() == 0 {
		t.Fatalf("expected the job to run at least once")
	}
}

func TestRunnerRejectsEmptyConfig(t *testing.T) {
	if err := (&Runner{}).Run(context.Background()); !errors.Is(err, ErrNoJobs) {
		t.Fatalf("expected ErrNoJobs, got %v", err)
	}
	bad := &Runner{Jobs: []Job{{Name: "broken"}}}
	if err := bad.Run(context.Background()); err == nil {
		t.Fatalf("expected an error for a job without interval")
	}
}
