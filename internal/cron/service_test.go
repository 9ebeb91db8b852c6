package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/partsmarket-backend/pkg/logger"
)

type fakeLock struct {
	held       bool
	acquireErr error
	releases   int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.acquireErr != nil {
		return false, f.acquireErr
	}
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.releases++
	return nil
}

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

type recordingMetrics struct {
	observed []string
	success  []string
	failure  []string
}

func (m *recordingMetrics) ObserveDuration(worker string, _ time.Duration) {
	m.observed = append(m.observed, worker)
}
func (m *recordingMetrics) IncSuccess(worker string) { m.success = append(m.success, worker) }
func (m *recordingMetrics) IncFailure(worker string) { m.failure = append(m.failure, worker) }

func TestRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	ok := &testJob{name: "ok"}
	failing := &testJob{name: "failing", err: errors.New("boom")}
	after := &testJob{name: "after"}
	lock := &fakeLock{}
	metrics := &recordingMetrics{}
	svc, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: NewRegistry(ok, failing, after),
		Lock:     lock,
		Metrics:  metrics,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	for _, job := range []*testJob{ok, failing, after} {
		if job.runs != 1 {
			t.Fatalf("job %s ran %d times", job.name, job.runs)
		}
	}
	if len(metrics.observed) != 3 || len(metrics.success) != 2 || len(metrics.failure) != 1 {
		t.Fatalf("unexpected metrics %+v", metrics)
	}
	if metrics.failure[0] != "failing" {
		t.Fatalf("failure recorded for %s", metrics.failure[0])
	}
	if lock.held || lock.releases != 1 {
		t.Fatalf("lock not released")
	}
}

func TestRunCycleSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "job"}
	lock := &fakeLock{held: true}
	svc, err := NewService(ServiceParams{Logger: logger.Nop(), Registry: NewRegistry(job), Lock: lock})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("job should not run without the lock")
	}
	if lock.releases != 0 {
		t.Fatalf("lock owned elsewhere must not be released")
	}
}

func TestRunCycleLockError(t *testing.T) {
	svc, err := NewService(ServiceParams{Logger: logger.Nop(), Lock: &fakeLock{acquireErr: errors.New("redis down")}})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if err := svc.runCycle(context.Background()); err == nil {
		t.Fatal("expected lock error")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	job := &testJob{name: "job"}
	svc, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: NewRegistry(job),
		Lock:     &fakeLock{},
		Interval: time.Hour,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := svc.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewServiceValidation(t *testing.T) {
	if _, err := NewService(ServiceParams{Lock: &fakeLock{}}); err == nil {
		t.Fatal("expected logger error")
	}
	if _, err := NewService(ServiceParams{Logger: logger.Nop()}); err == nil {
		t.Fatal("expected lock error")
	}
	svc, err := NewService(ServiceParams{Logger: logger.Nop(), Lock: &fakeLock{}})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if svc.interval != defaultInterval {
		t.Fatalf("expected default interval, got %s", svc.interval)
	}
}

func TestRegistryCopiesJobs(t *testing.T) {
	a, b := &testJob{name: "a"}, &testJob{name: "b"}
	registry := NewRegistry(a, nil)
	registry.Register(b)
	registry.Register(nil)

	jobs := registry.Jobs()
	if len(jobs) != 2 || jobs[0] != a || jobs[1] != b {
		t.Fatalf("unexpected jobs %v", jobs)
	}
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatal("internal slice leaked")
	}
}
