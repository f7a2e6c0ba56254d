package cron

import (
	"context"
	"testing"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsRegistrationOrder(t *testing.T) {
	recovery := &stubJob{name: "payment-recovery"}
	retention := &stubJob{name: "outbox-retention"}
	registry := NewRegistry(recovery)
	registry.Register(retention)
	registry.Register(nil)

	jobs := registry.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0] != recovery || jobs[1] != retention {
		t.Fatalf("jobs returned out of order")
	}

	// The returned slice is a copy.
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatalf("internal slice leaked")
	}
}
