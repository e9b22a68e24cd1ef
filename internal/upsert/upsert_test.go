package upsert_test

import (
	"context"
	"testing"

	"github.com/akash-ramasani/job-watch/internal/domain"
	"github.com/akash-ramasani/job-watch/internal/upsert"
)

type fakeReader struct {
	stored map[string]int64
}

func (f *fakeReader) MultiGetSourceUpdatedMs(_ context.Context, _ string, ids []string) (map[string]int64, error) {
	out := make(map[string]int64)
	for _, id := range ids {
		if ms, ok := f.stored[id]; ok {
			out[id] = ms
		}
	}
	return out, nil
}

type fakeWriter struct {
	created []*domain.Job
	merged  []*domain.Job
}

func (f *fakeWriter) QueueCreate(job *domain.Job)              { f.created = append(f.created, job) }
func (f *fakeWriter) QueueMerge(job *domain.Job, _ bool)       { f.merged = append(f.merged, job) }

func job(companyKey, upstreamID string, sourceMs int64) *domain.Job {
	return &domain.Job{CompanyKey: companyKey, UpstreamJobID: upstreamID, SourceUpdatedMs: sourceMs}
}

func TestUpsert_NewJobIsAdded(t *testing.T) {
	t.Parallel()

	reader := &fakeReader{stored: map[string]int64{}}
	writer := &fakeWriter{}
	engine := upsert.New(reader, false)

	outcomes, err := engine.Upsert(context.Background(), "t1", []*domain.Job{job("acme", "1", 1000)}, writer)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if outcomes["acme__1"] != upsert.OutcomeAdded {
		t.Errorf("outcome = %q, want added", outcomes["acme__1"])
	}
	if len(writer.created) != 1 || len(writer.merged) != 0 {
		t.Errorf("expected 1 create, 0 merge; got %d/%d", len(writer.created), len(writer.merged))
	}
}

func TestUpsert_UnchangedIsSkipped(t *testing.T) {
	t.Parallel()

	reader := &fakeReader{stored: map[string]int64{"acme__1": 2000}}
	writer := &fakeWriter{}
	engine := upsert.New(reader, false)

	outcomes, err := engine.Upsert(context.Background(), "t1", []*domain.Job{job("acme", "1", 2000)}, writer)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if outcomes["acme__1"] != upsert.OutcomeSkippedUnchanged {
		t.Errorf("outcome = %q, want skipped_unchanged", outcomes["acme__1"])
	}
	if len(writer.created) != 0 || len(writer.merged) != 0 {
		t.Errorf("expected no writes queued, got %d create, %d merge", len(writer.created), len(writer.merged))
	}
}

func TestUpsert_OlderIsSkipped(t *testing.T) {
	t.Parallel()

	reader := &fakeReader{stored: map[string]int64{"acme__1": 5000}}
	writer := &fakeWriter{}
	engine := upsert.New(reader, false)

	outcomes, _ := engine.Upsert(context.Background(), "t1", []*domain.Job{job("acme", "1", 3000)}, writer)
	if outcomes["acme__1"] != upsert.OutcomeSkippedUnchanged {
		t.Errorf("outcome = %q, want skipped_unchanged", outcomes["acme__1"])
	}
}

func TestUpsert_NewerIsUpdated(t *testing.T) {
	t.Parallel()

	reader := &fakeReader{stored: map[string]int64{"acme__1": 1000}}
	writer := &fakeWriter{}
	engine := upsert.New(reader, false)

	outcomes, _ := engine.Upsert(context.Background(), "t1", []*domain.Job{job("acme", "1", 2000)}, writer)
	if outcomes["acme__1"] != upsert.OutcomeUpdated {
		t.Errorf("outcome = %q, want updated", outcomes["acme__1"])
	}
	if len(writer.merged) != 1 {
		t.Errorf("expected 1 merge queued, got %d", len(writer.merged))
	}
}
