package queue

import "github.com/akash-ramasani/job-watch/internal/domain"

// AllRunTypes returns every run type with its own dispatcher stream, in the
// order the consumer drains them: manual (pollNow) ahead of the scheduled
// fanout, GC last since it is never latency-sensitive.
func AllRunTypes() []domain.RunType {
	return []domain.RunType{domain.RunTypeManual, domain.RunTypeScheduled, domain.RunTypeGC}
}
