package health

import "context"

// Status is the aggregated service health.
type Status string

const (
	// Healthy means every checked component answered.
	Healthy Status = "ok"
	// Degraded means at least one component failed its check.
	Degraded Status = "degraded"
)

// CheckResult is a single component's check outcome.
type CheckResult string

const (
	// CheckOK marks a passing check.
	CheckOK CheckResult = "ok"
	// CheckError marks a failing check.
	CheckError CheckResult = "error"
)

// Report aggregates per-component check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service checks the store and, when configured, the embedding provider.
type Service struct {
	store     StorePinger
	embedding EmbeddingChecker
}

// New creates a Service. embedding can be nil to skip that check.
func New(store StorePinger, embedding EmbeddingChecker) *Service {
	return &Service{store: store, embedding: embedding}
}

// Check runs every configured component check. Any failure degrades the
// whole report.
func (s *Service) Check(ctx context.Context) Report {
	report := Report{Status: Healthy, Checks: make(map[string]CheckResult)}

	report.record("store", s.store.Ping(ctx))
	if s.embedding != nil {
		report.record("embedding", s.embedding.HealthCheck(ctx))
	}

	return report
}

func (r *Report) record(name string, err error) {
	if err != nil {
		r.Checks[name] = CheckError
		r.Status = Degraded
		return
	}
	r.Checks[name] = CheckOK
}
