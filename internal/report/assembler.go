package report

import (
	"sort"
	"time"

	"scpulse/internal/metrics"
	"scpulse/internal/validation"
	"scpulse/pkg/contracts/domain"
)

// maxTopReasons caps the rejection-reason leaderboard in the summary.
const maxTopReasons = 5

// KindSummary tallies validation outcomes for one record kind.
type KindSummary struct {
	Kind     domain.RecordKind `json:"kind"`
	Accepted int               `json:"accepted"`
	Rejected int               `json:"rejected"`
}

// ReasonCount tallies rejections sharing a reason code.
type ReasonCount struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// ValidationSummary aggregates the run's accepted/rejected partition.
type ValidationSummary struct {
	Kinds      []KindSummary `json:"kinds"`
	TopReasons []ReasonCount `json:"top_reasons,omitempty"`
	Rejected   int           `json:"rejected_total"`
}

// Report is the single immutable result of one pipeline run. A new
// run builds a new Report; published Reports are never updated in
// place, so concurrent readers need no locking.
type Report struct {
	RunID       string                 `json:"run_id"`
	GeneratedAt time.Time              `json:"generated_at"`
	Metrics     *metrics.MetricsReport `json:"metrics"`
	Validation  ValidationSummary      `json:"validation"`
}

// Assemble merges computed metrics with the validation summary into
// one Report. accepted maps each record kind to its accepted count;
// rejected is the concatenated rejection list across kinds.
func Assemble(runID string, m *metrics.MetricsReport, accepted map[domain.RecordKind]int, rejected []validation.RejectedRecord) *Report {
	return &Report{
		RunID:       runID,
		GeneratedAt: m.AsOf,
		Metrics:     m,
		Validation:  summarize(accepted, rejected),
	}
}

func summarize(accepted map[domain.RecordKind]int, rejected []validation.RejectedRecord) ValidationSummary {
	rejectedByKind := make(map[domain.RecordKind]int)
	reasons := make(map[string]int)
	for _, r := range rejected {
		rejectedByKind[r.Kind]++
		reasons[r.Reason]++
	}

	kinds := make(map[domain.RecordKind]struct{}, len(accepted))
	for k := range accepted {
		kinds[k] = struct{}{}
	}
	for k := range rejectedByKind {
		kinds[k] = struct{}{}
	}

	summary := ValidationSummary{Rejected: len(rejected)}
	for k := range kinds {
		summary.Kinds = append(summary.Kinds, KindSummary{
			Kind:     k,
			Accepted: accepted[k],
			Rejected: rejectedByKind[k],
		})
	}
	sort.Slice(summary.Kinds, func(i, j int) bool {
		return summary.Kinds[i].Kind < summary.Kinds[j].Kind
	})

	for reason, count := range reasons {
		summary.TopReasons = append(summary.TopReasons, ReasonCount{Reason: reason, Count: count})
	}
	// Highest count first; ties break on reason code for stable output.
	sort.Slice(summary.TopReasons, func(i, j int) bool {
		if summary.TopReasons[i].Count != summary.TopReasons[j].Count {
			return summary.TopReasons[i].Count > summary.TopReasons[j].Count
		}
		return summary.TopReasons[i].Reason < summary.TopReasons[j].Reason
	})
	if len(summary.TopReasons) > maxTopReasons {
		summary.TopReasons = summary.TopReasons[:maxTopReasons]
	}

	return summary
}
