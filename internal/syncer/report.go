package syncer

import (
	"sort"
	"sync"
	"time"

	"shelfsync/internal/catalog"
	"shelfsync/internal/merge"
	"shelfsync/internal/services"
)

// Status is the result of one record cycle.
type Status string

const (
	StatusSkipped   Status = "skipped"
	StatusUpdated   Status = "updated"
	StatusCreated   Status = "created"
	StatusUnchanged Status = "unchanged"
	StatusFailed    Status = "failed"
)

// Counters totals a run.
type Counters struct {
	Scanned   int `json:"scanned"`
	Skipped   int `json:"skipped"`
	Updated   int `json:"updated"`
	Created   int `json:"created"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
}

// Outcome is the per-record entry of a report.
type Outcome struct {
	RecordID string           `json:"record_id,omitempty"`
	Database string           `json:"database"`
	Title    string           `json:"title,omitempty"`
	Status   Status           `json:"status"`
	Provider string           `json:"provider,omitempty"`
	Changes  []merge.Change   `json:"changes,omitempty"`
	Class    services.Outcome `json:"class,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// Creation is a record created, or planned under dry-run, to satisfy a link
// or a create request.
type Creation struct {
	RecordID   string       `json:"record_id,omitempty"`
	Database   string       `json:"database"`
	Kind       catalog.Kind `json:"kind"`
	Title      string       `json:"title"`
	ExternalID string       `json:"external_id,omitempty"`
}

// Report summarizes a run.
type Report struct {
	RunID     string         `json:"run_id"`
	Target    catalog.Target `json:"target"`
	Trigger   Trigger        `json:"trigger"`
	Scope     ScopeKind      `json:"scope"`
	DryRun    bool           `json:"dry_run"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
	Counters  Counters       `json:"counters"`
	Outcomes  []Outcome      `json:"outcomes"`
	Created   []Creation     `json:"created,omitempty"`
	Planned   []Creation     `json:"planned,omitempty"`
}

// Changed returns outcomes that carry field changes.
func (r *Report) Changed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if len(o.Changes) > 0 {
			out = append(out, o)
		}
	}
	return out
}

// Failures returns failed outcomes.
func (r *Report) Failures() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			out = append(out, o)
		}
	}
	return out
}

// recorder collects report entries from concurrent workers.
type recorder struct {
	mu     sync.Mutex
	report *Report
}

func (r *recorder) scanned(n int) {
	r.mu.Lock()
	r.report.Counters.Scanned += n
	r.mu.Unlock()
}

func (r *recorder) add(o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch o.Status {
	case StatusSkipped:
		r.report.Counters.Skipped++
	case StatusUpdated:
		r.report.Counters.Updated++
	case StatusUnchanged:
		r.report.Counters.Unchanged++
	case StatusFailed:
		r.report.Counters.Failed++
	}
	r.report.Outcomes = append(r.report.Outcomes, o)
}

func (r *recorder) created(c Creation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.Counters.Created++
	r.report.Created = append(r.report.Created, c)
}

func (r *recorder) planned(c Creation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.Planned = append(r.report.Planned, c)
}

// finish orders entries deterministically.
func (r *recorder) finish(duration time.Duration) *Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.Duration = duration
	sort.SliceStable(r.report.Outcomes, func(i, j int) bool {
		a, b := r.report.Outcomes[i], r.report.Outcomes[j]
		if a.Database != b.Database {
			return a.Database < b.Database
		}
		return a.RecordID < b.RecordID
	})
	byRank := func(list []Creation) func(i, j int) bool {
		return func(i, j int) bool { return list[i].Kind.Rank() < list[j].Kind.Rank() }
	}
	sort.SliceStable(r.report.Created, byRank(r.report.Created))
	sort.SliceStable(r.report.Planned, byRank(r.report.Planned))
	return r.report
}
