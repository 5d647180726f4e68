package syncer

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"shelfsync/internal/catalog"
	"shelfsync/internal/services"
)

// MaxWorkers bounds the per-run worker pool.
const MaxWorkers = 4

// ScopeKind selects which records a run visits.
type ScopeKind string

const (
	ScopeAll           ScopeKind = "all"
	ScopeSingle        ScopeKind = "single"
	ScopeLastEdited    ScopeKind = "last_edited"
	ScopeCreateFromURL ScopeKind = "create_from_url"
)

// Scope is the record selection of a request.
type Scope struct {
	Kind     ScopeKind `json:"kind"`
	RecordID string    `json:"record_id,omitempty"`
	URL      string    `json:"url,omitempty"`
}

// AllRecords visits every record of the selected databases.
func AllRecords() Scope { return Scope{Kind: ScopeAll} }

// SingleRecord visits one record.
func SingleRecord(id string) Scope { return Scope{Kind: ScopeSingle, RecordID: id} }

// LastEdited visits the most recently edited record of each database.
func LastEdited() Scope { return Scope{Kind: ScopeLastEdited} }

// CreateFromURL creates the record a catalog URL names.
func CreateFromURL(url string) Scope { return Scope{Kind: ScopeCreateFromURL, URL: url} }

// Validate implements validation.Validatable.
func (s Scope) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Kind, validation.Required, validation.In(ScopeAll, ScopeSingle, ScopeLastEdited, ScopeCreateFromURL)),
		validation.Field(&s.RecordID, validation.When(s.Kind == ScopeSingle, validation.Required)),
		validation.Field(&s.URL, validation.When(s.Kind == ScopeCreateFromURL, validation.Required)),
	)
}

// Trigger records what started a run.
type Trigger string

const (
	TriggerCLI       Trigger = "cli"
	TriggerWebhook   Trigger = "webhook"
	TriggerScheduled Trigger = "scheduled"
	TriggerDispatch  Trigger = "dispatch"
)

// ParseTrigger validates a trigger name. Empty means cli.
func ParseTrigger(value string) (Trigger, error) {
	t := Trigger(strings.ToLower(strings.TrimSpace(value)))
	if t == "" {
		return TriggerCLI, nil
	}
	if err := validation.Validate(t, validation.In(TriggerCLI, TriggerWebhook, TriggerScheduled, TriggerDispatch)); err != nil {
		return "", services.Wrap(services.ErrValidation, "syncer", "trigger", string(t), err)
	}
	return t, nil
}

// SingleRecordOnly reports whether the trigger may only address one record.
func (t Trigger) SingleRecordOnly() bool {
	return t == TriggerDispatch
}

// Flags alter how records are selected and written.
type Flags struct {
	ForceIcons    bool `json:"force_icons,omitempty"`
	ForceUpdate   bool `json:"force_update,omitempty"`
	ForceAll      bool `json:"force_all,omitempty"`
	ForceResearch bool `json:"force_research,omitempty"`
	ForceScraping bool `json:"force_scraping,omitempty"`
	DryRun        bool `json:"dry_run,omitempty"`
}

// Forced reports whether any force flag is set.
func (f Flags) Forced() bool {
	return f.ForceIcons || f.ForceUpdate || f.ForceAll || f.ForceResearch || f.ForceScraping
}

// Request describes one sync run.
type Request struct {
	Target  catalog.Target `json:"target"`
	Scope   Scope          `json:"scope"`
	Flags   Flags          `json:"flags"`
	Trigger Trigger        `json:"trigger"`
	// Workers bounds concurrent record cycles; zero means one.
	Workers int `json:"workers"`
	// CreatedAfter limits AllRecords scans to records created after it.
	CreatedAfter time.Time `json:"created_after"`
	// Database restricts the run to one of the target's databases by name.
	Database string `json:"database,omitempty"`
}

func (r *Request) normalize() {
	if r.Workers == 0 {
		r.Workers = 1
	}
	if r.Trigger == "" {
		r.Trigger = TriggerCLI
	}
	r.Database = strings.TrimSpace(r.Database)
}

// Validate checks field ranges. It does not apply the trigger guard.
func (r Request) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Target, validation.Required, validation.In(catalog.TargetGames, catalog.TargetMovies, catalog.TargetBooks, catalog.TargetMusic)),
		validation.Field(&r.Scope),
		validation.Field(&r.Trigger, validation.In(TriggerCLI, TriggerWebhook, TriggerScheduled, TriggerDispatch)),
		validation.Field(&r.Workers, validation.Min(1), validation.Max(MaxWorkers)),
	)
	if err != nil {
		return services.Wrap(services.ErrValidation, "syncer", "request", "", err)
	}
	return nil
}

// checkTrigger rejects bulk scopes from triggers limited to one record.
func (r Request) checkTrigger() error {
	if !r.Trigger.SingleRecordOnly() {
		return nil
	}
	switch r.Scope.Kind {
	case ScopeAll, ScopeLastEdited:
		return services.Wrap(services.ErrSchema, "syncer", "request",
			"trigger "+string(r.Trigger)+" may only sync a single record, got scope "+string(r.Scope.Kind), nil)
	}
	return nil
}

// ParseCreatedAfter accepts YYYY-MM-DD or "today", evaluated in now's zone.
func ParseCreatedAfter(value string, now time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	switch strings.ToLower(value) {
	case "":
		return time.Time{}, nil
	case "today":
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location()), nil
	}
	t, err := time.ParseInLocation(time.DateOnly, value, now.Location())
	if err != nil {
		return time.Time{}, services.Wrap(services.ErrValidation, "syncer", "created-after", "want YYYY-MM-DD or today", err)
	}
	return t, nil
}
