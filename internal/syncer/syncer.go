package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"shelfsync/internal/catalog"
	"shelfsync/internal/identity"
	"shelfsync/internal/logging"
	"shelfsync/internal/merge"
	"shelfsync/internal/schema"
	"shelfsync/internal/services"
	"shelfsync/internal/store"
)

// DefaultMaxDepth bounds related-entity recursion below the synced record.
const DefaultMaxDepth = 4

// Observer receives run telemetry.
type Observer interface {
	ObserveRecord(target string, status Status)
	ObserveRun(target string, counters Counters, duration time.Duration, err error)
}

// Options configures a Syncer.
type Options struct {
	Store    store.Store
	Resolver *identity.Resolver
	Targets  []schema.Target
	Logger   *slog.Logger
	Observer Observer
	// Grace defaults to DefaultGrace.
	Grace time.Duration
	// MaxDepth defaults to DefaultMaxDepth.
	MaxDepth int
	Clock    func() time.Time
}

// Syncer executes sync requests.
type Syncer struct {
	store    store.Store
	resolver *identity.Resolver
	targets  map[catalog.Target]schema.Target
	logger   *slog.Logger
	observer Observer
	grace    time.Duration
	maxDepth int
	now      func() time.Time
}

// New validates opts and builds a Syncer.
func New(opts Options) (*Syncer, error) {
	if opts.Store == nil {
		return nil, services.Wrap(services.ErrConfiguration, "syncer", "init", "store is required", nil)
	}
	if opts.Resolver == nil {
		return nil, services.Wrap(services.ErrConfiguration, "syncer", "init", "resolver is required", nil)
	}
	targets := make(map[catalog.Target]schema.Target, len(opts.Targets))
	for _, t := range opts.Targets {
		if _, dup := targets[t.Name]; dup {
			return nil, services.Wrap(services.ErrConfiguration, "syncer", "init", "duplicate target "+string(t.Name), nil)
		}
		targets[t.Name] = t
	}
	s := &Syncer{
		store:    opts.Store,
		resolver: opts.Resolver,
		targets:  targets,
		logger:   logging.NewComponentLogger(opts.Logger, "syncer"),
		observer: opts.Observer,
		grace:    opts.Grace,
		maxDepth: opts.MaxDepth,
		now:      opts.Clock,
	}
	if s.grace <= 0 {
		s.grace = DefaultGrace
	}
	if s.maxDepth <= 0 {
		s.maxDepth = DefaultMaxDepth
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// run is the state of one Run call.
type run struct {
	req     Request
	target  schema.Target
	schemas map[string]store.Schema
	engines map[string]*merge.Engine
	rec     *recorder
	locks   *keyedMutex
	logger  *slog.Logger

	mu       sync.Mutex
	entities map[string]string
}

func (r *run) entity(key string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.entities[key]
	return id, ok
}

func (r *run) remember(key, id string) {
	r.mu.Lock()
	r.entities[key] = id
	r.mu.Unlock()
}

// Run executes req. Per-record failures land in the report and leave the
// returned error nil; authentication, schema and configuration failures
// cancel the remaining work and are returned alongside the partial report.
func (s *Syncer) Run(ctx context.Context, req Request) (*Report, error) {
	req.normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := req.checkTrigger(); err != nil {
		return nil, err
	}
	target, ok := s.targets[req.Target]
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "syncer", "run", "target "+string(req.Target)+" is not configured", nil)
	}

	start := s.now()
	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	ctx = services.WithTarget(ctx, string(req.Target))
	logger := s.logger.With(
		logging.String(logging.FieldRunID, runID),
		logging.String(logging.FieldTarget, string(req.Target)),
	)
	r := &run{
		req:     req,
		target:  target,
		schemas: map[string]store.Schema{},
		engines: map[string]*merge.Engine{},
		rec: &recorder{report: &Report{
			RunID:     runID,
			Target:    req.Target,
			Trigger:   req.Trigger,
			Scope:     req.Scope.Kind,
			DryRun:    req.Flags.DryRun,
			StartedAt: start,
		}},
		locks:    newKeyedMutex(),
		logger:   logger,
		entities: map[string]string{},
	}
	logger.Info("sync run started",
		logging.String("scope", string(req.Scope.Kind)),
		logging.String("trigger", string(req.Trigger)),
		logging.Int("workers", req.Workers),
		logging.Bool("dry_run", req.Flags.DryRun),
	)

	err := s.execute(ctx, r)
	if err == nil {
		err = ctx.Err()
	}
	report := r.rec.finish(s.now().Sub(start))
	if s.observer != nil {
		s.observer.ObserveRun(string(req.Target), report.Counters, report.Duration, err)
	}
	if err != nil {
		logging.ErrorWithContext(logger, "sync run aborted", "sync_run_aborted",
			logging.Error(err),
			logging.String(logging.FieldImpact, "remaining records were not processed"),
			logging.String(logging.FieldErrorHint, hintFor(err)),
		)
		return report, err
	}
	c := report.Counters
	logger.Info("sync run finished",
		logging.Int("scanned", c.Scanned),
		logging.Int("skipped", c.Skipped),
		logging.Int("updated", c.Updated),
		logging.Int("created", c.Created),
		logging.Int("unchanged", c.Unchanged),
		logging.Int("failed", c.Failed),
		logging.Duration("duration", report.Duration),
	)
	return report, nil
}

func (s *Syncer) execute(ctx context.Context, r *run) error {
	databases, err := s.selectDatabases(r)
	if err != nil {
		return err
	}
	if err := s.prepare(ctx, r); err != nil {
		return err
	}
	switch r.req.Scope.Kind {
	case ScopeCreateFromURL:
		return s.createFromURL(ctx, r)
	case ScopeSingle:
		return s.single(ctx, r)
	default:
		return s.scan(ctx, r, databases)
	}
}

// selectDatabases applies the request's database selector.
func (s *Syncer) selectDatabases(r *run) ([]schema.Database, error) {
	name := r.req.Database
	if name == "" || strings.EqualFold(name, "all") {
		return r.target.Databases, nil
	}
	db, ok := r.target.Database(name)
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "syncer", "select database",
			fmt.Sprintf("target %s has no database %q", r.target.Name, name), nil)
	}
	return []schema.Database{db}, nil
}

// prepare validates every database of the target before any catalog call,
// since linking may write to databases outside the selection.
func (s *Syncer) prepare(ctx context.Context, r *run) error {
	for _, db := range r.target.Databases {
		live, err := schema.Validate(ctx, s.store, db)
		if err != nil {
			return err
		}
		policy, err := db.Policy()
		if err != nil {
			return services.Wrap(services.ErrConfiguration, "syncer", "policy", db.Name, err)
		}
		r.schemas[db.Name] = live
		r.engines[db.Name] = merge.NewEngine(policy)
	}
	return nil
}

type workItem struct {
	db  schema.Database
	rec store.Record
}

func (s *Syncer) scan(ctx context.Context, r *run, databases []schema.Database) error {
	var items []workItem
	for _, db := range databases {
		filter := store.Filter{CreatedAfter: r.req.CreatedAfter}
		if r.req.Scope.Kind == ScopeLastEdited {
			filter = store.Filter{SortByEdited: true, Limit: 1}
		}
		records, err := s.store.Query(ctx, db.ID, filter)
		if err != nil {
			return fmt.Errorf("scan %s: %w", db.Name, err)
		}
		for _, rec := range records {
			items = append(items, workItem{db: db, rec: rec})
		}
	}
	r.rec.scanned(len(items))
	r.logger.Debug("scan complete", logging.Int("records", len(items)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.req.Workers)
	for _, item := range items {
		g.Go(func() error {
			return s.syncRecord(gctx, r, item.db, item.rec)
		})
	}
	return g.Wait()
}

func (s *Syncer) single(ctx context.Context, r *run) error {
	id, ok := store.ExtractPageID(r.req.Scope.RecordID)
	if !ok {
		return services.Wrap(services.ErrValidation, "syncer", "single", "invalid record id "+r.req.Scope.RecordID, nil)
	}
	r.rec.scanned(1)
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return s.fail(ctx, r, Outcome{RecordID: id}, err)
	}
	db, ok := r.target.DatabaseByID(rec.DatabaseID)
	if !ok {
		return s.fail(ctx, r, Outcome{RecordID: id}, services.Wrap(services.ErrValidation, "syncer", "single",
			fmt.Sprintf("record belongs to database %s outside target %s", rec.DatabaseID, r.target.Name), nil))
	}
	return s.syncRecord(ctx, r, db, *rec)
}

func (s *Syncer) createFromURL(ctx context.Context, r *run) error {
	r.rec.scanned(1)
	fetched, err := s.resolver.Resolve(ctx, identity.Hint{URL: r.req.Scope.URL, Scrape: r.req.Flags.ForceScraping})
	if err != nil {
		return s.fail(ctx, r, Outcome{Title: r.req.Scope.URL}, err)
	}
	db, ok := r.target.DatabaseForKind(fetched.Kind)
	if !ok {
		return s.fail(ctx, r, Outcome{Title: fetched.Title}, services.Wrap(services.ErrValidation, "syncer", "create",
			fmt.Sprintf("target %s stores no %s records", r.target.Name, fetched.Kind), nil))
	}
	out := Outcome{Database: db.Name, Title: fetched.Title, Provider: fetched.Provider}
	id, created, err := s.ensure(ctx, r, *fetched, 0)
	if err != nil {
		return s.fail(ctx, r, out, err)
	}
	if created || (r.req.Flags.DryRun && id == "") {
		out.RecordID = id
		out.Status = StatusCreated
		r.rec.add(out)
		s.observe(r, StatusCreated)
		return nil
	}
	// Already present: run the normal cycle on the existing record.
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		out.RecordID = id
		return s.fail(ctx, r, out, err)
	}
	return s.syncRecord(ctx, r, db, *rec)
}

// syncRecord runs one resolve, merge and write cycle.
func (s *Syncer) syncRecord(ctx context.Context, r *run, db schema.Database, rec store.Record) error {
	if ctx.Err() != nil {
		return nil
	}
	ctx = services.WithRecordID(ctx, rec.ID)
	out := Outcome{RecordID: rec.ID, Database: db.Name}
	if prop, ok := db.Property(schema.FieldTitle); ok {
		out.Title = rec.Properties[prop].String()
	}

	lastSynced, _ := schema.LastSynced(db, &rec)
	if !NeedsSync(rec.LastEditedTime, lastSynced, r.req.Flags, s.grace) {
		out.Status = StatusSkipped
		r.rec.add(out)
		s.observe(r, StatusSkipped)
		return nil
	}

	kind, alt := db.RecordKind(&rec)
	hint := identity.Hint{Kind: kind, AltKind: alt, Name: out.Title, Scrape: r.req.Flags.ForceScraping}
	if !r.req.Flags.ForceResearch {
		hint.IDs = db.StoredIDs(&rec)
	}
	fetched, err := s.resolver.Resolve(services.WithStage(ctx, "resolve"), hint)
	if err != nil {
		return s.fail(ctx, r, out, err)
	}
	out.Provider = fetched.Provider

	relations, err := s.link(ctx, r, db, fetched, 1)
	if err != nil {
		return s.fail(ctx, r, out, err)
	}
	props := schema.Map(db, r.schemas[db.Name], fetched, relations)
	merged := r.engines[db.Name].Merge(rec.Properties, props)
	out.Changes = merge.Diff(rec.Properties, merged)

	payload := merge.Changed(merged, out.Changes)
	if r.req.Flags.ForceUpdate {
		payload = pick(merged, props)
	}
	var deco store.Decoration
	if r.req.Flags.ForceIcons {
		deco = decoration(r.target.Name, db, fetched)
	}
	out.Status = StatusUnchanged
	if len(out.Changes) > 0 {
		out.Status = StatusUpdated
	}
	if !r.req.Flags.DryRun {
		if prop, ok := db.Property(schema.FieldLastSynced); ok {
			payload[prop] = schema.SyncedValue(s.now())
		}
		if len(payload) > 0 || !deco.IsZero() {
			if err := s.store.Update(services.WithStage(ctx, "write"), rec.ID, payload, deco); err != nil {
				out.Status = ""
				return s.fail(ctx, r, out, err)
			}
		}
	}
	r.rec.add(out)
	s.observe(r, out.Status)
	r.logger.Debug("record synced",
		logging.String(logging.FieldRecordID, rec.ID),
		logging.String("status", string(out.Status)),
		logging.Int("changes", len(out.Changes)),
	)
	return nil
}

// fail records a failed outcome. Fatal errors are returned so the pool
// cancels; everything else stays in the report.
func (s *Syncer) fail(ctx context.Context, r *run, out Outcome, err error) error {
	out.Status = StatusFailed
	out.Class = services.Classify(err)
	out.Error = err.Error()
	r.rec.add(out)
	s.observe(r, StatusFailed)
	if services.IsFatal(err) {
		return err
	}
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	logging.WarnWithContext(r.logger, "record sync failed", "record_sync_failed",
		logging.String(logging.FieldRecordID, out.RecordID),
		logging.String("database", out.Database),
		logging.String("outcome", string(out.Class)),
		logging.Error(err),
		logging.String(logging.FieldImpact, "record left unchanged until the next run"),
		logging.String(logging.FieldErrorHint, hintFor(err)),
	)
	return nil
}

func (s *Syncer) observe(r *run, status Status) {
	if s.observer != nil {
		s.observer.ObserveRecord(string(r.target.Name), status)
	}
}

// pick returns the values of merged for the properties present in keys.
func pick(merged, keys merge.Properties) merge.Properties {
	out := make(merge.Properties, len(keys))
	for prop := range keys {
		out[prop] = merged[prop]
	}
	return out
}

func hintFor(err error) string {
	switch {
	case errors.Is(err, services.ErrAuth):
		return "check the API credentials in the config file or environment"
	case errors.Is(err, services.ErrSchema):
		return "run `shelfsync schema check` and fix the property ids in the config"
	case errors.Is(err, services.ErrConfiguration):
		return "run `shelfsync config validate`"
	case errors.Is(err, services.ErrNotFound):
		return "store an external id on the record or correct its title"
	case errors.Is(err, services.ErrRateLimited), errors.Is(err, services.ErrTransient):
		return "retry later; the provider is throttling or unavailable"
	default:
		return "rerun with --log-level debug for details"
	}
}
