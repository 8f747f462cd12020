// Package enrich drives website enrichment, auditing, and scoring of the
// leads discovered for a search job.
package enrich

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leadgen/internal/audit"
	"github.com/sells-group/leadgen/internal/crawl"
	"github.com/sells-group/leadgen/internal/metrics"
	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/scorer"
	"github.com/sells-group/leadgen/internal/store"
)

const (
	// DefaultConcurrency is the number of leads enriched at once.
	DefaultConcurrency = 3
	// DefaultFreshnessWindow is how long an audit stays current.
	DefaultFreshnessWindow = 30 * 24 * time.Hour
	// progressEvery is how often enriched_count is written mid-run.
	progressEvery = 5
	// rescorePageSize is the page size used when rescoring every lead.
	rescorePageSize = 500
)

// Outcome is how a single lead left the pipeline.
type Outcome string

const (
	OutcomeReused    Outcome = "reused"
	OutcomeFresh     Outcome = "fresh"
	OutcomeNoWebsite Outcome = "no_website"
	OutcomeEnriched  Outcome = "enriched"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeError     Outcome = "error"
)

// Crawler crawls a business website.
type Crawler interface {
	Crawl(ctx context.Context, url string) *crawl.Result
}

// Auditor scores a single web page.
type Auditor interface {
	Audit(ctx context.Context, url string) *audit.Result
}

// Summary reports what one RunJob call did.
type Summary struct {
	JobID     string        `json:"job_id"`
	Pending   int           `json:"pending"`
	Processed int           `json:"processed"`
	Enriched  int           `json:"enriched"`
	Failed    int           `json:"failed"`
	Reused    int           `json:"reused"`
	Fresh     int           `json:"fresh"`
	NoWebsite int           `json:"no_website"`
	Errors    int           `json:"errors"`
	Duration  time.Duration `json:"duration"`
}

func (s *Summary) add(o Outcome) {
	switch o {
	case OutcomeEnriched:
		s.Enriched++
	case OutcomeFailed:
		s.Failed++
	case OutcomeReused:
		s.Reused++
	case OutcomeFresh:
		s.Fresh++
	case OutcomeNoWebsite:
		s.NoWebsite++
	case OutcomeError:
		s.Errors++
	}
}

// Orchestrator enriches leads with bounded concurrency.
type Orchestrator struct {
	store       store.Store
	crawler     Crawler
	auditor     Auditor
	concurrency int
	freshness   time.Duration
	now         func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConcurrency sets how many leads are enriched at once.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithFreshnessWindow sets how recent an audit must be to skip crawling.
func WithFreshnessWindow(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.freshness = d
		}
	}
}

// WithAuditor sets the auditor used by AuditLead.
func WithAuditor(a Auditor) Option {
	return func(o *Orchestrator) { o.auditor = a }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an Orchestrator.
func New(st store.Store, c Crawler, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:       st,
		crawler:     c,
		concurrency: DefaultConcurrency,
		freshness:   DefaultFreshnessWindow,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunJob enriches every pending lead of jobID. Per-lead failures are
// recorded on the lead and never abort the job. The job ends complete
// with enriched_count covering every processed lead.
func (o *Orchestrator) RunJob(ctx context.Context, jobID string) (*Summary, error) {
	start := time.Now()
	log := zap.L().With(zap.String("job_id", jobID))

	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, eris.Wrapf(err, "enrich: get job %s", jobID)
	}

	ids, err := o.store.ListJobLeadIDs(ctx, jobID, model.EnrichmentPending)
	if err != nil {
		return nil, o.failJob(ctx, job, eris.Wrap(err, "enrich: list pending leads"))
	}

	job.Status = model.JobStatusRunning
	if err := o.store.UpdateJob(ctx, job); err != nil {
		return nil, o.failJob(ctx, job, eris.Wrap(err, "enrich: mark running"))
	}
	base := job.EnrichedCount

	log.Info("enrich: job started", zap.Int("pending", len(ids)), zap.Int("concurrency", o.concurrency))

	summary := &Summary{JobID: jobID, Pending: len(ids)}
	var (
		mu        sync.Mutex
		processed atomic.Int64
		progress  = &progressWriter{store: o.store, jobID: jobID}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	for _, id := range ids {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			outcome := o.safeProcess(gctx, id)
			metrics.ObserveLead(string(outcome))

			mu.Lock()
			summary.add(outcome)
			mu.Unlock()

			if outcome == OutcomeSkipped {
				return nil
			}
			n := processed.Add(1)
			if n%progressEvery == 0 {
				progress.write(gctx, base+int(n))
			}
			return nil // don't abort the job on individual failure
		})
	}
	_ = g.Wait()

	summary.Processed = int(processed.Load())
	summary.Duration = time.Since(start)

	// Re-read so concurrent progress writes are not clobbered with stale fields.
	final, err := o.store.GetJob(context.WithoutCancel(ctx), jobID)
	if err != nil {
		return summary, eris.Wrapf(err, "enrich: reload job %s", jobID)
	}
	final.EnrichedCount = base + summary.Processed
	if ctx.Err() != nil {
		return summary, o.failJob(ctx, final, eris.Wrap(ctx.Err(), "enrich: interrupted"))
	}
	final.Status = model.JobStatusComplete
	final.ErrorMessage = ""
	if err := o.store.UpdateJob(ctx, final); err != nil {
		return summary, eris.Wrap(err, "enrich: mark complete")
	}
	metrics.ObserveJob("enrichment", string(final.Status))

	log.Info("enrich: job complete",
		zap.Int("processed", summary.Processed),
		zap.Int("enriched", summary.Enriched),
		zap.Int("failed", summary.Failed),
		zap.Int("reused", summary.Reused),
		zap.Int("fresh", summary.Fresh),
		zap.Int("no_website", summary.NoWebsite),
		zap.Int("errors", summary.Errors),
		zap.Duration("duration", summary.Duration),
	)
	return summary, nil
}

func (o *Orchestrator) failJob(ctx context.Context, job *model.SearchJob, cause error) error {
	job.Status = model.JobStatusFailed
	job.ErrorMessage = cause.Error()
	if err := o.store.UpdateJob(context.WithoutCancel(ctx), job); err != nil {
		zap.L().Error("enrich: mark job failed",
			zap.String("job_id", job.ID), zap.NamedError("cause", cause), zap.Error(err))
	}
	metrics.ObserveJob("enrichment", string(job.Status))
	return cause
}

// progressWriter writes enriched_count mid-run, never moving it backwards.
type progressWriter struct {
	mu    sync.Mutex
	store store.Store
	jobID string
	last  int
}

func (p *progressWriter) write(ctx context.Context, count int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if count <= p.last {
		return
	}
	job, err := p.store.GetJob(ctx, p.jobID)
	if err != nil {
		zap.L().Warn("enrich: progress read failed", zap.String("job_id", p.jobID), zap.Error(err))
		return
	}
	job.EnrichedCount = count
	if err := p.store.UpdateJob(ctx, job); err != nil {
		zap.L().Warn("enrich: progress write failed", zap.String("job_id", p.jobID), zap.Error(err))
		return
	}
	p.last = count
}

// safeProcess runs processLead, turning errors and panics into OutcomeError.
func (o *Orchestrator) safeProcess(ctx context.Context, leadID string) (outcome Outcome) {
	log := zap.L().With(zap.String("lead_id", leadID))
	defer func() {
		if r := recover(); r != nil {
			log.Error("enrich: lead panicked",
				zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			o.markFailed(ctx, leadID, fmt.Sprintf("panic: %v", r))
			outcome = OutcomeError
		}
	}()

	outcome, err := o.processLead(ctx, leadID)
	if err != nil {
		log.Error("enrich: lead failed", zap.Error(err))
		o.markFailed(ctx, leadID, err.Error())
		return OutcomeError
	}
	log.Debug("enrich: lead done", zap.String("outcome", string(outcome)))
	return outcome
}

// markFailed best-effort moves a lead stuck in crawling to failed.
func (o *Orchestrator) markFailed(ctx context.Context, leadID, reason string) {
	ctx = context.WithoutCancel(ctx)
	err := o.withUnit(ctx, func(uow store.UnitOfWork) error {
		lead, err := uow.GetLead(ctx, leadID)
		if err != nil {
			return err
		}
		if !lead.EnrichmentStatus.CanTransition(model.EnrichmentFailed) {
			return nil
		}
		lead.EnrichmentStatus = model.EnrichmentFailed
		lead.AuditSummary = "Enrichment failed: " + reason
		scorer.Apply(lead)
		return uow.UpdateLead(ctx, lead)
	})
	if err != nil {
		zap.L().Warn("enrich: could not mark lead failed", zap.String("lead_id", leadID), zap.Error(err))
	}
}

// withUnit runs fn in its own unit of work, committing on success.
func (o *Orchestrator) withUnit(ctx context.Context, fn func(uow store.UnitOfWork) error) error {
	uow, err := o.store.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "enrich: begin")
	}
	defer uow.Rollback(context.WithoutCancel(ctx)) //nolint:errcheck

	if err := fn(uow); err != nil {
		return err
	}
	return eris.Wrap(uow.Commit(ctx), "enrich: commit")
}

// processLead resolves one pending lead. Reusing an enriched twin wins
// over a fresh audit, which wins over crawling.
func (o *Orchestrator) processLead(ctx context.Context, leadID string) (Outcome, error) {
	var (
		outcome Outcome
		lead    *model.Lead
	)
	err := o.withUnit(ctx, func(uow store.UnitOfWork) error {
		var err error
		lead, err = uow.GetLead(ctx, leadID)
		if err != nil {
			return err
		}
		if lead.EnrichmentStatus != model.EnrichmentPending {
			outcome = OutcomeSkipped
			return nil
		}

		twin, err := uow.FindEnrichedTwin(ctx, lead.PlaceKey(), lead.Website, lead.ID)
		if err != nil {
			return err
		}
		switch {
		case twin != nil:
			lead.CopyEnrichment(twin)
			outcome = OutcomeReused
		case lead.AuditFresh(o.now(), o.freshness):
			lead.EnrichmentStatus = model.EnrichmentEnriched
			outcome = OutcomeFresh
		default:
			lead.EnrichmentStatus = model.EnrichmentCrawling
		}
		scorer.Apply(lead)
		return uow.UpdateLead(ctx, lead)
	})
	if err != nil || outcome != "" {
		return outcome, err
	}

	if lead.Website == "" {
		return OutcomeNoWebsite, o.withUnit(ctx, func(uow store.UnitOfWork) error {
			cur, err := uow.GetLead(ctx, leadID)
			if err != nil {
				return err
			}
			cur.HasWebsite = false
			cur.EnrichmentStatus = model.EnrichmentEnriched
			cur.AuditStatus = model.AuditNoWebsite
			scorer.Apply(cur)
			return uow.UpdateLead(ctx, cur)
		})
	}

	res := o.crawl(ctx, lead.Website)

	outcome = OutcomeEnriched
	if res.Failed() {
		outcome = OutcomeFailed
	}
	err = o.withUnit(ctx, func(uow store.UnitOfWork) error {
		cur, err := uow.GetLead(ctx, leadID)
		if err != nil {
			return err
		}
		applyCrawl(cur, res, o.now())
		scorer.Apply(cur)
		return uow.UpdateLead(ctx, cur)
	})
	return outcome, err
}

func (o *Orchestrator) crawl(ctx context.Context, url string) *crawl.Result {
	metrics.IncActiveCrawls()
	defer metrics.DecActiveCrawls()
	return o.crawler.Crawl(ctx, url)
}

// applyCrawl copies crawl output onto lead.
func applyCrawl(lead *model.Lead, res *crawl.Result, now time.Time) {
	lead.HasWebsite = true
	lead.WebsiteStatus = res.StatusCode
	lead.Platform = res.Platform
	lead.Emails = append([]string{}, res.Emails...)
	lead.Phones = append([]string{}, res.Phones...)
	lead.Socials = res.Socials
	lead.AuditedAt = &now

	if res.Failed() {
		lead.EnrichmentStatus = model.EnrichmentFailed
		lead.AuditFlags = nil
		lead.AuditSummary = res.Error
		return
	}
	lead.EnrichmentStatus = model.EnrichmentEnriched
	lead.AuditStatus = model.AuditComplete
	lead.AuditFlags = Flags(res)
}

// AuditLead audits a lead's website on demand and stores the result.
func (o *Orchestrator) AuditLead(ctx context.Context, leadID string) (*model.Lead, error) {
	if o.auditor == nil {
		return nil, eris.New("enrich: no auditor configured")
	}
	lead, err := o.store.GetLead(ctx, leadID)
	if err != nil {
		return nil, eris.Wrapf(err, "enrich: get lead %s", leadID)
	}

	var res *audit.Result
	if lead.Website != "" {
		res = o.auditor.Audit(ctx, lead.Website)
	}

	var out *model.Lead
	err = o.withUnit(ctx, func(uow store.UnitOfWork) error {
		cur, err := uow.GetLead(ctx, leadID)
		if err != nil {
			return err
		}
		if res == nil {
			cur.HasWebsite = false
			cur.AuditStatus = model.AuditNoWebsite
		} else {
			applyAudit(cur, res, o.now())
		}
		scorer.Apply(cur)
		if err := uow.UpdateLead(ctx, cur); err != nil {
			return err
		}
		out = cur
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "enrich: audit lead %s", leadID)
	}
	zap.L().Info("enrich: lead audited",
		zap.String("lead_id", leadID),
		zap.Any("audit_score", out.AuditScore),
		zap.Int("lead_score", out.LeadScore),
	)
	return out, nil
}

func applyAudit(lead *model.Lead, res *audit.Result, now time.Time) {
	score := res.Score
	lead.HasWebsite = true
	lead.AuditScore = &score
	lead.AuditGrade = res.Grade
	lead.AuditSummary = res.Summary
	lead.AuditFixes = append([]string{}, res.Fixes...)
	lead.AuditedAt = &now
	lead.AuditStatus = model.AuditComplete
	if res.StatusCode != 0 {
		lead.WebsiteStatus = res.StatusCode
	}
}

// RescoreAll recomputes score and tier for every lead from stored signals
// and writes only the leads whose score or tier changed.
func (o *Orchestrator) RescoreAll(ctx context.Context) (int, error) {
	var updates []store.ScoreUpdate
	for offset := 0; ; offset += rescorePageSize {
		leads, _, err := o.store.ListLeads(ctx, store.LeadFilter{
			Sort:   store.SortCreated,
			Dir:    store.SortAsc,
			Limit:  rescorePageSize,
			Offset: offset,
		})
		if err != nil {
			return 0, eris.Wrap(err, "enrich: list leads for rescore")
		}
		for i := range leads {
			score, tier := scorer.Score(&leads[i])
			if score != leads[i].LeadScore || tier != leads[i].LeadTier {
				updates = append(updates, store.ScoreUpdate{LeadID: leads[i].ID, Score: score, Tier: tier})
			}
		}
		if len(leads) < rescorePageSize {
			break
		}
	}

	if err := o.store.UpdateScores(ctx, updates); err != nil {
		return 0, eris.Wrap(err, "enrich: write scores")
	}
	zap.L().Info("enrich: rescore complete", zap.Int("changed", len(updates)))
	return len(updates), nil
}
