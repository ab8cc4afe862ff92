// Package triage orchestrates one sync: fetch unread messages, reconcile
// them into the store, and enrich whatever still needs it with triage and
// summary results from the generation engine.
package triage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nhle/mail-triage/internal/engine"
	"github.com/nhle/mail-triage/internal/mail"
	"github.com/nhle/mail-triage/internal/mailbox"
	"github.com/nhle/mail-triage/internal/model"
	"github.com/nhle/mail-triage/internal/store"
)

// Generator is the slice of the engine client the orchestrator needs.
type Generator interface {
	Generate(ctx context.Context, prompt string, timeout time.Duration) (string, error)
	Healthy(ctx context.Context) error
}

// fallbackDraft is stored when the AI stage fails, so every message still
// has user-facing content for the reviewer.
const fallbackDraft = "Thank you for reaching out. We have received your " +
	"message and a member of our team will get back to you shortly."

// Report aggregates the counters for one sync invocation. It is always
// returned, even on partial failure, so the caller can see exactly what
// happened.
type Report struct {
	// RunID correlates this sync's log lines.
	RunID string `json:"run_id"`

	// Fetched is how many unread messages the mailbox returned.
	Fetched int `json:"fetched"`

	// Created is how many of those were new records.
	Created int `json:"created"`

	// Triaged is how many triage results were written this run,
	// including fallback results.
	Triaged int `json:"triaged"`

	// Summarized is how many summaries were successfully generated.
	Summarized int `json:"summarized"`

	// Errors counts per-message failures: AI-stage fallbacks and store
	// errors. Never aborts the batch.
	Errors int `json:"errors"`

	// Elapsed is the wall-clock duration of the whole sync.
	Elapsed time.Duration `json:"elapsed"`
}

// Orchestrator runs the ingestion and triage pipeline. All collaborators
// are injected; it holds no hidden process-wide state.
type Orchestrator struct {
	store   store.Store
	mailbox mailbox.Mailbox
	engine  Generator
	cfg     model.TriageConfig
	timeout time.Duration
	maxMsgs int
	logger  *zap.Logger
}

// New creates an orchestrator from its collaborators and the relevant
// configuration sections.
func New(
	s store.Store,
	mbx mailbox.Mailbox,
	gen Generator,
	cfg *model.AppConfig,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := cfg.Triage.Workers
	if workers < 1 {
		workers = 1
	}
	triageCfg := cfg.Triage
	triageCfg.Workers = workers

	return &Orchestrator{
		store:   s,
		mailbox: mbx,
		engine:  gen,
		cfg:     triageCfg,
		timeout: time.Duration(cfg.Engine.TimeoutSec) * time.Second,
		maxMsgs: cfg.Mailbox.MaxResults,
		logger:  logger,
	}
}

// Sync runs one full batch: health probe, fetch, then per-message
// reconciliation and enrichment. Probe and fetch failures are fatal to
// the request; everything after is isolated per message. Within one
// message, the storage upsert always happens before any triage or
// summarize attempt; across messages there is no ordering guarantee.
func (o *Orchestrator) Sync(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{RunID: uuid.NewString()}
	log := o.logger.With(zap.String("run_id", report.RunID))

	// Short-circuit before doing expensive work if the engine is down.
	if err := o.engine.Healthy(ctx); err != nil {
		return nil, fmt.Errorf("sync aborted: %w", err)
	}

	fetched, err := o.mailbox.ListUnread(ctx, o.maxMsgs)
	if err != nil {
		return nil, fmt.Errorf("fetching unread messages: %w", err)
	}
	report.Fetched = len(fetched)
	log.Info("sync started",
		zap.String("provider", string(o.mailbox.Provider())),
		zap.Int("fetched", report.Fetched),
	)

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, o.cfg.Workers)
	)
	for _, f := range fetched {
		wg.Add(1)
		sem <- struct{}{}
		go func(f mailbox.Fetched) {
			defer wg.Done()
			defer func() { <-sem }()
			o.processMessage(ctx, f, report, &mu, log)
		}(f)
	}
	wg.Wait()

	report.Elapsed = time.Since(start)
	log.Info("sync finished",
		zap.Int("created", report.Created),
		zap.Int("triaged", report.Triaged),
		zap.Int("summarized", report.Summarized),
		zap.Int("errors", report.Errors),
		zap.Duration("elapsed", report.Elapsed),
	)
	return report, nil
}

// processMessage reconciles one fetched message and runs whatever AI
// enrichment it still needs. Failures are counted, never propagated: one
// bad message must not abort the rest of the batch.
func (o *Orchestrator) processMessage(
	ctx context.Context,
	f mailbox.Fetched,
	report *Report,
	mu *sync.Mutex,
	log *zap.Logger,
) {
	msg := f.Message
	msg.RawBody = mail.ExtractBody(f.Parts)
	msg.CleanBody = mail.Clean(msg.RawBody)

	created, err := o.store.UpsertMessage(ctx, &msg)
	if err != nil {
		log.Error("upsert failed",
			zap.String("external_id", msg.ExternalID), zap.Error(err))
		count(mu, &report.Errors)
		return
	}
	if created {
		count(mu, &report.Created)
	}

	current, err := o.store.GetMessage(ctx, msg.ExternalID)
	if err != nil || current == nil {
		log.Error("reload after upsert failed",
			zap.String("external_id", msg.ExternalID), zap.Error(err))
		count(mu, &report.Errors)
		return
	}

	if current.NeedsTriage() {
		res := o.triageMessage(ctx, current, log)
		if err := o.store.SetTriageResult(ctx, current.ExternalID, res); err != nil {
			log.Error("storing triage result failed",
				zap.String("external_id", current.ExternalID), zap.Error(err))
			count(mu, &report.Errors)
		} else {
			count(mu, &report.Triaged)
			if res.Error != "" {
				count(mu, &report.Errors)
			}
		}
	}

	if current.Summary == nil && len(current.CleanBody) > o.cfg.SummaryThreshold {
		res := o.summarizeMessage(ctx, current, log)
		if err := o.store.SetSummaryResult(ctx, current.ExternalID, res); err != nil {
			log.Error("storing summary result failed",
				zap.String("external_id", current.ExternalID), zap.Error(err))
			count(mu, &report.Errors)
		} else if res.Error == "" {
			count(mu, &report.Summarized)
		} else {
			count(mu, &report.Errors)
		}
	}
}

// triageMessage runs the generate -> extract -> validate gate and degrades
// to a synthetic fallback result on any failure. The fallback counts as
// done for future syncs unless the caller explicitly clears it.
func (o *Orchestrator) triageMessage(
	ctx context.Context,
	msg *model.Message,
	log *zap.Logger,
) *model.TriageResult {
	prompt := engine.BuildPrompt(engine.TaskTriage, msg, o.cfg.PromptBudget)

	raw, err := o.engine.Generate(ctx, prompt, o.timeout)
	if err != nil {
		log.Warn("triage generation failed",
			zap.String("external_id", msg.ExternalID), zap.Error(err))
		return fallbackResult(err)
	}

	obj, err := engine.ExtractJSON(raw)
	if err != nil {
		log.Warn("triage extraction failed",
			zap.String("external_id", msg.ExternalID), zap.Error(err))
		return fallbackResult(err)
	}

	res, err := engine.ValidateTriage(obj)
	if err != nil {
		log.Warn("triage validation failed",
			zap.String("external_id", msg.ExternalID), zap.Error(err))
		return fallbackResult(err)
	}

	return res
}

// summarizeMessage generates a summary for a long body. On failure an
// empty result with the error set is returned so the attempt is recorded
// and not repeated.
func (o *Orchestrator) summarizeMessage(
	ctx context.Context,
	msg *model.Message,
	log *zap.Logger,
) *model.SummaryResult {
	prompt := engine.BuildPrompt(engine.TaskSummarize, msg, o.cfg.SummaryBudget)

	raw, err := o.engine.Generate(ctx, prompt, o.timeout)
	if err == nil {
		var obj []byte
		if extracted, exErr := engine.ExtractJSON(raw); exErr == nil {
			obj = extracted
		} else {
			err = exErr
		}
		if err == nil {
			res, valErr := engine.ValidateSummary(obj)
			if valErr == nil {
				res.Title = clampTitle(res.Title)
				return res
			}
			err = valErr
		}
	}

	log.Warn("summary failed",
		zap.String("external_id", msg.ExternalID), zap.Error(err))
	return &model.SummaryResult{
		Error:     err.Error(),
		CreatedAt: time.Now().UTC(),
	}
}

// ForceRetriage clears the stored triage result so the next sync
// re-submits the message to the engine.
func (o *Orchestrator) ForceRetriage(ctx context.Context, externalID string) error {
	return o.store.ClearTriageResult(ctx, externalID)
}

// fallbackResult builds the synthetic low-confidence result written when
// the AI stage fails.
func fallbackResult(cause error) *model.TriageResult {
	return &model.TriageResult{
		Category:   model.CategoryGeneralQuestion,
		Urgency:    model.UrgencyLow,
		Confidence: 0.2,
		ReplyDraft: fallbackDraft,
		Error:      cause.Error(),
		CreatedAt:  time.Now().UTC(),
	}
}

// clampTitle truncates an advisory summary title to at most three words.
func clampTitle(title string) string {
	words := strings.Fields(title)
	if len(words) <= 3 {
		return title
	}
	return strings.Join(words[:3], " ")
}

// count bumps a report counter under the shared mutex.
func count(mu *sync.Mutex, field *int) {
	mu.Lock()
	*field++
	mu.Unlock()
}
