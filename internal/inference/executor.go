package inference

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"storyd/internal/fallback"
	"storyd/internal/manager"
)

// Acquirer lends pinned model handles. *manager.Manager satisfies it.
type Acquirer interface {
	Acquire() (*manager.Handle, func(), bool)
}

// Config holds per-deployment generation settings.
type Config struct {
	Params   manager.GenerationParams
	Deadline time.Duration
	Logger   zerolog.Logger
}

// DefaultDeadline bounds a single generation attempt.
const DefaultDeadline = 45 * time.Second

// Executor turns a prompt into a Result, preferring the model and degrading
// to fallback content whenever the model is unavailable, slow or failing.
type Executor struct {
	mgr      Acquirer
	pool     *Pool
	params   manager.GenerationParams
	deadline time.Duration
	log      zerolog.Logger
}

// NewExecutor builds an Executor over mgr and pool.
func NewExecutor(mgr Acquirer, pool *Pool, cfg Config) *Executor {
	e := &Executor{
		mgr:      mgr,
		pool:     pool,
		params:   cfg.Params,
		deadline: cfg.Deadline,
		log:      cfg.Logger.With().Str("component", "executor").Logger(),
	}
	if e.params.MaxNewTokens <= 0 {
		e.params = manager.DefaultGenerationParams()
	}
	if e.deadline <= 0 {
		e.deadline = DefaultDeadline
	}
	return e
}

// Pool returns the underlying worker pool.
func (e *Executor) Pool() *Pool { return e.pool }

// Generate never fails: every path yields a Result. Only an empty prompt
// produces Status=error. The prompt is trimmed before any other use.
func (e *Executor) Generate(ctx context.Context, prompt string) Result {
	start := time.Now()
	id := uuid.NewString()
	log := e.log.With().Str("gen_id", id).Logger()

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return e.finish(log, Result{
			ID:      id,
			Text:    InvalidPromptMessage,
			Status:  StatusError,
			Outcome: OutcomeInvalid,
		}, start)
	}

	h, release, ok := e.mgr.Acquire()
	if !ok {
		return e.finish(log, e.fallback(id, prompt, OutcomeUnavailable), start)
	}

	dctx, cancel := context.WithTimeout(ctx, e.deadline)
	defer cancel()

	formatted := FormatPrompt(prompt, e.params.PromptMaxTokens)
	var out manager.Completion
	task, err := e.pool.Submit(dctx, func(wctx context.Context) error {
		defer release()
		c, err := h.Backend().Generate(wctx, formatted, e.params)
		out = c
		return err
	})
	if err != nil {
		release()
		var r Result
		switch {
		case IsTooBusy(err):
			r = e.fallback(id, prompt, OutcomeBusy)
			r.Error = err.Error()
		case dctx.Err() != nil:
			r = e.fallback(id, prompt, OutcomeTimeout)
			r.Note = TimeoutNote
		default:
			r = e.fallback(id, prompt, OutcomeError)
			r.Error = err.Error()
		}
		return e.finish(log, r, start)
	}

	select {
	case <-task.Done():
		if err := task.Err(); err != nil {
			if dctx.Err() != nil && errors.Is(err, dctx.Err()) {
				r := e.fallback(id, prompt, OutcomeTimeout)
				r.Note = TimeoutNote
				return e.finish(log, r, start)
			}
			r := e.fallback(id, prompt, OutcomeError)
			r.Error = err.Error()
			return e.finish(log, r, start)
		}
		text := CleanOutput(out.Text, formatted)
		if text == "" {
			r := e.fallback(id, prompt, OutcomeError)
			r.Error = errEmptyGeneration.Error()
			return e.finish(log, r, start)
		}
		log.Debug().Str("handle", h.ID()).Int("tokens", out.Usage.CompletionTokens).Msg("generation complete")
		return e.finish(log, Result{
			ID:        id,
			Text:      text,
			ModelUsed: true,
			Status:    StatusSuccess,
			Outcome:   OutcomeModel,
		}, start)
	case <-dctx.Done():
		// The worker sees the canceled context and keeps its slot and
		// handle pin until it returns.
		task.Abandon()
		r := e.fallback(id, prompt, OutcomeTimeout)
		r.Note = TimeoutNote
		return e.finish(log, r, start)
	}
}

func (e *Executor) fallback(id, prompt string, outcome Outcome) Result {
	return Result{
		ID:      id,
		Text:    fallback.Story(prompt),
		Status:  StatusSuccess,
		Outcome: outcome,
	}
}

func (e *Executor) finish(log zerolog.Logger, r Result, start time.Time) Result {
	r.Duration = time.Since(start)
	generationsTotal.WithLabelValues(string(r.Outcome)).Inc()
	generationDuration.WithLabelValues(string(r.Outcome)).Observe(r.Duration.Seconds())
	ev := log.Info()
	if r.Error != "" {
		ev = log.Warn().Str("error", r.Error)
	}
	ev.Str("outcome", string(r.Outcome)).
		Bool("model_used", r.ModelUsed).
		Dur("dur", r.Duration).
		Msg("story generated")
	return r
}
