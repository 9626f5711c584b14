package enforcement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/orialabs/voicedeck/internal/assistants"
	"github.com/orialabs/voicedeck/internal/logging"
	"github.com/orialabs/voicedeck/internal/monitoring"
	"github.com/orialabs/voicedeck/internal/provider"
	"github.com/rs/zerolog"
)

// ConfigMutator is the slice of the provider client the processor needs
type ConfigMutator interface {
	UpdateAssistantConfig(ctx context.Context, externalAssistantID string, update provider.AssistantConfigUpdate) error
}

// limitedFirstMessage replaces the assistant greeting while a user is over
// their cap, so callers hear why the call will be short.
const limitedFirstMessage = "This assistant has reached its monthly usage limit. Please contact the account owner to restore service."

const limitedSystemPrompt = "You are temporarily limited. Briefly inform the caller that the account's monthly usage cap has been reached, then end the call politely."

// ProcessorConfig holds the queue processor knobs
type ProcessorConfig struct {
	BatchSize            int
	GraceDurationSeconds int
	Retry                provider.RetryPolicy
}

// RunResult summarizes one processor pass
type RunResult struct {
	ItemsProcessed int `json:"items_processed"`
	ItemsFailed    int `json:"items_failed"`
}

// Processor drains the enforcement queue, mutating assistant configuration
// on the voice provider. A pass is guarded against overlapping runs by the
// injected Lock. Per-assistant failures are aggregated onto the item and do
// not stop the remaining assistants or items; the item is marked processed
// either way so a poison item cannot wedge the queue.
type Processor struct {
	queue      QueueStore
	assistants assistants.Store
	mutator    ConfigMutator
	lock       Lock
	cfg        ProcessorConfig
	now        func() time.Time
	log        zerolog.Logger
}

// NewProcessor creates a queue processor
func NewProcessor(queue QueueStore, assistantStore assistants.Store, mutator ConfigMutator, lock Lock, cfg ProcessorConfig, log zerolog.Logger) *Processor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.GraceDurationSeconds <= 0 {
		cfg.GraceDurationSeconds = 10
	}
	return &Processor{
		queue:      queue,
		assistants: assistantStore,
		mutator:    mutator,
		lock:       lock,
		cfg:        cfg,
		now:        time.Now,
		log:        log,
	}
}

// Run executes one processing pass. A pass that finds the lock held returns
// immediately with a zero result; that is an expected overlap, not an error.
func (p *Processor) Run(ctx context.Context) (*RunResult, error) {
	acquired, err := p.lock.TryAcquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire processor lock: %w", err)
	}
	if !acquired {
		p.log.Debug().Msg("Queue processor already running, skipping pass")
		return &RunResult{}, nil
	}
	defer func() {
		if err := p.lock.Release(context.WithoutCancel(ctx)); err != nil {
			p.log.Warn().Err(err).Msg("Failed to release processor lock")
		}
	}()

	items, err := p.queue.FetchPending(ctx, p.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending items: %w", err)
	}

	result := &RunResult{}
	for i := range items {
		item := &items[i]
		errMsg := p.processItem(ctx, item)
		if err := p.queue.MarkProcessed(ctx, item.ID, errMsg); err != nil {
			// The item stays pending and will be picked up again; the
			// per-assistant mutations are individually idempotent, so a
			// repeat pass converges.
			p.log.Error().Err(err).
				Str("item_id", item.ID.String()).
				Msg("Failed to mark queue item processed")
			continue
		}
		result.ItemsProcessed++
		if errMsg != nil {
			result.ItemsFailed++
		}
	}

	if pending, err := p.queue.CountPending(ctx); err == nil {
		monitoring.SetQueueDepth(float64(pending))
	}

	return result, nil
}

// processItem applies one queue item to every assistant of its user and
// returns the aggregated error message, or nil when everything succeeded.
func (p *Processor) processItem(ctx context.Context, item *QueueItem) *string {
	list, err := p.assistants.ListByUser(ctx, item.UserID)
	if err != nil {
		msg := fmt.Sprintf("failed to list assistants: %v", err)
		return &msg
	}

	var failures []string
	for i := range list {
		assistant := &list[i]
		var err error
		switch item.Action {
		case ActionEnforce:
			err = p.enforceAssistant(ctx, assistant)
		case ActionRestore:
			err = p.restoreAssistant(ctx, assistant)
		default:
			err = fmt.Errorf("unknown action %q", item.Action)
		}
		if err != nil {
			monitoring.RecordEnforcementAction(string(item.Action), "error")
			logging.LogEnforcement(item.UserID.String(), assistant.ExternalAssistantID, string(item.Action), 0, err)
			failures = append(failures, fmt.Sprintf("%s: %v", assistant.ExternalAssistantID, err))
			continue
		}
		monitoring.RecordEnforcementAction(string(item.Action), "ok")
	}

	if len(failures) == 0 {
		return nil
	}
	msg := strings.Join(failures, "; ")
	return &msg
}

// enforceAssistant throttles one assistant down to the grace duration. An
// already-limited assistant is a no-op so redelivered or repeated enforce
// items cannot clobber the captured original duration.
func (p *Processor) enforceAssistant(ctx context.Context, a *assistants.Assistant) error {
	if a.IsUsageLimited {
		return nil
	}

	original := a.MaxDurationSeconds
	first := limitedFirstMessage
	prompt := limitedSystemPrompt

	err := p.cfg.Retry.Do(ctx, func() error {
		return p.mutator.UpdateAssistantConfig(ctx, a.ExternalAssistantID, provider.AssistantConfigUpdate{
			MaxDurationSeconds: p.cfg.GraceDurationSeconds,
			FirstMessage:       &first,
			SystemPrompt:       &prompt,
		})
	})
	if err != nil {
		return err
	}

	if err := p.assistants.MarkLimited(ctx, a.ID, original, p.cfg.GraceDurationSeconds, p.now()); err != nil {
		return fmt.Errorf("provider updated but local state flip failed: %w", err)
	}
	logging.LogEnforcement(a.UserID.String(), a.ExternalAssistantID, string(ActionEnforce), p.cfg.GraceDurationSeconds, nil)
	return nil
}

// restoreAssistant returns one assistant to its pre-enforcement duration
func (p *Processor) restoreAssistant(ctx context.Context, a *assistants.Assistant) error {
	if !a.IsUsageLimited {
		return nil
	}
	if a.OriginalMaxDurationSeconds == nil {
		return fmt.Errorf("limited assistant %s has no captured original duration", a.ExternalAssistantID)
	}
	restored := *a.OriginalMaxDurationSeconds

	// Empty-string overrides clear the limited greeting and prompt on the
	// provider side.
	clear := ""
	err := p.cfg.Retry.Do(ctx, func() error {
		return p.mutator.UpdateAssistantConfig(ctx, a.ExternalAssistantID, provider.AssistantConfigUpdate{
			MaxDurationSeconds: restored,
			FirstMessage:       &clear,
			SystemPrompt:       &clear,
		})
	})
	if err != nil {
		return err
	}

	if err := p.assistants.MarkRestored(ctx, a.ID, restored); err != nil {
		return fmt.Errorf("provider updated but local state flip failed: %w", err)
	}
	logging.LogEnforcement(a.UserID.String(), a.ExternalAssistantID, string(ActionRestore), restored, nil)
	return nil
}
