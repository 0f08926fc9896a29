// Package scheduler materializes recurring task templates into concrete task
// instances. Each tick scans for due templates, inserts the missed occurrences
// up to a catch-up cap, publishes events for the instances it created, and
// advances each template's schedule anchor. Every step is written to be safe
// under concurrent replicas: instance creation defers to a database uniqueness
// constraint and anchor advancement is a conditional update, so two replicas
// running the same tick produce the same tasks exactly once.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/taskwire/taskwire/internal/config"
	"github.com/taskwire/taskwire/internal/domain"
	"github.com/taskwire/taskwire/internal/events"
	"github.com/taskwire/taskwire/internal/platform/logger"
	"github.com/taskwire/taskwire/internal/publisher"
	"github.com/taskwire/taskwire/internal/store"
)

// TickResult summarizes one generator pass for logging and the trigger
// endpoint's response.
type TickResult struct {
	TemplatesDue int `json:"templates_due"`
	Generated    int `json:"generated"`
	Skipped      int `json:"skipped"`
	Errors       int `json:"errors"`
}

// Generator produces task instances from due recurring templates.
type Generator struct {
	templates    store.TemplateStore
	instances    store.TaskInstanceStore
	publisher    *publisher.Publisher
	catchUpLimit int
	logger       *slog.Logger
	now          func() time.Time
}

// NewGenerator creates a Generator wired to the given stores and publisher.
func NewGenerator(
	templates store.TemplateStore,
	instances store.TaskInstanceStore,
	pub *publisher.Publisher,
	cfg config.SchedulerConfig,
	log *slog.Logger,
) *Generator {
	if log == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for Generator")
	}
	return &Generator{
		templates:    templates,
		instances:    instances,
		publisher:    pub,
		catchUpLimit: cfg.CatchUpLimit,
		logger:       log.With(slog.String("component", "generator")),
		now:          time.Now,
	}
}

// RunTick performs one generation pass: list due templates, then for each one
// walk its occurrence chain from the stored anchor up to now, creating the
// task for each occurrence and advancing the anchor. A template that has been
// unreachable for longer than the catch-up cap generates at most catchUpLimit
// instances this tick and resumes on the next.
//
// A failing template never aborts the tick; its error is counted and the pass
// moves on to the next template.
func (g *Generator) RunTick(ctx context.Context) (TickResult, error) {
	log := logger.FromContextOrDefault(ctx, g.logger)
	now := g.now().UTC()

	due, err := g.templates.ListDue(ctx, now)
	if err != nil {
		return TickResult{}, fmt.Errorf("failed to list due templates: %w", err)
	}

	result := TickResult{TemplatesDue: len(due)}
	for _, tpl := range due {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		created, skipped, err := g.generateForTemplate(ctx, tpl, now)
		result.Generated += created
		result.Skipped += skipped
		if err != nil {
			result.Errors++
			log.Error("generation failed for template",
				"template_id", tpl.TemplateID,
				"error", err)
		}
	}

	log.Info("generation tick complete",
		"templates_due", result.TemplatesDue,
		"generated", result.Generated,
		"skipped", result.Skipped,
		"errors", result.Errors)
	return result, nil
}

// generateForTemplate walks one template's occurrence chain. Each step is
// insert-then-advance: the instance insert must land (or be confirmed a
// duplicate) before the anchor moves past its occurrence, so a crash between
// the two leaves a duplicate-tolerant retry on the next tick rather than a
// silently skipped occurrence.
func (g *Generator) generateForTemplate(
	ctx context.Context,
	tpl *domain.RecurringTemplate,
	now time.Time,
) (created, skipped int, err error) {
	log := logger.FromContextOrDefault(ctx, g.logger)

	occurrence := tpl.NextOccurrence.UTC()
	for steps := 0; !occurrence.After(now); steps++ {
		if steps >= g.catchUpLimit {
			log.Warn("catch-up cap reached, deferring remaining occurrences",
				"template_id", tpl.TemplateID,
				"next_occurrence", occurrence,
				"cap", g.catchUpLimit)
			break
		}

		instance := domain.NewTaskInstance(tpl, occurrence)
		fresh, err := g.instances.CreateIfAbsent(ctx, instance)
		if err != nil {
			return created, skipped, fmt.Errorf("failed to create instance at %s: %w", occurrence, err)
		}
		if fresh {
			created++
			g.publishCreated(ctx, instance)
		} else {
			// Another replica, or a prior crashed tick, already owns this
			// occurrence. The anchor still needs to advance past it.
			skipped++
		}

		next, err := tpl.Rule.Next(occurrence)
		if err != nil {
			return created, skipped, fmt.Errorf("failed to compute next occurrence: %w", err)
		}
		if err := g.advanceAnchor(ctx, tpl.TemplateID, occurrence, next); err != nil {
			return created, skipped, err
		}
		occurrence = next.UTC()
	}
	return created, skipped, nil
}

// advanceAnchor moves the template's next_occurrence forward. A conditional
// update that matches zero rows means a concurrent replica advanced the
// anchor first; the store reports that as success, so only real failures
// surface here.
func (g *Generator) advanceAnchor(ctx context.Context, id uuid.UUID, from, to time.Time) error {
	if err := g.templates.AdvanceNextOccurrence(ctx, id, from, to); err != nil {
		return fmt.Errorf("failed to advance schedule anchor: %w", err)
	}
	return nil
}

// publishCreated emits the post-commit events for a freshly created instance.
// The publisher absorbs handoff failures, so generation throughput is never
// coupled to broker availability.
func (g *Generator) publishCreated(ctx context.Context, instance *domain.TaskInstance) {
	var due *string
	if instance.DueDate != nil {
		d := instance.DueDate.UTC().Format(time.RFC3339)
		due = &d
	}
	g.publisher.TaskMutated(ctx, events.EventTypeTaskCreated, events.TaskEventData{
		TaskID:  instance.ID,
		UserID:  instance.OwnerID,
		Title:   instance.Title,
		DueDate: due,
	})
	g.publisher.ReminderDue(ctx, events.ReminderDueData{
		TaskID:      instance.ID,
		UserID:      instance.OwnerID,
		Title:       instance.Title,
		ScheduledAt: instance.OccurrenceDate.UTC(),
	})
}
