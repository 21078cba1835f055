// Package refresher periodically reconciles the status of every registered
// project and publishes the transitions.
package refresher

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/kazz187/tmdash/internal/eventbus"
	"github.com/kazz187/tmdash/internal/project"
	"github.com/kazz187/tmdash/internal/taskmaster"
	"github.com/kazz187/tmdash/pkg/panicerr"
)

type snapshot struct {
	status        taskmaster.Status
	mcpConfigured bool
}

type Refresher struct {
	repo      project.Repository
	inspector *taskmaster.Inspector
	eventBus  *eventbus.Bus
	schedule  string

	mu   sync.Mutex
	last map[string]snapshot // keyed by project name
}

func New(repo project.Repository, inspector *taskmaster.Inspector, eventBus *eventbus.Bus, schedule string) *Refresher {
	return &Refresher{
		repo:      repo,
		inspector: inspector,
		eventBus:  eventBus,
		schedule:  schedule,
		last:      map[string]snapshot{},
	}
}

// Start primes the known statuses and refreshes on schedule until ctx is
// done.
func (r *Refresher) Start(ctx context.Context) error {
	c := cron.New()
	refresh := panicerr.SafeContext(func(ctx context.Context) error {
		_, err := r.Refresh(ctx)
		return err
	})
	if _, err := c.AddFunc(r.schedule, func() {
		if err := refresh(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to refresh project statuses", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", r.schedule, err)
	}
	if err := refresh(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to refresh project statuses", "error", err)
	}

	c.Start()
	slog.InfoContext(ctx, "status refresher started", "schedule", r.schedule)
	<-ctx.Done()
	<-c.Stop().Done()
	slog.InfoContext(ctx, "status refresher stopped")
	return nil
}

// Refresh inspects every project and publishes what changed since the
// previous run. Projects seen for the first time are only recorded. It
// returns the number of published events.
func (r *Refresher) Refresh(ctx context.Context) (int, error) {
	projects, _, err := r.repo.List(ctx, 0, 0)
	if err != nil {
		return 0, err
	}
	statuses := r.inspector.InspectAll(ctx, taskmaster.Targets(projects))

	r.mu.Lock()
	var events []*eventbus.Event
	seen := make(map[string]bool, len(statuses))
	for _, st := range statuses {
		seen[st.ProjectName] = true
		cur := snapshot{status: st.Status, mcpConfigured: st.MCP.Configured()}
		prev, known := r.last[st.ProjectName]
		r.last[st.ProjectName] = cur
		if !known {
			continue
		}
		if prev.status != cur.status {
			events = append(events, &eventbus.Event{
				Type:        eventbus.TypeProjectUpdated,
				ProjectName: st.ProjectName,
				Data:        st,
				Metadata: map[string]string{
					"previous_status": string(prev.status),
					"status":          string(cur.status),
				},
			})
		}
		if prev.mcpConfigured != cur.mcpConfigured {
			events = append(events, &eventbus.Event{
				Type:        eventbus.TypeMCPStatusChanged,
				ProjectName: st.ProjectName,
				Data:        st.MCP,
				Metadata:    map[string]string{"configured": strconv.FormatBool(cur.mcpConfigured)},
			})
		}
	}
	for name := range r.last {
		if !seen[name] {
			delete(r.last, name)
		}
	}
	r.mu.Unlock()

	for _, ev := range events {
		r.eventBus.PublishNew(ev.Type, ev.ProjectName, ev.Data, ev.Metadata)
	}
	return len(events), nil
}
