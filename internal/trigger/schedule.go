package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/RealZimboGuy/gopherstep/internal/engine"
	"github.com/robfig/cron/v3"
)

// Schedule starts a definition whenever its cron spec fires.
type Schedule struct {
	Spec       string
	Definition string
}

// ParseSchedules reads the GSTEP_SCHEDULE_TRIGGERS format: semicolon
// separated "<cron spec>=<definition>" pairs, e.g.
// "*/5 * * * *=data_pipeline;@daily=cleanup".
func ParseSchedules(raw string) ([]Schedule, error) {
	var out []Schedule
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		i := strings.LastIndex(part, "=")
		if i <= 0 || i == len(part)-1 {
			return nil, fmt.Errorf("schedule trigger %q: expected <cron spec>=<definition>", part)
		}
		s := Schedule{Spec: strings.TrimSpace(part[:i]), Definition: strings.TrimSpace(part[i+1:])}
		if _, err := scheduleParser.Parse(s.Spec); err != nil {
			return nil, fmt.Errorf("schedule trigger %q: %w", part, err)
		}
		out = append(out, s)
	}
	return out, nil
}

var scheduleParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ScheduleTrigger runs a cron scheduler that starts executions. Each firing
// is started under a name derived from the fire time, so a firing is never
// started twice.
type ScheduleTrigger struct {
	starter   Starter
	schedules []Schedule
	cron      *cron.Cron
	logger    *slog.Logger
}

func NewScheduleTrigger(starter Starter, schedules []Schedule, logger *slog.Logger) *ScheduleTrigger {
	return &ScheduleTrigger{
		starter:   starter,
		schedules: schedules,
		cron:      cron.New(cron.WithParser(scheduleParser), cron.WithLocation(time.UTC)),
		logger:    logger.With("module", "schedule_trigger"),
	}
}

func (t *ScheduleTrigger) Start(ctx context.Context) error {
	for i, s := range t.schedules {
		i, s := i, s
		if _, err := t.cron.AddFunc(s.Spec, func() { t.fire(ctx, i, s, time.Now().UTC()) }); err != nil {
			return fmt.Errorf("schedule %q for %s: %w", s.Spec, s.Definition, err)
		}
		t.logger.InfoContext(ctx, "Scheduled definition", "definition", s.Definition, "spec", s.Spec)
	}
	t.cron.Start()
	return nil
}

// fire starts one run. The execution name carries the schedule index so two
// schedules of one definition firing in the same second both run.
func (t *ScheduleTrigger) fire(ctx context.Context, index int, s Schedule, at time.Time) {
	at = at.Truncate(time.Second)
	payload := map[string]any{
		"scheduledAt": at.Format(time.RFC3339),
		"schedule":    s.Spec,
	}
	name := fmt.Sprintf("schedule-%d-%s", index, at.Format("20060102T150405Z"))
	id, err := t.starter.StartExecution(ctx, s.Definition, payload, engine.StartOptions{Name: name})
	if err != nil {
		t.logger.ErrorContext(ctx, "Scheduled start failed", "definition", s.Definition, "error", err)
		return
	}
	t.logger.InfoContext(ctx, "Scheduled execution started", "definition", s.Definition, "execution_id", id)
}

// Stop stops the scheduler and waits for running jobs.
func (t *ScheduleTrigger) Stop() {
	<-t.cron.Stop().Done()
}
