// Package dispatch maps accepted triggers to calls against the
// downstream executor. Dispatch never retries; retry policy, if any,
// belongs to the executor.
package dispatch

import (
	"context"
	"fmt"
	"log"

	"github.com/daybreak-labs/triggerd/internal/domain"
)

// Executor is the outward interface to the task/workflow service.
type Executor interface {
	CreateTask(ctx context.Context, title, description, assignedTo, assignedBy, priority string) (string, error)
	CreateWorkflow(ctx context.Context, description, createdBy string) (string, error)
}

// MetricsSink records dispatch outcomes. Implementations must not
// block.
type MetricsSink interface {
	DispatchCompleted(kind string, err error)
}

// AnalyticsSink records fired triggers for reporting. Failures are
// logged and never affect the dispatch outcome.
type AnalyticsSink interface {
	Record(ctx context.Context, event domain.TriggerEvent) error
}

type Dispatcher struct {
	executor  Executor
	metrics   MetricsSink
	analytics AnalyticsSink
}

func New(executor Executor) *Dispatcher {
	return &Dispatcher{executor: executor}
}

// WithMetrics attaches a metrics sink to the dispatcher.
func (d *Dispatcher) WithMetrics(sink MetricsSink) *Dispatcher {
	d.metrics = sink
	return d
}

// WithAnalytics attaches an analytics sink to the dispatcher.
func (d *Dispatcher) WithAnalytics(sink AnalyticsSink) *Dispatcher {
	d.analytics = sink
	return d
}

const defaultPriority = "normal"

// Dispatch performs the downstream call for one trigger firing and
// returns the executor's reference for it. The attribution tag on the
// event ("webhook/<id>" or "scheduler/<id>") is passed as the
// creating identity so downstream audit trails name the trigger.
func (d *Dispatcher) Dispatch(ctx context.Context, assignee string, action domain.Action, contextText string, event domain.TriggerEvent) (string, error) {
	ref, kind, err := d.dispatch(ctx, assignee, action, contextText, event)
	if d.metrics != nil {
		d.metrics.DispatchCompleted(kind, err)
	}
	if err == nil && d.analytics != nil {
		if aerr := d.analytics.Record(ctx, event); aerr != nil {
			log.Printf("dispatch: analytics record error: %v", aerr)
		}
	}
	return ref, err
}

func (d *Dispatcher) dispatch(ctx context.Context, assignee string, action domain.Action, contextText string, event domain.TriggerEvent) (string, string, error) {
	attribution := event.Attribution()

	switch a := action.(type) {
	case domain.CreateTask:
		priority := a.Priority
		if priority == "" {
			priority = defaultPriority
		}
		title := "Automation trigger " + attribution
		ref, err := d.executor.CreateTask(ctx, title, contextText, assignee, attribution, priority)
		if err != nil {
			return "", "task", fmt.Errorf("create task: %w", err)
		}
		log.Printf("dispatch: %s created task %s (priority=%s)", attribution, ref, priority)
		return ref, "task", nil

	case domain.CreateWorkflow:
		description := contextText + "\n\nWorkflow template: " + a.TemplateRef
		ref, err := d.executor.CreateWorkflow(ctx, description, attribution)
		if err != nil {
			return "", "workflow", fmt.Errorf("create workflow: %w", err)
		}
		log.Printf("dispatch: %s created workflow %s (template=%s)", attribution, ref, a.TemplateRef)
		return ref, "workflow", nil

	case domain.Notify:
		log.Printf("dispatch: %s fired (notify only)", attribution)
		return "", "notify", nil

	default:
		return "", "unknown", fmt.Errorf("unknown action %T", action)
	}
}
