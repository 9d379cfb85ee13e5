package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/expr-lang/expr"

	"github.com/daybreak-labs/triggerd/internal/domain"
	"github.com/daybreak-labs/triggerd/internal/recurrence"
)

func parseAction(req *ActionRequest) (domain.Action, error) {
	if req == nil {
		return nil, fmt.Errorf("action is required")
	}
	switch req.Kind {
	case "create_task":
		return domain.CreateTask{Priority: req.Priority}, nil
	case "create_workflow":
		if req.TemplateRef == "" {
			return nil, fmt.Errorf("template_ref is required for create_workflow")
		}
		return domain.CreateWorkflow{TemplateRef: req.TemplateRef}, nil
	case "notify":
		return domain.Notify{}, nil
	default:
		return nil, fmt.Errorf("unknown action kind %q", req.Kind)
	}
}

func parseRecurrence(req *RecurrenceRequest) (domain.Recurrence, error) {
	if req == nil {
		return nil, fmt.Errorf("recurrence is required")
	}

	var rec domain.Recurrence
	switch req.Kind {
	case "interval":
		rec = domain.Interval{Seconds: req.Seconds}
	case "daily":
		rec = domain.Daily{Hour: req.Hour, Minute: req.Minute}
	case "weekdays":
		rec = domain.Weekdays{Hour: req.Hour, Minute: req.Minute}
	case "weekly":
		day, err := parseWeekday(req.Weekday)
		if err != nil {
			return nil, err
		}
		rec = domain.Weekly{Weekday: day, Hour: req.Hour, Minute: req.Minute}
	default:
		return nil, fmt.Errorf("unknown recurrence kind %q", req.Kind)
	}

	if err := recurrence.Validate(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func parseWeekday(s string) (time.Weekday, error) {
	day, ok := weekdays[strings.ToLower(s)]
	if !ok {
		return 0, fmt.Errorf("unknown weekday %q", s)
	}
	return day, nil
}

// validateCondition compiles the expression so a broken condition is
// rejected at create time rather than on first delivery.
func validateCondition(condition string) error {
	if condition == "" {
		return nil
	}
	if _, err := expr.Compile(condition, expr.AsBool()); err != nil {
		return fmt.Errorf("invalid condition: %w", err)
	}
	return nil
}

func actionResponse(a domain.Action) ActionRequest {
	switch v := a.(type) {
	case domain.CreateTask:
		return ActionRequest{Kind: "create_task", Priority: v.Priority}
	case domain.CreateWorkflow:
		return ActionRequest{Kind: "create_workflow", TemplateRef: v.TemplateRef}
	case domain.Notify:
		return ActionRequest{Kind: "notify"}
	default:
		return ActionRequest{}
	}
}

func recurrenceResponse(r domain.Recurrence) RecurrenceRequest {
	switch v := r.(type) {
	case domain.Interval:
		return RecurrenceRequest{Kind: "interval", Seconds: v.Seconds}
	case domain.Daily:
		return RecurrenceRequest{Kind: "daily", Hour: v.Hour, Minute: v.Minute}
	case domain.Weekdays:
		return RecurrenceRequest{Kind: "weekdays", Hour: v.Hour, Minute: v.Minute}
	case domain.Weekly:
		return RecurrenceRequest{Kind: "weekly", Weekday: strings.ToLower(v.Weekday.String()), Hour: v.Hour, Minute: v.Minute}
	default:
		return RecurrenceRequest{}
	}
}
