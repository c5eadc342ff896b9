package aggregate

import (
	"sort"

	"cytosched/internal/schedule"
)

// Task is one (experiment, step) pair flattened for day-indexed views.
type Task struct {
	ExpID         int           `json:"exp_id"`
	SampleBatch   string        `json:"sample_batch"`
	MethodName    string        `json:"method_name"`
	StepName      string        `json:"step_name"`
	Description   string        `json:"description"`
	RelativeDay   int           `json:"relative_day"`
	Notes         string        `json:"notes"`
	StartDate     schedule.Date `json:"start_date"`
	ScheduledDate schedule.Date `json:"scheduled_date"`
	// DaysUntil is only populated by Upcoming.
	DaysUntil int `json:"days_until,omitempty"`
}

func taskOf(rec schedule.Record, step schedule.ScheduledStep) Task {
	return Task{
		ExpID:         rec.ExpID,
		SampleBatch:   rec.SampleBatch,
		MethodName:    rec.MethodName,
		StepName:      step.StepName,
		Description:   step.Description,
		RelativeDay:   step.RelativeDay,
		Notes:         rec.Notes,
		StartDate:     rec.StartDate,
		ScheduledDate: step.ScheduledDate,
	}
}

// ByDate buckets every step of every record by its scheduled date string.
// Bucket order is the (record, step) traversal order.
func ByDate(records []schedule.Record) map[string][]Task {
	daily := make(map[string][]Task)
	for _, rec := range records {
		for _, step := range rec.Steps {
			daily[step.DateStr] = append(daily[step.DateStr], taskOf(rec, step))
		}
	}
	return daily
}

// OnDate returns the tasks scheduled on one date, in traversal order.
func OnDate(records []schedule.Record, d schedule.Date) []Task {
	var out []Task
	key := d.String()
	for _, rec := range records {
		for _, step := range rec.Steps {
			if step.DateStr == key {
				out = append(out, taskOf(rec, step))
			}
		}
	}
	return out
}

// Upcoming selects every step falling in [today, today+horizonDays],
// sorted ascending by scheduled date. The sort is stable, so ties keep
// traversal order. Each qualifying step contributes one entry.
func Upcoming(records []schedule.Record, today schedule.Date, horizonDays int) []Task {
	limit := today.AddDays(horizonDays)

	var out []Task
	for _, rec := range records {
		for _, step := range rec.Steps {
			d := step.ScheduledDate
			if d.Before(today) || d.After(limit) {
				continue
			}
			t := taskOf(rec, step)
			t.DaysUntil = today.DaysUntil(d)
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ScheduledDate.Before(out[j].ScheduledDate)
	})
	return out
}

// Status classifies an experiment relative to a reference day.
type Status int

const (
	NotStarted Status = iota
	InProgress
	Completed
)

func (s Status) String() string {
	switch s {
	case NotStarted:
		return "未开始"
	case InProgress:
		return "进行中"
	case Completed:
		return "已完成"
	default:
		return "unknown"
	}
}

// StatusOf returns exactly one of the three states for any today:
// completed strictly after the end date, in progress inside the
// inclusive [start, end] span, not started before the start date.
func StatusOf(rec schedule.Record, today schedule.Date) Status {
	switch {
	case rec.EndDate.Before(today):
		return Completed
	case !rec.StartDate.After(today):
		return InProgress
	default:
		return NotStarted
	}
}

// GroupByExpID groups records under their shared experiment number,
// preserving insertion order inside each group. The returned id list is
// in first-seen order so callers can present groups deterministically.
func GroupByExpID(records []schedule.Record) (map[int][]schedule.Record, []int) {
	groups := make(map[int][]schedule.Record)
	var order []int
	for _, rec := range records {
		if _, seen := groups[rec.ExpID]; !seen {
			order = append(order, rec.ExpID)
		}
		groups[rec.ExpID] = append(groups[rec.ExpID], rec)
	}
	return groups, order
}
