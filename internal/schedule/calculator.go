package schedule

import (
	"cytosched/internal/catalog"
	"cytosched/internal/workday"
)

// Calculator turns (start date, method) pairs into concrete schedules.
// It is a pure computation over the catalog and the workday oracle.
type Calculator struct {
	catalog *catalog.Catalog
	oracle  workday.Oracle
}

func NewCalculator(c *catalog.Catalog, o workday.Oracle) *Calculator {
	return &Calculator{catalog: c, oracle: o}
}

// Input carries the user-provided fields of a schedule computation.
type Input struct {
	ExpID       int
	MethodName  string
	SampleBatch string
	Notes       string
	StartDate   Date
}

// Compute expands the method template into dated steps.
//
// Adjustment policy, per step:
//   - Method non-adjustable, global toggle off, or step non-adjustable:
//     the nominal date stands, even on rest days.
//   - Adjustable step with a flexible window: first offset in the window
//     landing on a workday wins; if none does, the earliest offset stands
//     so the step is never left unscheduled.
//   - Adjustable step without a window: walk forward day by day to the
//     next workday.
//
// The only failure mode is an unknown method name.
func (c *Calculator) Compute(in Input, adjustWorkdays bool) (Record, error) {
	method, err := c.catalog.Lookup(in.MethodName)
	if err != nil {
		return Record{}, err
	}

	steps := make([]ScheduledStep, 0, len(method.Steps))
	for _, tpl := range method.Steps {
		nominal := in.StartDate.AddDays(tpl.RelativeDay - 1)
		scheduled := nominal
		relDay := tpl.RelativeDay

		if adjustWorkdays && method.Adjustable && tpl.Adjustable {
			if len(tpl.FlexibleDays) > 0 {
				scheduled, relDay = c.pickFlexible(in.StartDate, tpl.FlexibleDays)
			} else if !c.oracle.IsWorkday(nominal.Time()) {
				scheduled = DateOf(workday.NextWorkday(c.oracle, nominal.Time()))
			}
		}

		steps = append(steps, ScheduledStep{
			StepName:      tpl.Action,
			Description:   tpl.Description,
			RelativeDay:   relDay,
			ScheduledDate: scheduled,
			OriginalDate:  nominal,
			IsWorkday:     c.oracle.IsWorkday(scheduled.Time()),
			WasAdjusted:   !scheduled.Equal(nominal),
			DateStr:       scheduled.String(),
		})
	}

	// A flexible step can in principle overtake a later fixed one, so the
	// end date is the max over all steps, never simply the last step.
	end := steps[0].ScheduledDate
	for _, s := range steps[1:] {
		if s.ScheduledDate.After(end) {
			end = s.ScheduledDate
		}
	}

	return Record{
		ExpID:       in.ExpID,
		MethodName:  in.MethodName,
		SampleBatch: in.SampleBatch,
		StartDate:   in.StartDate,
		EndDate:     end,
		Notes:       in.Notes,
		TotalDays:   in.StartDate.DaysUntil(end) + 1,
		Steps:       steps,
	}, nil
}

// pickFlexible scans the window ascending and returns the first offset
// whose date is a workday, falling back to the earliest offset.
func (c *Calculator) pickFlexible(start Date, window []int) (Date, int) {
	for _, day := range window {
		d := start.AddDays(day - 1)
		if c.oracle.IsWorkday(d.Time()) {
			return d, day
		}
	}
	return start.AddDays(window[0] - 1), window[0]
}
