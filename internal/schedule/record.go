package schedule

// ScheduledStep is one computed step of an experiment schedule.
type ScheduledStep struct {
	StepName    string `json:"step_name"`
	Description string `json:"description"`
	RelativeDay int    `json:"relative_day"`
	// ScheduledDate is the concrete calendar date after adjustment.
	ScheduledDate Date `json:"scheduled_date"`
	// OriginalDate is where the step would fall with zero adjustment,
	// computed from the template's nominal relative day.
	OriginalDate Date `json:"original_date"`
	IsWorkday    bool `json:"is_workday"`
	WasAdjusted  bool `json:"was_adjusted"`
	// DateStr is the YYYY-MM-DD rendering of ScheduledDate, kept
	// denormalized because it is the aggregation key.
	DateStr string `json:"date_str"`
}

// Record is one computed experiment schedule, for one sample batch.
//
// Records are immutable once computed. Editing an experiment means
// recomputing a whole new Record keeping only ExpID; the store replaces
// records wholesale.
type Record struct {
	// ExpID is the user-visible experiment sequence number. It is not
	// unique: several sample batches may share one logical experiment.
	ExpID       int             `json:"exp_id"`
	MethodName  string          `json:"method_name"`
	SampleBatch string          `json:"sample_batch"`
	StartDate   Date            `json:"start_date"`
	EndDate     Date            `json:"end_date"`
	Notes       string          `json:"notes"`
	TotalDays   int             `json:"total_days"`
	Steps       []ScheduledStep `json:"steps"`
}
