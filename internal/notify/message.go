package notify

import (
	"fmt"
	"strings"

	"cytosched/internal/aggregate"
	"cytosched/internal/schedule"
)

// The messaging platform truncates content above roughly 2000
// characters, so reports split below that. Labels added per part need
// some headroom.
const (
	maxMessageLen     = 2000
	partLabelHeadroom = 32
)

// BuildDailyReport renders the markdown push for one day. It returns
// the empty string when nothing is scheduled, which callers treat as
// "skip the send".
func BuildDailyReport(records []schedule.Record, today schedule.Date) string {
	tasks := aggregate.OnDate(records, today)
	if len(tasks) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## 📅 今日实验安排（%s）\n\n", today.Time().Format("2006年01月02日"))
	fmt.Fprintf(&b, "共 **%d** 项操作：\n", len(tasks))

	byExp := map[int][]aggregate.Task{}
	var order []int
	for _, t := range tasks {
		if _, ok := byExp[t.ExpID]; !ok {
			order = append(order, t.ExpID)
		}
		byExp[t.ExpID] = append(byExp[t.ExpID], t)
	}
	for _, expID := range order {
		group := byExp[expID]
		first := group[0]
		fmt.Fprintf(&b, "\n### 🔬 实验 %d（%s）\n", expID, first.MethodName)
		if first.SampleBatch != "" {
			fmt.Fprintf(&b, "> 样品批次：%s\n", first.SampleBatch)
		}
		for _, t := range group {
			line := fmt.Sprintf("- 第%d天：%s", t.RelativeDay, t.StepName)
			if t.Description != "" {
				line += "，" + t.Description
			}
			if t.Notes != "" {
				line += "（" + t.Notes + "）"
			}
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// BuildUpcomingReport renders the reminder section for the next
// horizonDays days after today.
func BuildUpcomingReport(records []schedule.Record, today schedule.Date, horizonDays int) string {
	tasks := aggregate.Upcoming(records, today, horizonDays)
	// Tasks for today are covered by the daily report; drop them here.
	var future []aggregate.Task
	for _, t := range tasks {
		if t.DaysUntil > 0 {
			future = append(future, t)
		}
	}
	if len(future) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## ⏰ 未来%d天提醒\n", horizonDays)
	for _, t := range future {
		fmt.Fprintf(&b, "- %s（%d天后）：实验 %d 第%d天 %s\n",
			t.ScheduledDate, t.DaysUntil, t.ExpID, t.RelativeDay, t.StepName)
	}
	return b.String()
}

// splitContent cuts content into chunks no longer than limit,
// preferring line boundaries. A single line longer than limit is hard
// cut by runes so no chunk ever exceeds the cap.
func splitContent(content string, limit int) []string {
	if len(content) <= limit {
		return []string{content}
	}

	var parts []string
	var cur strings.Builder
	for _, line := range strings.Split(content, "\n") {
		for len(line) > limit {
			if cur.Len() > 0 {
				parts = append(parts, cur.String())
				cur.Reset()
			}
			runes := []rune(line)
			cut := len(runes)
			for i := range runes {
				if len(string(runes[:i+1])) > limit {
					cut = i
					break
				}
			}
			parts = append(parts, string(runes[:cut]))
			line = string(runes[cut:])
		}
		need := len(line)
		if cur.Len() > 0 {
			need++ // the joining newline
		}
		if cur.Len()+need > limit {
			parts = append(parts, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte('\n')
		}
		cur.WriteString(line)
	}
	if cur.Len() > 0 {
		parts = append(parts, cur.String())
	}
	return parts
}
