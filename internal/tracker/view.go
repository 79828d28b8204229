package tracker

import (
	"strings"
	"time"

	"task-navigator/internal/models"
)

const dueSoonWindow = 48 * time.Hour

// Filter keeps tasks whose title contains query, ignoring case. An empty
// query keeps everything.
func Filter(tasks []Task, query string) []Task {
	needle := strings.ToLower(strings.TrimSpace(query))
	out := make([]Task, 0, len(tasks))
	for _, task := range tasks {
		if needle == "" || strings.Contains(strings.ToLower(task.Title), needle) {
			out = append(out, task)
		}
	}
	return out
}

type DayCount struct {
	Day   string `json:"name"`
	Count int    `json:"tasks"`
}

type Summary struct {
	Total     int        `json:"total"`
	Completed int        `json:"completed"`
	DueSoon   int        `json:"due_soon"`
	Weekly    []DayCount `json:"weekly"`
}

var weekOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

// Summarize computes the dashboard figures. A task is due soon when it is
// not completed and its due date falls within the next 48 hours. Weekly
// counts completions over the last seven days by weekday, Monday first.
func Summarize(tasks []Task, now time.Time) Summary {
	counts := make(map[time.Weekday]int, 7)
	summary := Summary{Total: len(tasks)}
	weekStart := now.Add(-7 * 24 * time.Hour)

	for _, task := range tasks {
		if task.Status == models.StatusCompleted {
			summary.Completed++
			if task.CompletedAt != nil && task.CompletedAt.After(weekStart) && !task.CompletedAt.After(now) {
				counts[task.CompletedAt.In(now.Location()).Weekday()]++
			}
			continue
		}
		if !task.DueDate.Before(now) && task.DueDate.Sub(now) <= dueSoonWindow {
			summary.DueSoon++
		}
	}

	summary.Weekly = make([]DayCount, 0, len(weekOrder))
	for _, day := range weekOrder {
		summary.Weekly = append(summary.Weekly, DayCount{Day: day.String()[:3], Count: counts[day]})
	}
	return summary
}
