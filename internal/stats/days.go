package stats

import (
	"math"
	"sort"
	"time"

	"selftracker/internal/model"
)

const dayLayout = "2006-01-02"

// DailyCount 某一天完成的待办数量，Date 为 UTC 的 YYYY-MM-DD
type DailyCount struct {
	Date  string `json:"_id"`
	Count int    `json:"count"`
}

// dayStart truncates t to midnight UTC of its calendar day.
func dayStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// window returns [today-back, today+1) in UTC calendar days.
func window(now time.Time, back int) (time.Time, time.Time) {
	today := dayStart(now)
	return today.AddDate(0, 0, -back), today.AddDate(0, 0, 1)
}

// countByDay groups todos by the UTC day of their updatedAt.
func countByDay(todos []model.Todo) map[string]int {
	days := make(map[string]int)
	for _, t := range todos {
		days[t.UpdatedAt.UTC().Format(dayLayout)]++
	}
	return days
}

// series flattens a day map into ascending DailyCount entries.
func series(days map[string]int) []DailyCount {
	out := make([]DailyCount, 0, len(days))
	for d, n := range days {
		out = append(out, DailyCount{Date: d, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// currentStreak counts consecutive active days ending today. No activity today means 0.
func currentStreak(days map[string]int, today time.Time) int {
	streak := 0
	for d := dayStart(today); days[d.Format(dayLayout)] > 0; d = d.AddDate(0, 0, -1) {
		streak++
	}
	return streak
}

// maxStreak scans ascending distinct dates; a run grows only when the next
// date is exactly one calendar day after the previous one.
func maxStreak(entries []DailyCount) int {
	best, run := 0, 0
	var prev time.Time
	for i, e := range entries {
		cur, err := time.Parse(dayLayout, e.Date)
		if err != nil {
			continue
		}
		if i > 0 && prev.AddDate(0, 0, 1).Equal(cur) {
			run++
		} else {
			run = 1
		}
		if run > best {
			best = run
		}
		prev = cur
	}
	return best
}

// percentage rounds half away from zero; an empty total yields 0.
func percentage(completed, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}
