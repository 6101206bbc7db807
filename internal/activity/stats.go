package activity

import "example.com/fitledger/internal/daykey"

// Badge is an achievement unlocked by streak length or lifetime totals.
type Badge struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Earned bool   `json:"earned"`
}

type badgeRule struct {
	id    string
	title string
	met   func(Stats) bool
}

var badgeRules = []badgeRule{
	{id: "streak_3", title: "3 Day Streak", met: func(s Stats) bool { return s.CurrentStreak >= 3 }},
	{id: "streak_7", title: "7 Day Streak", met: func(s Stats) bool { return s.CurrentStreak >= 7 }},
	{id: "meals_10", title: "Log 10 Meals", met: func(s Stats) bool { return s.TotalMeals >= 10 }},
}

// Stats summarises the ledger for the achievements view.
type Stats struct {
	CurrentStreak  int     `json:"current_streak"`
	LongestStreak  int     `json:"longest_streak"`
	ActiveDays     int     `json:"active_days"`
	TotalWorkouts  int     `json:"total_workouts"`
	TotalMeals     int     `json:"total_meals"`
	TotalSleepLogs int     `json:"total_sleep_logs"`
	Badges         []Badge `json:"badges"`
}

// Stats computes streaks, per-kind day counts and badges as of today.
// TotalMeals counts days with a meal logged, not individual meals.
func (l *Ledger) Stats(today daykey.Key) Stats {
	s := Stats{
		CurrentStreak:  l.CurrentStreak(today),
		LongestStreak:  l.LongestStreak(),
		ActiveDays:     len(l.records),
		TotalWorkouts:  l.CountByKind(KindPlanner),
		TotalMeals:     l.CountByKind(KindMeal),
		TotalSleepLogs: l.CountByKind(KindSleep),
	}
	s.Badges = make([]Badge, 0, len(badgeRules))
	for _, rule := range badgeRules {
		s.Badges = append(s.Badges, Badge{ID: rule.id, Title: rule.title, Earned: rule.met(s)})
	}
	return s
}
