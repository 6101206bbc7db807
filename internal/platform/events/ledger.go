// Package events defines the ledger event payloads shared by the publisher
// and the consumer.
package events

import "time"

// Topic is the Kafka topic ledger events are published to by default.
const Topic = "ledger_events"

// Event types.
const (
	TypeActionLogged  = "ledger.action_logged"
	TypeMealAdded     = "ledger.meal_added"
	TypeMealRemoved   = "ledger.meal_removed"
	TypeGoalsUpdated  = "ledger.goals_updated"
	TypeSleepRecorded = "ledger.sleep_recorded"
)

// Versions is the payload schema version of each event type. It is written
// into the wire frame so consumers can reject payloads they do not know.
var Versions = map[string]int{
	TypeActionLogged:  1,
	TypeMealAdded:     1,
	TypeMealRemoved:   1,
	TypeGoalsUpdated:  1,
	TypeSleepRecorded: 1,
}

// ActionLogged is emitted when a day gains an activity kind.
type ActionLogged struct {
	Day        string    `json:"date"`
	Kind       string    `json:"kind"`
	OccurredAt time.Time `json:"occurred_at"`
}

// MealAdded is emitted for every stored meal.
type MealAdded struct {
	MealID     string    `json:"meal_id"`
	Day        string    `json:"date"`
	Name       string    `json:"name"`
	Calories   int       `json:"calories"`
	Protein    int       `json:"protein"`
	Carbs      int       `json:"carbs"`
	Fats       int       `json:"fats"`
	Fiber      int       `json:"fiber"`
	OccurredAt time.Time `json:"occurred_at"`
}

// MealRemoved is emitted when a meal is deleted.
type MealRemoved struct {
	MealID     string    `json:"meal_id"`
	Day        string    `json:"date"`
	OccurredAt time.Time `json:"occurred_at"`
}

// GoalsUpdated carries the full goal set after a change. Source is "manual"
// or "plan".
type GoalsUpdated struct {
	Calories   int       `json:"calories"`
	Protein    int       `json:"protein"`
	Carbs      int       `json:"carbs"`
	Fiber      int       `json:"fiber"`
	Source     string    `json:"source"`
	OccurredAt time.Time `json:"occurred_at"`
}

// SleepRecorded is emitted when a day's sleep log is stored or replaced.
type SleepRecorded struct {
	LogID          string    `json:"log_id"`
	Day            string    `json:"date"`
	Hours          float64   `json:"hours"`
	Quality        string    `json:"quality"`
	Soreness       string    `json:"soreness"`
	ReadinessScore *int      `json:"readiness_score,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}
