package api

import (
	"encoding/json"
	"time"

	"example.com/fitledger/internal/activity"
	"example.com/fitledger/internal/coach"
	"example.com/fitledger/internal/daykey"
	"example.com/fitledger/internal/nutrition"
	"example.com/fitledger/internal/recovery"
)

// LogActionRequest is the payload for POST /v1/activity.
type LogActionRequest struct {
	Kind string     `json:"kind"`
	At   *time.Time `json:"at,omitempty"`
}

// LogActionResponse reports whether the ledger changed.
type LogActionResponse struct {
	Date    daykey.Key    `json:"date"`
	Kind    activity.Kind `json:"kind"`
	Changed bool          `json:"changed"`
}

// StreakResponse is returned by GET /v1/activity/streak.
type StreakResponse struct {
	Today         daykey.Key `json:"today"`
	CurrentStreak int        `json:"current_streak"`
}

// CalendarResponse is returned by GET /v1/activity/calendar.
type CalendarResponse struct {
	Month string                 `json:"month"`
	Days  []activity.CalendarDay `json:"days"`
}

// AddMealRequest is the payload for POST /v1/meals.
type AddMealRequest struct {
	Name     string     `json:"name"`
	Calories int        `json:"calories"`
	Protein  int        `json:"protein"`
	Carbs    int        `json:"carbs"`
	Fats     int        `json:"fats"`
	Fiber    int        `json:"fiber"`
	At       *time.Time `json:"at,omitempty"`
}

// MealsResponse lists meals, most recent first.
type MealsResponse struct {
	Date  daykey.Key       `json:"date,omitempty"`
	Items []nutrition.Meal `json:"items"`
}

// EstimateMealRequest is the payload for POST /v1/meals/estimate.
type EstimateMealRequest struct {
	Description string `json:"description"`
}

// PlanResponse carries the generated plan verbatim and the goals taken from it.
type PlanResponse struct {
	Plan  json.RawMessage `json:"plan"`
	Goals nutrition.Goals `json:"goals"`
}

// RecordSleepRequest is the payload for POST /v1/sleep.
type RecordSleepRequest struct {
	Hours    float64    `json:"hours"`
	Quality  string     `json:"quality"`
	Soreness string     `json:"soreness"`
	At       *time.Time `json:"at,omitempty"`
}

// SleepResponse is returned after a sleep log is stored.
type SleepResponse struct {
	Log      recovery.Log           `json:"log"`
	Analysis coach.RecoveryAnalysis `json:"analysis"`
	Band     recovery.Band          `json:"band"`
}

// SleepHistoryResponse lists sleep logs, most recent day first.
type SleepHistoryResponse struct {
	Items            []recovery.Log `json:"items"`
	AverageReadiness *float64       `json:"average_readiness_7d,omitempty"`
}
