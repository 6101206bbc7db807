// Package tracker routes user actions to the activity ledger, the nutrition
// aggregator and the recovery history, and emits a ledger event for every
// change. All ledger state is guarded by a single mutex; calls to the AI
// collaborator happen outside it.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"example.com/fitledger/internal/activity"
	"example.com/fitledger/internal/coach"
	"example.com/fitledger/internal/daykey"
	"example.com/fitledger/internal/nutrition"
	"example.com/fitledger/internal/observability"
	"example.com/fitledger/internal/platform/events"
	"example.com/fitledger/internal/recovery"
	"example.com/fitledger/internal/store"
)

// ErrCoachDisabled is returned by operations that need the collaborator when
// none is configured. It wraps coach.ErrUnavailable.
var ErrCoachDisabled = fmt.Errorf("%w: no collaborator configured", coach.ErrUnavailable)

// Coach is the AI collaborator.
type Coach interface {
	GeneratePlan(ctx context.Context, profile coach.Profile) (coach.Plan, error)
	AnalyzeFood(ctx context.Context, description string) (coach.MacroEstimate, error)
	AnalyzeRecovery(ctx context.Context, hours float64, quality, soreness string) (coach.RecoveryAnalysis, error)
}

// Publisher accepts ledger events. Publish must not block.
type Publisher interface {
	Publish(eventType, key string, payload any) error
}

// Option configures optional behaviour for the Tracker.
type Option func(*Tracker)

// WithLogger overrides the tracker logger. It is also handed to the ledger
// components.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// WithCoach enables the collaborator-backed operations.
func WithCoach(c Coach) Option {
	return func(t *Tracker) {
		t.coach = c
	}
}

// WithPublisher enables ledger events.
func WithPublisher(p Publisher) Option {
	return func(t *Tracker) {
		t.events = p
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// Tracker is safe for concurrent use.
type Tracker struct {
	mu        sync.Mutex
	policy    daykey.Policy
	activity  *activity.Ledger
	nutrition *nutrition.Aggregator
	recovery  *recovery.History

	coach  Coach
	events Publisher
	logger logrus.FieldLogger
	now    func() time.Time
}

// Open loads all ledger state from s.
func Open(ctx context.Context, s store.Store, policy daykey.Policy, opts ...Option) *Tracker {
	t := &Tracker{
		policy: policy,
		logger: logrus.StandardLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}

	t.activity = activity.Open(ctx, s, activity.WithLogger(t.logger))
	t.nutrition = nutrition.Open(ctx, s, policy, nutrition.WithLogger(t.logger))
	t.recovery = recovery.Open(ctx, s, recovery.WithLogger(t.logger))

	observability.SetCurrentStreak(t.activity.CurrentStreak(t.Today()))
	return t
}

// Policy returns the day policy in use.
func (t *Tracker) Policy() daykey.Policy {
	return t.policy
}

// Today is the current day under the tracker's policy.
func (t *Tracker) Today() daykey.Key {
	return t.policy.FromTime(t.now())
}

func (t *Tracker) publish(eventType, key string, payload any) {
	if t.events == nil {
		return
	}
	if err := t.events.Publish(eventType, key, payload); err != nil {
		t.logger.WithError(err).WithField("event_type", eventType).Warn("ledger event not published")
	}
}

// logActionLocked records kind for day and emits an event when it changed.
// The caller holds t.mu.
func (t *Tracker) logActionLocked(ctx context.Context, day daykey.Key, kind activity.Kind) (bool, error) {
	changed, err := t.activity.LogAction(ctx, day, kind)
	if err != nil || !changed {
		return changed, err
	}
	now := t.now()
	observability.RecordMutation(store.KeyActivity, now)
	observability.SetCurrentStreak(t.activity.CurrentStreak(t.policy.FromTime(now)))
	t.publish(events.TypeActionLogged, string(day), events.ActionLogged{
		Day:        string(day),
		Kind:       string(kind),
		OccurredAt: now.UTC(),
	})
	return true, nil
}

// LogAction records that kind happened at the given instant.
func (t *Tracker) LogAction(ctx context.Context, kind activity.Kind, at time.Time) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.logActionLocked(ctx, t.policy.FromTime(at), kind)
}

// CurrentStreak reports the streak ending at today.
func (t *Tracker) CurrentStreak(today daykey.Key) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.activity.CurrentStreak(today)
}

// MonthCalendar returns the activity heatmap for month.
func (t *Tracker) MonthCalendar(month daykey.Month, today daykey.Key) []activity.CalendarDay {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.activity.MonthCalendar(month, today)
}

// Stats summarises activity as of today.
func (t *Tracker) Stats(today daykey.Key) activity.Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.activity.Stats(today)
}

// CountByKind counts days that include kind.
func (t *Tracker) CountByKind(kind activity.Kind) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.activity.CountByKind(kind)
}

// AddMeal stores a meal eaten at the given instant and marks the day as one
// with a meal.
func (t *Tracker) AddMeal(ctx context.Context, in nutrition.MealInput, at time.Time) (nutrition.Meal, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	meal, err := t.nutrition.AddMeal(ctx, in, at)
	if err != nil {
		return nutrition.Meal{}, err
	}
	observability.RecordMutation(store.KeyMeals, t.now())
	t.publish(events.TypeMealAdded, string(meal.Day), events.MealAdded{
		MealID:     meal.ID,
		Day:        string(meal.Day),
		Name:       meal.Name,
		Calories:   meal.Calories,
		Protein:    meal.Protein,
		Carbs:      meal.Carbs,
		Fats:       meal.Fats,
		Fiber:      meal.Fiber,
		OccurredAt: t.now().UTC(),
	})

	if _, err := t.logActionLocked(ctx, meal.Day, activity.KindMeal); err != nil {
		return meal, fmt.Errorf("meal stored but activity not recorded: %w", err)
	}
	return meal, nil
}

// RemoveMeal deletes a meal. It reports false when no such meal exists.
func (t *Tracker) RemoveMeal(ctx context.Context, id string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var day daykey.Key
	for _, m := range t.nutrition.Meals() {
		if m.ID == id {
			day = m.Day
			break
		}
	}

	removed, err := t.nutrition.RemoveMeal(ctx, id)
	if err != nil || !removed {
		return removed, err
	}
	observability.RecordMutation(store.KeyMeals, t.now())
	t.publish(events.TypeMealRemoved, string(day), events.MealRemoved{
		MealID:     id,
		Day:        string(day),
		OccurredAt: t.now().UTC(),
	})
	return true, nil
}

// Meals returns the whole meal log, most recent first.
func (t *Tracker) Meals() []nutrition.Meal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nutrition.Meals()
}

// MealsForDay returns the meals eaten on day.
func (t *Tracker) MealsForDay(day daykey.Key) []nutrition.Meal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nutrition.MealsForDay(day)
}

// NutritionSummary is one day's intake measured against the goals.
type NutritionSummary struct {
	Day       daykey.Key            `json:"date"`
	Totals    nutrition.Totals      `json:"totals"`
	Goals     nutrition.Goals       `json:"goals"`
	Progress  nutrition.DayProgress `json:"progress"`
	Remaining int                   `json:"remaining_calories"`
}

// Summary evaluates day against the current goals.
func (t *Tracker) Summary(day daykey.Key) NutritionSummary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return NutritionSummary{
		Day:       day,
		Totals:    t.nutrition.TotalsForDay(day),
		Goals:     t.nutrition.Goals(),
		Progress:  t.nutrition.ProgressForDay(day),
		Remaining: t.nutrition.Remaining(day),
	}
}

// Goals returns the current targets.
func (t *Tracker) Goals() nutrition.Goals {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nutrition.Goals()
}

// SetGoals replaces the targets with user-edited values.
func (t *Tracker) SetGoals(ctx context.Context, goals nutrition.Goals) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.nutrition.SetGoals(ctx, goals); err != nil {
		return err
	}
	t.goalsChanged(goals, "manual")
	return nil
}

func (t *Tracker) goalsChanged(goals nutrition.Goals, source string) {
	now := t.now()
	observability.RecordMutation(store.KeyGoals, now)
	t.publish(events.TypeGoalsUpdated, store.KeyGoals, events.GoalsUpdated{
		Calories:   goals.Calories,
		Protein:    goals.Protein,
		Carbs:      goals.Carbs,
		Fiber:      goals.Fiber,
		Source:     source,
		OccurredAt: now.UTC(),
	})
}

// EstimateMeal asks the collaborator for the macros of a food description.
// Nothing is stored.
func (t *Tracker) EstimateMeal(ctx context.Context, description string) (coach.MacroEstimate, error) {
	if t.coach == nil {
		return coach.MacroEstimate{}, ErrCoachDisabled
	}
	return t.coach.AnalyzeFood(ctx, description)
}

// PlanResult is a generated plan and the goals it produced.
type PlanResult struct {
	Plan  coach.Plan      `json:"plan"`
	Goals nutrition.Goals `json:"goals"`
}

// GeneratePlan asks the collaborator for a plan, replaces the goals with the
// plan's nutrition targets and records a planner action for the day of at.
// A failed call leaves the ledger untouched.
func (t *Tracker) GeneratePlan(ctx context.Context, profile coach.Profile, at time.Time) (PlanResult, error) {
	if err := profile.Validate(); err != nil {
		return PlanResult{}, err
	}
	if t.coach == nil {
		return PlanResult{}, ErrCoachDisabled
	}
	plan, err := t.coach.GeneratePlan(ctx, profile)
	if err != nil {
		return PlanResult{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	goals, err := t.nutrition.ResyncGoalsFrom(ctx, plan.Raw)
	if err != nil {
		return PlanResult{}, err
	}
	t.goalsChanged(goals, "plan")

	if _, err := t.logActionLocked(ctx, t.policy.FromTime(at), activity.KindPlanner); err != nil {
		return PlanResult{Plan: plan, Goals: goals}, fmt.Errorf("goals updated but activity not recorded: %w", err)
	}
	return PlanResult{Plan: plan, Goals: goals}, nil
}

// SleepResult is the stored log and the analysis that scored it.
type SleepResult struct {
	Log      recovery.Log           `json:"log"`
	Analysis coach.RecoveryAnalysis `json:"analysis"`
	Band     recovery.Band          `json:"band"`
}

// RecordSleep validates in, has the collaborator analyse it, then stores the
// result as the sleep log for the day of at and records a sleep action.
func (t *Tracker) RecordSleep(ctx context.Context, in recovery.Input, at time.Time) (SleepResult, error) {
	if err := in.Validate(); err != nil {
		return SleepResult{}, err
	}
	if t.coach == nil {
		return SleepResult{}, ErrCoachDisabled
	}
	analysis, err := t.coach.AnalyzeRecovery(ctx, in.Hours, string(in.Quality), string(in.Soreness))
	if err != nil {
		return SleepResult{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	day := t.policy.FromTime(at)
	score := analysis.ReadinessScore
	entry, err := t.recovery.RecordAnalysis(ctx, day, in, recovery.Analysis{
		ReadinessScore: &score,
		Feedback:       analysis.WorkoutAdjustment,
	})
	if err != nil {
		return SleepResult{}, err
	}
	observability.RecordMutation(store.KeySleep, t.now())
	t.publish(events.TypeSleepRecorded, string(day), events.SleepRecorded{
		LogID:          entry.ID,
		Day:            string(day),
		Hours:          entry.Hours,
		Quality:        string(entry.Quality),
		Soreness:       string(entry.Soreness),
		ReadinessScore: entry.ReadinessScore,
		OccurredAt:     t.now().UTC(),
	})

	result := SleepResult{Log: entry, Analysis: analysis, Band: recovery.ScoreBand(score)}
	if _, err := t.logActionLocked(ctx, day, activity.KindSleep); err != nil {
		return result, fmt.Errorf("sleep stored but activity not recorded: %w", err)
	}
	return result, nil
}

// SleepHistory returns up to limit logs, most recent day first.
func (t *Tracker) SleepHistory(limit int) []recovery.Log {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.recovery.History(limit)
}

// SleepForDay returns the log for day.
func (t *Tracker) SleepForDay(day daykey.Key) (recovery.Log, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.recovery.LatestForDay(day)
}

// AverageReadiness averages the most recent lastN scores.
func (t *Tracker) AverageReadiness(lastN int) (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.recovery.AverageReadiness(lastN)
}

// IsInvalidInput reports whether err was caused by caller input rather than
// by storage or the collaborator.
func IsInvalidInput(err error) bool {
	return errors.Is(err, nutrition.ErrInvalidInput) ||
		errors.Is(err, recovery.ErrInvalidInput) ||
		errors.Is(err, activity.ErrUnknownKind) ||
		errors.Is(err, activity.ErrInvalidDay) ||
		errors.Is(err, coach.ErrInvalidRequest)
}
