// Package nutrition owns the meal log and daily goals and answers per-day
// intake questions against them.
package nutrition

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"example.com/fitledger/internal/daykey"
	"example.com/fitledger/internal/observability"
	"example.com/fitledger/internal/store"
)

// ErrInvalidInput is returned for meals or goals that cannot be stored.
var ErrInvalidInput = errors.New("invalid nutrition input")

// Goals are the daily targets progress is measured against.
type Goals struct {
	Calories int `json:"calories"`
	Protein  int `json:"protein"`
	Carbs    int `json:"carbs"`
	Fiber    int `json:"fiber"`
}

// DefaultGoals apply until the user edits or resyncs them.
var DefaultGoals = Goals{Calories: 2500, Protein: 150, Carbs: 300, Fiber: 30}

func (g Goals) validate() error {
	if g.Calories < 0 || g.Protein < 0 || g.Carbs < 0 || g.Fiber < 0 {
		return fmt.Errorf("%w: goals must not be negative", ErrInvalidInput)
	}
	return nil
}

// Meal is one logged food entry. Day is fixed when the meal is added.
type Meal struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Calories  int        `json:"calories"`
	Protein   int        `json:"protein"`
	Carbs     int        `json:"carbs"`
	Fats      int        `json:"fats"`
	Fiber     int        `json:"fiber"`
	Timestamp time.Time  `json:"timestamp"`
	Day       daykey.Key `json:"date"`
}

// MealInput is what a caller supplies to AddMeal.
type MealInput struct {
	Name     string
	Calories int
	Protein  int
	Carbs    int
	Fats     int
	Fiber    int
}

func (in MealInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: meal name is required", ErrInvalidInput)
	}
	if in.Calories < 0 {
		return fmt.Errorf("%w: calories must be >= 0", ErrInvalidInput)
	}
	if in.Protein < 0 || in.Carbs < 0 || in.Fats < 0 || in.Fiber < 0 {
		return fmt.Errorf("%w: macros must be >= 0", ErrInvalidInput)
	}
	return nil
}

// Totals is the summed intake for one day.
type Totals struct {
	Calories int `json:"calories"`
	Protein  int `json:"protein"`
	Carbs    int `json:"carbs"`
	Fats     int `json:"fats"`
	Fiber    int `json:"fiber"`
}

// Option configures optional behaviour for the Aggregator.
type Option func(*Aggregator)

// WithLogger overrides the logger used to report discarded meals.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(a *Aggregator) {
		a.logger = logger
	}
}

// WithIDGenerator replaces uuid.NewString for meal ids.
func WithIDGenerator(fn func() string) Option {
	return func(a *Aggregator) {
		a.newID = fn
	}
}

// Aggregator owns meals and goals. It is not safe for concurrent use.
type Aggregator struct {
	store  store.Store
	policy daykey.Policy
	logger logrus.FieldLogger
	newID  func() string

	meals []Meal // most recent first
	goals Goals
}

// Open loads meals and goals, deriving days through policy.
func Open(ctx context.Context, s store.Store, policy daykey.Policy, opts ...Option) *Aggregator {
	a := &Aggregator{
		store:  s,
		policy: policy,
		logger: logrus.StandardLogger(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.meals = a.sanitizeMeals(store.LoadList[Meal](ctx, s, store.KeyMeals))
	a.goals = store.Load(ctx, s, store.KeyGoals, DefaultGoals)
	if err := a.goals.validate(); err != nil {
		a.logger.WithError(err).Warn("stored goals invalid, using defaults")
		observability.RecordDiscarded(store.KeyGoals, 1)
		a.goals = DefaultGoals
	}
	return a
}

func (a *Aggregator) sanitizeMeals(raw []Meal) []Meal {
	meals := make([]Meal, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	discarded := 0
	for _, m := range raw {
		// Older documents carry only the timestamp.
		if m.Day == "" && !m.Timestamp.IsZero() {
			m.Day = a.policy.FromTime(m.Timestamp)
		}
		_, dup := seen[m.ID]
		if m.ID == "" || dup || !m.Day.Valid() || m.input().validate() != nil {
			discarded++
			a.logger.WithFields(logrus.Fields{"id": m.ID, "date": string(m.Day)}).Warn("discarding invalid meal")
			continue
		}
		seen[m.ID] = struct{}{}
		meals = append(meals, m)
	}
	observability.RecordDiscarded(store.KeyMeals, discarded)
	return meals
}

func (m Meal) input() MealInput {
	return MealInput{Name: m.Name, Calories: m.Calories, Protein: m.Protein, Carbs: m.Carbs, Fats: m.Fats, Fiber: m.Fiber}
}

// AddMeal validates in and prepends it to the log with its day derived from at.
func (a *Aggregator) AddMeal(ctx context.Context, in MealInput, at time.Time) (Meal, error) {
	if err := in.validate(); err != nil {
		return Meal{}, err
	}

	meal := Meal{
		ID:        a.newID(),
		Name:      strings.TrimSpace(in.Name),
		Calories:  in.Calories,
		Protein:   in.Protein,
		Carbs:     in.Carbs,
		Fats:      in.Fats,
		Fiber:     in.Fiber,
		Timestamp: at.UTC(),
		Day:       a.policy.FromTime(at),
	}

	next := make([]Meal, 0, len(a.meals)+1)
	next = append(next, meal)
	next = append(next, a.meals...)
	if err := store.Save(ctx, a.store, store.KeyMeals, next); err != nil {
		return Meal{}, err
	}
	a.meals = next
	return meal, nil
}

// RemoveMeal deletes the meal with id. It reports false when no such meal exists.
func (a *Aggregator) RemoveMeal(ctx context.Context, id string) (bool, error) {
	idx := slices.IndexFunc(a.meals, func(m Meal) bool { return m.ID == id })
	if idx < 0 {
		return false, nil
	}

	next := slices.Delete(slices.Clone(a.meals), idx, idx+1)
	if err := store.Save(ctx, a.store, store.KeyMeals, next); err != nil {
		return false, err
	}
	a.meals = next
	return true, nil
}

// Meals returns the whole log, most recent first.
func (a *Aggregator) Meals() []Meal {
	return slices.Clone(a.meals)
}

// MealsForDay returns the meals logged on day, most recent first.
func (a *Aggregator) MealsForDay(day daykey.Key) []Meal {
	out := make([]Meal, 0)
	for _, m := range a.meals {
		if m.Day == day {
			out = append(out, m)
		}
	}
	return out
}

// TotalsForDay sums every meal on day in a single pass.
func (a *Aggregator) TotalsForDay(day daykey.Key) Totals {
	var t Totals
	for _, m := range a.meals {
		if m.Day != day {
			continue
		}
		t.Calories += m.Calories
		t.Protein += m.Protein
		t.Carbs += m.Carbs
		t.Fats += m.Fats
		t.Fiber += m.Fiber
	}
	return t
}

// Remaining returns calories left against the goal for day, never negative.
func (a *Aggregator) Remaining(day daykey.Key) int {
	return max(0, a.goals.Calories-a.TotalsForDay(day).Calories)
}

// Goals returns the current targets.
func (a *Aggregator) Goals() Goals {
	return a.goals
}

// SetGoals replaces the targets.
func (a *Aggregator) SetGoals(ctx context.Context, goals Goals) error {
	if err := goals.validate(); err != nil {
		return err
	}
	if err := store.Save(ctx, a.store, store.KeyGoals, goals); err != nil {
		return err
	}
	a.goals = goals
	return nil
}

// ResyncGoalsFrom replaces the targets wholesale with the values embedded in
// a generated plan. Fields the plan lacks become 0 rather than keeping the
// previous goal.
func (a *Aggregator) ResyncGoalsFrom(ctx context.Context, plan []byte) (Goals, error) {
	goals := GoalsFromPlan(plan)
	if err := a.SetGoals(ctx, goals); err != nil {
		return Goals{}, err
	}
	return goals, nil
}

// Progress is current as a percentage of goal, clamped to [0, 100]. A goal of
// zero or less has no meaningful progress and reports 0.
func Progress(current, goal int) float64 {
	if goal <= 0 {
		return 0
	}
	pct := 100 * float64(current) / float64(goal)
	return min(100, max(0, pct))
}

// DayProgress is the progress of each tracked macro for one day.
type DayProgress struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fiber    float64 `json:"fiber"`
}

// ProgressForDay evaluates Progress for each goal.
func (a *Aggregator) ProgressForDay(day daykey.Key) DayProgress {
	t := a.TotalsForDay(day)
	return DayProgress{
		Calories: Progress(t.Calories, a.goals.Calories),
		Protein:  Progress(t.Protein, a.goals.Protein),
		Carbs:    Progress(t.Carbs, a.goals.Carbs),
		Fiber:    Progress(t.Fiber, a.goals.Fiber),
	}
}
