package coach

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/tidwall/gjson"
)

// Profile describes the user a plan is generated for.
type Profile struct {
	Goal                string  `json:"goal"`
	Timeline            string  `json:"timeline,omitempty"`
	QuantifiableTarget  string  `json:"quantifiableTarget,omitempty"`
	Age                 int     `json:"age"`
	Gender              string  `json:"gender,omitempty"`
	HeightCm            float64 `json:"height"`
	WeightKg            float64 `json:"weight"`
	BodyFat             string  `json:"bodyFat,omitempty"`
	DietaryRestrictions string  `json:"dietaryRestrictions,omitempty"`
	MedicalConditions   string  `json:"medicalConditions,omitempty"`
	Experience          string  `json:"experience,omitempty"`
	DaysPerWeek         int     `json:"frequency"`
	Equipment           string  `json:"equipment,omitempty"`
	WorkoutSplit        string  `json:"workoutSplit,omitempty"`
	CardioPreference    string  `json:"cardioPreference,omitempty"`
	ActivityLevel       string  `json:"activityLevel,omitempty"`
	SleepHours          float64 `json:"sleepHours,omitempty"`
	StressLevel         string  `json:"stressLevel,omitempty"`
	MinutesPerSession   int     `json:"minutesPerSession,omitempty"`
	MealPrepStyle       string  `json:"mealPrepStyle,omitempty"`
	CuisinePreference   string  `json:"cuisinePreference,omitempty"`
}

// Validate rejects profiles the collaborator cannot plan for.
func (p Profile) Validate() error {
	switch {
	case strings.TrimSpace(p.Goal) == "":
		return fmt.Errorf("%w: goal is required", ErrInvalidRequest)
	case p.Age <= 0 || p.Age > 120:
		return fmt.Errorf("%w: age out of range", ErrInvalidRequest)
	case p.HeightCm <= 0 || p.WeightKg <= 0:
		return fmt.Errorf("%w: height and weight must be positive", ErrInvalidRequest)
	case p.DaysPerWeek < 0 || p.DaysPerWeek > 7:
		return fmt.Errorf("%w: frequency must be within [0, 7]", ErrInvalidRequest)
	}
	return nil
}

// Plan is a generated fitness plan. Raw keeps the document as returned so
// goal extraction can read fields this package does not model.
type Plan struct {
	Summary string          `json:"summary"`
	Raw     json.RawMessage `json:"-"`
}

func decodePlan(body []byte) (Plan, error) {
	if !gjson.GetBytes(body, "nutrition").IsObject() {
		return Plan{}, fmt.Errorf("%w: plan has no nutrition section", ErrMalformedResponse)
	}
	return Plan{
		Summary: gjson.GetBytes(body, "summary").String(),
		Raw:     append(json.RawMessage(nil), body...),
	}, nil
}

// MacroEstimate is the collaborator's guess at a food's nutrition.
type MacroEstimate struct {
	Name     string `json:"name"`
	Calories int    `json:"calories"`
	Protein  int    `json:"protein"`
	Carbs    int    `json:"carbs"`
	Fats     int    `json:"fats"`
	Fiber    int    `json:"fiber"`
}

// The collaborator answers with fractional numbers.
type rawMacroEstimate struct {
	Name     string   `json:"name"`
	Calories *float64 `json:"calories"`
	Protein  *float64 `json:"protein"`
	Carbs    *float64 `json:"carbs"`
	Fats     *float64 `json:"fats"`
	Fiber    *float64 `json:"fiber"`
}

func (r rawMacroEstimate) estimate() (MacroEstimate, error) {
	if strings.TrimSpace(r.Name) == "" {
		return MacroEstimate{}, fmt.Errorf("%w: food estimate has no name", ErrMalformedResponse)
	}
	out := MacroEstimate{Name: strings.TrimSpace(r.Name)}
	var err error
	if out.Calories, err = grams("calories", r.Calories); err != nil {
		return MacroEstimate{}, err
	}
	if out.Protein, err = grams("protein", r.Protein); err != nil {
		return MacroEstimate{}, err
	}
	if out.Carbs, err = grams("carbs", r.Carbs); err != nil {
		return MacroEstimate{}, err
	}
	if out.Fats, err = grams("fats", r.Fats); err != nil {
		return MacroEstimate{}, err
	}
	if out.Fiber, err = grams("fiber", r.Fiber); err != nil {
		return MacroEstimate{}, err
	}
	return out, nil
}

func grams(field string, v *float64) (int, error) {
	if v == nil {
		return 0, fmt.Errorf("%w: food estimate missing %s", ErrMalformedResponse, field)
	}
	if math.IsNaN(*v) || *v < 0 || *v > math.MaxInt32 {
		return 0, fmt.Errorf("%w: food estimate %s out of range", ErrMalformedResponse, field)
	}
	return int(math.Round(*v)), nil
}

// Recommendation is the collaborator's training advice for the day.
type Recommendation string

const (
	RecommendRest           Recommendation = "Rest"
	RecommendActiveRecovery Recommendation = "Active Recovery"
	RecommendMaintain       Recommendation = "Maintain"
	RecommendPushHard       Recommendation = "Push Hard"
)

func (r Recommendation) valid() bool {
	switch r {
	case RecommendRest, RecommendActiveRecovery, RecommendMaintain, RecommendPushHard:
		return true
	}
	return false
}

// RecoveryAnalysis scores a night's sleep.
type RecoveryAnalysis struct {
	ReadinessScore    int            `json:"readinessScore"`
	Summary           string         `json:"summary"`
	Recommendation    Recommendation `json:"recommendation"`
	WorkoutAdjustment string         `json:"workoutAdjustment"`
}

type rawRecoveryAnalysis struct {
	ReadinessScore    *float64       `json:"readinessScore"`
	Summary           string         `json:"summary"`
	Recommendation    Recommendation `json:"recommendation"`
	WorkoutAdjustment string         `json:"workoutAdjustment"`
}

func (r rawRecoveryAnalysis) analysis() (RecoveryAnalysis, error) {
	if r.ReadinessScore == nil {
		return RecoveryAnalysis{}, fmt.Errorf("%w: recovery analysis has no readiness score", ErrMalformedResponse)
	}
	score := math.Round(*r.ReadinessScore)
	if score < 0 || score > 100 || math.IsNaN(score) {
		return RecoveryAnalysis{}, fmt.Errorf("%w: readiness score %v out of range", ErrMalformedResponse, *r.ReadinessScore)
	}
	if !r.Recommendation.valid() {
		return RecoveryAnalysis{}, fmt.Errorf("%w: unknown recommendation %q", ErrMalformedResponse, r.Recommendation)
	}
	return RecoveryAnalysis{
		ReadinessScore:    int(score),
		Summary:           r.Summary,
		Recommendation:    r.Recommendation,
		WorkoutAdjustment: r.WorkoutAdjustment,
	}, nil
}
