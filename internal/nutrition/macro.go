package nutrition

import (
	"math"
	"strconv"

	"github.com/tidwall/gjson"
)

// ParseMacro extracts the first run of decimal digits from a free-form value
// such as "150g" or "approx. 30 grams". Anything without digits, or a value
// above maxMacro, yields 0.
func ParseMacro(raw string) int {
	start := -1
	for i := 0; i < len(raw); i++ {
		isDigit := raw[i] >= '0' && raw[i] <= '9'
		if isDigit && start < 0 {
			start = i
		}
		if !isDigit && start >= 0 {
			return atoiOrZero(raw[start:i])
		}
	}
	if start < 0 {
		return 0
	}
	return atoiOrZero(raw[start:])
}

// maxMacro bounds every goal read from free-form input.
const maxMacro = math.MaxInt32

func atoiOrZero(digits string) int {
	n, err := strconv.Atoi(digits)
	if err != nil || n > maxMacro {
		return 0
	}
	return n
}

// macroValue reads a goal from a plan document. Numbers are truncated to
// their integer part; strings go through ParseMacro.
func macroValue(plan []byte, path string) int {
	v := gjson.GetBytes(plan, path)
	switch v.Type {
	case gjson.Number:
		f := v.Float()
		if f <= 0 || math.IsNaN(f) || f > maxMacro {
			return 0
		}
		return int(f)
	case gjson.String:
		return ParseMacro(v.Str)
	default:
		return 0
	}
}

// GoalsFromPlan reads nutrition.dailyCalories, nutrition.protein,
// nutrition.carbs and nutrition.fiber from a generated plan. Missing or
// unparsable values become 0; the function never fails.
func GoalsFromPlan(plan []byte) Goals {
	return Goals{
		Calories: macroValue(plan, "nutrition.dailyCalories"),
		Protein:  macroValue(plan, "nutrition.protein"),
		Carbs:    macroValue(plan, "nutrition.carbs"),
		Fiber:    macroValue(plan, "nutrition.fiber"),
	}
}
