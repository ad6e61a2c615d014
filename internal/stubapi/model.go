package stubapi

import (
	"math"
	"strconv"
	"strings"

	"github.com/cardiocare/cardiocare/internal/api"
)

// riskThreshold splits the logistic score into "Yes" and "No".
const riskThreshold = 0.5

var generalHealthWeight = map[string]float64{
	"Excellent": -0.6,
	"Very Good": -0.3,
	"Good":      0,
	"Fair":      0.5,
	"Poor":      0.9,
}

// score is a transparent logistic risk estimate over the survey. It stands in
// for a trained model so the client can be exercised end to end.
func score(in api.PredictionInput) float64 {
	z := -3.2
	z += 0.045 * float64(ageLowerBound(in.AgeCategory)-40)
	z += generalHealthWeight[in.GeneralHealth]
	if in.Sex == "Male" {
		z += 0.4
	}
	if in.SmokingHistory == "Yes" {
		z += 0.5
	}
	if in.Exercise == "No" {
		z += 0.3
	}
	if strings.HasPrefix(in.Diabetes, "Yes") {
		z += 0.7
	}
	if in.Arthritis == "Yes" {
		z += 0.2
	}
	if in.Depression == "Yes" {
		z += 0.1
	}
	if in.SkinCancer == "Yes" || in.OtherCancer == "Yes" {
		z += 0.2
	}
	if in.BMI >= 30 {
		z += 0.35
	} else if in.BMI >= 25 {
		z += 0.15
	}
	z += 0.004 * float64(in.FriedPotatoConsumption)
	z -= 0.003 * float64(in.FruitConsumption+in.GreenVegetablesConsumption)
	z += 0.002 * float64(in.AlcoholConsumption)
	return 1 / (1 + math.Exp(-z))
}

// ageLowerBound reads the leading number of categories like "55-59" or "80+".
func ageLowerBound(category string) int {
	end := strings.IndexFunc(category, func(r rune) bool { return r < '0' || r > '9' })
	if end < 0 {
		end = len(category)
	}
	n, err := strconv.Atoi(category[:end])
	if err != nil {
		return 40
	}
	return n
}

func classify(p float64) string {
	if p >= riskThreshold {
		return "Yes"
	}
	return "No"
}

func formatProbability(p float64) string {
	return strconv.FormatFloat(p*100, 'f', 2, 64) + "%"
}

// recommendationsFor derives advice from the stored survey and its result.
func recommendationsFor(inputs map[string]interface{}, result string) []string {
	var recs []string
	if result == "Yes" {
		recs = append(recs, "It is highly recommended to consult a healthcare professional to discuss these results.")
	} else {
		recs = append(recs, "Continue to maintain a healthy lifestyle and schedule regular checkups with your doctor.")
	}
	if inputs["Smoking_History"] == "Yes" {
		recs = append(recs, "Quitting smoking is one of the most impactful steps you can take to improve cardiovascular health.")
	}
	if bmi, ok := toFloat(inputs["BMI"]); ok {
		if bmi >= 25.0 {
			recs = append(recs, "Aiming for a BMI below 25 can significantly reduce heart disease risk.")
		}
		if bmi < 18.5 {
			recs = append(recs, "Your BMI is low. Consult a doctor or nutritionist for advice on maintaining a healthy weight.")
		}
	}
	if inputs["Exercise"] == "No" {
		recs = append(recs, "Incorporating regular exercise, like 30 minutes of moderate activity most days, is beneficial for heart health.")
	}
	return recs
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
