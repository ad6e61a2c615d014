package app

import (
	"errors"
	"strconv"
	"strings"

	"github.com/cardiocare/cardiocare/internal/api"
	"github.com/cardiocare/cardiocare/internal/nav"
)

// ErrValidation matches every client-side form validation failure.
var ErrValidation = errors.New("app: validation failed")

// ValidationError carries the text shown to the user.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(msg string) error { return &ValidationError{Message: msg} }

// SurveyFields are the form keys of the prediction survey, in form order.
var SurveyFields = []string{
	"General_Health", "Checkup", "Exercise", "Smoking_History",
	"Alcohol_Consumption", "Fruit_Consumption", "Green_Vegetables_Consumption", "FriedPotato_Consumption",
	"BMI", "Sex", "Age_Category",
	"Diabetes", "Depression", "Arthritis", "Skin_Cancer", "Other_Cancer",
}

func label(field string) string {
	return strings.ReplaceAll(field, "_", " ")
}

// ParseSurvey builds the prediction request from a submitted form.
func ParseSurvey(form nav.Form) (api.PredictionInput, error) {
	for _, f := range SurveyFields {
		if strings.TrimSpace(form[f]) == "" {
			return api.PredictionInput{}, invalid("Please fill in " + label(f) + ".")
		}
	}

	count := func(f string) (int, error) {
		n, err := strconv.Atoi(strings.TrimSpace(form[f]))
		if err != nil || n < 0 {
			return 0, invalid(label(f) + " must be a non-negative whole number.")
		}
		return n, nil
	}

	in := api.PredictionInput{
		GeneralHealth:  form["General_Health"],
		Checkup:        form["Checkup"],
		Exercise:       form["Exercise"],
		SmokingHistory: form["Smoking_History"],
		Sex:            form["Sex"],
		AgeCategory:    form["Age_Category"],
		Diabetes:       form["Diabetes"],
		Depression:     form["Depression"],
		Arthritis:      form["Arthritis"],
		SkinCancer:     form["Skin_Cancer"],
		OtherCancer:    form["Other_Cancer"],
	}

	var err error
	if in.AlcoholConsumption, err = count("Alcohol_Consumption"); err != nil {
		return api.PredictionInput{}, err
	}
	if in.FruitConsumption, err = count("Fruit_Consumption"); err != nil {
		return api.PredictionInput{}, err
	}
	if in.GreenVegetablesConsumption, err = count("Green_Vegetables_Consumption"); err != nil {
		return api.PredictionInput{}, err
	}
	if in.FriedPotatoConsumption, err = count("FriedPotato_Consumption"); err != nil {
		return api.PredictionInput{}, err
	}

	bmi, perr := strconv.ParseFloat(strings.TrimSpace(form["BMI"]), 64)
	if perr != nil || bmi <= 0 {
		return api.PredictionInput{}, invalid("BMI must be a positive number.")
	}
	in.BMI = bmi

	return in, nil
}
