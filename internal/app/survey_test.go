package app

import (
	"errors"
	"testing"
)

func TestParseSurvey(t *testing.T) {
	in, err := ParseSurvey(validSurvey())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.BMI != 24.5 || in.FruitConsumption != 30 || in.AgeCategory != "45-49" {
		t.Errorf("unexpected survey %+v", in)
	}

	tests := []struct {
		name  string
		field string
		value string
		want  string
	}{
		{"missing field", "Checkup", "", "Please fill in Checkup."},
		{"blank field", "Other_Cancer", "  ", "Please fill in Other Cancer."},
		{"non integer", "Fruit_Consumption", "2.5", "Fruit Consumption must be a non-negative whole number."},
		{"negative", "Alcohol_Consumption", "-1", "Alcohol Consumption must be a non-negative whole number."},
		{"zero bmi", "BMI", "0", "BMI must be a positive number."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := validSurvey()
			form[tt.field] = tt.value
			_, err := ParseSurvey(form)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if err.Error() != tt.want {
				t.Errorf("expected %q, got %q", tt.want, err.Error())
			}
		})
	}
}
