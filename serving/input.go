package serving

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"tabpredict/ml"
)

// ErrMalformedRequest is returned when a request body is not a JSON object.
var ErrMalformedRequest = errors.New("malformed request body")

// InsuranceInput is one insurance prediction request. Absent fields keep the
// values from DefaultInsuranceInput.
type InsuranceInput struct {
	Age      int     `json:"age" validate:"gte=0,lte=120"`
	BMI      float64 `json:"bmi" validate:"gte=10,lte=70"`
	Children int     `json:"children" validate:"gte=0,lte=10"`
	Sex      string  `json:"sex" validate:"oneof=male female"`
	Smoker   string  `json:"smoker" validate:"oneof=yes no"`
	Region   string  `json:"region" validate:"oneof=southwest southeast northwest northeast"`
}

func DefaultInsuranceInput() InsuranceInput {
	return InsuranceInput{Age: 30, BMI: 25, Children: 0, Sex: "male", Smoker: "no", Region: "southwest"}
}

func (in InsuranceInput) Row() ml.Row {
	row := ml.NewRow()
	row.Numeric["age"] = float64(in.Age)
	row.Numeric["bmi"] = in.BMI
	row.Numeric["children"] = float64(in.Children)
	row.Categorical["sex"] = in.Sex
	row.Categorical["smoker"] = in.Smoker
	row.Categorical["region"] = in.Region
	return row
}

// DiabetesInput is one diabetes prediction request. Field names follow the
// dataset columns.
type DiabetesInput struct {
	Pregnancies              int     `json:"Pregnancies" validate:"gte=0,lte=20"`
	Glucose                  int     `json:"Glucose" validate:"gte=0,lte=300"`
	BloodPressure            int     `json:"BloodPressure" validate:"gte=0,lte=200"`
	SkinThickness            int     `json:"SkinThickness" validate:"gte=0,lte=100"`
	Insulin                  int     `json:"Insulin" validate:"gte=0,lte=900"`
	BMI                      float64 `json:"BMI" validate:"gte=10,lte=70"`
	DiabetesPedigreeFunction float64 `json:"DiabetesPedigreeFunction" validate:"gte=0,lte=3"`
	Age                      int     `json:"Age" validate:"gte=0,lte=120"`
}

func DefaultDiabetesInput() DiabetesInput {
	return DiabetesInput{
		Pregnancies:              2,
		Glucose:                  130,
		BloodPressure:            72,
		SkinThickness:            20,
		Insulin:                  80,
		BMI:                      28,
		DiabetesPedigreeFunction: 0.5,
		Age:                      45,
	}
}

func (in DiabetesInput) Row() ml.Row {
	row := ml.NewRow()
	row.Numeric["Pregnancies"] = float64(in.Pregnancies)
	row.Numeric["Glucose"] = float64(in.Glucose)
	row.Numeric["BloodPressure"] = float64(in.BloodPressure)
	row.Numeric["SkinThickness"] = float64(in.SkinThickness)
	row.Numeric["Insulin"] = float64(in.Insulin)
	row.Numeric["BMI"] = in.BMI
	row.Numeric["DiabetesPedigreeFunction"] = in.DiabetesPedigreeFunction
	row.Numeric["Age"] = float64(in.Age)
	return row
}

// DecodeInsurance reads and validates a request body.
func DecodeInsurance(r io.Reader) (InsuranceInput, error) {
	in := DefaultInsuranceInput()
	if err := decode(r, &in); err != nil {
		return in, err
	}
	return in, Validate(in)
}

// DecodeDiabetes reads and validates a request body.
func DecodeDiabetes(r io.Reader) (DiabetesInput, error) {
	in := DefaultDiabetesInput()
	if err := decode(r, &in); err != nil {
		return in, err
	}
	return in, Validate(in)
}

// decode fills v from a JSON object. A value of the wrong type is reported as
// a validation error on that field; anything else unreadable is malformed.
func decode(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", ErrMalformedRequest)
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return ValidationErrors{{Field: typeErr.Field, Message: fmt.Sprintf("must be a valid %s", typeName(typeErr.Type.Kind().String()))}}
		}
		return fmt.Errorf("%w: %w", ErrMalformedRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON object", ErrMalformedRequest)
	}
	return nil
}

func typeName(kind string) string {
	switch kind {
	case "int", "int64":
		return "integer"
	case "float64":
		return "number"
	default:
		return kind
	}
}
