package ml

import "fmt"

type ColumnKind int

const (
	Numeric ColumnKind = iota
	Categorical
)

func (k ColumnKind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Categorical:
		return "categorical"
	default:
		return fmt.Sprintf("ColumnKind(%d)", int(k))
	}
}

type Column struct {
	Name string
	Kind ColumnKind
}

// Schema is the ordered feature contract shared by training and serving.
// It is a value type; accessors return copies so a persisted schema cannot be
// changed in place.
type Schema struct {
	columns []Column
}

func NewSchema(columns ...Column) Schema {
	return Schema{columns: append([]Column(nil), columns...)}
}

func (s Schema) Columns() []Column {
	return append([]Column(nil), s.columns...)
}

func (s Schema) Len() int {
	return len(s.columns)
}

func (s Schema) Names() []string {
	names := make([]string, len(s.columns))
	for i, c := range s.columns {
		names[i] = c.Name
	}
	return names
}

func (s Schema) NumericColumns() []string {
	return s.namesOf(Numeric)
}

func (s Schema) CategoricalColumns() []string {
	return s.namesOf(Categorical)
}

func (s Schema) Has(name string) bool {
	for _, c := range s.columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Equal reports whether both schemas list the same columns, field for field.
func (s Schema) Equal(other Schema) bool {
	if len(s.columns) != len(other.columns) {
		return false
	}
	for i := range s.columns {
		if s.columns[i] != other.columns[i] {
			return false
		}
	}
	return true
}

func (s Schema) namesOf(kind ColumnKind) []string {
	names := make([]string, 0, len(s.columns))
	for _, c := range s.columns {
		if c.Kind == kind {
			names = append(names, c.Name)
		}
	}
	return names
}

const (
	TaskInsurance = "insurance"
	TaskDiabetes  = "diabetes"

	InsuranceTarget = "charges"
	DiabetesTarget  = "Outcome"
)

func InsuranceSchema() Schema {
	return NewSchema(
		Column{Name: "age", Kind: Numeric},
		Column{Name: "bmi", Kind: Numeric},
		Column{Name: "children", Kind: Numeric},
		Column{Name: "sex", Kind: Categorical},
		Column{Name: "smoker", Kind: Categorical},
		Column{Name: "region", Kind: Categorical},
	)
}

func DiabetesSchema() Schema {
	return NewSchema(
		Column{Name: "Pregnancies", Kind: Numeric},
		Column{Name: "Glucose", Kind: Numeric},
		Column{Name: "BloodPressure", Kind: Numeric},
		Column{Name: "SkinThickness", Kind: Numeric},
		Column{Name: "Insulin", Kind: Numeric},
		Column{Name: "BMI", Kind: Numeric},
		Column{Name: "DiabetesPedigreeFunction", Kind: Numeric},
		Column{Name: "Age", Kind: Numeric},
	)
}
