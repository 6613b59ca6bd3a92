package ml

func insuranceRow(age, bmi, children float64, sex, smoker, region string) Row {
	return Row{
		Numeric:     map[string]float64{"age": age, "bmi": bmi, "children": children},
		Categorical: map[string]string{"sex": sex, "smoker": smoker, "region": region},
	}
}

// insuranceDataset builds a deterministic dataset where charges grow with age
// and bmi and jump for smokers.
func insuranceDataset(n int) *Dataset {
	regions := []string{"southwest", "southeast", "northwest", "northeast"}
	ds := &Dataset{Schema: InsuranceSchema(), Target: InsuranceTarget}
	for i := 0; i < n; i++ {
		age := float64(18 + (i*7)%47)
		bmi := 18 + float64((i*5)%25) + 0.5*float64(i%2)
		children := float64(i % 4)
		sex := "male"
		if i%2 == 1 {
			sex = "female"
		}
		smoker := "no"
		charges := 2000 + 250*age + 120*bmi + 400*children
		if i%5 == 0 {
			smoker = "yes"
			charges += 20000
		}
		ds.Rows = append(ds.Rows, insuranceRow(age, bmi, children, sex, smoker, regions[i%4]))
		ds.Y = append(ds.Y, charges)
	}
	return ds
}

func diabetesRow(pregnancies, glucose, bp, skin, insulin, bmi, dpf, age float64) Row {
	return Row{
		Numeric: map[string]float64{
			"Pregnancies":              pregnancies,
			"Glucose":                  glucose,
			"BloodPressure":            bp,
			"SkinThickness":            skin,
			"Insulin":                  insulin,
			"BMI":                      bmi,
			"DiabetesPedigreeFunction": dpf,
			"Age":                      age,
		},
		Categorical: map[string]string{},
	}
}

// separableDiabetes returns negatives clustered far below positives on every feature.
func separableDiabetes(negatives, positives int) *Dataset {
	ds := &Dataset{Schema: DiabetesSchema(), Target: DiabetesTarget}
	for i := 0; i < negatives; i++ {
		f := float64(i)
		ds.Rows = append(ds.Rows, diabetesRow(
			float64(i%3), 80+float64(i%15), 60+float64(i%10), 15+float64(i%5),
			50+float64(i%20), 21+0.5*float64(i%8), 0.2+0.05*float64(i%5), 22+float64(int(f)%10),
		))
		ds.Y = append(ds.Y, 0)
	}
	for i := 0; i < positives; i++ {
		ds.Rows = append(ds.Rows, diabetesRow(
			8+float64(i%3), 190+float64(i%15), 90+float64(i%10), 40+float64(i%5),
			300+float64(i%20), 40+0.5*float64(i%8), 1.5+0.05*float64(i%5), 55+float64(i%10),
		))
		ds.Y = append(ds.Y, 1)
	}
	return ds
}
