package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabpredict/artifact"
	"tabpredict/db"
	"tabpredict/ml"
	"tabpredict/serving"
)

func writeInsuranceCSV(t *testing.T, path string, n int) {
	t.Helper()
	var b strings.Builder
	b.WriteString("age,sex,bmi,children,smoker,region,charges\n")
	regions := []string{"southwest", "southeast", "northwest", "northeast"}
	for i := 0; i < n; i++ {
		age := 18 + (i*7)%47
		bmi := 18 + float64((i*3)%30)
		smoker := "no"
		charges := 2000 + 250*float64(age) + 120*bmi
		if i%5 == 0 {
			smoker = "yes"
			charges += 20000
		}
		fmt.Fprintf(&b, "%d,%s,%.1f,%d,%s,%s,%.2f\n", age, []string{"male", "female"}[i%2], bmi, i%4, smoker, regions[i%4], charges)
	}
	// one row the cleaning rules reject
	b.WriteString("-4,male,25,0,no,southwest,1000\n")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
}

func writeDiabetesCSV(t *testing.T, path string, neg, pos int) {
	t.Helper()
	var b strings.Builder
	b.WriteString("Pregnancies,Glucose,BloodPressure,SkinThickness,Insulin,BMI,DiabetesPedigreeFunction,Age,Outcome\n")
	for i := 0; i < neg; i++ {
		fmt.Fprintf(&b, "%d,%d,%d,%d,%d,%.1f,%.2f,%d,0\n", i%3, 80+i%15, 60+i%10, 15+i%5, 50+i%20, 21+0.5*float64(i%8), 0.2+0.05*float64(i%5), 22+i%10)
	}
	for i := 0; i < pos; i++ {
		fmt.Fprintf(&b, "%d,%d,%d,%d,%d,%.1f,%.2f,%d,1\n", 8+i%3, 190+i%15, 90+i%10, 40+i%5, 300+i%20, 40+0.5*float64(i%8), 1.5+0.05*float64(i%5), 55+i%10)
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
}

type workspace struct {
	root   string
	config string
	dbPath string
	store  *artifact.Store
}

func newWorkspace(t *testing.T) workspace {
	t.Helper()
	root := t.TempDir()
	ws := workspace{
		root:   root,
		config: filepath.Join(root, "config.yaml"),
		dbPath: filepath.Join(root, "runs.db"),
		store:  artifact.NewStore(filepath.Join(root, "models"), filepath.Join(root, "reports"), nil),
	}
	content := fmt.Sprintf(`log:
  level: error
artifacts:
  models_dir: %s
  reports_dir: %s
data:
  insurance: %s
  diabetes: %s
training:
  trees: 5
database:
  path: %s
`, ws.store.ModelsDir(), ws.store.ReportsDir(), filepath.Join(root, "insurance.csv"), filepath.Join(root, "diabetes.csv"), ws.dbPath)
	require.NoError(t, os.WriteFile(ws.config, []byte(content), 0o644))
	return ws
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(new(strings.Builder))
	cmd.SetErr(new(strings.Builder))
	return cmd.Execute()
}

func TestTrainAllTasks(t *testing.T) {
	ws := newWorkspace(t)
	writeInsuranceCSV(t, filepath.Join(ws.root, "insurance.csv"), 60)
	writeDiabetesCSV(t, filepath.Join(ws.root, "diabetes.csv"), 40, 20)

	require.NoError(t, execute(t, "--config", ws.config))

	for _, task := range []string{ml.TaskInsurance, ml.TaskDiabetes} {
		assert.FileExists(t, ws.store.ModelPath(task))
		assert.FileExists(t, ws.store.ForestPath(task))
		assert.FileExists(t, ws.store.ReportPath(task))
	}
	assert.FileExists(t, ws.store.ThresholdPath(ml.TaskDiabetes))
	assert.NoFileExists(t, ws.store.ThresholdPath(ml.TaskInsurance))

	importances, err := ws.store.ReadImportances(ml.TaskInsurance)
	require.NoError(t, err)
	assert.Len(t, importances, 3+2+2+4)

	models, err := serving.Load(ws.store, nil)
	require.NoError(t, err)
	out, err := models.PredictDiabetes(serving.DiabetesInput{Pregnancies: 9, Glucose: 200, BloodPressure: 95, SkinThickness: 42, Insulin: 310, BMI: 42, DiabetesPedigreeFunction: 1.6, Age: 60})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Prediction)

	require.NoError(t, db.InitDB(ws.dbPath))
	defer db.Close()
	runs, err := db.LoadTrainingLog("", 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	for _, run := range runs {
		assert.Equal(t, db.StatusSucceeded, run.Status)
	}
	insurance, err := db.LoadTrainingLog(ml.TaskInsurance, 1)
	require.NoError(t, err)
	assert.Equal(t, 60, insurance[0].DataPoints)
	assert.Contains(t, insurance[0].Metrics, "cv_mae")
}

func TestFailedTaskDoesNotBlockOther(t *testing.T) {
	ws := newWorkspace(t)
	writeInsuranceCSV(t, filepath.Join(ws.root, "insurance.csv"), 30)
	// a single positive row cannot be stratified
	writeDiabetesCSV(t, filepath.Join(ws.root, "diabetes.csv"), 20, 1)

	err := execute(t, "--config", ws.config)
	require.Error(t, err)
	assert.ErrorIs(t, err, ml.ErrInsufficientData)
	assert.Contains(t, err.Error(), "diabetes")

	assert.FileExists(t, ws.store.ModelPath(ml.TaskInsurance))
	assert.NoFileExists(t, ws.store.ModelPath(ml.TaskDiabetes))
	assert.NoFileExists(t, ws.store.ThresholdPath(ml.TaskDiabetes))

	require.NoError(t, db.InitDB(ws.dbPath))
	defer db.Close()
	runs, err := db.LoadTrainingLog(ml.TaskDiabetes, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, db.StatusFailed, runs[0].Status)
	assert.NotEmpty(t, runs[0].Error)
}

func TestSingleTaskAndOverrides(t *testing.T) {
	ws := newWorkspace(t)
	alt := filepath.Join(ws.root, "alt.csv")
	writeDiabetesCSV(t, alt, 30, 15)

	require.NoError(t, execute(t, "--config", ws.config, "--task", "diabetes", "--diabetes-data", alt, "--seed", "7", "--no-registry"))
	assert.FileExists(t, ws.store.ModelPath(ml.TaskDiabetes))
	assert.NoFileExists(t, ws.store.ModelPath(ml.TaskInsurance))
	assert.NoFileExists(t, ws.dbPath)
}

func TestLockedTaskFails(t *testing.T) {
	ws := newWorkspace(t)
	writeInsuranceCSV(t, filepath.Join(ws.root, "insurance.csv"), 30)

	lock, err := ws.store.Lock(ml.TaskInsurance)
	require.NoError(t, err)
	defer lock.Unlock()

	err = execute(t, "--config", ws.config, "--task", "insurance", "--no-registry")
	assert.ErrorIs(t, err, artifact.ErrLocked)
	assert.NoFileExists(t, ws.store.ModelPath(ml.TaskInsurance))
}

func TestRunReleasesTaskLock(t *testing.T) {
	ws := newWorkspace(t)
	writeInsuranceCSV(t, filepath.Join(ws.root, "insurance.csv"), 30)

	require.NoError(t, execute(t, "--config", ws.config, "--task", "insurance", "--no-registry"))

	lock, err := ws.store.Lock(ml.TaskInsurance)
	require.NoError(t, err)
	require.NoError(t, lock.Unlock())
}

func TestSelectTasks(t *testing.T) {
	tasks, err := selectTasks("all")
	require.NoError(t, err)
	assert.Equal(t, []string{ml.TaskInsurance, ml.TaskDiabetes}, tasks)

	_, err = selectTasks("churn")
	assert.Error(t, err)
	assert.Error(t, execute(t, "--task", "churn"))
}
