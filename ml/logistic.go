package ml

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// LogisticRegression is an L2-regularized binary classifier. As in liblinear,
// the intercept is treated as an extra feature and is penalized with the
// weights. With BalancedWeights each sample is weighted by n / (2·n_class) so
// both classes contribute equally to the loss.
type LogisticRegression struct {
	C               float64
	BalancedWeights bool
	MaxIter         int
	Tol             float64

	Weights   []float64
	Intercept float64
}

func NewLogisticRegression() *LogisticRegression {
	return &LogisticRegression{
		C:               1,
		BalancedWeights: true,
		MaxIter:         100,
		Tol:             1e-8,
	}
}

// Fit minimizes ½‖θ‖² + C·Σ sᵢ·logloss(θ·x̃ᵢ, yᵢ) with damped Newton steps.
// The procedure has no random component, so repeated fits are identical.
func (m *LogisticRegression) Fit(features [][]float64, targets []float64) error {
	if len(features) == 0 || len(targets) == 0 {
		return errors.New("features or targets empty")
	}
	if len(features) != len(targets) {
		return errors.New("features and targets size mismatch")
	}
	if m.C <= 0 {
		return fmt.Errorf("logistic regression C must be positive, got %v", m.C)
	}
	maxIter := m.MaxIter
	if maxIter <= 0 {
		maxIter = 100
	}

	n, p := len(features), len(features[0])
	d := p + 1
	x := mat.NewDense(n, d, nil)
	for i, row := range features {
		if len(row) != p {
			return fmt.Errorf("%w: row %d has %d features, want %d", ErrSchemaMismatch, i, len(row), p)
		}
		for j, v := range row {
			x.Set(i, j, v)
		}
		x.Set(i, p, 1)
	}

	weights, err := m.sampleWeights(targets)
	if err != nil {
		return err
	}

	theta := make([]float64, d)
	objective := m.objective(x, targets, weights, theta)
	for iter := 0; iter < maxIter; iter++ {
		grad := mat.NewVecDense(d, nil)
		hess := mat.NewSymDense(d, nil)
		for j := 0; j < d; j++ {
			grad.SetVec(j, theta[j])
			hess.SetSym(j, j, 1)
		}
		for i := 0; i < n; i++ {
			row := x.RawRowView(i)
			prob := sigmoid(dot(theta, row))
			g := m.C * weights[i] * (prob - targets[i])
			h := m.C * weights[i] * prob * (1 - prob)
			for j := 0; j < d; j++ {
				grad.SetVec(j, grad.AtVec(j)+g*row[j])
				if h == 0 {
					continue
				}
				for k := j; k < d; k++ {
					hess.SetSym(j, k, hess.At(j, k)+h*row[j]*row[k])
				}
			}
		}
		if mat.Norm(grad, math.Inf(1)) < m.tol() {
			break
		}

		step, err := solveSymmetric(hess, grad)
		if err != nil {
			return fmt.Errorf("logistic regression: %w", err)
		}

		// Backtrack until the objective decreases.
		rate := 1.0
		candidate := make([]float64, d)
		improved := false
		for attempt := 0; attempt < 30; attempt++ {
			for j := range candidate {
				candidate[j] = theta[j] - rate*step.AtVec(j)
			}
			next := m.objective(x, targets, weights, candidate)
			if next <= objective {
				copy(theta, candidate)
				improved = next < objective
				objective = next
				break
			}
			rate /= 2
		}
		if !improved {
			break
		}
	}

	m.Weights = append([]float64(nil), theta[:p]...)
	m.Intercept = theta[p]
	return nil
}

func (m *LogisticRegression) PredictProba(features [][]float64) ([]float64, error) {
	if m.Weights == nil {
		return nil, fmt.Errorf("logistic regression: %w", ErrNotFitted)
	}
	out := make([]float64, len(features))
	for i, row := range features {
		score, err := linearScore(m.Weights, m.Intercept, row)
		if err != nil {
			return nil, err
		}
		out[i] = sigmoid(score)
	}
	return out, nil
}

// Predict returns class labels using a 0.5 cutoff. Calibrated decisions use
// PredictProba together with a separately stored threshold.
func (m *LogisticRegression) Predict(features [][]float64) ([]float64, error) {
	proba, err := m.PredictProba(features)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(proba))
	for i, p := range proba {
		if p >= 0.5 {
			out[i] = 1
		}
	}
	return out, nil
}

func (m *LogisticRegression) tol() float64 {
	if m.Tol <= 0 {
		return 1e-8
	}
	return m.Tol
}

func (m *LogisticRegression) sampleWeights(targets []float64) ([]float64, error) {
	var positives int
	for i, y := range targets {
		switch y {
		case 1:
			positives++
		case 0:
		default:
			return nil, fmt.Errorf("%w: target %d must be 0 or 1, got %v", ErrSchemaMismatch, i, y)
		}
	}
	weights := make([]float64, len(targets))
	n := float64(len(targets))
	negatives := len(targets) - positives
	for i, y := range targets {
		weights[i] = 1
		if !m.BalancedWeights || positives == 0 || negatives == 0 {
			continue
		}
		if y == 1 {
			weights[i] = n / (2 * float64(positives))
		} else {
			weights[i] = n / (2 * float64(negatives))
		}
	}
	return weights, nil
}

func (m *LogisticRegression) objective(x *mat.Dense, targets, weights, theta []float64) float64 {
	total := 0.5 * dot(theta, theta)
	n, _ := x.Dims()
	for i := 0; i < n; i++ {
		z := dot(theta, x.RawRowView(i))
		total += m.C * weights[i] * (softplus(z) - targets[i]*z)
	}
	return total
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func softplus(z float64) float64 {
	return math.Max(z, 0) + math.Log1p(math.Exp(-math.Abs(z)))
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
