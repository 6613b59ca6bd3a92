package ml

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Ridge is L2-regularized least squares. The intercept is not penalized:
// features and targets are centered before solving (XᵀX + αI)w = Xᵀy.
type Ridge struct {
	Alpha     float64
	Weights   []float64
	Intercept float64
}

func NewRidge(alpha float64) *Ridge {
	return &Ridge{Alpha: alpha}
}

func (r *Ridge) Fit(features [][]float64, targets []float64) error {
	if len(features) == 0 || len(targets) == 0 {
		return errors.New("features or targets empty")
	}
	if len(features) != len(targets) {
		return errors.New("features and targets size mismatch")
	}
	if r.Alpha < 0 {
		return fmt.Errorf("ridge alpha must be non-negative, got %v", r.Alpha)
	}

	n, p := len(features), len(features[0])
	xMean := make([]float64, p)
	yMean := 0.0
	for i, row := range features {
		if len(row) != p {
			return fmt.Errorf("%w: row %d has %d features, want %d", ErrSchemaMismatch, i, len(row), p)
		}
		for j, v := range row {
			xMean[j] += v
		}
		yMean += targets[i]
	}
	for j := range xMean {
		xMean[j] /= float64(n)
	}
	yMean /= float64(n)

	x := mat.NewDense(n, p, nil)
	y := mat.NewVecDense(n, nil)
	for i, row := range features {
		for j, v := range row {
			x.Set(i, j, v-xMean[j])
		}
		y.SetVec(i, targets[i]-yMean)
	}

	var gram mat.SymDense
	gram.SymOuterK(1, x.T())
	for j := 0; j < p; j++ {
		gram.SetSym(j, j, gram.At(j, j)+r.Alpha)
	}
	var rhs mat.VecDense
	rhs.MulVec(x.T(), y)

	w, err := solveSymmetric(&gram, &rhs)
	if err != nil {
		return fmt.Errorf("ridge: %w", err)
	}

	r.Weights = make([]float64, p)
	intercept := yMean
	for j := 0; j < p; j++ {
		r.Weights[j] = w.AtVec(j)
		intercept -= r.Weights[j] * xMean[j]
	}
	r.Intercept = intercept
	return nil
}

func (r *Ridge) Predict(features [][]float64) ([]float64, error) {
	if r.Weights == nil {
		return nil, fmt.Errorf("ridge: %w", ErrNotFitted)
	}
	out := make([]float64, len(features))
	for i, row := range features {
		score, err := linearScore(r.Weights, r.Intercept, row)
		if err != nil {
			return nil, err
		}
		out[i] = score
	}
	return out, nil
}

// solveSymmetric solves a·x = b for a symmetric positive definite a, falling
// back to a general solve when the Cholesky factorization fails numerically.
func solveSymmetric(a *mat.SymDense, b *mat.VecDense) (*mat.VecDense, error) {
	var x mat.VecDense
	var chol mat.Cholesky
	if chol.Factorize(a) {
		if err := chol.SolveVecTo(&x, b); err == nil {
			return &x, nil
		}
	}
	if err := x.SolveVec(a, b); err != nil {
		return nil, err
	}
	return &x, nil
}

func linearScore(weights []float64, intercept float64, row []float64) (float64, error) {
	if len(row) != len(weights) {
		return 0, fmt.Errorf("%w: got %d features, model expects %d", ErrSchemaMismatch, len(row), len(weights))
	}
	sum := intercept
	for j, v := range row {
		sum += weights[j] * v
	}
	return sum, nil
}
