package metrics

import (
	"math"
	"testing"

	"github.com/petrophysics/sonicdt/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestMSE(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   *mat.VecDense
		yPred   *mat.VecDense
		want    float64
		wantErr bool
	}{
		{
			name:  "perfect prediction",
			yTrue: mat.NewVecDense(5, []float64{1.0, 2.0, 3.0, 4.0, 5.0}),
			yPred: mat.NewVecDense(5, []float64{1.0, 2.0, 3.0, 4.0, 5.0}),
			want:  0.0,
		},
		{
			name:  "simple case",
			yTrue: mat.NewVecDense(4, []float64{1.0, 2.0, 3.0, 4.0}),
			yPred: mat.NewVecDense(4, []float64{1.5, 2.5, 2.5, 3.5}),
			want:  0.25,
		},
		{
			name:  "larger errors",
			yTrue: mat.NewVecDense(3, []float64{10.0, 20.0, 30.0}),
			yPred: mat.NewVecDense(3, []float64{12.0, 18.0, 33.0}),
			want:  17.0 / 3.0, // (4 + 4 + 9) / 3
		},
		{
			name:    "dimension mismatch",
			yTrue:   mat.NewVecDense(3, []float64{1.0, 2.0, 3.0}),
			yPred:   mat.NewVecDense(2, []float64{1.0, 2.0}),
			wantErr: true,
		},
		{
			name:    "empty vectors",
			yTrue:   &mat.VecDense{},
			yPred:   &mat.VecDense{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MSE(tt.yTrue, tt.yPred)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-10)
		})
	}
}

func TestRMSEAndMAE(t *testing.T) {
	yTrue := mat.NewVecDense(4, []float64{1, 2, 3, 4})
	yPred := mat.NewVecDense(4, []float64{2, 2, 3, 1})

	rmse, err := RMSE(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(10.0/4.0), rmse, 1e-12)

	mae, err := MAE(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, mae, 1e-12)

	_, err = MAE(yTrue, mat.NewVecDense(1, []float64{1}))
	var dim *errors.DimensionError
	assert.True(t, errors.As(err, &dim))
}

func TestR2Score(t *testing.T) {
	tests := []struct {
		name  string
		yTrue []float64
		yPred []float64
		want  float64
	}{
		{"perfect", []float64{1, 2, 3, 4}, []float64{1, 2, 3, 4}, 1.0},
		{"mean predictor", []float64{1, 2, 3, 4}, []float64{2.5, 2.5, 2.5, 2.5}, 0.0},
		{"partial", []float64{3, -0.5, 2, 7}, []float64{2.5, 0.0, 2, 8}, 0.9486081370449679},
		{"worse than mean", []float64{1, 2, 3}, []float64{3, 2, 1}, -3.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := R2Score(
				mat.NewVecDense(len(tt.yTrue), tt.yTrue),
				mat.NewVecDense(len(tt.yPred), tt.yPred),
			)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-10)
		})
	}
}

func TestR2ScoreZeroVariance(t *testing.T) {
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer errors.SetWarningHandler(nil)

	yTrue := mat.NewVecDense(3, []float64{5, 5, 5})

	got, err := R2Score(yTrue, mat.NewVecDense(3, []float64{5, 5, 5}))
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	got, err = R2Score(yTrue, mat.NewVecDense(3, []float64{5, 6, 5}))
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)

	require.Len(t, warnings, 2)
	var w *errors.UndefinedMetricWarning
	assert.True(t, errors.As(warnings[1], &w))
	assert.Equal(t, "R2Score", w.Metric)
}

func TestEvaluate(t *testing.T) {
	scores, err := Evaluate(
		mat.NewVecDense(4, []float64{1, 2, 3, 4}),
		mat.NewVecDense(4, []float64{1, 2, 3, 5}),
	)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, scores.R2, 1e-12)
	assert.InDelta(t, 0.25, scores.MSE, 1e-12)
	assert.InDelta(t, 0.25, scores.MAE, 1e-12)
}

func TestMatrixVariants(t *testing.T) {
	yTrue := mat.NewDense(3, 1, []float64{1, 2, 3})
	yPred := mat.NewDense(3, 1, []float64{1, 2, 4})

	mse, err := MSEMatrix(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 1.0/3.0, mse, 1e-12)

	mae, err := MAEMatrix(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 1.0/3.0, mae, 1e-12)

	r2, err := R2ScoreMatrix(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, r2, 1e-12)

	_, err = MSEMatrix(mat.NewDense(2, 2, nil), mat.NewDense(2, 2, nil))
	assert.Error(t, err, "multi-column input is rejected")

	_, err = R2ScoreMatrix(yTrue, mat.NewDense(2, 1, nil))
	var dim *errors.DimensionError
	assert.True(t, errors.As(err, &dim))
}
