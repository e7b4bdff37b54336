package errors

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Fit",
			kind:    "invalid input",
			err:     fmt.Errorf("test error"),
			wantMsg: "sonicdt: Fit: invalid input: test error",
		},
		{
			name:    "without original error",
			op:      "Predict",
			kind:    "not fitted",
			err:     nil,
			wantMsg: "sonicdt: Predict: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)
			assert.Equal(t, tt.wantMsg, err.Error())

			// スタックトレースの存在確認
			formatted := fmt.Sprintf("%+v", err)
			assert.Contains(t, formatted, "errors_test.go")

			var modelErr *ModelError
			assert.True(t, As(err, &modelErr))
		})
	}
}

func TestDataErrorUnwrap(t *testing.T) {
	err := NewDataError("read csv", "artifacts/train.csv", os.ErrNotExist)

	assert.True(t, Is(err, os.ErrNotExist))
	assert.Equal(t, "sonicdt: read csv artifacts/train.csv: file does not exist", err.Error())

	var dataErr *DataError
	require.True(t, As(err, &dataErr))
	assert.Equal(t, "artifacts/train.csv", dataErr.Path)
}

func TestMissingColumnsError(t *testing.T) {
	cols := []string{"NPHI", "PEF"}
	err := NewMissingColumnsError("upload", cols)
	cols[0] = "mutated"

	var colErr *MissingColumnsError
	require.True(t, As(err, &colErr))
	assert.Equal(t, []string{"NPHI", "PEF"}, colErr.Columns)
	assert.Contains(t, err.Error(), "NPHI, PEF")
}

func TestIsUserError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"data error", NewDataError("parse", "", New("bad row")), true},
		{"missing columns", NewMissingColumnsError("upload", []string{"PEF"}), true},
		{"wrapped data error", Wrap(NewDataError("parse", "", New("bad row")), "upload"), true},
		{"model error", NewModelError("Fit", "failed", nil), false},
		{"score threshold", NewScoreThresholdError("validation", "r2", 0.5, 0.6), false},
		{"plain", New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUserError(tt.err))
		})
	}
}

func TestScoreThresholdError(t *testing.T) {
	err := NewScoreThresholdError("validation", "r2", 0.55, 0.6)

	var scoreErr *ScoreThresholdError
	require.True(t, As(err, &scoreErr))
	assert.Equal(t, 0.55, scoreErr.Score)
	assert.Contains(t, err.Error(), "validation r2 score too low")
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Transform", 4, 3, 1)
	expected := "sonicdt: Transform: dimension mismatch on axis 1 (features). Expected 4, got 3"
	assert.Equal(t, expected, err.Error())

	var dimErr *DimensionError
	assert.True(t, As(err, &dimErr))
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("SimpleImputer", "Transform")
	expected := "sonicdt: SimpleImputer: this model is not fitted yet. Call Fit() before using Transform()"
	assert.Equal(t, expected, err.Error())
}

func TestWarnRoutesToZerologFunc(t *testing.T) {
	var got []error
	SetZerologWarnFunc(func(w error) { got = append(got, w) })
	defer SetZerologWarnFunc(nil)

	Warn(NewUndefinedMetricWarning("r2", "zero variance", 0))

	require.Len(t, got, 1)
	assert.True(t, strings.Contains(got[0].Error(), "'r2' is ill-defined"))
}

func TestCheckMatrix(t *testing.T) {
	ok := fakeMatrix{{1, 2}, {3, 4}}
	assert.NoError(t, CheckMatrix("ok", ok))

	bad := fakeMatrix{{1, nan()}, {3, 4}}
	err := CheckMatrix("bad", bad)
	var numErr *NumericalInstabilityError
	assert.True(t, As(err, &numErr))
}

type fakeMatrix [][]float64

func (m fakeMatrix) At(i, j int) float64 { return m[i][j] }
func (m fakeMatrix) Dims() (int, int)    { return len(m), len(m[0]) }

func nan() float64 {
	zero := 0.0
	return zero / zero
}
