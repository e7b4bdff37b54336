package errors

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRecover_WithPanic tests the Recover function when a panic occurs
func TestRecover_WithPanic(t *testing.T) {
	testFunc := func() (err error) {
		defer Recover(&err, "RandomForestRegressor.Fit")
		panic("index out of range")
	}

	err := testFunc()
	require.Error(t, err)

	var panicErr *PanicError
	require.True(t, As(err, &panicErr), "expected PanicError, got %T", err)
	assert.Equal(t, "RandomForestRegressor.Fit", panicErr.Operation)
	assert.Equal(t, "index out of range", panicErr.PanicValue)
	assert.NotEmpty(t, panicErr.StackTrace)
	assert.Equal(t, "panic in RandomForestRegressor.Fit: index out of range", panicErr.Error())
}

// TestRecover_WithoutPanic tests the Recover function when no panic occurs
func TestRecover_WithoutPanic(t *testing.T) {
	testFunc := func() (err error) {
		defer Recover(&err, "Predict")
		return nil
	}
	assert.NoError(t, testFunc())
}

// TestRecover_WithExistingError keeps the original error as the cause
func TestRecover_WithExistingError(t *testing.T) {
	originalErr := NewDataError("read csv", "train.csv", fmt.Errorf("short read"))

	testFunc := func() (err error) {
		defer Recover(&err, "Transformation")
		err = originalErr
		panic("panic after error")
	}

	err := testFunc()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in Transformation")
	assert.True(t, Is(err, originalErr))

	var dataErr *DataError
	assert.True(t, As(err, &dataErr))
}

func TestSafeExecute(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		assert.NoError(t, SafeExecute("op", func() error { return nil }))
	})

	t.Run("function error", func(t *testing.T) {
		originalErr := fmt.Errorf("function error")
		err := SafeExecute("op", func() error { return originalErr })
		assert.Equal(t, originalErr, err)
	})

	t.Run("panic", func(t *testing.T) {
		err := SafeExecute("render plot", func() error {
			panic("nil canvas")
		})
		var panicErr *PanicError
		require.True(t, As(err, &panicErr))
		assert.Equal(t, "nil canvas", panicErr.PanicValue)
	})
}

// TestPanicError_String tests that String includes the stack trace
func TestPanicError_String(t *testing.T) {
	panicErr := NewPanicError("TestOp", "test value")

	assert.Equal(t, "panic in TestOp: test value", panicErr.Error())
	str := panicErr.String()
	assert.True(t, strings.Contains(str, "Stack trace:"))
	assert.True(t, strings.Contains(str, "panic in TestOp: test value"))
}

// TestRecover_DifferentPanicTypes tests Recover with different types of panic values
func TestRecover_DifferentPanicTypes(t *testing.T) {
	testCases := []struct {
		name       string
		panicValue interface{}
	}{
		{"string panic", "string panic"},
		{"int panic", 42},
		{"error panic", fmt.Errorf("error as panic")},
		{"struct panic", struct{ Msg string }{"struct message"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			testFunc := func() (err error) {
				defer Recover(&err, "TypeTest")
				panic(tc.panicValue)
			}

			var panicErr *PanicError
			require.True(t, As(testFunc(), &panicErr))
			assert.Equal(t, fmt.Sprintf("%v", tc.panicValue), fmt.Sprintf("%v", panicErr.PanicValue))
		})
	}
}

func BenchmarkRecover_NoPanic(b *testing.B) {
	for i := 0; i < b.N; i++ {
		func() (err error) {
			defer Recover(&err, "BenchmarkOp")
			return nil
		}()
	}
}
