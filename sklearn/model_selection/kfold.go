// Package model_selection はK分割交差検証とハイパーパラメータのグリッドサーチを提供する。
package model_selection

import (
	"math/rand/v2"

	"github.com/petrophysics/sonicdt/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Fold は1つの分割の訓練・検証インデックス
type Fold struct {
	TrainIndices []int
	TestIndices  []int
}

// Splitter は交差検証の分割器
type Splitter interface {
	Split(nSamples int) ([]Fold, error)
	GetNSplits() int
}

// KFold はK分割交差検証の分割器。Shuffle が false の場合は連続したブロックに分ける。
type KFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed int
}

// NewKFold は新しいKFoldを作成する
func NewKFold(nSplits int, shuffle bool, randomSeed int) *KFold {
	return &KFold{
		NSplits:    nSplits,
		Shuffle:    shuffle,
		RandomSeed: randomSeed,
	}
}

// GetNSplits は分割数を返す
func (kf *KFold) GetNSplits() int {
	return kf.NSplits
}

// Split は各分割の訓練・検証インデックスを生成する。
// 先頭の nSamples % NSplits 個の分割は1サンプル多くなる。
func (kf *KFold) Split(nSamples int) ([]Fold, error) {
	if kf.NSplits < 2 {
		return nil, errors.NewValidationError("n_splits", "must be >= 2", kf.NSplits)
	}
	if nSamples < kf.NSplits {
		return nil, errors.NewValidationError("n_splits", "cannot be greater than the number of samples", kf.NSplits)
	}

	indices := make([]int, nSamples)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		r := rand.New(rand.NewPCG(uint64(kf.RandomSeed), uint64(kf.RandomSeed)))
		r.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	folds := make([]Fold, kf.NSplits)
	foldSize := nSamples / kf.NSplits
	remainder := nSamples % kf.NSplits

	current := 0
	for i := 0; i < kf.NSplits; i++ {
		testSize := foldSize
		if i < remainder {
			testSize++
		}
		end := current + testSize

		test := append([]int(nil), indices[current:end]...)
		train := make([]int, 0, nSamples-testSize)
		train = append(train, indices[:current]...)
		train = append(train, indices[end:]...)

		folds[i] = Fold{TrainIndices: train, TestIndices: test}
		current = end
	}
	return folds, nil
}

// TakeRows は indices の順に行を取り出した新しい行列を返す
func TakeRows(X mat.Matrix, indices []int) *mat.Dense {
	_, c := X.Dims()
	out := mat.NewDense(len(indices), c, nil)
	row := make([]float64, c)
	for i, idx := range indices {
		mat.Row(row, idx, X)
		out.SetRow(i, row)
	}
	return out
}
