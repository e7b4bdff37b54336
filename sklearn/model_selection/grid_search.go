package model_selection

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/petrophysics/sonicdt/core/model"
	"github.com/petrophysics/sonicdt/core/parallel"
	"github.com/petrophysics/sonicdt/pkg/errors"
	"github.com/petrophysics/sonicdt/pkg/log"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// CandidateResult は1つのパラメータ候補の交差検証結果
type CandidateResult struct {
	Params     map[string]interface{} `json:"params"`
	FoldScores []float64              `json:"fold_scores"`
	MeanScore  float64                `json:"mean_test_score"`
	StdScore   float64                `json:"std_test_score"`
	Rank       int                    `json:"rank_test_score"`
}

// GridSearchCV は全てのパラメータ候補を交差検証で評価し、最良の候補を選ぶ。
type GridSearchCV struct {
	estimator model.Tunable
	grid      ParamGrid
	cv        Splitter
	scoring   string
	nJobs     int
	refit     bool
	logger    log.Logger

	bestIndex     int
	bestEstimator model.Tunable
	results       []CandidateResult
}

// GridSearchOption は GridSearchCV の設定オプション
type GridSearchOption func(*GridSearchCV)

// WithCV は分割器を設定する (デフォルト: シャッフルなしの3分割)
func WithCV(cv Splitter) GridSearchOption {
	return func(g *GridSearchCV) { g.cv = cv }
}

// WithScoring はスコアリング名を設定する (デフォルト: "r2")
func WithScoring(scoring string) GridSearchOption {
	return func(g *GridSearchCV) { g.scoring = scoring }
}

// WithNJobs は並列に評価する (候補, 分割) の数を設定する。-1 は全CPU。
func WithNJobs(n int) GridSearchOption {
	return func(g *GridSearchCV) { g.nJobs = n }
}

// WithRefit は最良の候補を訓練データ全体で再学習するかどうかを設定する
func WithRefit(refit bool) GridSearchOption {
	return func(g *GridSearchCV) { g.refit = refit }
}

// WithLogger は進捗を記録するロガーを設定する
func WithLogger(logger log.Logger) GridSearchOption {
	return func(g *GridSearchCV) { g.logger = logger }
}

// NewGridSearchCV は新しいGridSearchCVを作成する
//
// 使用例:
//
//	gs := model_selection.NewGridSearchCV(ensemble.NewRandomForestRegressor(), grid,
//	    model_selection.WithCV(model_selection.NewKFold(3, false, 0)),
//	    model_selection.WithNJobs(-1),
//	)
//	err := gs.Fit(ctx, XTrain, yTrain)
//	best, err := gs.BestEstimator()
func NewGridSearchCV(estimator model.Tunable, grid ParamGrid, opts ...GridSearchOption) *GridSearchCV {
	g := &GridSearchCV{
		estimator: estimator,
		grid:      grid,
		cv:        NewKFold(3, false, 0),
		scoring:   ScoringR2,
		nJobs:     -1,
		refit:     true,
		logger:    log.Nop(),
		bestIndex: -1,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type task struct {
	candidate int
	fold      int
}

// Fit は全ての (候補, 分割) を並列に評価する。平均スコアが最大の候補を選び、
// 同点の場合は先に列挙された候補を優先する。ctx がキャンセルされると未実行の
// 評価を打ち切ってエラーを返す。
func (g *GridSearchCV) Fit(ctx context.Context, X, y mat.Matrix) error {
	if err := g.grid.Validate(); err != nil {
		return err
	}
	scorer, err := GetScorer(g.scoring)
	if err != nil {
		return err
	}
	nSamples, _ := X.Dims()
	if yr, _ := y.Dims(); yr != nSamples {
		return errors.NewDimensionError("GridSearchCV.Fit", nSamples, yr, 0)
	}
	folds, err := g.cv.Split(nSamples)
	if err != nil {
		return err
	}

	candidates := g.grid.Candidates()
	start := time.Now()
	g.logger.Info("grid search started",
		log.ModelNameKey, fmt.Sprintf("%T", g.estimator),
		log.OperationKey, log.OperationFit,
		log.CandidatesKey, len(candidates),
		log.FoldsKey, len(folds),
		log.SamplesKey, nSamples,
	)

	// Materialize fold data once; every candidate reuses it.
	type foldData struct{ xTrain, yTrain, xTest, yTest *mat.Dense }
	data := make([]foldData, len(folds))
	for i, f := range folds {
		data[i] = foldData{
			xTrain: TakeRows(X, f.TrainIndices),
			yTrain: TakeRows(y, f.TrainIndices),
			xTest:  TakeRows(X, f.TestIndices),
			yTest:  TakeRows(y, f.TestIndices),
		}
	}

	// The grid already runs one task per worker, so inner estimators stay serial.
	_, hasJobs := g.estimator.GetParams()["n_jobs"]

	tasks := make([]task, 0, len(candidates)*len(folds))
	for c := range candidates {
		for f := range folds {
			tasks = append(tasks, task{candidate: c, fold: f})
		}
	}
	scores := make([][]float64, len(candidates))
	for c := range scores {
		scores[c] = make([]float64, len(folds))
	}
	errs := make([]error, len(tasks))

	parallel.ParallelizeN(len(tasks), parallel.Workers(g.nJobs), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return
			}
			t := tasks[i]
			est := g.estimator.Clone()
			if err := est.SetParams(candidates[t.candidate]); err != nil {
				errs[i] = err
				continue
			}
			if hasJobs && g.nJobs != 1 {
				if err := est.SetParams(map[string]interface{}{"n_jobs": 1}); err != nil {
					errs[i] = err
					continue
				}
			}
			d := data[t.fold]
			if err := est.Fit(d.xTrain, d.yTrain); err != nil {
				errs[i] = errors.Wrapf(err, "candidate %d fold %d", t.candidate, t.fold)
				continue
			}
			score, err := scorer(est, d.xTest, d.yTest)
			if err != nil {
				errs[i] = errors.Wrapf(err, "candidate %d fold %d", t.candidate, t.fold)
				continue
			}
			scores[t.candidate][t.fold] = score
		}
	})
	for _, err := range errs {
		if err != nil {
			return errors.NewModelError("GridSearchCV.Fit", "cross-validation", err)
		}
	}

	g.results = make([]CandidateResult, len(candidates))
	g.bestIndex = 0
	for c, params := range candidates {
		g.results[c] = CandidateResult{
			Params:     params,
			FoldScores: scores[c],
			MeanScore:  stat.Mean(scores[c], nil),
			StdScore:   stat.PopStdDev(scores[c], nil),
		}
		if g.results[c].MeanScore > g.results[g.bestIndex].MeanScore {
			g.bestIndex = c
		}
		g.logger.Debug("candidate evaluated",
			log.HyperParamsKey, params,
			"mean_test_score", g.results[c].MeanScore,
		)
	}
	rankResults(g.results)

	best := g.results[g.bestIndex]
	g.logger.Info("grid search finished",
		log.HyperParamsKey, best.Params,
		"best_score", best.MeanScore,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)

	if !g.refit {
		return nil
	}
	est := g.estimator.Clone()
	if err := est.SetParams(best.Params); err != nil {
		return err
	}
	if err := est.Fit(X, y); err != nil {
		return errors.NewModelError("GridSearchCV.Fit", "refit", err)
	}
	g.bestEstimator = est
	return nil
}

// rankResults assigns 1 to the best mean score; ties share the lowest rank.
func rankResults(results []CandidateResult) {
	order := make([]int, len(results))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return results[order[a]].MeanScore > results[order[b]].MeanScore
	})
	for pos, idx := range order {
		rank := pos + 1
		if pos > 0 && results[order[pos-1]].MeanScore == results[idx].MeanScore {
			rank = results[order[pos-1]].Rank
		}
		results[idx].Rank = rank
	}
}

// BestParams は最良の候補のパラメータを返す
func (g *GridSearchCV) BestParams() (map[string]interface{}, error) {
	if g.bestIndex < 0 {
		return nil, errors.NewNotFittedError("GridSearchCV", "BestParams")
	}
	return g.results[g.bestIndex].Params, nil
}

// BestScore は最良の候補の平均スコアを返す
func (g *GridSearchCV) BestScore() (float64, error) {
	if g.bestIndex < 0 {
		return 0, errors.NewNotFittedError("GridSearchCV", "BestScore")
	}
	return g.results[g.bestIndex].MeanScore, nil
}

// BestEstimator は再学習済みの最良モデルを返す
func (g *GridSearchCV) BestEstimator() (model.Tunable, error) {
	if g.bestEstimator == nil {
		return nil, errors.NewNotFittedError("GridSearchCV", "BestEstimator")
	}
	return g.bestEstimator, nil
}

// CVResults は候補ごとの結果を列挙順に返す
func (g *GridSearchCV) CVResults() []CandidateResult {
	return append([]CandidateResult(nil), g.results...)
}

// CrossValScore は分割ごとに estimator の複製を学習し、検証スコアを返す
func CrossValScore(ctx context.Context, estimator model.Tunable, X, y mat.Matrix, cv Splitter, scoring string) ([]float64, error) {
	scorer, err := GetScorer(scoring)
	if err != nil {
		return nil, err
	}
	nSamples, _ := X.Dims()
	folds, err := cv.Split(nSamples)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(folds))
	for i, f := range folds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		est := estimator.Clone()
		if err := est.Fit(TakeRows(X, f.TrainIndices), TakeRows(y, f.TrainIndices)); err != nil {
			return nil, errors.Wrapf(err, "fold %d", i)
		}
		score, err := scorer(est, TakeRows(X, f.TestIndices), TakeRows(y, f.TestIndices))
		if err != nil {
			return nil, errors.Wrapf(err, "fold %d", i)
		}
		scores[i] = score
	}
	return scores, nil
}
