package tree

// Option は DecisionTreeRegressor の設定オプション
type Option func(*DecisionTreeRegressor)

// WithMaxDepth は木の最大深さを設定する。0 は制限なし。
func WithMaxDepth(depth int) Option {
	return func(t *DecisionTreeRegressor) { t.MaxDepth = depth }
}

// WithMinSamplesSplit は分割に必要な最小サンプル数を設定する
func WithMinSamplesSplit(n int) Option {
	return func(t *DecisionTreeRegressor) { t.MinSamplesSplit = n }
}

// WithMinSamplesLeaf は葉に必要な最小サンプル数を設定する
func WithMinSamplesLeaf(n int) Option {
	return func(t *DecisionTreeRegressor) { t.MinSamplesLeaf = n }
}

// WithMaxFeatures は各分割で検討する特徴量数の規則を設定する ("sqrt", "log2", "" = すべて)
func WithMaxFeatures(rule string) Option {
	return func(t *DecisionTreeRegressor) { t.MaxFeatures = rule }
}

// WithRandomState は特徴量サンプリングの乱数シードを設定する
func WithRandomState(seed int64) Option {
	return func(t *DecisionTreeRegressor) { t.RandomState = seed }
}
