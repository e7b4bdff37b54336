// Package dataset は well log の表形式データ（列名付きの表）を扱う。
//
// Frame は各セルの元の文字列を保持し、数値列は必要になった時点で float64 に
// 変換する。欠損値は NaN になる。Frame は並行アクセスに対して安全ではない。
package dataset

import (
	"math"
	"strconv"
	"strings"

	"github.com/petrophysics/sonicdt/pkg/errors"
	"github.com/petrophysics/sonicdt/preprocessing"
	"gonum.org/v1/gonum/mat"
)

// missingTokens are parsed as NaN without a warning.
var missingTokens = map[string]bool{
	"":     true,
	"NA":   true,
	"N/A":  true,
	"NaN":  true,
	"nan":  true,
	"null": true,
}

type column struct {
	name   string
	raw    []string
	values []float64 // nil until first numeric access
}

// Frame は名前付きの列を順序付きで保持する
type Frame struct {
	columns []*column
	index   map[string]int
	nRows   int
}

// NewFrame は header と行データから Frame を作成する。
// 短い行は空文字（欠損）で補い、重複した列名は DataError になる。
func NewFrame(header []string, rows [][]string) (*Frame, error) {
	f := &Frame{index: make(map[string]int, len(header)), nRows: len(rows)}
	for j, name := range header {
		name = strings.TrimSpace(name)
		if _, dup := f.index[name]; dup {
			return nil, errors.NewDataError("parse header", "", errors.Newf("duplicate column %q", name))
		}
		raw := make([]string, len(rows))
		for i, row := range rows {
			if j < len(row) {
				raw[i] = strings.TrimSpace(row[j])
			}
		}
		f.index[name] = j
		f.columns = append(f.columns, &column{name: name, raw: raw})
	}
	return f, nil
}

// Len は行数を返す
func (f *Frame) Len() int {
	return f.nRows
}

// Columns は列名を順に返す
func (f *Frame) Columns() []string {
	names := make([]string, len(f.columns))
	for i, c := range f.columns {
		names[i] = c.name
	}
	return names
}

// Has は列が存在するかどうかを返す
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// RequireColumns は不足している列を要求順に全て列挙した MissingColumnsError を返す
func (f *Frame) RequireColumns(op string, names ...string) error {
	var missing []string
	for _, name := range names {
		if !f.Has(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return errors.NewMissingColumnsError(op, missing)
	}
	return nil
}

func (f *Frame) column(op, name string) (*column, error) {
	i, ok := f.index[name]
	if !ok {
		return nil, errors.NewMissingColumnsError(op, []string{name})
	}
	return f.columns[i], nil
}

// Strings は列の元の文字列のコピーを返す
func (f *Frame) Strings(name string) ([]string, error) {
	c, err := f.column("Strings", name)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), c.raw...), nil
}

// Float は列を数値として返す（コピー）。欠損トークンは NaN になり、
// それ以外の数値でない値も NaN にして DataConversionWarning を1列につき1回発行する。
func (f *Frame) Float(name string) ([]float64, error) {
	c, err := f.column("Float", name)
	if err != nil {
		return nil, err
	}
	return append([]float64(nil), c.numeric()...), nil
}

func (c *column) numeric() []float64 {
	if c.values != nil {
		return c.values
	}
	values := make([]float64, len(c.raw))
	warned := false
	for i, s := range c.raw {
		if missingTokens[s] {
			values[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			values[i] = math.NaN()
			if !warned {
				errors.Warn(errors.NewDataConversionWarning(c.name, s, "not a number"))
				warned = true
			}
			continue
		}
		values[i] = v
	}
	c.values = values
	return values
}

// SetFloat は数値列を追加する。同名の列があれば置き換える。
func (f *Frame) SetFloat(name string, values []float64) error {
	if len(values) != f.nRows {
		return errors.NewDimensionError("SetFloat", f.nRows, len(values), 0)
	}
	raw := make([]string, len(values))
	for i, v := range values {
		raw[i] = FormatFloat(v)
	}
	c := &column{name: name, raw: raw, values: append([]float64(nil), values...)}
	if i, ok := f.index[name]; ok {
		f.columns[i] = c
		return nil
	}
	f.index[name] = len(f.columns)
	f.columns = append(f.columns, c)
	return nil
}

// Rename は列名を変更する。old が存在しない場合は何もしない。
func (f *Frame) Rename(old, to string) error {
	i, ok := f.index[old]
	if !ok || old == to {
		return nil
	}
	if f.Has(to) {
		return errors.NewValidationError("rename", "target column already exists", to)
	}
	delete(f.index, old)
	f.index[to] = i
	f.columns[i].name = to
	return nil
}

// Filter は keep が true を返す行だけを持つ新しい Frame を返す
func (f *Frame) Filter(keep func(row int) bool) *Frame {
	var rows []int
	for i := 0; i < f.nRows; i++ {
		if keep(i) {
			rows = append(rows, i)
		}
	}

	out := &Frame{index: make(map[string]int, len(f.columns)), nRows: len(rows)}
	for j, c := range f.columns {
		nc := &column{name: c.name, raw: make([]string, len(rows))}
		if c.values != nil {
			nc.values = make([]float64, len(rows))
		}
		for k, r := range rows {
			nc.raw[k] = c.raw[r]
			if c.values != nil {
				nc.values[k] = c.values[r]
			}
		}
		out.index[c.name] = j
		out.columns = append(out.columns, nc)
	}
	return out
}

// Matrix は指定した列を順に並べた n×len(names) の行列を返す
func (f *Frame) Matrix(names ...string) (*mat.Dense, error) {
	if err := f.RequireColumns("Matrix", names...); err != nil {
		return nil, err
	}
	if f.nRows == 0 || len(names) == 0 {
		return nil, errors.NewDataError("Matrix", "", errors.ErrEmptyData)
	}
	m := mat.NewDense(f.nRows, len(names), nil)
	for j, name := range names {
		m.SetCol(j, f.columns[f.index[name]].numeric())
	}
	return m, nil
}

// HasNaN は指定した列のいずれかに欠損があるかどうかを返す
func (f *Frame) HasNaN(names ...string) (bool, error) {
	for _, name := range names {
		c, err := f.column("HasNaN", name)
		if err != nil {
			return false, err
		}
		for _, v := range c.numeric() {
			if math.IsNaN(v) {
				return true, nil
			}
		}
	}
	return false, nil
}

// CountNaN は列の欠損数を返す
func (f *Frame) CountNaN(name string) (int, error) {
	c, err := f.column("CountNaN", name)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, v := range c.numeric() {
		if math.IsNaN(v) {
			n++
		}
	}
	return n, nil
}

// Median は欠損を無視した列の中央値を返す
func (f *Frame) Median(name string) (float64, error) {
	c, err := f.column("Median", name)
	if err != nil {
		return 0, err
	}
	m := preprocessing.Median(c.numeric())
	if math.IsNaN(m) {
		return 0, errors.NewValueError("Median", "column "+name+" has no observed values")
	}
	return m, nil
}

// Record は i 行目を列順の文字列で返す
func (f *Frame) Record(i int) []string {
	rec := make([]string, len(f.columns))
	for j, c := range f.columns {
		rec[j] = c.raw[i]
	}
	return rec
}

// FormatFloat は数値を最短の表現で書式化する。NaN は空文字。
func FormatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
