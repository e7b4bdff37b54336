package dataset

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/petrophysics/sonicdt/pkg/errors"
	"github.com/xuri/excelize/v2"
)

// ReadCSV は先頭行をヘッダとしてCSVを読み込む
func ReadCSV(r io.Reader) (*Frame, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.NewDataError("read csv", "", err)
	}
	if len(records) == 0 {
		return nil, errors.NewDataError("read csv", "", errors.ErrEmptyData)
	}
	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	return NewFrame(header, records[1:])
}

// ReadExcel はワークブックの最初のシートを読み込む。
// excelize が扱えるのは OOXML (.xlsx) のみで、旧形式の .xls は DataError になる。
func ReadExcel(r io.Reader) (*Frame, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.NewDataError("read excel", "", err)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.NewDataError("read excel", "", errors.ErrEmptyData)
	}
	rows, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, errors.NewDataError("read excel", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, errors.NewDataError("read excel", sheets[0], errors.ErrEmptyData)
	}
	return NewFrame(rows[0], rows[1:])
}

// ReadUpload は拡張子 (.csv, .xls, .xlsx) に応じて読み込み方法を選ぶ。
// それ以外の拡張子は ErrUnsupportedFormat をラップした DataError になる。
func ReadUpload(name string, r io.Reader) (*Frame, error) {
	var (
		f   *Frame
		err error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		f, err = ReadCSV(r)
	case ".xls", ".xlsx":
		f, err = ReadExcel(r)
	default:
		return nil, errors.NewDataError("read upload", name, errors.ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", name)
	}
	return f, nil
}

// ReadFile はパスの拡張子に応じてファイルを読み込む
func ReadFile(path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.NewDataError("open", path, err)
	}
	defer file.Close()
	return ReadUpload(path, file)
}

// WriteCSV はヘッダ付きでCSVを書き出す（インデックス列は無し）
func (f *Frame) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(f.Columns()); err != nil {
		return errors.Wrap(err, "write csv header")
	}
	for i := 0; i < f.nRows; i++ {
		if err := writer.Write(f.Record(i)); err != nil {
			return errors.Wrapf(err, "write csv row %d", i)
		}
	}
	writer.Flush()
	return errors.Wrap(writer.Error(), "flush csv")
}

// WriteCSVFile は path にCSVを書き出す。親ディレクトリは作成しない。
func (f *Frame) WriteCSVFile(path string) error {
	var buf bytes.Buffer
	if err := f.WriteCSV(&buf); err != nil {
		return errors.NewDataError("write csv", path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return errors.NewDataError("write csv", path, err)
	}
	return nil
}
