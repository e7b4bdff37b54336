package model

import (
	"encoding/gob"
	"io"
	"os"
	"path/filepath"

	"github.com/petrophysics/sonicdt/pkg/errors"
)

// SaveModel はモデルをgob形式でファイルに保存する。親ディレクトリは必要に応じて作成する。
//
// 使用例:
//
//	forest := ensemble.NewRandomForestRegressor()
//	// ... モデルの学習 ...
//	err := model.SaveModel(forest, "artifacts/model.pkl")
func SaveModel(m interface{}, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return errors.NewDataError("save artifact", filename, err)
	}
	file, err := os.Create(filename)
	if err != nil {
		return errors.NewDataError("save artifact", filename, err)
	}

	if err := SaveModelToWriter(m, file); err != nil {
		file.Close()
		return errors.NewDataError("save artifact", filename, err)
	}
	if err := file.Close(); err != nil {
		return errors.NewDataError("save artifact", filename, err)
	}
	return nil
}

// LoadModel はファイルからモデルを読み込む。ファイルが存在しない場合は
// ErrArtifactMissing をラップした DataError を返す。
//
// 使用例:
//
//	var forest ensemble.RandomForestRegressor
//	err := model.LoadModel(&forest, "artifacts/model.pkl")
func LoadModel(m interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewDataError("load artifact", filename, errors.ErrArtifactMissing)
		}
		return errors.NewDataError("load artifact", filename, err)
	}
	defer file.Close()

	if err := LoadModelFromReader(m, file); err != nil {
		return errors.NewDataError("load artifact", filename, err)
	}
	return nil
}

// SaveModelToWriter はモデルをio.Writerに保存する
func SaveModelToWriter(m interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(m); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader はio.Readerからモデルを読み込む
func LoadModelFromReader(m interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(m); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}
