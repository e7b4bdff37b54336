package web

import (
	"embed"
	"html/template"
	"net/http"
	"strings"

	"github.com/petrophysics/sonicdt/dataset"
	"github.com/petrophysics/sonicdt/pkg/errors"
	"github.com/petrophysics/sonicdt/pkg/log"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type indexView struct {
	Required []string
}

type resultsView struct {
	FileName string
	Plot     template.URL
	Columns  []string
	Rows     [][]string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "index.html", indexView{Required: s.required})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

// handleUpload reads the uploaded table, checks the required columns before
// the model is touched, adds the prediction and renders the results page.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	logger := s.requestLogger(r)
	if s.cfg.MaxUploadBytes > 0 {
		if r.ContentLength > s.cfg.MaxUploadBytes {
			s.plainError(w, r, http.StatusRequestEntityTooLarge, "The file is too large.",
				errors.Newf("content length %d exceeds %d", r.ContentLength, s.cfg.MaxUploadBytes))
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			s.plainError(w, r, http.StatusRequestEntityTooLarge, "The file is too large.", err)
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
			s.plainError(w, r, http.StatusBadRequest, "No file was uploaded.", err)
		default:
			s.plainError(w, r, http.StatusBadRequest, "Could not read the upload.", err)
		}
		return
	}
	defer file.Close()
	logger = logger.With(log.FileNameKey, header.Filename)

	frame, err := dataset.ReadUpload(header.Filename, file)
	if err != nil {
		if errors.Is(err, errors.ErrUnsupportedFormat) {
			s.plainError(w, r, http.StatusBadRequest, "Unsupported format. Use CSV or Excel.", err)
			return
		}
		s.fail(w, r, "Could not read the file: "+err.Error(), err)
		return
	}
	logger.Info("upload read", log.SamplesKey, frame.Len())

	if err := frame.RequireColumns("upload", s.required...); err != nil {
		s.fail(w, r, missingMessage(err), err)
		return
	}

	preds, err := s.predictor.Predict(frame)
	if err != nil {
		s.fail(w, r, "Prediction failed: "+err.Error(), err)
		return
	}
	if err := frame.SetFloat(PredictedColumn, preds); err != nil {
		s.fail(w, r, "", err)
		return
	}
	if err := frame.Rename(s.target, RealColumn); err != nil {
		s.plainError(w, r, http.StatusBadRequest, "The file already has a "+RealColumn+" column.", err)
		return
	}

	png, err := RenderTracksBase64(frame, s.depth)
	if err != nil {
		s.fail(w, r, "", err)
		return
	}
	view := resultsView{
		FileName: header.Filename,
		Plot:     template.URL("data:image/png;base64," + png),
		Columns:  frame.Columns(),
		Rows:     make([][]string, frame.Len()),
	}
	for i := range view.Rows {
		view.Rows[i] = frame.Record(i)
	}
	logger.Info("prediction served", log.PredsKey, len(preds))
	s.render(w, r, "results.html", view)
}

func missingMessage(err error) string {
	var mc *errors.MissingColumnsError
	if errors.As(err, &mc) {
		return "Missing required columns: " + strings.Join(mc.Columns, ", ")
	}
	return err.Error()
}

// fail answers 400 with msg for errors caused by the upload itself and 500
// otherwise.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if errors.IsUserError(err) && msg != "" {
		s.plainError(w, r, http.StatusBadRequest, msg, err)
		return
	}
	s.plainError(w, r, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError), err)
}

func (s *Server) plainError(w http.ResponseWriter, r *http.Request, status int, msg string, err error) {
	logger := s.requestLogger(r)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", err, log.StatusKey, status)
	} else {
		logger.Warn("request rejected", log.StatusKey, status, "reason", err.Error())
	}
	http.Error(w, msg, status)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data interface{}) {
	var buf strings.Builder
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.plainError(w, r, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError), errors.Wrap(err, "render "+name))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(buf.String()))
}
