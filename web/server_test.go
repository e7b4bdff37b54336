package web

import (
	"bytes"
	"context"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/petrophysics/sonicdt/config"
	"github.com/petrophysics/sonicdt/dataset"
	"github.com/petrophysics/sonicdt/pkg/errors"
	"github.com/petrophysics/sonicdt/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePredictor returns GR + 10 for every row.
type fakePredictor struct {
	calls int
	err   error
	panic bool
}

func (f *fakePredictor) Predict(frame *dataset.Frame) ([]float64, error) {
	f.calls++
	if f.panic {
		panic("boom")
	}
	if f.err != nil {
		return nil, f.err
	}
	gr, err := frame.Float("GR")
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(gr))
	for i, v := range gr {
		out[i] = v + 10
	}
	return out, nil
}

func newTestServer(t *testing.T, p *fakePredictor) (*Server, *log.TestLogger) {
	t.Helper()
	testLogger, _ := log.NewTestLogger(log.LevelDebug)
	return NewServer(config.Default(), p, testLogger), testLogger
}

func uploadRequest(t *testing.T, field, name, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

const logsNoDT = `DEPTH,RHOB,GR,NPHI,PEF
3500.0,2.45,60,0.21,7.1
3500.5,2.47,,0.22,7.3
3501.0,2.50,55,0.19,6.9
`

const logsWithDT = `DEPTH,RHOB,GR,NPHI,PEF,DT
3500.0,2.45,60,0.21,7.1,80.5
3500.5,2.47,62,0.22,7.3,81.0
`

func TestIndexAndHealth(t *testing.T) {
	s, _ := newTestServer(t, &fakePredictor{})

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `enctype="multipart/form-data"`)
	assert.Contains(t, rec.Body.String(), "DEPTH, RHOB, GR, NPHI, PEF")

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok\n", rec.Body.String())

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/upload", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestUploadRejections(t *testing.T) {
	tests := []struct {
		name    string
		req     func(t *testing.T) *http.Request
		status  int
		message string
	}{
		{
			name:    "no file",
			req:     func(t *testing.T) *http.Request { return uploadRequest(t, "other", "logs.csv", logsNoDT) },
			status:  http.StatusBadRequest,
			message: "No file was uploaded.",
		},
		{
			name: "not multipart",
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("x"))
			},
			status:  http.StatusBadRequest,
			message: "No file was uploaded.",
		},
		{
			name:    "unsupported format",
			req:     func(t *testing.T) *http.Request { return uploadRequest(t, "file", "logs.las", logsNoDT) },
			status:  http.StatusBadRequest,
			message: "Unsupported format. Use CSV or Excel.",
		},
		{
			name:    "unreadable excel",
			req:     func(t *testing.T) *http.Request { return uploadRequest(t, "file", "logs.xlsx", "not a workbook") },
			status:  http.StatusBadRequest,
			message: "Could not read the file",
		},
		{
			name: "missing PEF",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "file", "logs.csv", "DEPTH,RHOB,GR,NPHI\n3500,2.4,60,0.2\n")
			},
			status:  http.StatusBadRequest,
			message: "Missing required columns: PEF",
		},
		{
			name: "missing several",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "file", "logs.csv", "GR,NPHI\n60,0.2\n")
			},
			status:  http.StatusBadRequest,
			message: "Missing required columns: DEPTH, RHOB, PEF",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePredictor{}
			s, _ := newTestServer(t, p)

			rec := serve(s, tt.req(t))
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.message)
			assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
			assert.Zero(t, p.calls, "the model is not invoked")
		})
	}
}

func TestUploadWithoutDT(t *testing.T) {
	p := &fakePredictor{}
	s, testLogger := newTestServer(t, p)

	rec := serve(s, uploadRequest(t, "file", "logs.csv", logsNoDT))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, p.calls)

	body := rec.Body.String()
	assert.Contains(t, body, "<th>Predicted_DT</th>")
	assert.NotContains(t, body, "Real_DT")
	assert.Contains(t, body, "<td>70</td>", "prediction of the first row")
	assert.Contains(t, body, `src="data:image/png;base64,`)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	assert.True(t, testLogger.ContainsMessage("prediction served"))
	assert.True(t, testLogger.ContainsField(log.FileNameKey, "logs.csv"))
	assert.True(t, testLogger.ContainsField(log.StatusKey, 200.0))
}

func TestUploadRenamesDT(t *testing.T) {
	s, _ := newTestServer(t, &fakePredictor{})

	req := uploadRequest(t, "file", "logs.CSV", logsWithDT)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := rec.Body.String()
	assert.Contains(t, body, "<th>Real_DT</th>")
	assert.Contains(t, body, "<th>Predicted_DT</th>")
	assert.NotContains(t, body, "<th>DT</th>")
	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))
}

func TestUploadPredictorFailures(t *testing.T) {
	t.Run("internal error", func(t *testing.T) {
		s, testLogger := newTestServer(t, &fakePredictor{err: errors.New("model exploded")})
		rec := serve(s, uploadRequest(t, "file", "logs.csv", logsNoDT))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "exploded")
		assert.True(t, testLogger.ContainsMessage("request failed"))
	})

	t.Run("user error", func(t *testing.T) {
		err := errors.NewDataError("Matrix", "", errors.ErrEmptyData)
		s, _ := newTestServer(t, &fakePredictor{err: err})
		rec := serve(s, uploadRequest(t, "file", "logs.csv", logsNoDT))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Prediction failed")
	})

	t.Run("panic", func(t *testing.T) {
		s, testLogger := newTestServer(t, &fakePredictor{panic: true})
		rec := serve(s, uploadRequest(t, "file", "logs.csv", logsNoDT))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.True(t, testLogger.ContainsMessage("handler panicked"))
		assert.True(t, testLogger.ContainsMessage("panic in POST /upload: boom"))
	})
}

func TestUploadTooLarge(t *testing.T) {
	cfg := config.Default()
	cfg.Server.MaxUploadBytes = 64
	s := NewServer(cfg, &fakePredictor{}, nil)

	rec := serve(s, uploadRequest(t, "file", "logs.csv", strings.Repeat(logsNoDT, 10)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRenderTracks(t *testing.T) {
	frame, err := dataset.ReadCSV(strings.NewReader(logsNoDT))
	require.NoError(t, err)
	require.NoError(t, frame.SetFloat(PredictedColumn, []float64{70, 71, 65}))

	png, err := RenderTracks(frame, "DEPTH")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	_, err = RenderTracks(frame, "TVD")
	var mc *errors.MissingColumnsError
	assert.True(t, errors.As(err, &mc))
}

func TestServeShutsDownOnCancel(t *testing.T) {
	s, testLogger := newTestServer(t, &fakePredictor{})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	assert.True(t, testLogger.ContainsMessage("shutting down server"))
}
