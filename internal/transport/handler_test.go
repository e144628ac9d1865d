package transport

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-endoqa/internal/analyzer"
	"go-endoqa/internal/config"
	"go-endoqa/internal/observer"
	"go-endoqa/internal/repository"
	"go-endoqa/internal/service"
	"go-endoqa/pkg/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func checkerboardPNG(t *testing.T) []byte {
	t.Helper()
	frame := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			v := uint8(108)
			if (x/8+y/8)%2 == 1 {
				v = 148
			}
			frame.Pix[y*frame.Stride+x] = v
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, frame))
	return buf.Bytes()
}

func darkPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 16, 16))))
	return buf.Bytes()
}

type testServer struct {
	handler http.Handler
	metrics *observer.MetricsObserver
}

func newTestServer(t *testing.T, maxBody int64) *testServer {
	t.Helper()

	calc := analyzer.NewMetricsCalculator()
	metrics := observer.NewMetricsObserver()
	events := observer.NewSyncEventPublisher()
	events.Subscribe(metrics)

	svc, err := service.NewInspectionService(service.Dependencies{
		Calculator: calc,
		Temporal:   analyzer.NewTemporalAnalyzer(calc, analyzer.DefaultOptions()),
		Reports:    repository.NewMemoryReportRepository(),
		Events:     events,
	}, service.DefaultServiceOptions())
	require.NoError(t, err)

	cfg := &config.Config{
		RequestTimeout:     5 * time.Second,
		MaxRequestBodySize: maxBody,
	}
	return &testServer{handler: NewHandler(svc, metrics, cfg), metrics: metrics}
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func writeFrame(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func multipartBody(t *testing.T, files map[string][]byte, order []string, thresholds string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, name := range order {
		fw, err := mw.CreateFormFile(uploadField, name)
		require.NoError(t, err)
		_, err = fw.Write(files[name])
		require.NoError(t, err)
	}
	if thresholds != "" {
		require.NoError(t, mw.WriteField("thresholds", thresholds))
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t, 1<<20)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"available"`)
}

func TestInspect_PassingFrames(t *testing.T) {
	ts := newTestServer(t, 1<<20)
	dir := t.TempDir()
	a := writeFrame(t, dir, "a.png", checkerboardPNG(t))
	b := writeFrame(t, dir, "b.png", checkerboardPNG(t))

	payload, err := json.Marshal(models.InspectRequest{Refs: []string{a, b}})
	require.NoError(t, err)

	w := ts.do(httptest.NewRequest(http.MethodPost, "/inspect", bytes.NewReader(payload)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var report models.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.True(t, report.Pass)
	assert.Equal(t, 2, report.FrameCount)
	assert.Equal(t, models.TemporalAnalyzed, report.TemporalStatus)
	assert.NotEmpty(t, report.ID)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.Equal(t, "PASS", raw["overall"])
	assert.Contains(t, raw, "per_frame")
	assert.Contains(t, raw, "dead_pixels_multi_frame")

	// stored in the history
	w = ts.do(httptest.NewRequest(http.MethodGet, "/reports/"+report.ID, nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestInspect_BadRequests(t *testing.T) {
	ts := newTestServer(t, 1<<20)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"refs":`, http.StatusBadRequest},
		{"missing refs", `{}`, http.StatusBadRequest},
		{"empty refs", `{"refs":[]}`, http.StatusBadRequest},
		{"unsupported scheme", `{"refs":["ftp://host/a.png"]}`, http.StatusBadRequest},
		{"missing file", `{"refs":["/nonexistent/frame.png"]}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(httptest.NewRequest(http.MethodPost, "/inspect", strings.NewReader(tt.body)))
			assert.Equal(t, tt.want, w.Code, w.Body.String())

			var resp models.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, http.StatusText(tt.want), resp.Error)
		})
	}
}

func TestInspect_DecodeErrorIsUnprocessable(t *testing.T) {
	ts := newTestServer(t, 1<<20)
	path := writeFrame(t, t.TempDir(), "garbage.png", []byte("not an image"))

	w := ts.do(httptest.NewRequest(http.MethodPost, "/inspect", strings.NewReader(`{"refs":["`+path+`"]}`)))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestInspectUpload(t *testing.T) {
	ts := newTestServer(t, 1<<20)

	files := map[string][]byte{"0.png": darkPNG(t), "1.png": darkPNG(t)}
	body, contentType := multipartBody(t, files, []string{"0.png", "1.png"}, "")

	req := httptest.NewRequest(http.MethodPost, "/inspect/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := ts.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var report models.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.False(t, report.Pass)
	assert.Equal(t, 256, report.DeadPixels)
	assert.Equal(t, []float64{0, 0}, report.BrightnessSeries)
}

func TestInspectUpload_ThresholdOverrides(t *testing.T) {
	ts := newTestServer(t, 1<<20)

	files := map[string][]byte{"0.png": checkerboardPNG(t)}
	body, contentType := multipartBody(t, files, []string{"0.png"}, `{"minSharpness": 1000000}`)

	req := httptest.NewRequest(http.MethodPost, "/inspect/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := ts.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var report models.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.False(t, report.Pass)
	assert.Equal(t, 1000000.0, report.Thresholds.MinSharpness)
}

func TestInspectUpload_Errors(t *testing.T) {
	ts := newTestServer(t, 1<<20)

	body, contentType := multipartBody(t, nil, nil, "")
	req := httptest.NewRequest(http.MethodPost, "/inspect/upload", body)
	req.Header.Set("Content-Type", contentType)
	assert.Equal(t, http.StatusBadRequest, ts.do(req).Code, "no files")

	files := map[string][]byte{"bad.png": []byte("garbage")}
	body, contentType = multipartBody(t, files, []string{"bad.png"}, "")
	req = httptest.NewRequest(http.MethodPost, "/inspect/upload", body)
	req.Header.Set("Content-Type", contentType)
	assert.Equal(t, http.StatusUnprocessableEntity, ts.do(req).Code, "decode error")
}

func TestRequestSizeLimit(t *testing.T) {
	ts := newTestServer(t, 64)

	payload := `{"refs":["` + strings.Repeat("a", 200) + `.png"]}`
	w := ts.do(httptest.NewRequest(http.MethodPost, "/inspect", strings.NewReader(payload)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestReportsAndStats(t *testing.T) {
	ts := newTestServer(t, 1<<20)
	dir := t.TempDir()
	good := writeFrame(t, dir, "good.png", checkerboardPNG(t))
	dark := writeFrame(t, dir, "dark.png", darkPNG(t))

	for _, ref := range []string{good, dark} {
		w := ts.do(httptest.NewRequest(http.MethodPost, "/inspect", strings.NewReader(`{"refs":["`+ref+`"]}`)))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w := ts.do(httptest.NewRequest(http.MethodGet, "/reports", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var list models.ReportListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 2, list.Count)
	assert.Len(t, list.Reports, 2)

	w = ts.do(httptest.NewRequest(http.MethodGet, "/reports?overall=fail&limit=5", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Equal(t, 1, list.Count)
	assert.False(t, list.Reports[0].Pass)

	assert.Equal(t, http.StatusBadRequest, ts.do(httptest.NewRequest(http.MethodGet, "/reports?limit=-1", nil)).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(httptest.NewRequest(http.MethodGet, "/reports?overall=maybe", nil)).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(httptest.NewRequest(http.MethodGet, "/reports/unknown", nil)).Code)

	w = ts.do(httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var stats struct {
		Inspections observer.Stats    `json:"inspections"`
		Thresholds  models.Thresholds `json:"thresholds"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, int64(2), stats.Inspections.TotalInspections)
	assert.Equal(t, int64(1), stats.Inspections.PassedInspections)
	assert.Equal(t, int64(1), stats.Inspections.FailedVerdicts)
	assert.Equal(t, 50.0, stats.Thresholds.MinSharpness)
}
