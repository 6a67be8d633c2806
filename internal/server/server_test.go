package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"point-matcher/internal/config"
	"point-matcher/internal/jobs"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, pass string) *Server {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Port:           "0",
		LogLevel:       "debug",
		Delimiter:      ",",
		LatColumn:      0,
		LonColumn:      1,
		HasHeader:      true,
		DistanceMethod: "haversine",
		Workers:        2,
		UploadDir:      filepath.Join(dir, "uploads"),
		OutputDir:      filepath.Join(dir, "output"),
		LoginUser:      "user",
		LoginPass:      pass,
		SessionSecret:  "test-secret",
	}
	log, _ := test.NewNullLogger()
	return New(cfg, log)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestMatchEndpoint(t *testing.T) {
	r := newTestServer(t, "").Router()

	w := doJSON(t, r, http.MethodPost, "/api/match", map[string]any{
		"source": []map[string]any{
			{"lat": 37.7749, "lon": -122.4194},
			{"lat": `34°3'8"N`, "lon": `118°14'37"W`},
		},
		"target": []map[string]any{
			{"lat": 40.7128, "lon": -74.0060},
			{"lat": "36.1699", "lon": "-115.1398"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		OK    bool `json:"ok"`
		Pairs []struct {
			Match       *struct{ Lat, Lon float64 } `json:"match"`
			TargetIndex int                         `json:"target_index"`
			Distance    float64                     `json:"distance_km"`
		} `json:"pairs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	require.Len(t, resp.Pairs, 2)
	for _, p := range resp.Pairs {
		require.NotNil(t, p.Match)
		assert.Equal(t, 1, p.TargetIndex)
		assert.Equal(t, 36.1699, p.Match.Lat)
	}
}

func TestMatchEndpointEmptyTarget(t *testing.T) {
	r := newTestServer(t, "").Router()

	w := doJSON(t, r, http.MethodPost, "/api/match", map[string]any{
		"source": []map[string]any{{"lat": 1, "lon": 2}},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"match":null`)
	assert.Contains(t, w.Body.String(), `"target_index":-1`)
}

func TestMatchEndpointRadius(t *testing.T) {
	r := newTestServer(t, "").Router()

	w := doJSON(t, r, http.MethodPost, "/api/match", map[string]any{
		"mode":      "radius",
		"radius_km": 600,
		"source":    []map[string]any{{"lat": 34.0522, "lon": -118.2437}},
		"target":    []map[string]any{{"lat": 40.7128, "lon": -74.0060}, {"lat": 36.1699, "lon": -115.1398}},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"target_index":1`)
	assert.NotContains(t, w.Body.String(), `"target_index":0`)
}

func TestMatchEndpointErrors(t *testing.T) {
	r := newTestServer(t, "").Router()

	w := doJSON(t, r, http.MethodPost, "/api/match", map[string]any{
		"source": []map[string]any{{"lat": "not a coordinate", "lon": 2}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid coordinate format")
	assert.Contains(t, w.Body.String(), "source[0]")

	w = doJSON(t, r, http.MethodPost, "/api/match", map[string]any{
		"target": []map[string]any{{"lat": 100, "lon": 2}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "out of range")

	w = doJSON(t, r, http.MethodPost, "/api/match", map[string]any{"mode": "farthest"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuth(t *testing.T) {
	r := newTestServer(t, "secret").Router()

	w := doJSON(t, r, http.MethodPost, "/api/match", map[string]any{})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	form := url.Values{"username": {"user"}, "password": {"wrong"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	form.Set("password", "secret")
	req = httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	req = httptest.NewRequest(http.MethodPost, "/api/match", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	r := newTestServer(t, "").Router()

	w := doJSON(t, r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "point_matcher_active_jobs")
}

func workbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	_, err := f.NewSheet("Pos")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"Lat", "Lon"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{37.7749, -122.4194}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]interface{}{`34°3'8"N`, `118°14'37"W`}))
	require.NoError(t, f.SetSheetRow("Pos", "A1", &[]interface{}{"Lat", "Lon"}))
	require.NoError(t, f.SetSheetRow("Pos", "A2", &[]interface{}{40.7128, -74.0060}))
	require.NoError(t, f.SetSheetRow("Pos", "A3", &[]interface{}{36.1699, -115.1398}))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestRunJob(t *testing.T) {
	s := newTestServer(t, "")
	r := s.Router()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("source_file", "points.xlsx")
	require.NoError(t, err)
	_, err = fw.Write(workbook(t))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("target_sheet", "Pos"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/run", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var started struct {
		JobID string `json:"job_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &started))
	require.NotEmpty(t, started.JobID)

	require.Eventually(t, func() bool {
		j := s.jobs.Get(started.JobID)
		return j != nil && j.Snapshot().Status != jobs.StatusRunning
	}, 10*time.Second, 20*time.Millisecond)

	snap := s.jobs.Get(started.JobID).Snapshot()
	require.Equal(t, jobs.StatusDone, snap.Status, snap.Error)
	assert.Equal(t, 2, snap.Result.Rows)

	w = doJSON(t, r, http.MethodGet, "/status?job_id="+started.JobID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"done"`)

	w = doJSON(t, r, http.MethodGet, "/logs?job_id="+started.JobID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Matching finished")

	w = doJSON(t, r, http.MethodGet, "/download-result/"+snap.Result.Filename, nil)
	require.Equal(t, http.StatusOK, w.Code)

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Results")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "2", rows[1][3])
	assert.Equal(t, "36.1699", rows[2][4])
}

func TestRunJobValidation(t *testing.T) {
	r := newTestServer(t, "").Router()

	req := httptest.NewRequest(http.MethodPost, "/run", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func postRun(t *testing.T, h http.Handler, filename string, content []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("source_file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/run", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRunJobRequiresDistinctTargetSet(t *testing.T) {
	s := newTestServer(t, "")
	r := s.Router()
	csv := []byte("lat,lon\n1,2\n")

	tests := []struct {
		name     string
		filename string
		content  []byte
		fields   map[string]string
		errPart  string
	}{
		{"csv without target file", "points.csv", csv, nil, "target_file is required"},
		{"csv with target sheet", "points.csv", csv, map[string]string{"target_sheet": "Pos"}, "target_file is required"},
		{"workbook without target sheet", "points.xlsx", workbook(t), nil, "target_sheet is required"},
		{"workbook with same sheet", "points.xlsx", workbook(t), map[string]string{"source_sheet": "Pos", "target_sheet": "Pos"}, "must differ"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postRun(t, r, tt.filename, tt.content, tt.fields)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.errPart)
		})
	}
	assert.Zero(t, s.jobs.Len())
}

func TestRunJobRejectsNaNRadius(t *testing.T) {
	s := newTestServer(t, "")
	w := postRun(t, s.Router(), "points.xlsx", workbook(t), map[string]string{
		"target_sheet": "Pos",
		"mode":         "radius",
		"radius_km":    "NaN",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "non-negative number")
	assert.Zero(t, s.jobs.Len())
}

func TestUnknownJob(t *testing.T) {
	r := newTestServer(t, "").Router()

	for _, path := range []string{"/status?job_id=x", "/logs?job_id=x"} {
		w := doJSON(t, r, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
	w := doJSON(t, r, http.MethodPost, "/cancel?job_id=x", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodGet, "/download-result/..%2F..%2Fetc%2Fpasswd", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRunStopsOnCancel(t *testing.T) {
	s := newTestServer(t, "")

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after the context was cancelled")
	}
}

func TestRunReportsListenError(t *testing.T) {
	s := newTestServer(t, "")
	s.cfg.Port = "not-a-port"

	err := s.Run(context.Background())
	assert.Error(t, err)
}

func TestGinMode(t *testing.T) {
	assert.Equal(t, gin.DebugMode, GinMode("debug"))
	assert.Equal(t, gin.ReleaseMode, GinMode("info"))
	assert.Equal(t, gin.ReleaseMode, GinMode(""))
}
