package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/mb2/pkg/mbh"
	"github.com/ssargent/mb2/pkg/mbi"
	"github.com/ssargent/mb2/pkg/storage"
)

const testKey = "test-key"

type testServer struct {
	*httptest.Server
	metrics *Metrics
}

func newTestServer(t *testing.T, config ServerConfig) *testServer {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	store, err := storage.NewDefaultStorage(t.TempDir(), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	config.APIKey = testKey
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	ts := httptest.NewServer(NewRouter(NewServer(store, config, metrics, log), reg))
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, metrics: metrics}
}

func (ts *testServer) do(t *testing.T, method, path string, body []byte) (*http.Response, APIResponse) {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("X-API-Key", testKey)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out APIResponse
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

// decodeData re-decodes the loosely typed Data field into v.
func decodeData(t *testing.T, r APIResponse, v any) {
	t.Helper()
	b, err := json.Marshal(r.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, v))
}

func bootInformation(t *testing.T) []byte {
	t.Helper()
	buf, err := mbi.NewBuilder().
		Push(mbi.NewCommandLine("root=/dev/vda")).
		Push(mbi.NewBootLoaderName("GRUB 2.12")).
		Push(&mbi.BasicMemoryInfo{Lower: 639, Upper: 130048}).
		Finish()
	require.NoError(t, err)
	return buf
}

func kernelImage(t *testing.T) []byte {
	t.Helper()
	hdr, err := mbh.NewBuilder(mbh.ArchI386).
		Push(&mbh.EntryAddress{Entry: 0x100000}).
		Finish()
	require.NoError(t, err)
	image := make([]byte, 0x3000)
	copy(image[0x800:], hdr)
	return image
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, ServerConfig{})
	resp, body := ts.do(t, "GET", "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, body.Success)
	assert.Equal(t, 1.0, testutil.ToFloat64(ts.metrics.healthChecksTotal.WithLabelValues(statusSuccess)))
}

func TestUnauthorized(t *testing.T) {
	ts := newTestServer(t, ServerConfig{})
	resp, err := ts.Client().Get(ts.URL + "/api/v1/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest("GET", ts.URL+"/api/v1/health", nil)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", "nope")
	resp, err = ts.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 1.0, testutil.ToFloat64(ts.metrics.authRequestsTotal.WithLabelValues(statusError)))
}

func TestInspect_Information(t *testing.T) {
	ts := newTestServer(t, ServerConfig{})
	resp, body := ts.do(t, "POST", "/api/v1/inspect", bootInformation(t))
	require.Equal(t, http.StatusOK, resp.StatusCode, body.Error)

	var report struct {
		Kind       string `json:"kind"`
		Terminated bool   `json:"terminated"`
		Tags       []struct {
			Name string `json:"name"`
		} `json:"tags"`
	}
	decodeData(t, body, &report)
	assert.Equal(t, "information", report.Kind)
	assert.True(t, report.Terminated)
	require.Len(t, report.Tags, 3)
	assert.Equal(t, "cmdline", report.Tags[0].Name)

	assert.Equal(t, 1.0, testutil.ToFloat64(ts.metrics.parseResultsTotal.WithLabelValues(formatInformation, "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ts.metrics.tagsDecodedTotal.WithLabelValues(formatInformation, "cmdline")))
}

func TestInspect_Header(t *testing.T) {
	ts := newTestServer(t, ServerConfig{})
	resp, body := ts.do(t, "POST", "/api/v1/inspect?format=header", kernelImage(t))
	require.Equal(t, http.StatusOK, resp.StatusCode, body.Error)

	var report struct {
		Kind   string `json:"kind"`
		Arch   string `json:"arch"`
		Offset int    `json:"offset"`
	}
	decodeData(t, body, &report)
	assert.Equal(t, "header", report.Kind)
	assert.Equal(t, "i386", report.Arch)
	assert.Equal(t, 0x800, report.Offset)
}

func TestInspect_Rejections(t *testing.T) {
	truncated := bootInformation(t)
	truncated = truncated[:len(truncated)-8]

	tests := []struct {
		name   string
		path   string
		body   []byte
		status int
		cause  string
	}{
		{"unknown format", "/api/v1/inspect?format=elf", []byte{1}, http.StatusBadRequest, ""},
		{"empty body", "/api/v1/inspect", nil, http.StatusUnprocessableEntity, "too_small"},
		{"total size past buffer", "/api/v1/inspect", truncated, http.StatusUnprocessableEntity, "size_exceeds_buffer"},
		{"no header", "/api/v1/inspect?format=header", make([]byte, 1024), http.StatusUnprocessableEntity, "header_not_found"},
		{"too large", "/api/v1/inspect", make([]byte, 4096), http.StatusRequestEntityTooLarge, ""},
	}

	ts := newTestServer(t, ServerConfig{MaxDumpSize: 2048})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := ts.do(t, "POST", tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.False(t, body.Success)
			assert.NotEmpty(t, body.Error)
			assert.Equal(t, tt.cause, body.Cause)
		})
	}
}

func TestInspect_RelaxedTermination(t *testing.T) {
	// total size covers the command line tag only; no end tag
	buf, err := mbi.NewBuilder().Push(mbi.NewCommandLine("x")).Finish()
	require.NoError(t, err)
	unterminated := append([]byte{}, buf[:len(buf)-8]...)
	unterminated[0] = byte(len(unterminated))

	strict := newTestServer(t, ServerConfig{})
	resp, body := strict.do(t, "POST", "/api/v1/inspect", unterminated)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "missing_terminator", body.Cause)

	relaxed := newTestServer(t, ServerConfig{RelaxedTermination: true})
	resp, body = relaxed.do(t, "POST", "/api/v1/inspect", unterminated)
	require.Equal(t, http.StatusOK, resp.StatusCode, body.Error)
	var report struct {
		Terminated bool     `json:"terminated"`
		Warnings   []string `json:"warnings"`
	}
	decodeData(t, body, &report)
	assert.False(t, report.Terminated)
	assert.NotEmpty(t, report.Warnings)
}

func TestDumps_Lifecycle(t *testing.T) {
	ts := newTestServer(t, ServerConfig{})
	info := bootInformation(t)

	resp, body := ts.do(t, "POST", "/api/v1/dumps?name=qemu", info)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body.Error)
	var created struct {
		ID     string `json:"id"`
		Kind   string `json:"kind"`
		Name   string `json:"name"`
		Size   int    `json:"size"`
		Report struct {
			Tags []json.RawMessage `json:"tags"`
		} `json:"report"`
	}
	decodeData(t, body, &created)
	assert.Equal(t, formatInformation, created.Kind)
	assert.Equal(t, "qemu", created.Name)
	assert.Equal(t, len(info), created.Size)
	assert.Len(t, created.Report.Tags, 3)

	_, body = ts.do(t, "POST", "/api/v1/dumps?format=header&name=kernel", kernelImage(t))
	require.True(t, body.Success, body.Error)

	resp, body = ts.do(t, "GET", "/api/v1/dumps", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []storage.Dump
	decodeData(t, body, &list)
	require.Len(t, list, 2)
	assert.Equal(t, "qemu", list[0].Name)
	assert.Equal(t, "kernel", list[1].Name)
	assert.Equal(t, 2.0, testutil.ToFloat64(ts.metrics.dumpsStored))

	resp, body = ts.do(t, "GET", "/api/v1/dumps/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got struct {
		Report struct {
			Kind string `json:"kind"`
		} `json:"report"`
	}
	decodeData(t, body, &got)
	assert.Equal(t, "information", got.Report.Kind)

	req, err := http.NewRequest("GET", ts.URL+"/api/v1/dumps/"+created.ID+"?raw=1", nil)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", testKey)
	raw, err := ts.Client().Do(req)
	require.NoError(t, err)
	data, err := io.ReadAll(raw.Body)
	raw.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", raw.Header.Get("Content-Type"))
	assert.Equal(t, info, data)

	resp, _ = ts.do(t, "DELETE", "/api/v1/dumps/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = ts.do(t, "GET", "/api/v1/dumps/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = ts.do(t, "DELETE", "/api/v1/dumps/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDumps_InvalidNotStored(t *testing.T) {
	ts := newTestServer(t, ServerConfig{})
	resp, body := ts.do(t, "POST", "/api/v1/dumps", []byte("not boot information"))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.NotEmpty(t, body.Cause)

	_, body = ts.do(t, "GET", "/api/v1/dumps", nil)
	var list []storage.Dump
	decodeData(t, body, &list)
	assert.Empty(t, list)
}

func TestDumps_BadID(t *testing.T) {
	ts := newTestServer(t, ServerConfig{})
	resp, body := ts.do(t, "GET", "/api/v1/dumps/not-a-ksuid", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid dump ID", body.Error)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, ServerConfig{})
	ts.do(t, "GET", "/api/v1/health", nil)

	resp, err := ts.Client().Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(b), `mb2_http_requests_total{endpoint="/api/v1/health",method="GET",status_code="200"} 1`)
}
