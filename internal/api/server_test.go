package api

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"
	"github.com/samcharles93/dtk/internal/logger"
	"github.com/samcharles93/dtk/pkg/dtk"
)

const (
	testSim  = `{"simulation":{"a":1}}`
	testNode = `{"node":{"b":2}}`
)

func newTestEcho(t *testing.T) (*echo.Echo, string) {
	t.Helper()
	root := t.TempDir()
	_, err := dtk.WriteFile(filepath.Join(root, "demo.dtk"), []byte(testSim), [][]byte{[]byte(testNode)}, dtk.Options{
		Engine:   dtk.EngineLZ4,
		Compress: true,
		Author:   "alice",
		Tool:     "demo",
		Hash:     true,
	})
	if err != nil {
		t.Fatalf("write container: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatalf("write notes: %v", err)
	}

	e := echo.New()
	NewServer(root, logger.Discard()).Register(e)
	return e, root
}

func doGet(t *testing.T, e *echo.Echo, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body struct {
		Error ErrorBody `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, rec.Body.String())
	}
	return body.Error
}

func TestListContainers(t *testing.T) {
	t.Parallel()

	e, _ := newTestEcho(t)
	rec := doGet(t, e, "/v1/containers")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	var out struct {
		Containers []ContainerEntry `json:"containers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Containers) != 1 || out.Containers[0].Name != "demo.dtk" || out.Containers[0].Size == 0 {
		t.Fatalf("unexpected listing: %+v", out.Containers)
	}
}

func TestContainerMetadata(t *testing.T) {
	t.Parallel()

	e, _ := newTestEcho(t)
	rec := doGet(t, e, "/v1/containers/demo.dtk")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	for _, want := range []string{`"engine":"LZ4"`, `"author":"alice"`, `"chunkcount":2`, `"offset":`} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %s in %s", want, body)
		}
	}
	if rec.Header().Get(echo.HeaderXRequestID) == "" {
		t.Fatalf("missing request id")
	}
}

func TestRequestIDIsPropagated(t *testing.T) {
	t.Parallel()

	e, _ := newTestEcho(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/containers", nil)
	req.Header.Set(echo.HeaderXRequestID, "abc-123")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if got := rec.Header().Get(echo.HeaderXRequestID); got != "abc-123" {
		t.Fatalf("request id: got %q", got)
	}
}

func TestChunkForms(t *testing.T) {
	t.Parallel()

	e, _ := newTestEcho(t)

	rec := doGet(t, e, "/v1/containers/demo.dtk/chunks/0")
	if rec.Code != http.StatusOK || rec.Body.String() != testSim {
		t.Fatalf("contents: got %d %s", rec.Code, rec.Body.String())
	}
	if !strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		t.Fatalf("contents content type: %s", rec.Header().Get(echo.HeaderContentType))
	}

	rec = doGet(t, e, "/v1/containers/demo.dtk/chunks/1?form=raw")
	if rec.Code != http.StatusOK {
		t.Fatalf("raw: got %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(echo.HeaderContentType) != echo.MIMEOctetStream {
		t.Fatalf("raw content type: %s", rec.Header().Get(echo.HeaderContentType))
	}
	if rec.Body.String() == testNode {
		t.Fatalf("raw form returned decompressed bytes")
	}

	rec = doGet(t, e, "/v1/containers/demo.dtk/chunks/1?form=object")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"b":2`) {
		t.Fatalf("object: got %d %s", rec.Code, rec.Body.String())
	}

	rec = doGet(t, e, "/v1/containers/demo.dtk/chunks/0?form=yaml")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad form: got %d", rec.Code)
	}
}

func TestSimulationAndNode(t *testing.T) {
	t.Parallel()

	e, _ := newTestEcho(t)
	rec := doGet(t, e, "/v1/containers/demo.dtk/simulation")
	if rec.Code != http.StatusOK || rec.Body.String() != `{"a":1}` {
		t.Fatalf("simulation: got %d %s", rec.Code, rec.Body.String())
	}
	rec = doGet(t, e, "/v1/containers/demo.dtk/nodes/0")
	if rec.Code != http.StatusOK || rec.Body.String() != `{"b":2}` {
		t.Fatalf("node: got %d %s", rec.Code, rec.Body.String())
	}
}

func TestVerify(t *testing.T) {
	t.Parallel()

	e, _ := newTestEcho(t)
	rec := doGet(t, e, "/v1/containers/demo.dtk/verify")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok":true`) {
		t.Fatalf("verify: got %d %s", rec.Code, rec.Body.String())
	}
}

func TestErrorStatuses(t *testing.T) {
	t.Parallel()

	e, root := newTestEcho(t)
	if err := os.WriteFile(filepath.Join(root, "bad.dtk"), []byte("NOPE0000000000000000"), 0o644); err != nil {
		t.Fatalf("write bad: %v", err)
	}

	tests := []struct {
		name   string
		path   string
		status int
		typ    string
		cond   string
	}{
		{"missing container", "/v1/containers/absent.dtk", http.StatusNotFound, "not_found_error", dtk.ErrFileAccess.Error()},
		{"dot dot name", "/v1/containers/..demo.dtk", http.StatusBadRequest, "invalid_request_error", ""},
		{"bad magic", "/v1/containers/bad.dtk", http.StatusUnprocessableEntity, "structural_error", dtk.ErrBadMagic.Error()},
		{"chunk out of range", "/v1/containers/demo.dtk/chunks/7", http.StatusNotFound, "not_found_error", dtk.ErrIndexOutOfRange.Error()},
		{"node out of range", "/v1/containers/demo.dtk/nodes/3", http.StatusNotFound, "not_found_error", dtk.ErrIndexOutOfRange.Error()},
		{"non-numeric index", "/v1/containers/demo.dtk/chunks/x", http.StatusBadRequest, "invalid_request_error", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doGet(t, e, tc.path)
			if rec.Code != tc.status {
				t.Fatalf("status: got %d want %d body=%s", rec.Code, tc.status, rec.Body.String())
			}
			body := decodeError(t, rec)
			if body.Type != tc.typ || body.Condition != tc.cond {
				t.Fatalf("error body: %+v", body)
			}
			if body.RequestID == "" || body.RequestID != rec.Header().Get(echo.HeaderXRequestID) {
				t.Fatalf("request id not echoed in error body: %+v", body)
			}
		})
	}
}

func TestCorruptChunkIsUnprocessable(t *testing.T) {
	t.Parallel()

	e, root := newTestEcho(t)
	path := filepath.Join(root, "demo.dtk")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	// An all-0xff LZ4 chunk claims an impossible uncompressed size.
	r, err := dtk.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	node := r.Chunks()[1]
	for i := node.Offset; i < node.End(); i++ {
		data[i] = 0xff
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	rec := doGet(t, e, "/v1/containers/demo.dtk/chunks/1")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	body := decodeError(t, rec)
	if body.Type != "codec_error" || body.Chunk == nil || *body.Chunk != 1 {
		t.Fatalf("error body: %+v", body)
	}

	rec = doGet(t, e, "/v1/containers/demo.dtk/chunks/0")
	if rec.Code != http.StatusOK {
		t.Fatalf("chunk 0 should be unaffected: %d", rec.Code)
	}

	rec = doGet(t, e, "/v1/containers/demo.dtk/verify")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("verify status: got %d", rec.Code)
	}
}
