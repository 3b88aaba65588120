package httpserver

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/lanshare/modules/transfer"
	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/zstd"
)

// newTestRouter builds a gin engine with the full route table over a fresh
// temporary storage root.
func newTestRouter(t *testing.T) (*gin.Engine, string) {
	t.Helper()

	gin.SetMode(gin.TestMode)
	root := t.TempDir()
	service := transfer.NewService(transfer.Config{
		Root:          root,
		AdvertisedURL: "http://127.0.0.1:8000",
	})

	engine := gin.New()
	registerRoutes(engine, NewHandlers(service))
	return engine, root
}

// multipartBody builds a multipart form with the given field/filename/content
// triples.
func multipartBody(t *testing.T, field string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for name, content := range files {
		part, err := writer.CreateFormFile(field, name)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		if _, err := part.Write([]byte(content)); err != nil {
			t.Fatalf("part.Write: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("writer.Close: %v", err)
	}
	return &body, writer.FormDataContentType()
}

func doUpload(t *testing.T, router *gin.Engine, filename, content string) *httptest.ResponseRecorder {
	t.Helper()

	body, contentType := multipartBody(t, "file", map[string]string{filename: content})
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUploadEndpoint(t *testing.T) {
	router, root := newTestRouter(t)

	w := doUpload(t, router, "hello.txt", "hello world")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var result transfer.UploadResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !result.Success || result.Filename != "hello.txt" || result.Size != 11 {
		t.Errorf("result = %+v", result)
	}
	if result.Type != "document" {
		t.Errorf("Type = %q, want document", result.Type)
	}

	if _, err := os.Stat(filepath.Join(root, "hello.txt")); err != nil {
		t.Errorf("file not stored: %v", err)
	}
}

func TestUploadEndpointNoFile(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader("not multipart"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestUploadEndpointDuplicate(t *testing.T) {
	router, _ := newTestRouter(t)

	doUpload(t, router, "x.txt", "one")
	w := doUpload(t, router, "x.txt", "two")

	var result transfer.UploadResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if result.Filename != "x_1.txt" {
		t.Errorf("Filename = %q, want x_1.txt", result.Filename)
	}
}

func TestUploadMultipleEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	body, contentType := multipartBody(t, "files", map[string]string{
		"a.txt": "aaaa",
		"b.pdf": "bbbbbb",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/upload-multiple", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Success bool                    `json:"success"`
		Files   []transfer.UploadResult `json:"files"`
		Summary transfer.BatchSummary   `json:"summary"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Success {
		t.Error("success = false")
	}
	if resp.Summary.Total != 2 || resp.Summary.Successful != 2 || resp.Summary.Failed != 0 {
		t.Errorf("summary = %+v", resp.Summary)
	}
	if resp.Summary.TotalSize != 10 {
		t.Errorf("TotalSize = %d, want 10", resp.Summary.TotalSize)
	}
}

func TestUploadMultipleEndpointEmpty(t *testing.T) {
	router, _ := newTestRouter(t)

	body, contentType := multipartBody(t, "unrelated", map[string]string{"a.txt": "a"})
	req := httptest.NewRequest(http.MethodPost, "/api/upload-multiple", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestListEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	doUpload(t, router, "one.txt", "1")
	doUpload(t, router, "two.jpg", "22")

	req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var files []transfer.FileInfo
	if err := json.Unmarshal(w.Body.Bytes(), &files); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("len(files) = %d, want 2", len(files))
	}

	byName := make(map[string]transfer.FileInfo)
	for _, f := range files {
		byName[f.Name] = f
	}
	if byName["two.jpg"].Type != "image" {
		t.Errorf("two.jpg type = %q, want image", byName["two.jpg"].Type)
	}
	if byName["one.txt"].Size != 1 {
		t.Errorf("one.txt size = %d, want 1", byName["one.txt"].Size)
	}
}

func TestDownloadEndpointRaw(t *testing.T) {
	router, _ := newTestRouter(t)

	content := "raw download payload"
	doUpload(t, router, "data.txt", content)

	req := httptest.NewRequest(http.MethodGet, "/api/download/data.txt?compressed=false", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := w.Body.String(); got != content {
		t.Errorf("body = %q, want %q", got, content)
	}
	if cl := w.Header().Get("Content-Length"); cl != "20" {
		t.Errorf("Content-Length = %q, want 20", cl)
	}
	if enc := w.Header().Get("Content-Encoding"); enc != "" {
		t.Errorf("Content-Encoding = %q, want empty", enc)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "data.txt") {
		t.Errorf("Content-Disposition = %q", cd)
	}
}

func TestDownloadEndpointCompressed(t *testing.T) {
	router, _ := newTestRouter(t)

	content := strings.Repeat("compressible content ", 1000)
	doUpload(t, router, "big.txt", content)

	// compressed=true is the default.
	req := httptest.NewRequest(http.MethodGet, "/api/download/big.txt", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if enc := w.Header().Get("Content-Encoding"); enc != "zstd" {
		t.Errorf("Content-Encoding = %q, want zstd", enc)
	}
	if cl := w.Header().Get("Content-Length"); cl != "" {
		t.Errorf("Content-Length = %q, want unset for compressed stream", cl)
	}

	dec, err := zstd.NewReader(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("zstd.NewReader: %v", err)
	}
	defer dec.Close()

	got, err := io.ReadAll(dec)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if string(got) != content {
		t.Errorf("decompressed %d bytes, want %d", len(got), len(content))
	}
}

func TestDownloadEndpointErrors(t *testing.T) {
	router, root := newTestRouter(t)

	t.Run("missing file", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/download/absent.txt", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", w.Code)
		}
	})

	t.Run("not a regular file", func(t *testing.T) {
		if err := os.Mkdir(filepath.Join(root, "adir"), 0o755); err != nil {
			t.Fatalf("Mkdir: %v", err)
		}
		req := httptest.NewRequest(http.MethodGet, "/api/download/adir", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("symlink escaping root", func(t *testing.T) {
		outside := filepath.Join(t.TempDir(), "secret.txt")
		if err := os.WriteFile(outside, []byte("secret"), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		if err := os.Symlink(outside, filepath.Join(root, "escape.txt")); err != nil {
			t.Skipf("symlinks not supported: %v", err)
		}
		req := httptest.NewRequest(http.MethodGet, "/api/download/escape.txt", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", w.Code)
		}
	})
}

func TestDeleteEndpoint(t *testing.T) {
	router, root := newTestRouter(t)

	doUpload(t, router, "doomed.txt", "bye")

	req := httptest.NewRequest(http.MethodDelete, "/api/files/doomed.txt", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Success bool   `json:"success"`
		Deleted string `json:"deleted"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Success || resp.Deleted != "doomed.txt" {
		t.Errorf("resp = %+v", resp)
	}
	if _, err := os.Stat(filepath.Join(root, "doomed.txt")); !os.IsNotExist(err) {
		t.Errorf("file still present: %v", err)
	}

	// Deleting again is a 404, not a crash.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/files/doomed.txt", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}

func TestDeleteMultipleEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	doUpload(t, router, "a.txt", "aa")
	doUpload(t, router, "b.txt", "bb")

	payload, _ := json.Marshal(map[string][]string{
		"filenames": {"a.txt", "missing.txt", "b.txt"},
	})
	req := httptest.NewRequest(http.MethodDelete, "/api/files", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Success bool                    `json:"success"`
		Results []transfer.DeleteResult `json:"results"`
		Summary transfer.BatchSummary   `json:"summary"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Success {
		t.Error("success = true with a failed item")
	}
	if resp.Summary.Total != 3 || resp.Summary.Successful != 2 || resp.Summary.Failed != 1 {
		t.Errorf("summary = %+v", resp.Summary)
	}
	if len(resp.Results) != 3 || resp.Results[1].Success {
		t.Errorf("results = %+v", resp.Results)
	}
}

func TestStatusEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	doUpload(t, router, "a.txt", "aaaa")

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var status transfer.StatusInfo
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if status.Status != "online" || status.FileCount != 1 || status.TotalSize != 4 {
		t.Errorf("status = %+v", status)
	}
	if status.URL != "http://127.0.0.1:8000" {
		t.Errorf("URL = %q", status.URL)
	}
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}
