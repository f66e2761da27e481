package httpadapter

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/raggae/internal/config"
	"github.com/kirillkom/raggae/internal/observability/metrics"
)

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for name, content := range files {
		part, err := writer.CreateFormFile("file", name)
		if err != nil {
			t.Fatalf("CreateFormFile() error = %v", err)
		}
		if _, err := part.Write([]byte(content)); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return &body, writer.FormDataContentType()
}

func TestHealthzEndpoint(t *testing.T) {
	handler := newTestHandler(config.Config{}, &serviceFake{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestUploadDocumentsAcceptsRepeatedFileField(t *testing.T) {
	fake := &serviceFake{}
	handler := newTestHandler(config.Config{ProcessingMode: "sync"}, fake)

	body, contentType := multipartBody(t, map[string]string{"a.txt": "alpha", "b.md": "# beta"})
	req := httptest.NewRequest(http.MethodPost, "/v1/projects/p-1/documents", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(userIDHeader, "user-1")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	if fake.lastUserID != "user-1" || fake.lastProjectID != "p-1" {
		t.Fatalf("unexpected caller %q/%q", fake.lastUserID, fake.lastProjectID)
	}
	if len(fake.lastFiles) != 2 {
		t.Fatalf("expected 2 files, got %d", len(fake.lastFiles))
	}

	var resp struct {
		Results []map[string]any `json:"results"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestUploadDocumentsAsyncReturns202(t *testing.T) {
	handler := newTestHandler(config.Config{ProcessingMode: "async"}, &serviceFake{})

	body, contentType := multipartBody(t, map[string]string{"a.txt": "alpha"})
	req := httptest.NewRequest(http.MethodPost, "/v1/projects/p-1/documents", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(userIDHeader, "user-1")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", res.Code)
	}
}

func TestUploadDocumentMissingMultipartField(t *testing.T) {
	handler := newTestHandler(config.Config{}, &serviceFake{})

	req := httptest.NewRequest(http.MethodPost, "/v1/projects/p-1/documents", bytes.NewBufferString("plain-text"))
	req.Header.Set("Content-Type", "text/plain")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestQueryPassesRequestFields(t *testing.T) {
	fake := &serviceFake{}
	handler := newTestHandler(config.Config{}, fake)

	res := doJSON(t, handler, http.MethodPost, "/v1/projects/p-1/query", map[string]any{
		"query":            "vacation days",
		"limit":            3,
		"offset":           1,
		"strategy":         "fulltext",
		"metadata_filters": map[string]any{"source_type": "paragraph"},
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	q := fake.lastQuery
	if q.ProjectID != "p-1" || q.UserID != "user-1" || q.Text != "vacation days" {
		t.Fatalf("unexpected query identity %+v", q)
	}
	if q.Limit == nil || *q.Limit != 3 || q.Offset != 1 || q.Strategy != "fulltext" {
		t.Fatalf("unexpected query paging %+v", q)
	}
	if q.MetadataFilters["source_type"] != "paragraph" {
		t.Fatalf("unexpected filters %+v", q.MetadataFilters)
	}
}

func TestDeleteDocumentReturns204(t *testing.T) {
	fake := &serviceFake{}
	handler := newTestHandler(config.Config{}, fake)

	res := doJSON(t, handler, http.MethodDelete, "/v1/projects/p-1/documents/doc-9", nil)
	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.Code)
	}
	if len(fake.deleted) != 1 || fake.deleted[0] != "doc-9" {
		t.Fatalf("unexpected deletes %+v", fake.deleted)
	}
}

func TestListEndpointsReturnEmptyArrays(t *testing.T) {
	handler := newTestHandler(config.Config{}, &serviceFake{})

	res := doJSON(t, handler, http.MethodGet, "/v1/projects", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), `"projects":[]`) {
		t.Fatalf("expected empty projects array, got %s", res.Body.String())
	}
}

func TestMetricsEndpointCountsRoutes(t *testing.T) {
	m := metrics.NewHTTPServerMetrics("api")
	handler := NewRouter(config.Config{}, fakeServices(&serviceFake{})).WithMetrics(m).Handler()

	if res := doJSON(t, handler, http.MethodPost, "/v1/projects/p-1/query", map[string]any{"query": "hello"}); res.Code != http.StatusOK {
		t.Fatalf("query expected 200, got %d", res.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	body, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	for _, want := range []string{
		`path="POST /v1/projects/{projectID}/query"`,
		`raggae_query_requests_total{reranked="false",service="api",strategy="hybrid"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("expected %q in metrics output:\n%s", want, body)
		}
	}
}
