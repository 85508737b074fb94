package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestOpenAPIDocumentListsRoutes(t *testing.T) {
	app := &App{Logger: zerolog.Nop()}
	rec := httptest.NewRecorder()
	app.OpenAPIJSON(rec, httptest.NewRequest(http.MethodGet, "/v1/openapi.json", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var doc struct {
		OpenAPI string                    `json:"openapi"`
		Paths   map[string]map[string]any `json:"paths"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("document is not valid JSON: %v", err)
	}
	if !strings.HasPrefix(doc.OpenAPI, "3.") {
		t.Fatalf("openapi = %q, want 3.x", doc.OpenAPI)
	}
	for _, path := range []string{"/api/videos/generate", "/api/videos/{id}", "/ws/progress"} {
		if _, ok := doc.Paths[path]; !ok {
			t.Fatalf("path %s missing from document", path)
		}
	}

	rec = httptest.NewRecorder()
	app.OpenAPIDocs(rec, httptest.NewRequest(http.MethodGet, "/v1/docs", nil))
	if !strings.Contains(rec.Body.String(), `spec-url="/v1/openapi.json"`) {
		t.Fatalf("docs page does not point at the document")
	}
}
