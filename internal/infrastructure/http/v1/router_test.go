package v1

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"seqgen/internal/core/variable"
	"seqgen/internal/domain/sequence"
	"seqgen/internal/infrastructure/storage/memory"
	"seqgen/pkg/logger"
)

func testRouter(t *testing.T, opts ...sequence.Option) http.Handler {
	t.Helper()

	registry := variable.NewRegistry()
	registry.MustRegister(variable.NewDepartmentCode())

	store := memory.NewStore()
	svc := sequence.NewService(store, registry, opts...)

	return NewRouter(RouterConfig{
		Service:    svc,
		ConfigRepo: store,
		Logger:     logger.Default(),
	})
}

func doRequest(t *testing.T, h http.Handler, method, path, scopeID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if scopeID != "" {
		req.Header.Set("X-Scope-ID", scopeID)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestProvisionAndGenerate(t *testing.T) {
	router := testRouter(t)

	w := doRequest(t, router, http.MethodPost, "/api/v1/sequences", "tenant-1",
		`{"name":"invoice","pattern":"INV-{YEAR}-{COUNTER:5}"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("provision status = %d, body %s", w.Code, w.Body.String())
	}

	w = doRequest(t, router, http.MethodPost, "/api/v1/sequences/invoice/generate", "tenant-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("generate status = %d, body %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if value, _ := body["value"].(string); !strings.HasPrefix(value, "INV-") || !strings.HasSuffix(value, "-00001") {
		t.Errorf("generated value = %v", body["value"])
	}

	// Counter advances per call.
	w = doRequest(t, router, http.MethodPost, "/api/v1/sequences/invoice/generate", "tenant-1", "")
	body = decodeBody(t, w)
	if counter, _ := body["counter"].(float64); counter != 2 {
		t.Errorf("second counter = %v, want 2", body["counter"])
	}
}

func TestGenerateWithContext(t *testing.T) {
	router := testRouter(t)

	doRequest(t, router, http.MethodPost, "/api/v1/sequences", "tenant-1",
		`{"name":"order","pattern":"ORD-{?DEPARTMENT?{DEPARTMENT:ABBREV}:GEN}-{COUNTER:4}"}`)

	w := doRequest(t, router, http.MethodPost, "/api/v1/sequences/order/generate", "tenant-1",
		`{"context":{"department":"Sales"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("generate status = %d, body %s", w.Code, w.Body.String())
	}
	if body := decodeBody(t, w); body["value"] != "ORD-SLS-0001" {
		t.Errorf("value = %v, want ORD-SLS-0001", body["value"])
	}

	w = doRequest(t, router, http.MethodPost, "/api/v1/sequences/order/generate", "tenant-1", "")
	if body := decodeBody(t, w); body["value"] != "ORD-GEN-0002" {
		t.Errorf("value = %v, want ORD-GEN-0002", body["value"])
	}
}

func TestMissingScopeHeader(t *testing.T) {
	router := testRouter(t)

	w := doRequest(t, router, http.MethodGet, "/api/v1/sequences", "", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if body := decodeBody(t, w); body["code"] != "VALIDATION_ERROR" {
		t.Errorf("code = %v, want VALIDATION_ERROR", body["code"])
	}
}

func TestScopeIsolationOverHTTP(t *testing.T) {
	router := testRouter(t)

	doRequest(t, router, http.MethodPost, "/api/v1/sequences", "tenant-a",
		`{"name":"invoice","pattern":"A-{COUNTER:3}"}`)

	// tenant-b never provisioned the sequence.
	w := doRequest(t, router, http.MethodPost, "/api/v1/sequences/invoice/generate", "tenant-b", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("cross-scope generate status = %d, want 404", w.Code)
	}
}

func TestUnknownVariableMapsTo422(t *testing.T) {
	router := testRouter(t)

	w := doRequest(t, router, http.MethodPost, "/api/v1/sequences", "tenant-1",
		`{"name":"bad","pattern":"{BOGUS}"}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422, body %s", w.Code, w.Body.String())
	}
}

func TestMalformedPatternMapsTo400(t *testing.T) {
	router := testRouter(t)

	w := doRequest(t, router, http.MethodPost, "/api/v1/sequences", "tenant-1",
		`{"name":"bad","pattern":"INV-{"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400, body %s", w.Code, w.Body.String())
	}
}

func TestPreviewDoesNotAdvance(t *testing.T) {
	router := testRouter(t)

	doRequest(t, router, http.MethodPost, "/api/v1/sequences", "tenant-1",
		`{"name":"invoice","pattern":"INV-{COUNTER:5}"}`)

	for i := 0; i < 3; i++ {
		w := doRequest(t, router, http.MethodPost, "/api/v1/sequences/invoice/preview", "tenant-1", "")
		if w.Code != http.StatusOK {
			t.Fatalf("preview status = %d", w.Code)
		}
		body := decodeBody(t, w)
		if body["value"] != "INV-00001" {
			t.Errorf("preview value = %v, want INV-00001", body["value"])
		}
		meta, _ := body["metadata"].(map[string]any)
		if meta["is_preview"] != "true" {
			t.Errorf("metadata = %v, want is_preview", body["metadata"])
		}
	}

	w := doRequest(t, router, http.MethodGet, "/api/v1/sequences/invoice/counter", "tenant-1", "")
	if body := decodeBody(t, w); body["value"] != float64(0) {
		t.Errorf("counter after previews = %v, want 0", body["value"])
	}
}

func TestSetCounterAndEnabled(t *testing.T) {
	router := testRouter(t)

	doRequest(t, router, http.MethodPost, "/api/v1/sequences", "tenant-1",
		`{"name":"invoice","pattern":"INV-{COUNTER:5}"}`)

	w := doRequest(t, router, http.MethodPut, "/api/v1/sequences/invoice/counter", "tenant-1",
		`{"value":10500}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("set counter status = %d, body %s", w.Code, w.Body.String())
	}

	w = doRequest(t, router, http.MethodPost, "/api/v1/sequences/invoice/generate", "tenant-1", "")
	if body := decodeBody(t, w); body["counter"] != float64(10501) {
		t.Errorf("counter = %v, want 10501", body["counter"])
	}

	// Soft-disable blocks generation with a dedicated code.
	w = doRequest(t, router, http.MethodPut, "/api/v1/sequences/invoice/enabled", "tenant-1",
		`{"enabled":false}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("set enabled status = %d", w.Code)
	}

	w = doRequest(t, router, http.MethodPost, "/api/v1/sequences/invoice/generate", "tenant-1", "")
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("disabled generate status = %d, want 422", w.Code)
	}
	if body := decodeBody(t, w); body["code"] != "SEQUENCE_DISABLED" {
		t.Errorf("code = %v, want SEQUENCE_DISABLED", body["code"])
	}
}

func TestDuplicateProvision(t *testing.T) {
	router := testRouter(t)

	payload := `{"name":"invoice","pattern":"INV-{COUNTER:5}"}`
	doRequest(t, router, http.MethodPost, "/api/v1/sequences", "tenant-1", payload)

	w := doRequest(t, router, http.MethodPost, "/api/v1/sequences", "tenant-1", payload)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate provision status = %d, want 409", w.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	router := testRouter(t)

	for _, path := range []string{"/health/live", "/health/ready"} {
		w := doRequest(t, router, http.MethodGet, path, "", "")
		if w.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, w.Code)
		}
	}
}
