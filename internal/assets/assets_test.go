package assets

import (
	"io/fs"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGetBridgeJS(t *testing.T) {
	data, err := GetBridgeJS()
	if err != nil {
		t.Fatalf("GetBridgeJS failed: %v", err)
	}
	if len(data) == 0 {
		t.Error("GetBridgeJS returned empty data")
	}
}

func TestBridgeSpeaksProtocol(t *testing.T) {
	data, err := GetBridgeJS()
	if err != nil {
		t.Fatalf("GetBridgeJS failed: %v", err)
	}
	js := string(data)

	// Message types and methods the server relies on.
	for _, want := range []string{
		`"runtime-ready"`, `"runtime-failed"`, `"result"`, `"event"`, `"bounds"`, `"action"`,
		"create(", "ready(", "serialize(", "load(", "reset(", "importFile(", "updateTheme(",
		`"subscribe"`, `"cancel"`, "file_version",
	} {
		if !strings.Contains(js, want) {
			t.Errorf("bridge script missing %s", want)
		}
	}
}

func TestClientFS(t *testing.T) {
	if _, err := fs.Stat(ClientFS(), BridgeScript); err != nil {
		t.Errorf("ClientFS missing %s: %v", BridgeScript, err)
	}
}

func TestHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/"+BridgeScript, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "javascript") {
		t.Errorf("Content-Type = %q, want javascript", ct)
	}
}
