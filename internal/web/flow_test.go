package web

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

// flowClient drives the API the way a browser does: one cookie jar,
// sequential requests.
type flowClient struct {
	t      *testing.T
	srv    *Server
	cookie *http.Cookie
}

func (c *flowClient) do(req *http.Request) *httptest.ResponseRecorder {
	c.t.Helper()
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	w := c.srv.do(req)
	for _, ck := range w.Result().Cookies() {
		if ck.Name == SessionCookieName {
			c.cookie = ck
		}
	}
	return w
}

func (c *flowClient) process(form url.Values) processResponse {
	c.t.Helper()
	w := c.do(formRequest("/process", form))
	if w.Code != http.StatusOK {
		c.t.Fatalf("process status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp processResponse
	decodeJSON(c.t, w, &resp)
	if !resp.Success {
		c.t.Fatalf("process failed: %+v", resp)
	}
	return resp
}

func (c *flowClient) state() stateResponse {
	c.t.Helper()
	var resp stateResponse
	decodeJSON(c.t, c.do(httptest.NewRequest(http.MethodGet, "/state", nil)), &resp)
	return resp
}

// TestEditingFlow exercises a full editing session end to end: upload,
// a few operations, undo, reset, another operation, download, clear.
func TestEditingFlow(t *testing.T) {
	s, _ := newTestServer(t)
	c := &flowClient{t: t, srv: s}

	// Upload.
	w := c.do(uploadRequest(t, "cat.jpg", []byte("cat-pixels")))
	if w.Code != http.StatusOK {
		t.Fatalf("upload status = %d", w.Code)
	}
	var up uploadResponse
	decodeJSON(t, w, &up)
	if !up.Success {
		t.Fatalf("upload failed: %+v", up)
	}

	// Apply two operations.
	c.process(url.Values{"operation": {"brightness"}, "value": {"20"}})
	proc := c.process(url.Values{"operation": {"rotate"}, "angle": {"90"}})

	wantHistory := []string{"Brightness (+20)", "Rotate (90°)"}
	if len(proc.OperationsHistory) != 2 ||
		proc.OperationsHistory[0] != wantHistory[0] ||
		proc.OperationsHistory[1] != wantHistory[1] {
		t.Fatalf("operations_history = %v, want %v", proc.OperationsHistory, wantHistory)
	}

	// State survives a page reload.
	st := c.state()
	if !st.Active || len(st.OperationsHistory) != 2 {
		t.Fatalf("state = %+v, want active with 2 operations", st)
	}

	// Undo the rotation.
	w = c.do(formRequest("/undo", nil))
	var undo undoResponse
	decodeJSON(t, w, &undo)
	if undo.UndoneOperation != "Rotate (90°)" {
		t.Errorf("undone_operation = %q, want %q", undo.UndoneOperation, "Rotate (90°)")
	}
	if len(undo.OperationsHistory) != 1 {
		t.Errorf("operations_history after undo = %v, want 1 entry", undo.OperationsHistory)
	}

	// Reset back to the original.
	w = c.do(formRequest("/reset", nil))
	var reset resetResponse
	decodeJSON(t, w, &reset)
	if !reset.Success || len(reset.OperationsHistory) != 0 || reset.CanUndo {
		t.Fatalf("reset = %+v, want empty history", reset)
	}

	// Work continues after reset; download serves the processed copy.
	proc = c.process(url.Values{"operation": {"negative"}})
	if !strings.HasPrefix(proc.DownloadURL, "/download/") {
		t.Fatalf("download_url = %q", proc.DownloadURL)
	}
	w = c.do(httptest.NewRequest(http.MethodGet, proc.DownloadURL, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("download status = %d", w.Code)
	}
	if got := w.Body.String(); got != "cat-pixels" {
		t.Errorf("download body = %q, want %q", got, "cat-pixels")
	}

	// Clear ends the session.
	w = c.do(formRequest("/clear", nil))
	var clear clearResponse
	decodeJSON(t, w, &clear)
	if !clear.Success {
		t.Fatalf("clear failed: %+v", clear)
	}
	if st := c.state(); st.Active {
		t.Error("state active after clear, want inactive")
	}
	if s.sessions.Count() != 0 {
		t.Errorf("session count = %d, want 0", s.sessions.Count())
	}
}

// TestEditingFlow_ConvertChangesDownloadType verifies a format
// conversion is reflected in the download.
func TestEditingFlow_ConvertChangesDownloadType(t *testing.T) {
	s, _ := newTestServer(t)
	c := &flowClient{t: t, srv: s}

	w := c.do(uploadRequest(t, "photo.png", []byte("png-pixels")))
	if w.Code != http.StatusOK {
		t.Fatalf("upload status = %d", w.Code)
	}

	proc := c.process(url.Values{"operation": {"convert"}, "format": {"jpg"}})
	if proc.Operation != "Convert to JPG" {
		t.Errorf("operation = %q, want %q", proc.Operation, "Convert to JPG")
	}
	if !strings.HasSuffix(proc.DownloadURL, ".jpg") {
		t.Fatalf("download_url = %q, want .jpg suffix", proc.DownloadURL)
	}

	w = c.do(httptest.NewRequest(http.MethodGet, proc.DownloadURL, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("download status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q, want %q", ct, "image/jpeg")
	}
}

// TestEditingFlow_TwoSessionsAreIsolated verifies parallel cookies do
// not share editing state.
func TestEditingFlow_TwoSessionsAreIsolated(t *testing.T) {
	s, _ := newTestServer(t)
	alice := &flowClient{t: t, srv: s}
	bob := &flowClient{t: t, srv: s}

	alice.do(uploadRequest(t, "a.png", []byte("alice-image")))
	bob.do(uploadRequest(t, "b.png", []byte("bob-image")))

	alice.process(url.Values{"operation": {"negative"}})

	if st := bob.state(); len(st.OperationsHistory) != 0 {
		t.Errorf("bob's history = %v, want empty", st.OperationsHistory)
	}
	if st := alice.state(); len(st.OperationsHistory) != 1 {
		t.Errorf("alice's history = %v, want 1 entry", st.OperationsHistory)
	}
	if s.sessions.Count() != 2 {
		t.Errorf("session count = %d, want 2", s.sessions.Count())
	}
}
