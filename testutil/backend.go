package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// StatusReply is one scripted answer of the status endpoint.
type StatusReply struct {
	Code    int // defaults to 200
	Status  string
	Summary string
}

// QueryReply is one scripted answer of the query endpoint.
type QueryReply struct {
	Code     int // defaults to 200
	Response string
	Detail   string
	ErrCode  string
}

// FakeBackend is an httptest server speaking the analysis service's wire
// format. Status and query replies are consumed in order; the last one
// repeats once the script runs out.
type FakeBackend struct {
	*httptest.Server

	mu        sync.Mutex
	SessionID string
	StartCode int
	StartErr  string
	statuses  []StatusReply
	queries   []QueryReply

	Starts      []map[string]string
	StatusCalls int
	QueryBodies []map[string]string
}

// NewFakeBackend starts a backend that hands out session id "s1".
func NewFakeBackend(t *testing.T) *FakeBackend {
	t.Helper()
	fb := &FakeBackend{SessionID: "s1"}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "welcome"})
	})
	mux.HandleFunc("/session/start-from-text", fb.handleStart)
	mux.HandleFunc("/session/status/", fb.handleStatus)
	mux.HandleFunc("/session/query", fb.handleQuery)

	fb.Server = httptest.NewServer(mux)
	t.Cleanup(fb.Close)
	return fb
}

// ScriptStatus appends status replies.
func (fb *FakeBackend) ScriptStatus(replies ...StatusReply) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.statuses = append(fb.statuses, replies...)
}

// ScriptQuery appends query replies.
func (fb *FakeBackend) ScriptQuery(replies ...QueryReply) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.queries = append(fb.queries, replies...)
}

// Counts returns the number of start, status and query calls seen so far.
func (fb *FakeBackend) Counts() (starts, statuses, queries int) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return len(fb.Starts), fb.StatusCalls, len(fb.QueryBodies)
}

// StartBodies returns a copy of the start request bodies received.
func (fb *FakeBackend) StartBodies() []map[string]string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]map[string]string(nil), fb.Starts...)
}

// Queries returns a copy of the query request bodies received.
func (fb *FakeBackend) Queries() []map[string]string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]map[string]string(nil), fb.QueryBodies...)
}

// SetStartFailure makes the start endpoint answer with code and detail.
func (fb *FakeBackend) SetStartFailure(code int, detail string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.StartCode, fb.StartErr = code, detail
}

func (fb *FakeBackend) handleStart(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	_ = json.NewDecoder(r.Body).Decode(&body)

	fb.mu.Lock()
	fb.Starts = append(fb.Starts, body)
	code, detail, id := fb.StartCode, fb.StartErr, fb.SessionID
	fb.mu.Unlock()

	if code != 0 && code != http.StatusOK {
		writeJSON(w, code, map[string]string{"detail": detail})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": id, "filename": body["filename"]})
}

func (fb *FakeBackend) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/session/status/")

	fb.mu.Lock()
	fb.StatusCalls++
	reply := StatusReply{Status: "PROCESSING"}
	if len(fb.statuses) > 0 {
		reply = fb.statuses[0]
		if len(fb.statuses) > 1 {
			fb.statuses = fb.statuses[1:]
		}
	}
	known := id == fb.SessionID
	fb.mu.Unlock()

	if !known {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Session not found"})
		return
	}
	if reply.Code != 0 && reply.Code != http.StatusOK {
		writeJSON(w, reply.Code, map[string]string{"detail": "status failure"})
		return
	}
	body := map[string]string{"status": reply.Status}
	if reply.Summary != "" {
		body["summary"] = reply.Summary
	}
	writeJSON(w, http.StatusOK, body)
}

func (fb *FakeBackend) handleQuery(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	_ = json.NewDecoder(r.Body).Decode(&body)

	fb.mu.Lock()
	fb.QueryBodies = append(fb.QueryBodies, body)
	reply := QueryReply{Response: "answer to " + body["query"]}
	if len(fb.queries) > 0 {
		reply = fb.queries[0]
		if len(fb.queries) > 1 {
			fb.queries = fb.queries[1:]
		}
	}
	fb.mu.Unlock()

	if reply.Code != 0 && reply.Code != http.StatusOK {
		payload := map[string]string{"detail": reply.Detail}
		if reply.ErrCode != "" {
			payload["code"] = reply.ErrCode
		}
		writeJSON(w, reply.Code, payload)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": reply.Response})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
