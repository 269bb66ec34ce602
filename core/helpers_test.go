package core

import (
	"context"
	"insights-gateway/core/adapter"
	"insights-gateway/models"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// countingRotator 记录 AdvancePast 调用次数
type countingRotator struct {
	*KeyRotationManager
	advanceCalls atomic.Int32
}

func newCountingRotator(t *testing.T, keys ...string) *countingRotator {
	t.Helper()
	m, err := NewKeyRotationManager("test", keys)
	require.NoError(t, err)
	return &countingRotator{KeyRotationManager: m}
}

func (r *countingRotator) AdvancePast(failedKey string) bool {
	r.advanceCalls.Add(1)
	return r.KeyRotationManager.AdvancePast(failedKey)
}

// fakeUpstream 按 key 返回预设响应，并记录每次请求使用的 key
type fakeUpstream struct {
	mu        sync.Mutex
	responses map[string]func(w http.ResponseWriter)
	fallback  func(w http.ResponseWriter)
	seenKeys  []string
	server    *httptest.Server
}

func newFakeUpstream(t *testing.T, keyParam func(r *http.Request) string) *fakeUpstream {
	t.Helper()
	f := &fakeUpstream{
		responses: map[string]func(w http.ResponseWriter){},
		fallback:  respond(http.StatusInternalServerError, `{"error":"unexpected key"}`),
	}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := keyParam(r)
		f.mu.Lock()
		f.seenKeys = append(f.seenKeys, key)
		handler, ok := f.responses[key]
		if !ok {
			handler = f.fallback
		}
		f.mu.Unlock()
		handler(w)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeUpstream) on(key string, handler func(w http.ResponseWriter)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[key] = handler
}

func (f *fakeUpstream) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.seenKeys))
	copy(out, f.seenKeys)
	return out
}

func (f *fakeUpstream) calls() int {
	return len(f.keys())
}

func geminiKey(r *http.Request) string { return r.URL.Query().Get("key") }

func noKey(*http.Request) string { return "" }

func respond(status int, body string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}
}

func geminiText(text string) string {
	return `{"candidates":[{"content":{"parts":[{"text":"` + text + `"}]}}]}`
}

func newTestDispatcher(t *testing.T, a adapter.ModelAdapter, keys KeyRotator, url string, recorder DispatchRecorder) *BackendDispatcher {
	t.Helper()
	d, err := NewBackendDispatcher(a, keys, DispatcherConfig{BaseURL: url, Recorder: recorder}, quietLogger())
	require.NoError(t, err)
	return d
}

// memoryRecorder 内存中的 DispatchRecorder
type memoryRecorder struct {
	mu      sync.Mutex
	entries []*models.DispatchLog
}

func (r *memoryRecorder) Record(entry *models.DispatchLog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *memoryRecorder) outcomes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Outcome
	}
	return out
}

// stubBackend 按脚本返回结果的 Backend
type stubBackend struct {
	name  string
	calls atomic.Int32
	fn    func(call int) (*models.DispatchResult, error)
}

func (b *stubBackend) Name() string { return b.name }

func (b *stubBackend) Dispatch(_ context.Context, req *models.DispatchRequest) (*models.DispatchResult, error) {
	n := int(b.calls.Add(1))
	return b.fn(n)
}

func exhausted(name string) *stubBackend {
	return &stubBackend{name: name, fn: func(int) (*models.DispatchResult, error) {
		return nil, ErrBackendExhausted
	}}
}

func succeeding(name, text string) *stubBackend {
	return &stubBackend{name: name, fn: func(int) (*models.DispatchResult, error) {
		return &models.DispatchResult{Text: text, Backend: name}, nil
	}}
}
