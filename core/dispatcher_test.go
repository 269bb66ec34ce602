package core

import (
	"context"
	"errors"
	"insights-gateway/core/adapter"
	"insights-gateway/models"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackendDispatcher_Success(t *testing.T) {
	up := newFakeUpstream(t, geminiKey)
	up.on("k1", respond(200, geminiText("a whiteboard sketch")))

	rec := &memoryRecorder{}
	rotator := newCountingRotator(t, "k1", "k2")
	d := newTestDispatcher(t, adapter.NewGeminiAdapter(), rotator, up.server.URL, rec)

	req := models.NewDescribeRequest([]byte("png"), "image/png")
	result, err := d.Dispatch(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "a whiteboard sketch", result.Text)
	assert.Equal(t, models.KindDescribe, result.Kind)
	assert.Equal(t, "gemini", result.Backend)
	assert.Equal(t, []string{"k1"}, up.keys())
	assert.Equal(t, int32(0), rotator.advanceCalls.Load())
	assert.Equal(t, []string{models.OutcomeSuccess}, rec.outcomes())
}

func TestBackendDispatcher_AllKeysRateLimited(t *testing.T) {
	up := newFakeUpstream(t, geminiKey)
	for _, k := range []string{"k1", "k2", "k3"} {
		up.on(k, respond(http.StatusTooManyRequests, `{"error":"quota"}`))
	}

	rec := &memoryRecorder{}
	rotator := newCountingRotator(t, "k1", "k2", "k3")
	d := newTestDispatcher(t, adapter.NewGeminiAdapter(), rotator, up.server.URL, rec)

	_, err := d.Dispatch(context.Background(), models.NewSummarizeRequest("chat"))
	require.ErrorIs(t, err, ErrBackendExhausted)

	// N 次尝试，每个 key 一次；游标前进 N-1 次
	assert.Equal(t, []string{"k1", "k2", "k3"}, up.keys())
	assert.Equal(t, uint64(2), rotator.Cursor())
	assert.Equal(t, int32(2), rotator.advanceCalls.Load())
	assert.Len(t, rec.outcomes(), 3)
	for _, o := range rec.outcomes() {
		assert.Equal(t, models.OutcomeRateLimited, o)
	}
}

func TestBackendDispatcher_RotatesUntilSuccess(t *testing.T) {
	up := newFakeUpstream(t, geminiKey)
	up.on("k1", respond(http.StatusTooManyRequests, `{}`))
	up.on("k2", respond(200, geminiText("ok")))

	rotator := newCountingRotator(t, "k1", "k2", "k3")
	d := newTestDispatcher(t, adapter.NewGeminiAdapter(), rotator, up.server.URL, nil)

	result, err := d.Dispatch(context.Background(), models.NewSummarizeRequest("chat"))
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Text)
	assert.Equal(t, []string{"k1", "k2"}, up.keys())

	// 下一次请求直接从 k2 开始
	_, err = d.Dispatch(context.Background(), models.NewSummarizeRequest("chat"))
	require.NoError(t, err)
	assert.Equal(t, []string{"k1", "k2", "k2"}, up.keys())
}

func TestBackendDispatcher_ServerErrorDoesNotRotate(t *testing.T) {
	up := newFakeUpstream(t, geminiKey)
	up.on("k1", respond(http.StatusInternalServerError, `{"error":"boom"}`))

	rec := &memoryRecorder{}
	rotator := newCountingRotator(t, "k1", "k2")
	d := newTestDispatcher(t, adapter.NewGeminiAdapter(), rotator, up.server.URL, rec)

	_, err := d.Dispatch(context.Background(), models.NewSummarizeRequest("chat"))

	var backendErr *BackendError
	require.True(t, errors.As(err, &backendErr))
	assert.Equal(t, 500, backendErr.StatusCode)
	assert.Equal(t, "gemini", backendErr.Backend)
	assert.Contains(t, backendErr.Body, "boom")
	assert.NotErrorIs(t, err, ErrBackendExhausted)

	assert.Equal(t, 1, up.calls())
	assert.Equal(t, int32(0), rotator.advanceCalls.Load())
	assert.Equal(t, uint64(0), rotator.Cursor())
	assert.Equal(t, []string{models.OutcomeError}, rec.outcomes())
}

func TestBackendDispatcher_ForbiddenIsNotRateLimit(t *testing.T) {
	up := newFakeUpstream(t, geminiKey)
	up.on("k1", respond(http.StatusForbidden, `{"error":"denied"}`))

	rotator := newCountingRotator(t, "k1", "k2")
	d := newTestDispatcher(t, adapter.NewGeminiAdapter(), rotator, up.server.URL, nil)

	_, err := d.Dispatch(context.Background(), models.NewSummarizeRequest("chat"))
	var backendErr *BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, http.StatusForbidden, backendErr.StatusCode)
	assert.Equal(t, int32(0), rotator.advanceCalls.Load())
}

func TestBackendDispatcher_MalformedResponse(t *testing.T) {
	up := newFakeUpstream(t, geminiKey)
	up.on("k1", respond(200, `{"candidates":[]}`))

	rotator := newCountingRotator(t, "k1", "k2")
	d := newTestDispatcher(t, adapter.NewGeminiAdapter(), rotator, up.server.URL, nil)

	_, err := d.Dispatch(context.Background(), models.NewSummarizeRequest("chat"))
	assert.ErrorIs(t, err, adapter.ErrMalformedResponse)
	assert.Equal(t, 1, up.calls())
	assert.Equal(t, int32(0), rotator.advanceCalls.Load())
}

func TestBackendDispatcher_SerializationErrorMakesNoCalls(t *testing.T) {
	up := newFakeUpstream(t, geminiKey)
	rotator := newCountingRotator(t, "k1")
	d := newTestDispatcher(t, adapter.NewGeminiAdapter(), rotator, up.server.URL, nil)

	_, err := d.Dispatch(context.Background(), &models.DispatchRequest{ID: "empty"})
	assert.ErrorIs(t, err, adapter.ErrSerialization)
	assert.Equal(t, 0, up.calls())
}

func TestBackendDispatcher_TransportErrorReturnsImmediately(t *testing.T) {
	up := newFakeUpstream(t, geminiKey)
	url := up.server.URL
	up.server.Close()

	rec := &memoryRecorder{}
	rotator := newCountingRotator(t, "k1", "k2")
	d := newTestDispatcher(t, adapter.NewGeminiAdapter(), rotator, url, rec)

	_, err := d.Dispatch(context.Background(), models.NewSummarizeRequest("chat"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamUnreachable)
	assert.NotErrorIs(t, err, ErrBackendExhausted)
	assert.Equal(t, int32(0), rotator.advanceCalls.Load())
	assert.Equal(t, []string{models.OutcomeTransportError}, rec.outcomes())
}

func TestBackendDispatcher_PerAttemptTimeout(t *testing.T) {
	up := newFakeUpstream(t, geminiKey)
	up.on("k1", func(w http.ResponseWriter) {
		time.Sleep(200 * time.Millisecond)
		respond(200, geminiText("late"))(w)
	})

	rotator := newCountingRotator(t, "k1")
	d, err := NewBackendDispatcher(adapter.NewGeminiAdapter(), rotator, DispatcherConfig{
		BaseURL: up.server.URL,
		Timeout: 20 * time.Millisecond,
	}, quietLogger())
	require.NoError(t, err)

	_, err = d.Dispatch(context.Background(), models.NewSummarizeRequest("chat"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, ErrUpstreamUnreachable)
	assert.Equal(t, int32(0), rotator.advanceCalls.Load())
}

func TestBackendDispatcher_CancelledContextStopsRetryLoop(t *testing.T) {
	up := newFakeUpstream(t, geminiKey)
	ctx, cancel := context.WithCancel(context.Background())

	// 第一次 429 后取消，循环不再发起第二次尝试
	up.on("k1", func(w http.ResponseWriter) {
		cancel()
		respond(http.StatusTooManyRequests, `{}`)(w)
	})
	up.on("k2", respond(200, geminiText("unreachable")))

	rotator := newCountingRotator(t, "k1", "k2")
	d := newTestDispatcher(t, adapter.NewGeminiAdapter(), rotator, up.server.URL, nil)

	_, err := d.Dispatch(ctx, models.NewSummarizeRequest("chat"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"k1"}, up.keys())
}

func TestNewBackendDispatcher_Validation(t *testing.T) {
	rotator := newCountingRotator(t, "k1")

	_, err := NewBackendDispatcher(nil, rotator, DispatcherConfig{BaseURL: "http://x"}, nil)
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewBackendDispatcher(adapter.NewGeminiAdapter(), nil, DispatcherConfig{BaseURL: "http://x"}, nil)
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewBackendDispatcher(adapter.NewGeminiAdapter(), rotator, DispatcherConfig{}, nil)
	assert.ErrorIs(t, err, ErrConfiguration)
}
