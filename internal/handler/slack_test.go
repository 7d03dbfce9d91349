package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/incident-comms/bot/internal/model"
	"github.com/incident-comms/bot/internal/service"
)

const testSigningSecret = "8f742231b10e8888abcd99yyyzzz85a5"

type fakeProcessor struct {
	mu       sync.Mutex
	requests []model.IncidentRequest
	err      error
	panicMsg string
}

func (f *fakeProcessor) Process(_ context.Context, req model.IncidentRequest, replier service.Replier) (model.IncidentOutcome, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.err != nil {
		return model.IncidentOutcome{State: model.StateFailed}, f.err
	}
	return model.IncidentOutcome{State: model.StateDelivered}, nil
}

func (f *fakeProcessor) Requests() []model.IncidentRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.IncidentRequest(nil), f.requests...)
}

type recordingReplier struct {
	mu    sync.Mutex
	kind  string
	where string
	sent  []string
}

func (r *recordingReplier) Send(_ context.Context, text string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, text)
	return "", nil
}

func (r *recordingReplier) Sent() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent...)
}

type fakeRepliers struct {
	mu      sync.Mutex
	created []*recordingReplier
}

func (f *fakeRepliers) add(kind, where string) *recordingReplier {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := &recordingReplier{kind: kind, where: where}
	f.created = append(f.created, r)
	return r
}

func (f *fakeRepliers) MentionReplier(channelID, threadTS string) service.Replier {
	return f.add("mention", channelID+"/"+threadTS)
}

func (f *fakeRepliers) CommandReplier(channelID, responseURL string) service.Replier {
	return f.add("command", channelID+"/"+responseURL)
}

func (f *fakeRepliers) Created() []*recordingReplier {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*recordingReplier(nil), f.created...)
}

type testEnv struct {
	router    *gin.Engine
	handler   *SlackHandler
	processor *fakeProcessor
	repliers  *fakeRepliers
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	processor := &fakeProcessor{}
	repliers := &fakeRepliers{}
	h := NewSlackHandler(processor, repliers, "/incident-message", time.Minute, zap.NewNop())
	router := NewRouter(RouterConfig{
		Slack:         h,
		SigningSecret: testSigningSecret,
		Logger:        zap.NewNop(),
	})
	return &testEnv{router: router, handler: h, processor: processor, repliers: repliers}
}

func (e *testEnv) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.handler.Wait(ctx))
}

func signedRequest(t *testing.T, path, contentType, body string) *http.Request {
	t.Helper()
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	mac := hmac.New(sha256.New, []byte(testSigningSecret))
	mac.Write([]byte("v0:" + ts + ":" + body))

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Slack-Request-Timestamp", ts)
	req.Header.Set("X-Slack-Signature", "v0="+hex.EncodeToString(mac.Sum(nil)))
	return req
}

func mentionPayload(text, ts, threadTS string) string {
	event := map[string]any{
		"type":     "app_mention",
		"user":     "U1",
		"text":     text,
		"ts":       ts,
		"channel":  "C1",
		"event_ts": ts,
	}
	if threadTS != "" {
		event["thread_ts"] = threadTS
	}
	b, _ := json.Marshal(map[string]any{
		"token":      "legacy",
		"team_id":    "T1",
		"api_app_id": "A1",
		"type":       "event_callback",
		"event_id":   "Ev1",
		"event_time": 1700000000,
		"event":      event,
	})
	return string(b)
}

func commandPayload(command, text string) string {
	return url.Values{
		"command":      {command},
		"text":         {text},
		"user_id":      {"U2"},
		"channel_id":   {"C2"},
		"response_url": {"https://hooks.slack.test/commands/1"},
		"team_id":      {"T1"},
	}.Encode()
}

func TestEventsURLVerification(t *testing.T) {
	env := newTestEnv(t)
	body := `{"token":"legacy","challenge":"3eZbrw1aBm2rZgRNFdxV2595E9CY3gmdALWMmHkvFXO7tYXAYM8P","type":"url_verification"}`

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, signedRequest(t, "/slack/events", "application/json", body))

	require.Equal(t, http.StatusOK, w.Code)
	var resp model.ChallengeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "3eZbrw1aBm2rZgRNFdxV2595E9CY3gmdALWMmHkvFXO7tYXAYM8P", resp.Challenge)
}

func TestEventsRejectInvalidSignature(t *testing.T) {
	env := newTestEnv(t)
	req := signedRequest(t, "/slack/events", "application/json", mentionPayload("<@UBOT> db down", "1.1", ""))
	req.Header.Set("X-Slack-Signature", "v0=deadbeef")

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	env.wait(t)
	assert.Empty(t, env.processor.Requests())
}

func TestEventsRejectMissingSignature(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/slack/events", strings.NewReader(`{}`))

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestEventsAppMentionDispatches(t *testing.T) {
	env := newTestEnv(t)

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, signedRequest(t, "/slack/events", "application/json",
		mentionPayload("<@UBOT> Database is down", "1700000000.000100", "")))
	require.Equal(t, http.StatusOK, w.Code)
	env.wait(t)

	reqs := env.processor.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, model.IncidentRequest{
		RawText:           "<@UBOT> Database is down",
		RequesterID:       "U1",
		ChannelID:         "C1",
		StripLeadingToken: true,
	}, reqs[0])

	created := env.repliers.Created()
	require.Len(t, created, 1)
	assert.Equal(t, "mention", created[0].kind)
	assert.Equal(t, "C1/1700000000.000100", created[0].where)
}

func TestEventsAppMentionInThreadRepliesToThread(t *testing.T) {
	env := newTestEnv(t)

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, signedRequest(t, "/slack/events", "application/json",
		mentionPayload("<@UBOT> still down", "1700000050.000200", "1700000000.000100")))
	require.Equal(t, http.StatusOK, w.Code)
	env.wait(t)

	created := env.repliers.Created()
	require.Len(t, created, 1)
	assert.Equal(t, "C1/1700000000.000100", created[0].where)
}

func TestEventsRedeliveryOfDispatchedEventIsSkipped(t *testing.T) {
	env := newTestEnv(t)
	payload := mentionPayload("<@UBOT> db down", "1.1", "")

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, signedRequest(t, "/slack/events", "application/json", payload))
	require.Equal(t, http.StatusOK, w.Code)

	retry := signedRequest(t, "/slack/events", "application/json", payload)
	retry.Header.Set("X-Slack-Retry-Num", "1")
	retry.Header.Set("X-Slack-Retry-Reason", "http_timeout")

	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, retry)
	assert.Equal(t, http.StatusOK, w.Code)
	env.wait(t)

	assert.Len(t, env.processor.Requests(), 1)
	assert.Len(t, env.repliers.Created(), 1)
}

func TestEventsRedeliveryOfUnseenEventIsProcessed(t *testing.T) {
	env := newTestEnv(t)
	req := signedRequest(t, "/slack/events", "application/json", mentionPayload("<@UBOT> db down", "1.1", ""))
	req.Header.Set("X-Slack-Retry-Num", "1")
	req.Header.Set("X-Slack-Retry-Reason", "http_error")

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	env.wait(t)

	reqs := env.processor.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "<@UBOT> db down", reqs[0].RawText)
	assert.Len(t, env.repliers.Created(), 1)
}

func TestCommandsDispatches(t *testing.T) {
	env := newTestEnv(t)

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, signedRequest(t, "/slack/commands", "application/x-www-form-urlencoded",
		commandPayload("/incident-message", "API latency high")))
	require.Equal(t, http.StatusOK, w.Code)
	env.wait(t)

	reqs := env.processor.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, model.IncidentRequest{
		RawText:     "API latency high",
		RequesterID: "U2",
		ChannelID:   "C2",
	}, reqs[0])

	created := env.repliers.Created()
	require.Len(t, created, 1)
	assert.Equal(t, "command", created[0].kind)
	assert.Equal(t, "C2/https://hooks.slack.test/commands/1", created[0].where)
}

func TestCommandsUnknownCommand(t *testing.T) {
	env := newTestEnv(t)

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, signedRequest(t, "/slack/commands", "application/x-www-form-urlencoded",
		commandPayload("/other", "x")))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/incident-message")
	env.wait(t)
	assert.Empty(t, env.processor.Requests())
}

func TestBoundaryFailureSendsGenericError(t *testing.T) {
	tests := []struct {
		name      string
		processor *fakeProcessor
	}{
		{"process error", &fakeProcessor{err: errors.New("chat.update failed")}},
		{"process panic", &fakeProcessor{panicMsg: "boom"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.handler.incidents = tt.processor

			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, signedRequest(t, "/slack/commands", "application/x-www-form-urlencoded",
				commandPayload("/incident-message", "db down")))
			require.Equal(t, http.StatusOK, w.Code)
			env.wait(t)

			created := env.repliers.Created()
			require.Len(t, created, 1)
			assert.Equal(t, []string{service.MsgGenericError}, created[0].Sent())
		})
	}
}
