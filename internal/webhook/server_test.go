package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Enriquefft/whatsapp-bot-bridge/internal/config"
	"github.com/Enriquefft/whatsapp-bot-bridge/internal/inbound"
	"github.com/Enriquefft/whatsapp-bot-bridge/internal/infobip"
	"github.com/Enriquefft/whatsapp-bot-bridge/internal/outbound"
	"github.com/Enriquefft/whatsapp-bot-bridge/internal/security"
	"github.com/Enriquefft/whatsapp-bot-bridge/internal/session"
)

type fakeForwarder struct {
	mu   sync.Mutex
	msgs []inbound.Message
	err  error
}

func (f *fakeForwarder) Forward(_ context.Context, msg inbound.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeForwarder) Close() error { return nil }

func (f *fakeForwarder) forwarded() []inbound.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]inbound.Message(nil), f.msgs...)
}

type sent struct {
	path    string
	payload any
}

type fakeSender struct {
	mu    sync.Mutex
	sends []sent
	fail  map[string]bool // by recipient
}

func (f *fakeSender) Send(_ context.Context, path string, payload any) (*infobip.SendResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, sent{path: path, payload: payload})
	data, _ := json.Marshal(payload)
	var probe struct {
		To string `json:"to"`
	}
	json.Unmarshal(data, &probe)
	if f.fail[probe.To] {
		return nil, errors.New("provider down")
	}
	return &infobip.SendResponse{Status: infobip.SendStatus{Name: "PENDING_ENROUTE"}}, nil
}

func (f *fakeSender) all() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.sends...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	server    *Server
	forwarder *fakeForwarder
	sender    *fakeSender
	handler   http.Handler
}

func newFixture(t *testing.T, guard Guard) *fixture {
	t.Helper()
	fwd := &fakeForwarder{}
	snd := &fakeSender{fail: map[string]bool{}}
	log := quietLogger()
	s := &Server{
		Composer:       outbound.NewComposer("447860099299", "Choose an option"),
		Forwarder:      fwd,
		Dispatcher:     NewDispatcher(snd, time.Second, log),
		Sessions:       session.New(time.Minute, time.Minute),
		Guard:          guard,
		ForwardTimeout: time.Second,
		Log:            log,
	}
	return &fixture{server: s, forwarder: fwd, sender: snd, handler: s.Handler()}
}

func (f *fixture) post(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestInbound_ForwardsCanonicalMessage(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.post("/inbound", `{"results":[{"from":"27820000000","messageId":"m1","message":{"type":"INTERACTIVE_LIST_REPLY","id":"power_outage","title":"Power outage"}}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	msgs := f.forwarder.forwarded()
	require.Len(t, msgs, 1)
	assert.Equal(t, "27820000000", msgs[0].Sender)
	assert.Equal(t, "power_outage", msgs[0].Text)

	sess, ok := f.server.Sessions.Get("27820000000")
	require.True(t, ok)
	assert.Equal(t, "m1", sess.LastMessageID)
}

func TestInbound_RejectionsAreClientErrors(t *testing.T) {
	bodies := map[string]string{
		"unsupported": `{"results":[{"from":"1","message":{"type":"AUDIO"}}]}`,
		"location":    `{"results":[{"from":"1","message":{"type":"LOCATION","latitude":-26.1}}]}`,
		"malformed":   `{"results":[]}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, nil)
			rec := f.post("/inbound", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, f.forwarder.forwarded())
		})
	}
}

func TestInbound_DuplicateForwardedOnce(t *testing.T) {
	f := newFixture(t, nil)
	body := `{"results":[{"from":"1","messageId":"dup","message":{"type":"TEXT","text":"hi"}}]}`

	assert.Equal(t, http.StatusOK, f.post("/inbound", body).Code)
	assert.Equal(t, http.StatusOK, f.post("/inbound", body).Code)
	assert.Len(t, f.forwarder.forwarded(), 1)
}

func TestInbound_BackendFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.forwarder.err = errors.New("connection refused")
	body := `{"results":[{"from":"1","messageId":"m1","message":{"type":"TEXT","text":"hi"}}]}`

	assert.Equal(t, http.StatusBadGateway, f.post("/inbound", body).Code)

	// The redelivery is not treated as a duplicate.
	f.forwarder.err = nil
	assert.Equal(t, http.StatusOK, f.post("/inbound", body).Code)
	assert.Len(t, f.forwarder.forwarded(), 1)
}

func TestInbound_GuardDenySendsNotice(t *testing.T) {
	guard := security.New(config.SecurityConfig{
		Mode:        "allowlist",
		Allowlist:   []string{"+27820000000"},
		DenyMessage: "This service is not available for your number.",
		RateLimit:   10,
		RateWindow:  60,
	})
	f := newFixture(t, guard)

	rec := f.post("/inbound", `{"results":[{"from":"999","message":{"type":"TEXT","text":"hi"}}]}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, f.forwarder.forwarded())

	f.server.Dispatcher.Wait()
	sends := f.sender.all()
	require.Len(t, sends, 1)
	assert.Equal(t, outbound.PathText, sends[0].path)
	msg := sends[0].payload.(infobip.TextMessage)
	assert.Equal(t, "999", msg.To)
	assert.Equal(t, "This service is not available for your number.", msg.Content.Text)
}

func TestInbound_GuardRateLimit(t *testing.T) {
	guard := security.New(config.SecurityConfig{Mode: "open", RateLimit: 1, RateWindow: 60})
	f := newFixture(t, guard)

	f.post("/inbound", `{"results":[{"from":"1","messageId":"a","message":{"type":"TEXT","text":"one"}}]}`)
	rec := f.post("/inbound", `{"results":[{"from":"1","messageId":"b","message":{"type":"TEXT","text":"two"}}]}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, f.forwarder.forwarded(), 1)
}

func TestOutbound_SkipsMalformedAndSendsRest(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.post("/outbound", `[
		{"recipient_id":"27820000000","custom":{"type":"CAROUSEL"}},
		{"recipient_id":"27820000000","text":"Your outage has been logged."}
	]`)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary outboundSummary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&summary))
	assert.Equal(t, outboundSummary{Accepted: 1, Rejected: 1}, summary)

	f.server.Dispatcher.Wait()
	sends := f.sender.all()
	require.Len(t, sends, 1)
	assert.Equal(t, "Your outage has been logged.", sends[0].payload.(infobip.TextMessage).Content.Text)
}

func TestOutbound_SendsInOrder(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.post("/outbound", `[
		{"recipient_id":"X","text":"first"},
		{"recipient_id":"X","text":"Pick one","buttons":[{"title":"Yes","payload":"/affirm"}]},
		{"recipient_id":"X","custom":{"type":"INTERACTIVE_LIST","text":"Area","buttons":[{"title":"Soweto","payload":"soweto","desc":"Gauteng"}]}}
	]`)
	require.Equal(t, http.StatusOK, rec.Code)

	f.server.Dispatcher.Wait()
	sends := f.sender.all()
	require.Len(t, sends, 3)
	assert.Equal(t, []string{outbound.PathText, outbound.PathButtons, outbound.PathList},
		[]string{sends[0].path, sends[1].path, sends[2].path})
}

func TestOutbound_FailedSendDoesNotStopBatch(t *testing.T) {
	f := newFixture(t, nil)
	f.sender.fail["A"] = true

	f.post("/outbound", `[{"recipient_id":"A","text":"lost"},{"recipient_id":"B","text":"kept"}]`)

	f.server.Dispatcher.Wait()
	assert.Len(t, f.sender.all(), 2)
}

func TestOutbound_InvalidBatch(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.post("/outbound", `"just a string"`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.server.Dispatcher.Wait()
	assert.Empty(t, f.sender.all())
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestOutbound_LogsSessionAge(t *testing.T) {
	f := newFixture(t, nil)
	var buf bytes.Buffer
	f.server.Log = slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	f.post("/inbound", `{"results":[{"from":"27820000000","messageId":"m1","message":{"type":"TEXT","text":"hi"}}]}`)
	f.post("/outbound", `[{"recipient_id":"27820000000","text":"hello"},{"recipient_id":"555","text":"cold"}]`)
	f.server.Dispatcher.Wait()

	out := buf.String()
	assert.Contains(t, out, `"msg":"replying to active session"`)
	assert.Contains(t, out, `"session_age"`)
	assert.Contains(t, out, `"msg":"no active session for recipient"`)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "déj...", truncate("déjà vu", 3))
	assert.Equal(t, "日本...", truncate("日本語のテキスト", 2))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(inbound.ErrMalformedEvent))
	assert.Equal(t, http.StatusBadRequest, statusFor(&inbound.UnsupportedTypeError{Type: "VIDEO"}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	f := newFixture(t, nil)
	f.server.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.server.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

// blockingSessions holds Get until released, keeping an /outbound handler in
// flight.
type blockingSessions struct {
	*session.Store
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingSessions) Get(sender string) (session.Session, bool) {
	b.once.Do(func() { close(b.entered) })
	<-b.release
	return b.Store.Get(sender)
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func TestRun_DrainsInFlightBatchOnShutdown(t *testing.T) {
	f := newFixture(t, nil)
	sessions := &blockingSessions{
		Store:   session.New(time.Minute, time.Minute),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	f.server.Sessions = sessions
	f.server.Addr = freeAddr(t)
	base := "http://" + f.server.Addr

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- f.server.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	posted := make(chan int, 1)
	go func() {
		resp, err := http.Post(base+"/outbound", "application/json",
			strings.NewReader(`[{"recipient_id":"X","text":"still delivered"}]`))
		if err != nil {
			posted <- 0
			return
		}
		resp.Body.Close()
		posted <- resp.StatusCode
	}()

	<-sessions.entered
	cancel()

	select {
	case <-done:
		t.Fatal("Run returned while an /outbound handler was still running")
	case <-time.After(100 * time.Millisecond):
	}

	close(sessions.release)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}

	sends := f.sender.all()
	require.Len(t, sends, 1)
	assert.Equal(t, "still delivered", sends[0].payload.(infobip.TextMessage).Content.Text)
	assert.Equal(t, http.StatusOK, <-posted)
}
