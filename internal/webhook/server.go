package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Enriquefft/whatsapp-bot-bridge/internal/backend"
	"github.com/Enriquefft/whatsapp-bot-bridge/internal/inbound"
	"github.com/Enriquefft/whatsapp-bot-bridge/internal/outbound"
	"github.com/Enriquefft/whatsapp-bot-bridge/internal/security"
	"github.com/Enriquefft/whatsapp-bot-bridge/internal/session"
)

const (
	maxBodyBytes          = 1 << 20
	defaultForwardTimeout = 10 * time.Second
)

// Sessions is the sender-keyed state the server reads and writes.
type Sessions interface {
	Touch(sender, messageID string) session.Session
	Get(sender string) (session.Session, bool)
	MarkSeen(id string) bool
	Forget(id string)
}

// Guard decides whether a sender may reach the bot.
type Guard interface {
	Check(from string) security.Verdict
	DenyMessage() string
}

// Server is the HTTP gateway between the provider webhook, the bot backend
// and the provider send API.
//
//   - POST /inbound   provider webhook events → bot backend
//   - POST /outbound  bot responses → provider send API
//   - GET  /health    liveness
type Server struct {
	Addr           string
	Composer       *outbound.Composer
	Forwarder      backend.Forwarder
	Dispatcher     *Dispatcher
	Sessions       Sessions
	Guard          Guard // nil disables sender checks
	ForwardTimeout time.Duration
	Log            *slog.Logger
}

// Run starts the HTTP server. It blocks until ctx is cancelled, at which
// point the server is gracefully shut down and in-flight sends are drained.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("gateway listen: %w", err)
	}
	s.logger().Info("gateway listening", "addr", ln.Addr().String())

	// Closed once Shutdown returns, i.e. after active handlers finished and
	// no further Dispatch can happen.
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger().Warn("gateway shutdown", "error", err)
		}
	}()

	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("gateway serve: %w", err)
	}

	<-shutdownDone
	s.Dispatcher.Wait()
	return nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Post("/inbound", s.handleInbound)
	r.Post("/outbound", s.handleOutbound)
	r.Get("/health", handleHealth)
	return r
}

// handleInbound normalizes a provider event and forwards it to the backend.
// Rejected events get a client error and nothing is forwarded.
func (s *Server) handleInbound(w http.ResponseWriter, r *http.Request) {
	log := s.logger().With("request_id", middleware.GetReqID(r.Context()))

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}

	evt, err := inbound.Normalize(body)
	if err != nil {
		log.Warn("rejected inbound event", "error", err)
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	msg := evt.Message

	if s.Sessions.MarkSeen(evt.MessageID) {
		log.Info("skipping duplicate message", "message_id", evt.MessageID)
		w.WriteHeader(http.StatusOK)
		return
	}

	if s.Guard != nil {
		switch s.Guard.Check(msg.Sender) {
		case security.Deny:
			log.Warn("sender not allowed", "from", msg.Sender)
			s.notify(msg.Sender, s.Guard.DenyMessage())
			w.WriteHeader(http.StatusOK)
			return
		case security.RateLimited:
			log.Warn("sender rate limited", "from", msg.Sender)
			w.WriteHeader(http.StatusOK)
			return
		}
	}

	s.Sessions.Touch(msg.Sender, evt.MessageID)

	timeout := s.ForwardTimeout
	if timeout <= 0 {
		timeout = defaultForwardTimeout
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	if err := s.Forwarder.Forward(ctx, msg); err != nil {
		// Let a provider retry through.
		s.Sessions.Forget(evt.MessageID)
		log.Error("error forwarding to backend", "from", msg.Sender, "error", err)
		http.Error(w, "backend unavailable", http.StatusBadGateway)
		return
	}

	log.Info("forwarded message", "from", msg.Sender, "type", evt.Type, "text", truncate(msg.Text, 50))
	w.WriteHeader(http.StatusOK)
}

type outboundSummary struct {
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
}

// handleOutbound composes every bot response in the batch and dispatches the
// successful ones without waiting for delivery.
func (s *Server) handleOutbound(w http.ResponseWriter, r *http.Request) {
	log := s.logger().With("request_id", middleware.GetReqID(r.Context()))

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}

	results, err := s.Composer.ComposeBatch(body)
	if err != nil {
		log.Warn("rejected bot response batch", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var summary outboundSummary
	reqs := make([]outbound.Request, 0, len(results))
	for _, res := range results {
		if res.Err != nil {
			summary.Rejected++
			log.Warn("skipping bot response", "index", res.Index, "error", res.Err)
			continue
		}
		if sess, ok := s.Sessions.Get(res.Request.RecipientID); ok {
			log.Debug("replying to active session", "to", res.Request.RecipientID,
				"session_age", time.Since(sess.LastSeen).Round(time.Second))
		} else {
			log.Debug("no active session for recipient", "to", res.Request.RecipientID)
		}
		summary.Accepted++
		reqs = append(reqs, res.Request)
	}

	s.Dispatcher.Dispatch(reqs)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(summary)
}

// notify sends a plain text notice to a sender, best effort.
func (s *Server) notify(to, text string) {
	if text == "" {
		return
	}
	req, err := s.Composer.Compose(outbound.TextResponse{RecipientID: to, Text: text})
	if err != nil {
		s.logger().Error("compose notice", "to", to, "error", err)
		return
	}
	s.Dispatcher.Dispatch([]outbound.Request{req})
}

func (s *Server) logger() *slog.Logger {
	if s.Log == nil {
		return slog.Default()
	}
	return s.Log
}

// statusFor maps a normalization failure to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, inbound.ErrMalformedEvent),
		errors.Is(err, inbound.ErrIncompleteLocation),
		errors.Is(err, inbound.ErrUnsupportedMessageType):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// handleHealth returns 200 OK; used by the CLI status command.
func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "ok")
}

// truncate shortens s to at most max runes.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
