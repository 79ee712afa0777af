package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"checkout-bridge/internal/domain"
	"checkout-bridge/internal/domain/model"
	"checkout-bridge/internal/infra/logging"
	"checkout-bridge/internal/infra/metrics"
)

// Standard Webhooks headers.
const (
	headerWebhookID        = "webhook-id"
	headerWebhookTimestamp = "webhook-timestamp"
	headerWebhookSignature = "webhook-signature"
)

var ack = map[string]any{"received": true}

// handleWebhook verifies the delivery before anything else happens. Every
// outcome after verification is acknowledged with 200 so the payment
// platform does not retry into a storm; relay failures are logged for
// reconciliation instead.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	log := logging.With(r.Context(), s.log)

	body, err := io.ReadAll(io.LimitReader(r.Body, s.opts.MaxBodyBytes))
	if err != nil {
		log.Warn().Err(err).Msg("read webhook body")
		metrics.IncWebhook("unreadable")
		writeJSON(w, http.StatusBadRequest, errorBody("unreadable body"))
		return
	}

	id := strings.TrimSpace(r.Header.Get(headerWebhookID))
	ts := r.Header.Get(headerWebhookTimestamp)
	sig := r.Header.Get(headerWebhookSignature)

	if err := s.d.Verifier.Verify(sig, ts, id, body); err != nil {
		lvl := log.Warn()
		if errors.Is(err, domain.ErrWebhookSecretMissing) {
			lvl = log.Error()
		}
		lvl.Err(err).Str("webhook_id", id).Msg("webhook rejected")
		metrics.IncWebhook("unauthorized")
		writeJSON(w, http.StatusUnauthorized, errorBody("invalid signature"))
		return
	}

	ev, err := model.ParseWebhookEvent(body)
	if err != nil {
		log.Warn().Err(err).Str("webhook_id", id).Msg("malformed webhook payload")
		metrics.IncWebhook("malformed")
		writeJSON(w, http.StatusOK, ack)
		return
	}

	if s.d.Dedup != nil && id != "" {
		first, err := s.d.Dedup.FirstSeen(r.Context(), id, s.opts.DedupTTL)
		switch {
		case err != nil:
			log.Error().Err(err).Str("webhook_id", id).Msg("webhook dedup unavailable; relaying anyway")
		case !first:
			log.Info().Str("webhook_id", id).Str("type", ev.Type).Msg("duplicate webhook delivery")
			metrics.IncWebhook("duplicate")
			writeJSON(w, http.StatusOK, map[string]any{"received": true, "duplicate": true})
			return
		}
	}

	metrics.IncWebhook("accepted")
	l := log.With().Str("webhook_id", id).Str("type", ev.Type).Logger()
	if s.opts.AsyncRelay && s.d.Dispatcher != nil {
		err := s.d.Dispatcher.Submit(func(ctx context.Context) error {
			s.relay(ctx, ev, &l)
			return nil
		})
		if err == nil {
			writeJSON(w, http.StatusOK, ack)
			return
		}
		l.Warn().Err(err).Msg("dispatcher unavailable; relaying inline")
	}

	// the relay outlives a disconnecting sender
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.opts.RelayTimeout)
	defer cancel()
	s.relay(ctx, ev, &l)
	writeJSON(w, http.StatusOK, ack)
}

func (s *Server) relay(ctx context.Context, ev *model.WebhookEvent, log *zerolog.Logger) {
	out, err := s.d.Settlement.HandleEvent(ctx, ev)
	if err != nil {
		// already logged with reconcile=true by the use case
		log.Debug().Str("outcome", string(out)).Msg("relay did not complete")
		return
	}
	log.Debug().Str("outcome", string(out)).Msg("webhook processed")
}
