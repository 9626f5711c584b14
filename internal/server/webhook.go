package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/orialabs/voicedeck/internal/assistants"
	apierrors "github.com/orialabs/voicedeck/internal/errors"
	"github.com/orialabs/voicedeck/internal/logging"
	"github.com/orialabs/voicedeck/internal/middleware"
	"github.com/orialabs/voicedeck/internal/monitoring"
	"github.com/orialabs/voicedeck/internal/webhook"
)

// SignatureHeader is the header carrying the HMAC digest of the raw body
const SignatureHeader = "X-Voice-Signature"

const maxWebhookBody = 1 << 20 // 1 MiB

// handleWebhook is the single ingress for provider call-lifecycle events.
// Authentication and validation short-circuit with no side effects; once the
// call record write succeeds, everything downstream is best-effort and the
// provider still gets a 200.
func (s *APIServer) handleWebhook(c *gin.Context) {
	logger := logging.NewLogger("webhook")
	requestID := middleware.GetRequestIDFromContext(c)

	if s.limiter != nil && !s.limiter.Allow(c.Request.Context(), c.ClientIP()) {
		monitoring.RecordRateLimitHit()
		respondError(c, apierrors.ErrRateLimitedError)
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		respondError(c, apierrors.NewInvalidRequestError("failed to read request body"))
		return
	}

	if err := s.verifier.Verify(body, c.GetHeader(SignatureHeader)); err != nil {
		monitoring.RecordWebhookRejected("signature")
		if errors.Is(err, webhook.ErrMissingSignature) {
			respondError(c, apierrors.ErrMissingSignatureError)
		} else {
			respondError(c, apierrors.ErrBadSignatureError)
		}
		return
	}

	ev, err := webhook.ParseEvent(body)
	if err != nil {
		monitoring.RecordWebhookRejected("validation")
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	if ev.Type != webhook.EventCallEnd {
		// Accepted but not part of this pipeline.
		monitoring.RecordWebhookEvent(string(ev.Type), "ignored")
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	rec, err := s.reconciler.Apply(c.Request.Context(), ev.CallEnd)
	if err != nil {
		if errors.Is(err, assistants.ErrNotFound) {
			monitoring.RecordWebhookEvent(string(ev.Type), "unknown_assistant")
			respondError(c, apierrors.ErrAssistantNotFoundError)
			return
		}
		// Failing the core write is the one legitimate retry signal for
		// the provider.
		monitoring.RecordWebhookEvent(string(ev.Type), "persistence_error")
		logger.Error().Err(err).
			Str("request_id", requestID).
			Str("external_call_id", ev.CallEnd.ExternalCallID).
			Msg("Call record write failed")
		respondError(c, apierrors.ErrPersistenceError)
		return
	}

	// Usage recomputation and the enforcement decision are enrichment from
	// the sender's point of view: a bug here must not trigger provider-side
	// retry storms for an already-committed record.
	if _, err := s.decider.Evaluate(c.Request.Context(), rec.UserID); err != nil {
		logger.Error().Err(err).
			Str("request_id", requestID).
			Str("user_id", rec.UserID.String()).
			Msg("Enforcement evaluation failed")
	}

	monitoring.RecordWebhookEvent(string(ev.Type), "processed")
	logging.LogWebhookEvent(requestID, string(ev.Type), ev.CallEnd.ExternalCallID, "processed")
	c.JSON(http.StatusOK, gin.H{"received": true, "call_record_id": rec.ID})
}

// handleWebhookChallenge echoes the provider's liveness probe
func (s *APIServer) handleWebhookChallenge(c *gin.Context) {
	if challenge := c.Query("challenge"); challenge != "" {
		c.String(http.StatusOK, challenge)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
