// Package asana serves the task-tracker webhook that triggers monitor
// reconciliation.
package asana

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/uptime-bridge/internal/auth"
	"github.com/tjfontaine/uptime-bridge/internal/core/domain"
	"github.com/tjfontaine/uptime-bridge/internal/reconcile"
	"github.com/tjfontaine/uptime-bridge/internal/server"
)

const (
	// WebhookPath is the route pattern; {token} holds the shared secret.
	WebhookPath = "/asana-webhook/{token}"

	hookSecretHeader = "X-Hook-Secret"
	defaultMaxBody   = 1 << 20
)

// Reconciler is the part of reconcile.Reconciler the handler depends on.
type Reconciler interface {
	Reconcile(ctx context.Context, ev domain.Event) reconcile.Result
}

// Handler receives task webhooks. Bodies larger than 1 MiB are rejected.
type Handler struct {
	reconciler Reconciler
	logger     *slog.Logger
	maxBody    int64
}

// NewHandler creates a Handler that passes each event to reconciler.
// A nil logger falls back to slog.Default.
func NewHandler(reconciler Reconciler, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{reconciler: reconciler, logger: logger, maxBody: defaultMaxBody}
}

// Routes mounts the webhook behind the path token check.
func (h *Handler) Routes(r chi.Router, token *auth.PathToken) {
	r.With(server.PathTokenMiddleware(token, "token")).Post(WebhookPath, h.HandleWebhook)
}

// HandleWebhook answers the subscription handshake or reconciles one event.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if secret := r.Header.Get(hookSecretHeader); secret != "" {
		server.AddLogField(ctx, "webhook", "handshake")
		h.logger.InfoContext(ctx, "webhook handshake accepted")
		w.Header().Set(hookSecretHeader, secret)
		w.WriteHeader(http.StatusOK)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			server.WriteJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"detail": "Payload too large"})
			return
		}
		server.AddError(ctx, err)
		server.WriteJSON(w, http.StatusBadRequest, map[string]string{"detail": "Invalid JSON"})
		return
	}

	ev, err := domain.ParseEvent(body)
	if err != nil {
		server.AddError(ctx, err)
		server.WriteJSON(w, http.StatusBadRequest, map[string]string{"detail": "Invalid JSON"})
		return
	}

	res := h.reconciler.Reconcile(ctx, ev)
	server.AddLogField(ctx, "outcome", string(res.Outcome))
	server.AddLogField(ctx, "domain", res.Context.Domain)

	switch res.Outcome {
	case reconcile.OutcomeNoDomain:
		server.WriteJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"ok":    false,
			"error": "domain_not_found",
		})
	case reconcile.OutcomeExists:
		var url string
		if res.Existing != nil {
			url = res.Existing.URL
		}
		server.WriteJSON(w, http.StatusOK, map[string]any{
			"ok":      true,
			"message": "Monitor already exists",
			"monitor": url,
		})
	case reconcile.OutcomeCreated:
		server.WriteJSON(w, http.StatusOK, map[string]any{
			"ok":      true,
			"created": res.Response,
		})
	default:
		server.AddError(ctx, res.Err)
		server.WriteJSON(w, http.StatusBadGateway, map[string]any{
			"ok":    false,
			"error": res.Response,
		})
	}
}
