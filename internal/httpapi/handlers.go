// Package httpapi exposes the service over HTTP: OAuth redirects, webhook
// ingestion, billing confirmation and the analytics intake.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bargenix-billing-core/internal/analytics"
	"bargenix-billing-core/internal/application"
	"bargenix-billing-core/internal/domain"
	"bargenix-billing-core/internal/infrastructure/metrics"
	"bargenix-billing-core/internal/infrastructure/shopify"
)

// Handlers bundles the HTTP endpoints and their dependencies.
type Handlers struct {
	auth         *application.AuthService
	billing      *application.BillingService
	stores       *application.StoreService
	dispatcher   *application.WebhookDispatcher
	verifier     *shopify.WebhookVerifier
	tracker      *analytics.Tracker
	dashboardURL string
	logger       zerolog.Logger
}

// NewHandlers wires the endpoint set.
func NewHandlers(
	auth *application.AuthService,
	billing *application.BillingService,
	stores *application.StoreService,
	dispatcher *application.WebhookDispatcher,
	verifier *shopify.WebhookVerifier,
	tracker *analytics.Tracker,
	dashboardURL string,
	logger zerolog.Logger,
) *Handlers {
	return &Handlers{
		auth:         auth,
		billing:      billing,
		stores:       stores,
		dispatcher:   dispatcher,
		verifier:     verifier,
		tracker:      tracker,
		dashboardURL: dashboardURL,
		logger:       logger,
	}
}

// BeginAuth starts the OAuth handshake and redirects the merchant to the
// Shopify authorize page.
func (h *Handlers) BeginAuth(w http.ResponseWriter, r *http.Request) {
	shop := r.URL.Query().Get("shop")
	if shop == "" {
		http.Error(w, "shop parameter is required", http.StatusBadRequest)
		return
	}

	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		http.Error(w, "user_id parameter is required", http.StatusBadRequest)
		return
	}

	authURL, err := h.auth.BeginOAuth(r.Context(), shop, userID, r.URL.Query().Get("return_url"))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidShopDomain) {
			http.Error(w, "invalid shop domain", http.StatusBadRequest)
			return
		}
		h.logger.Error().Err(err).Str("shop", shop).Msg("Failed to begin OAuth")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

// AuthCallback completes the OAuth handshake and sends the merchant back to
// the dashboard.
func (h *Handlers) AuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	shop := q.Get("shop")
	code := q.Get("code")
	state := q.Get("state")
	if shop == "" || code == "" || state == "" {
		http.Error(w, "shop, code and state parameters are required", http.StatusBadRequest)
		return
	}

	store, returnURL, err := h.auth.CompleteOAuth(r.Context(), shop, code, state)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidState) || errors.Is(err, domain.ErrInvalidShopDomain) {
			http.Error(w, "invalid or expired state", http.StatusUnauthorized)
			return
		}
		h.logger.Error().Err(err).Str("shop", shop).Msg("OAuth callback failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	target := returnURL
	if target == "" {
		target = h.dashboardURL
	}
	target = fmt.Sprintf("%s?connected=true&shop=%s", target, url.QueryEscape(store.ShopDomain))

	http.Redirect(w, r, target, http.StatusFound)
}

// Webhooks receives Shopify webhooks. The raw body is verified before any
// parsing; anything that fails verification is rejected with 401 and never
// reaches a handler.
func (h *Handlers) Webhooks(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to read webhook payload")
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	topic := r.Header.Get("X-Shopify-Topic")
	shop := r.Header.Get("X-Shopify-Shop-Domain")
	hmacHeader := r.Header.Get("X-Shopify-Hmac-SHA256")

	if topic == "" || shop == "" || hmacHeader == "" {
		metrics.WebhookVerificationFailures.Inc()
		h.logger.Warn().Str("topic", topic).Str("shop", shop).Msg("Webhook missing required headers")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.verifier.Verify(payload, hmacHeader); err != nil {
		metrics.WebhookVerificationFailures.Inc()
		h.logger.Warn().Str("topic", topic).Str("shop", shop).Msg("Webhook signature verification failed")
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	metrics.WebhooksReceived.WithLabelValues(topic).Inc()

	event := &domain.WebhookEvent{
		Topic:   topic,
		Shop:    shop,
		Payload: payload,
	}

	if err := h.dispatcher.Dispatch(r.Context(), event); err != nil {
		h.logger.Error().Err(err).Str("topic", topic).Str("shop", shop).Msg("Failed to dispatch webhook event")
		http.Error(w, "Failed to process webhook", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"received": "true"})
}

type subscribeRequest struct {
	UserID uuid.UUID `json:"user_id"`
	Plan   string    `json:"plan"`
}

// Subscribe creates a recurring charge for a plan and returns the Shopify
// confirmation URL the dashboard must send the merchant to.
func (h *Handlers) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == uuid.Nil || req.Plan == "" {
		http.Error(w, "user_id and plan are required", http.StatusBadRequest)
		return
	}

	confirmationURL, err := h.billing.Subscribe(r.Context(), req.UserID, req.Plan)
	if err != nil {
		var berr *application.BillingError
		if errors.As(err, &berr) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error":   berr.Code,
				"message": berr.Message,
			})
			return
		}
		h.logger.Error().Err(err).Msg("Subscribe failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"confirmation_url": confirmationURL})
}

// ConfirmBilling is the return URL Shopify redirects to after the merchant
// decides on a charge. Outcomes are communicated to the dashboard via
// redirect query parameters, never response bodies.
func (h *Handlers) ConfirmBilling(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	chargeID, err := strconv.ParseInt(q.Get("charge_id"), 10, 64)
	if err != nil {
		http.Error(w, "charge_id parameter is required", http.StatusBadRequest)
		return
	}
	planID, err := uuid.Parse(q.Get("planId"))
	if err != nil {
		http.Error(w, "planId parameter is required", http.StatusBadRequest)
		return
	}
	userID, err := uuid.Parse(q.Get("userId"))
	if err != nil {
		http.Error(w, "userId parameter is required", http.StatusBadRequest)
		return
	}

	plan, err := h.billing.ConfirmBilling(r.Context(), userID, planID, chargeID)
	if err != nil {
		var berr *application.BillingError
		if errors.As(err, &berr) {
			h.redirectDashboard(w, r, url.Values{
				"error":   {berr.Code},
				"message": {berr.Message},
			})
			return
		}
		h.logger.Error().Err(err).Int64("charge_id", chargeID).Msg("Billing confirmation failed")
		h.redirectDashboard(w, r, url.Values{
			"error":   {"billing_failed"},
			"message": {"billing confirmation failed"},
		})
		return
	}

	h.redirectDashboard(w, r, url.Values{
		"success": {"true"},
		"plan":    {plan.Slug},
	})
}

type uninstallConfirmRequest struct {
	Shop   string `json:"shop"`
	Status string `json:"status"`
}

// UninstallConfirm lets the dashboard acknowledge an uninstall and drive the
// store to its terminal state.
func (h *Handlers) UninstallConfirm(w http.ResponseWriter, r *http.Request) {
	var req uninstallConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Shop == "" || req.Status == "" {
		http.Error(w, "shop and status are required", http.StatusBadRequest)
		return
	}

	if err := h.stores.ConfirmUninstall(r.Context(), req.Shop, req.Status); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "store not found", http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Str("shop", req.Shop).Msg("Uninstall confirmation failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// TrackAnalytics enqueues a widget event. Always fast: the write happens in
// the background flush worker.
func (h *Handlers) TrackAnalytics(w http.ResponseWriter, r *http.Request) {
	var ev analytics.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if ev.ShopDomain == "" || ev.EventType == "" {
		http.Error(w, "shop_domain and event_type are required", http.StatusBadRequest)
		return
	}

	h.tracker.Track(ev)
	w.WriteHeader(http.StatusAccepted)
}

// Health is the liveness probe.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) redirectDashboard(w http.ResponseWriter, r *http.Request, params url.Values) {
	http.Redirect(w, r, h.dashboardURL+"?"+params.Encode(), http.StatusFound)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
