package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bargenix-billing-core/internal/domain"
	"bargenix-billing-core/internal/infrastructure/metrics"
	"bargenix-billing-core/internal/ports"
)

// BillingError carries a machine-readable code for the dashboard error
// redirect alongside a human-readable message.
type BillingError struct {
	Code    string
	Message string
}

func (e *BillingError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func billingErr(code, message string) *BillingError {
	metrics.BillingFailures.WithLabelValues(code).Inc()
	return &BillingError{Code: code, Message: message}
}

// BillingService runs the recurring charge lifecycle: creation, the
// post-approval reconciliation and webhook-driven updates.
type BillingService struct {
	stores      ports.StoreRepository
	memberships ports.MembershipRepository
	plans       ports.PlanRepository
	client      ports.ShopifyClient
	events      *EventLogger
	appURL      string
	testMode    bool
	logger      zerolog.Logger
}

// NewBillingService creates the billing lifecycle service. testMode flags
// created charges as test charges, for development stores.
func NewBillingService(
	stores ports.StoreRepository,
	memberships ports.MembershipRepository,
	plans ports.PlanRepository,
	client ports.ShopifyClient,
	events *EventLogger,
	appURL string,
	testMode bool,
	logger zerolog.Logger,
) *BillingService {
	return &BillingService{
		stores:      stores,
		memberships: memberships,
		plans:       plans,
		client:      client,
		events:      events,
		appURL:      appURL,
		testMode:    testMode,
		logger:      logger,
	}
}

// Subscribe creates a pending membership and a Shopify recurring charge for
// the plan, returning the confirmation URL the merchant must approve on.
func (s *BillingService) Subscribe(ctx context.Context, userID uuid.UUID, planSlug string) (string, error) {
	plan, err := s.plans.GetBySlug(ctx, planSlug)
	if err != nil {
		return "", billingErr("plan_not_found", fmt.Sprintf("unknown plan %q", planSlug))
	}

	store, token, err := s.activeStoreWithToken(ctx, userID)
	if err != nil {
		return "", err
	}

	if _, err := s.memberships.CreatePending(ctx, userID, plan.ID); err != nil {
		return "", fmt.Errorf("failed to create pending membership: %w", err)
	}

	returnURL := fmt.Sprintf("%s/api/shopify/confirm-billing?planId=%s&userId=%s",
		s.appURL, plan.ID, userID)

	created, err := s.client.CreateRecurringCharge(ctx, store.ShopDomain, token.Token, &domain.RecurringCharge{
		Name:      plan.Name,
		Price:     plan.Price,
		ReturnURL: returnURL,
		TrialDays: plan.TrialDays,
		Test:      s.testMode,
	})
	if err != nil {
		s.logger.Error().Err(err).
			Str("shop", store.ShopDomain).
			Str("plan", plan.Slug).
			Msg("Failed to create recurring charge")
		return "", billingErr("charge_creation_failed", "could not create the Shopify charge")
	}

	s.logger.Info().
		Str("shop", store.ShopDomain).
		Str("plan", plan.Slug).
		Int64("charge_id", created.ID).
		Msg("Recurring charge created, awaiting merchant approval")

	return created.ConfirmationURL, nil
}

// ConfirmBilling reconciles a charge after Shopify redirects the merchant
// back. It re-reads the charge from Shopify (never trusting query
// parameters), activates it when accepted and commits the membership state
// transactionally. Safe to call repeatedly for the same charge id.
func (s *BillingService) ConfirmBilling(ctx context.Context, userID, planID uuid.UUID, chargeID int64) (*domain.Plan, error) {
	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		return nil, billingErr("plan_not_found", "the selected plan no longer exists")
	}

	// The webhook path may have committed this charge already. A read
	// failure here must abort: proceeding would bypass the dedupe and risk
	// a double activation.
	existing, err := s.memberships.GetByChargeID(ctx, chargeID)
	switch {
	case err == nil && existing.Status == domain.MembershipStatusActive:
		s.logger.Info().Int64("charge_id", chargeID).Msg("Charge already committed, skipping reconciliation")
		return plan, nil
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("failed to check charge %d for an earlier commit: %w", chargeID, err)
	}

	store, token, err := s.activeStoreWithToken(ctx, userID)
	if err != nil {
		s.logVerificationFailure(ctx, userID, plan, chargeID, err)
		return nil, err
	}

	charge, err := s.client.GetRecurringCharge(ctx, store.ShopDomain, token.Token, chargeID)
	if err != nil {
		s.logger.Error().Err(err).Int64("charge_id", chargeID).Msg("Failed to verify charge with Shopify")
		s.events.Billing(ctx, &domain.BillingEvent{
			UserID:    userID,
			EventType: domain.EventBillingVerificationError,
			ChargeID:  &chargeID,
			PlanID:    &plan.ID,
			PlanSlug:  plan.Slug,
			Status:    "error",
			Details:   detailsJSON(map[string]any{"error": err.Error()}),
		})
		return nil, billingErr("billing_verification_failed", "could not verify the charge with Shopify")
	}

	switch charge.Status {
	case domain.ChargeStatusActive:
		// Already activated, most likely by the billing webhook. Commit
		// locally without calling Activate again.
	case domain.ChargeStatusAccepted:
		charge, err = s.client.ActivateRecurringCharge(ctx, store.ShopDomain, token.Token, chargeID)
		if err != nil {
			s.logger.Error().Err(err).Int64("charge_id", chargeID).Msg("Failed to activate charge")
			s.events.Billing(ctx, &domain.BillingEvent{
				UserID:    userID,
				EventType: domain.EventChargeActivationError,
				ChargeID:  &chargeID,
				PlanID:    &plan.ID,
				PlanSlug:  plan.Slug,
				Status:    "error",
				Details:   detailsJSON(map[string]any{"error": err.Error()}),
			})
			return nil, billingErr("billing_activation_failed", "could not activate the charge")
		}
	default:
		s.logger.Warn().
			Int64("charge_id", chargeID).
			Str("charge_status", charge.Status).
			Msg("Charge not accepted by merchant")
		s.events.Billing(ctx, &domain.BillingEvent{
			UserID:    userID,
			EventType: domain.EventChargeDeclined,
			ChargeID:  &chargeID,
			PlanID:    &plan.ID,
			PlanSlug:  plan.Slug,
			Status:    charge.Status,
		})
		return nil, billingErr("billing_declined", "the charge was not accepted")
	}

	s.events.Billing(ctx, &domain.BillingEvent{
		UserID:    userID,
		EventType: domain.EventChargeActivated,
		ChargeID:  &chargeID,
		PlanID:    &plan.ID,
		PlanSlug:  plan.Slug,
		Amount:    &plan.Price,
		Status:    charge.Status,
	})

	if _, err := s.memberships.ActivateExclusive(ctx, ports.MembershipActivation{
		UserID:        userID,
		Plan:          plan,
		ChargeID:      chargeID,
		ShopifyStatus: charge.Status,
		ActivatedAt:   time.Now(),
		TrialEndsOn:   charge.TrialEndsOn,
		NextBillingOn: charge.BillingOn,
	}); err != nil {
		s.logger.Error().Err(err).Int64("charge_id", chargeID).Msg("Failed to commit membership")
		return nil, billingErr("billing_commit_failed", "charge activated but local commit failed")
	}

	metrics.ChargesActivated.Inc()

	s.logger.Info().
		Str("user_id", userID.String()).
		Str("plan", plan.Slug).
		Int64("charge_id", chargeID).
		Msg("Billing confirmed, membership active")

	return plan, nil
}

// chargeWebhookPayload covers both shapes Shopify sends for charge update
// topics: fields at the top level or nested under the resource key.
type chargeWebhookPayload struct {
	ID        int64  `json:"id"`
	Status    string `json:"status"`
	Name      string `json:"name"`
	Recurring *struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
		Name   string `json:"name"`
	} `json:"recurring_application_charge"`
}

// HandleChargeUpdate applies a charge update webhook to the local
// membership, using the same status mapping as the redirect path so both
// converge on the same final state.
func (s *BillingService) HandleChargeUpdate(ctx context.Context, payload []byte) error {
	var p chargeWebhookPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("failed to parse charge webhook: %w", err)
	}
	if p.Recurring != nil {
		p.ID = p.Recurring.ID
		p.Status = p.Recurring.Status
	}
	if p.ID == 0 {
		return fmt.Errorf("charge webhook carries no charge id")
	}

	membership, err := s.memberships.GetByChargeID(ctx, p.ID)
	if err != nil {
		// Unknown charge ids are normal: the merchant may have approved a
		// charge we never created, or the pending row was cleaned up.
		s.logger.Warn().Int64("charge_id", p.ID).Str("charge_status", p.Status).Msg("Charge webhook for unknown charge")
		return nil
	}

	target, ok := domain.MembershipStatusForCharge(p.Status)
	if !ok {
		s.logger.Info().Int64("charge_id", p.ID).Str("charge_status", p.Status).Msg("Charge webhook status needs no local transition")
		return nil
	}

	switch target {
	case domain.MembershipStatusActive:
		if membership.Status == domain.MembershipStatusActive {
			return nil
		}
		plan, err := s.plans.GetByID(ctx, membership.PlanID)
		if err != nil {
			return fmt.Errorf("failed to load plan for charge %d: %w", p.ID, err)
		}
		if _, err := s.memberships.ActivateExclusive(ctx, ports.MembershipActivation{
			UserID:        membership.UserID,
			Plan:          plan,
			ChargeID:      p.ID,
			ShopifyStatus: p.Status,
			ActivatedAt:   time.Now(),
		}); err != nil {
			return fmt.Errorf("failed to activate membership from webhook: %w", err)
		}
		metrics.ChargesActivated.Inc()
	default:
		if err := s.memberships.CloseByChargeID(ctx, p.ID, target); err != nil {
			return fmt.Errorf("failed to close membership from webhook: %w", err)
		}
	}

	s.events.Billing(ctx, &domain.BillingEvent{
		UserID:    membership.UserID,
		EventType: domain.EventChargeWebhookUpdate,
		ChargeID:  &p.ID,
		PlanID:    &membership.PlanID,
		Status:    p.Status,
		Details:   detailsJSON(map[string]any{"membership_status": string(target)}),
	})

	s.logger.Info().
		Int64("charge_id", p.ID).
		Str("charge_status", p.Status).
		Str("membership_status", string(target)).
		Msg("Charge webhook applied")

	return nil
}

// logVerificationFailure records that a charge could not be verified, so
// terminal failures before the Shopify read leave the same audit trail as a
// failed read itself.
func (s *BillingService) logVerificationFailure(ctx context.Context, userID uuid.UUID, plan *domain.Plan, chargeID int64, cause error) {
	reason := cause.Error()
	var berr *BillingError
	if errors.As(cause, &berr) {
		reason = berr.Code
	}
	s.events.Billing(ctx, &domain.BillingEvent{
		UserID:    userID,
		EventType: domain.EventBillingVerificationError,
		ChargeID:  &chargeID,
		PlanID:    &plan.ID,
		PlanSlug:  plan.Slug,
		Status:    "error",
		Details:   detailsJSON(map[string]any{"reason": reason}),
	})
}

func (s *BillingService) activeStoreWithToken(ctx context.Context, userID uuid.UUID) (*domain.Store, *domain.AccessToken, error) {
	store, err := s.stores.GetActiveByUser(ctx, userID)
	if err != nil {
		return nil, nil, billingErr("store_not_found", "no active store connection for this account")
	}
	token, err := s.stores.CurrentToken(ctx, store.ID)
	if err != nil {
		return nil, nil, billingErr("token_missing", "the store connection has no usable access token")
	}
	return store, token, nil
}

func detailsJSON(m map[string]any) json.RawMessage {
	b, err := json.Marshal(m)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}
