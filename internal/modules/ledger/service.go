package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"servicehub/internal/domain"
	"servicehub/internal/repository"
)

// Ledger records payments and their fee split and moves them through payout and refund.
type Ledger struct {
	store   *repository.Store
	rates   Rates
	now     func() time.Time
	loggerf func(format string, args ...interface{})
}

func NewLedger(store *repository.Store, rates Rates, loggerf func(format string, args ...interface{})) *Ledger {
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	if rates.StandardBps == 0 && rates.CancellationBps == 0 {
		rates = DefaultRates()
	}
	return &Ledger{
		store:   store,
		rates:   rates,
		now:     func() time.Time { return time.Now().UTC() },
		loggerf: loggerf,
	}
}

// WithStore returns a copy of l that reads and writes through store, e.g. a transaction.
func (l *Ledger) WithStore(store *repository.Store) *Ledger {
	cp := *l
	cp.store = store
	return &cp
}

func (l *Ledger) Rates() Rates {
	return l.rates
}

// RecordPayment stores the captured payment for a request with its fee split.
// A request carries at most one payment.
func (l *Ledger) RecordPayment(ctx context.Context, requestID string, grossAmount float64, feeRateBps int) (*domain.Payment, error) {
	if grossAmount <= 0 {
		return nil, fmt.Errorf("%w: gross amount must be positive", domain.ErrValidation)
	}
	if feeRateBps < 0 || feeRateBps > maxBps {
		return nil, fmt.Errorf("%w: fee rate must be within 0..%d bps", domain.ErrValidation, maxBps)
	}

	var p *domain.Payment
	err := l.store.Transaction(ctx, func(tx *repository.Store) error {
		// the request lock orders capture against reassignment and cancellation
		req, err := tx.Requests.GetByIDForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if req.ProviderID == nil {
			return fmt.Errorf("%w: request %s has no provider", domain.ErrInvalidState, requestID)
		}
		if req.Status == domain.RequestCancelled {
			return fmt.Errorf("%w: request %s is cancelled", domain.ErrInvalidState, requestID)
		}

		fee, net := SplitFee(grossAmount, feeRateBps)
		p = &domain.Payment{
			ServiceRequestID: req.ID,
			ProviderID:       *req.ProviderID,
			ClientID:         req.ClientID,
			Amount:           round2(grossAmount),
			PlatformFee:      fee,
			ProviderAmount:   net,
			FeeRateBps:       feeRateBps,
			Status:           domain.PaymentCompleted,
			CreatedAt:        l.now(),
		}
		if err := tx.Payments.Create(ctx, p); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return fmt.Errorf("%w: request %s already has a payment", domain.ErrInvalidState, requestID)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.loggerf("level=info msg=payment_recorded payment_id=%s request_id=%s amount=%.2f fee=%.2f provider_amount=%.2f bps=%d",
		p.ID, p.ServiceRequestID, p.Amount, p.PlatformFee, p.ProviderAmount, p.FeeRateBps)
	return p, nil
}

// HasPayment reports whether the request already carries a payment.
func (l *Ledger) HasPayment(ctx context.Context, requestID string) (bool, error) {
	_, err := l.store.Payments.GetByRequestID(ctx, requestID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// MarkPaidOut settles a COMPLETED payment to the provider once the job itself
// is COMPLETED.
func (l *Ledger) MarkPaidOut(ctx context.Context, paymentID string) (*domain.Payment, error) {
	return l.transition(ctx, paymentID, func(tx *repository.Store, p *domain.Payment) error {
		if p.Status != domain.PaymentCompleted {
			return fmt.Errorf("%w: payment %s is %s, want %s", domain.ErrInvalidState, p.ID, p.Status, domain.PaymentCompleted)
		}
		req, err := tx.Requests.GetByID(ctx, p.ServiceRequestID)
		if err != nil {
			return err
		}
		if req.Status != domain.RequestCompleted {
			return fmt.Errorf("%w: request %s is %s, payout needs %s", domain.ErrInvalidState, req.ID, req.Status, domain.RequestCompleted)
		}
		now := l.now()
		p.Status = domain.PaymentPaidToProvider
		p.PaidToProviderAt = &now
		return nil
	})
}

// Reverse refunds a payment and charges the provider a fixed 10% penalty of the gross.
func (l *Ledger) Reverse(ctx context.Context, paymentID string) (*domain.Payment, error) {
	return l.transition(ctx, paymentID, func(_ *repository.Store, p *domain.Payment) error {
		if p.Status != domain.PaymentCompleted && p.Status != domain.PaymentPaidToProvider {
			return fmt.Errorf("%w: payment %s is %s and cannot be refunded", domain.ErrInvalidState, p.ID, p.Status)
		}
		now := l.now()
		p.Status = domain.PaymentRefunded
		p.ProviderPenalty = RefundPenalty(p.Amount)
		p.RefundedAt = &now
		return nil
	})
}

func (l *Ledger) transition(ctx context.Context, paymentID string, apply func(tx *repository.Store, p *domain.Payment) error) (*domain.Payment, error) {
	var out *domain.Payment
	err := l.store.Transaction(ctx, func(tx *repository.Store) error {
		p, err := tx.Payments.GetByIDForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		from := p.Status
		if err := apply(tx, p); err != nil {
			return err
		}
		if err := tx.Payments.Update(ctx, p); err != nil {
			return err
		}
		l.loggerf("level=info msg=payment_transition payment_id=%s from=%s to=%s", p.ID, from, p.Status)
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReassignPayment points the request's unsettled (COMPLETED) payment at
// providerID, the provider now holding the request. Settled or refunded payments
// are returned unchanged, and nil means the request has no payment.
// l must be bound to the caller's transaction.
func (l *Ledger) ReassignPayment(ctx context.Context, requestID, providerID string) (*domain.Payment, error) {
	p, err := l.store.Payments.GetByRequestIDForUpdate(ctx, requestID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if p.ProviderID == providerID || p.Status != domain.PaymentCompleted {
		return p, nil
	}

	from := p.ProviderID
	p.ProviderID = providerID
	if err := l.store.Payments.Update(ctx, p); err != nil {
		return nil, err
	}
	l.loggerf("level=info msg=payment_reassigned payment_id=%s request_id=%s from=%s to=%s", p.ID, requestID, from, providerID)
	return p, nil
}

// RefundCancelled refunds the payment of a request that has just been cancelled,
// so no provider is ever paid out for it. A request cancelled after acceptance
// charges the provider a penalty at the cancellation rate; one cancelled while
// still PENDING is refunded without penalty. It returns nil when the request has
// no payment. l must be bound to the caller's transaction.
func (l *Ledger) RefundCancelled(ctx context.Context, requestID string, cancelledFrom domain.RequestStatus) (*domain.Payment, error) {
	p, err := l.store.Payments.GetByRequestIDForUpdate(ctx, requestID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if p.Status != domain.PaymentCompleted && p.Status != domain.PaymentPaidToProvider {
		return p, nil
	}

	from := p.Status
	now := l.now()
	p.Status = domain.PaymentRefunded
	p.RefundedAt = &now
	p.ProviderPenalty = 0
	if cancelledFrom == domain.RequestAccepted {
		p.ProviderPenalty = CancellationPenalty(p.Amount, l.rates.CancellationBps)
	}
	if err := l.store.Payments.Update(ctx, p); err != nil {
		return nil, err
	}
	l.loggerf("level=info msg=payment_refunded_on_cancel payment_id=%s request_id=%s from=%s penalty=%.2f",
		p.ID, requestID, from, p.ProviderPenalty)
	return p, nil
}

func (l *Ledger) Get(ctx context.Context, paymentID string) (*domain.Payment, error) {
	return l.store.Payments.GetByID(ctx, paymentID)
}

func (l *Ledger) List(ctx context.Context, status domain.PaymentStatus, page, limit int) ([]domain.Payment, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return l.store.Payments.List(ctx, status, (page-1)*limit, limit)
}

// Summary mirrors the admin payments dashboard totals.
func (l *Ledger) Summary(ctx context.Context) (*repository.PaymentTotals, error) {
	t, err := l.store.Payments.Totals(ctx)
	if err != nil {
		return nil, err
	}
	t.TotalRevenue = round2(t.TotalRevenue)
	t.PlatformFees = round2(t.PlatformFees)
	t.PendingPayouts = round2(t.PendingPayouts)
	t.CompletedPayouts = round2(t.CompletedPayouts)
	return t, nil
}

// PaymentConfirmation is the external processor's "payment confirmed" event.
type PaymentConfirmation struct {
	RequestID  string  `json:"request_id"`
	Amount     float64 `json:"amount"`
	Status     string  `json:"status"`
	ExternalID string  `json:"external_id,omitempty"`
}

const ConfirmationSucceeded = "succeeded"

// ConfirmPayment records a captured payment at the standard rate. Replays of an
// already recorded confirmation return the stored payment; failed captures are
// logged and produce no payment.
func (l *Ledger) ConfirmPayment(ctx context.Context, ev PaymentConfirmation) (*domain.Payment, error) {
	if ev.RequestID == "" {
		return nil, fmt.Errorf("%w: request_id is required", domain.ErrValidation)
	}
	if ev.Status != "" && ev.Status != ConfirmationSucceeded {
		l.loggerf("level=warn msg=payment_not_captured request_id=%s status=%s external_id=%s", ev.RequestID, ev.Status, ev.ExternalID)
		return nil, nil
	}

	existing, err := l.store.Payments.GetByRequestID(ctx, ev.RequestID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	p, err := l.RecordPayment(ctx, ev.RequestID, ev.Amount, l.rates.StandardBps)
	if errors.Is(err, domain.ErrInvalidState) {
		// lost a race with a concurrent confirmation of the same request
		if again, gerr := l.store.Payments.GetByRequestID(ctx, ev.RequestID); gerr == nil {
			return again, nil
		}
	}
	return p, err
}
