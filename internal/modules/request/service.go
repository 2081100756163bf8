package request

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"servicehub/internal/domain"
	"servicehub/internal/modules/availability"
	"servicehub/internal/modules/ledger"
	"servicehub/internal/modules/matching"
	"servicehub/internal/modules/reputation"
	"servicehub/internal/repository"
)

// assignAttempts bounds matching when the chosen provider turns ineligible
// or the request changes between the read and the write: one try plus one retry.
const assignAttempts = 2

var errStale = errors.New("request changed while matching")

// EventSink receives committed transitions. Delivery is best effort.
type EventSink interface {
	Publish(ctx context.Context, ev domain.RequestEvent)
}

type nopSink struct{}

func (nopSink) Publish(context.Context, domain.RequestEvent) {}

type Options struct {
	ConcurrencyCap int
}

// Service owns the service request state machine:
// PENDING -> ACCEPTED -> COMPLETED, PENDING/ACCEPTED -> CANCELLED,
// and PENDING -> PENDING on a rejection that finds another provider.
type Service struct {
	store   *repository.Store
	ledger  *ledger.Ledger
	events  EventSink
	opts    Options
	now     func() time.Time
	loggerf func(format string, args ...interface{})

	// matched runs between matching and the write transaction; nil in production.
	matched func(ctx context.Context, providerID string)
}

func NewService(store *repository.Store, led *ledger.Ledger, events EventSink, opts Options, loggerf func(format string, args ...interface{})) *Service {
	if events == nil {
		events = nopSink{}
	}
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	if opts.ConcurrencyCap <= 0 {
		opts.ConcurrencyCap = matching.DefaultConcurrencyCap
	}
	return &Service{
		store:   store,
		ledger:  led,
		events:  events,
		opts:    opts,
		now:     func() time.Time { return time.Now().UTC() },
		loggerf: loggerf,
	}
}

func (s *Service) matcherFor(st *repository.Store) *matching.Matcher {
	idx := availability.NewIndex(st.Providers, st.Availability, st.Requests)
	return matching.NewMatcher(st.Providers, st.Requests, idx, s.opts.ConcurrencyCap)
}

type SubmitInput struct {
	ClientID      string
	CategoryID    string
	ScheduledDate *string
	ScheduledTime *string
}

func (in *SubmitInput) normalize() error {
	in.ClientID = strings.TrimSpace(in.ClientID)
	in.CategoryID = strings.TrimSpace(in.CategoryID)
	if in.ClientID == "" {
		return fmt.Errorf("%w: client id is required", domain.ErrValidation)
	}
	if in.CategoryID == "" {
		return fmt.Errorf("%w: category id is required", domain.ErrValidation)
	}
	in.ScheduledDate = blankToNil(in.ScheduledDate)
	in.ScheduledTime = blankToNil(in.ScheduledTime)
	if in.ScheduledTime != nil && in.ScheduledDate == nil {
		return fmt.Errorf("%w: scheduled time requires a scheduled date", domain.ErrValidation)
	}
	if in.ScheduledDate != nil {
		if _, err := availability.ParseDate(*in.ScheduledDate); err != nil {
			return err
		}
	}
	if in.ScheduledTime != nil {
		if _, err := availability.ParseClock(*in.ScheduledTime); err != nil {
			return err
		}
	}
	return nil
}

func blankToNil(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}

// Submit creates a PENDING request already assigned to the best eligible provider.
// When nobody is eligible nothing is stored and domain.ErrNoProviderAvailable is returned.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*domain.ServiceRequest, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	if _, err := s.store.Categories.GetByID(ctx, in.CategoryID); err != nil {
		return nil, err
	}

	crit := matching.Criteria{
		CategoryID:    in.CategoryID,
		ScheduledDate: in.ScheduledDate,
		ScheduledTime: in.ScheduledTime,
	}

	for attempt := 1; attempt <= assignAttempts; attempt++ {
		match, err := s.matcherFor(s.store).FindBestProvider(ctx, crit)
		if err != nil {
			return nil, err
		}
		if !match.Assigned() {
			return nil, fmt.Errorf("%w: category %s", domain.ErrNoProviderAvailable, in.CategoryID)
		}
		s.afterMatch(ctx, match)

		var created *domain.ServiceRequest
		var assigned *domain.ServiceProvider
		err = s.store.Transaction(ctx, func(tx *repository.Store) error {
			p, err := s.lockEligible(ctx, tx, match.Provider.ID, crit)
			if err != nil {
				return err
			}
			req := &domain.ServiceRequest{
				ClientID:      in.ClientID,
				CategoryID:    in.CategoryID,
				ProviderID:    &p.ID,
				Status:        domain.RequestPending,
				Price:         p.Price,
				ScheduledDate: in.ScheduledDate,
				ScheduledTime: in.ScheduledTime,
				RejectedBy:    domain.ProviderSet{},
			}
			if err := tx.Requests.Create(ctx, req); err != nil {
				return err
			}
			created, assigned = req, p
			return nil
		})
		if errors.Is(err, matching.ErrIneligible) {
			s.loggerf("level=warn msg=assignment_retry op=submit attempt=%d provider_id=%s err=%q", attempt, match.Provider.ID, err.Error())
			continue
		}
		if err != nil {
			return nil, err
		}

		s.loggerf("level=info msg=request_submitted request_id=%s client_id=%s provider_id=%s scheduled=%t",
			created.ID, created.ClientID, assigned.ID, created.IsScheduled())
		s.publish(ctx, domain.EventRequestSubmitted, created, "", "", assigned.UserID)
		return created, nil
	}
	return nil, fmt.Errorf("%w: provider assignment kept failing", domain.ErrConflict)
}

// lockEligible locks the candidate row and re-checks every eligibility rule
// against the transaction's view of the store.
func (s *Service) lockEligible(ctx context.Context, tx *repository.Store, providerID string, crit matching.Criteria) (*domain.ServiceProvider, error) {
	p, err := tx.Providers.GetByIDForUpdate(ctx, providerID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: provider %s vanished", matching.ErrIneligible, providerID)
	}
	if err != nil {
		return nil, err
	}
	if err := s.matcherFor(tx).CheckEligible(ctx, p, crit); err != nil {
		return nil, err
	}
	return p, nil
}

func checkPendingFor(req *domain.ServiceRequest, providerID string) error {
	if req.Status != domain.RequestPending {
		return fmt.Errorf("%w: request %s is %s", domain.ErrInvalidState, req.ID, req.Status)
	}
	if !req.AssignedTo(providerID) {
		return fmt.Errorf("%w: request %s is not assigned to provider %s", domain.ErrInvalidState, req.ID, providerID)
	}
	return nil
}

// Accept moves a PENDING request to ACCEPTED on behalf of its assigned provider.
func (s *Service) Accept(ctx context.Context, requestID, providerID string) (*domain.ServiceRequest, error) {
	var out *domain.ServiceRequest
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		req, err := tx.Requests.GetByIDForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if err := checkPendingFor(req, providerID); err != nil {
			return err
		}
		version := req.Version
		req.Status = domain.RequestAccepted
		if err := tx.Requests.UpdateVersioned(ctx, req, version); err != nil {
			return err
		}
		out = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.loggerf("level=info msg=request_accepted request_id=%s provider_id=%s", out.ID, providerID)
	s.publish(ctx, domain.EventRequestAccepted, out, domain.RequestPending, "", s.providerUserID(ctx, providerID))
	return out, nil
}

// Reject records the provider's refusal and hands the request to the next best
// provider. With nobody left the request ends CANCELLED; that is a normal result.
func (s *Service) Reject(ctx context.Context, requestID, providerID string) (*domain.ServiceRequest, error) {
	for attempt := 1; attempt <= assignAttempts; attempt++ {
		seen, err := s.store.Requests.GetByID(ctx, requestID)
		if err != nil {
			return nil, err
		}
		if err := checkPendingFor(seen, providerID); err != nil {
			return nil, err
		}

		rejected := seen.RejectedBy.With(providerID)
		crit := matching.Criteria{
			CategoryID:    seen.CategoryID,
			ScheduledDate: seen.ScheduledDate,
			ScheduledTime: seen.ScheduledTime,
			Excluded:      rejected,
		}
		match, err := s.matcherFor(s.store).FindBestProvider(ctx, crit)
		if err != nil {
			return nil, err
		}
		s.afterMatch(ctx, match)

		var out *domain.ServiceRequest
		var next *domain.ServiceProvider
		err = s.store.Transaction(ctx, func(tx *repository.Store) error {
			req, err := tx.Requests.GetByIDForUpdate(ctx, requestID)
			if err != nil {
				return err
			}
			if req.Version != seen.Version {
				return errStale
			}

			req.RejectedBy = rejected
			if match.Assigned() {
				p, err := s.lockEligible(ctx, tx, match.Provider.ID, crit)
				if err != nil {
					return err
				}
				req.ProviderID = &p.ID
				next = p
			} else {
				reason := domain.CancelReasonNoProviders
				req.Status = domain.RequestCancelled
				req.CancelReason = &reason
			}

			if err := tx.Requests.UpdateVersioned(ctx, req, seen.Version); err != nil {
				return err
			}
			if err := s.settlePayment(ctx, tx, req, domain.RequestPending); err != nil {
				return err
			}
			out = req
			return nil
		})
		if errors.Is(err, errStale) || errors.Is(err, matching.ErrIneligible) || errors.Is(err, domain.ErrConflict) {
			s.loggerf("level=warn msg=assignment_retry op=reject attempt=%d request_id=%s err=%q", attempt, requestID, err.Error())
			continue
		}
		if err != nil {
			return nil, err
		}

		rejecterUserID := s.providerUserID(ctx, providerID)
		if next != nil {
			s.loggerf("level=info msg=request_reassigned request_id=%s from=%s to=%s rejected=%d",
				out.ID, providerID, next.ID, len(out.RejectedBy))
			s.publish(ctx, domain.EventRequestReassigned, out, domain.RequestPending, "", rejecterUserID, next.UserID)
		} else {
			s.loggerf("level=info msg=request_cancelled request_id=%s reason=%q rejected=%d",
				out.ID, domain.CancelReasonNoProviders, len(out.RejectedBy))
			s.publish(ctx, domain.EventRequestCancelled, out, domain.RequestPending, domain.CancelReasonNoProviders, rejecterUserID)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: request %s", domain.ErrConflict, requestID)
}

// Complete closes an ACCEPTED request with the client's rating. The rating,
// the provider's reputation and the payment record commit together.
func (s *Service) Complete(ctx context.Context, requestID string, rating int, feedback *string) (*domain.ServiceRequest, error) {
	if err := reputation.ValidateRating(rating); err != nil {
		return nil, err
	}
	feedback = blankToNil(feedback)

	var out *domain.ServiceRequest
	var payment *domain.Payment
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		req, err := tx.Requests.GetByIDForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != domain.RequestAccepted {
			return fmt.Errorf("%w: request %s is %s, want %s", domain.ErrInvalidState, req.ID, req.Status, domain.RequestAccepted)
		}

		version := req.Version
		req.Status = domain.RequestCompleted
		req.Rating = &rating
		req.Feedback = feedback
		if err := tx.Requests.UpdateVersioned(ctx, req, version); err != nil {
			return err
		}

		if err := reputation.NewTracker(tx.Providers).UpdateRating(ctx, *req.ProviderID, rating); err != nil {
			return err
		}

		payment, err = s.recordCompletionPayment(ctx, tx, req)
		if err != nil {
			return err
		}
		out = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	paymentID := "-"
	if payment != nil {
		paymentID = payment.ID
	}
	s.loggerf("level=info msg=request_completed request_id=%s provider_id=%s rating=%d payment=%s",
		out.ID, *out.ProviderID, rating, paymentID)
	s.publish(ctx, domain.EventRequestCompleted, out, domain.RequestAccepted, "", s.providerUserID(ctx, *out.ProviderID))
	return out, nil
}

// recordCompletionPayment stores the payment for requests not paid up front.
// Immediate requests are normally captured at submission through ConfirmPayment;
// such a payment is checked to belong to the provider who did the job.
func (s *Service) recordCompletionPayment(ctx context.Context, tx *repository.Store, req *domain.ServiceRequest) (*domain.Payment, error) {
	if s.ledger == nil {
		return nil, nil
	}
	led := s.ledger.WithStore(tx)
	existing, err := led.ReassignPayment(ctx, req.ID, *req.ProviderID)
	if err != nil || existing != nil {
		return existing, err
	}
	if req.Price <= 0 {
		s.loggerf("level=warn msg=payment_skipped request_id=%s reason=zero_price", req.ID)
		return nil, nil
	}
	return led.RecordPayment(ctx, req.ID, req.Price, led.Rates().StandardBps)
}

// Cancel ends a PENDING or ACCEPTED request. Cancelling a request that is
// already COMPLETED or CANCELLED returns it unchanged.
func (s *Service) Cancel(ctx context.Context, requestID string, reason string) (*domain.ServiceRequest, error) {
	reason = strings.TrimSpace(reason)

	var out *domain.ServiceRequest
	var from domain.RequestStatus
	changed := false
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		req, err := tx.Requests.GetByIDForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		out = req
		if req.Status.IsTerminal() {
			return nil
		}

		from = req.Status
		version := req.Version
		req.Status = domain.RequestCancelled
		if reason != "" {
			req.CancelReason = &reason
		}
		if err := tx.Requests.UpdateVersioned(ctx, req, version); err != nil {
			return err
		}
		if err := s.settlePayment(ctx, tx, req, from); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return out, nil
	}

	if from == domain.RequestAccepted {
		s.loggerf("level=warn msg=accepted_request_cancelled request_id=%s provider_id=%s reason=%q", out.ID, deref(out.ProviderID), reason)
	} else {
		s.loggerf("level=info msg=request_cancelled request_id=%s reason=%q", out.ID, reason)
	}
	providerUser := ""
	if out.ProviderID != nil {
		providerUser = s.providerUserID(ctx, *out.ProviderID)
	}
	s.publish(ctx, domain.EventRequestCancelled, out, from, reason, providerUser)
	return out, nil
}

// settlePayment keeps a prepaid request's payment in step with the transition
// just written in tx: it follows a reassignment and is refunded on cancellation.
func (s *Service) settlePayment(ctx context.Context, tx *repository.Store, req *domain.ServiceRequest, from domain.RequestStatus) error {
	if s.ledger == nil {
		return nil
	}
	led := s.ledger.WithStore(tx)
	if req.Status == domain.RequestCancelled {
		_, err := led.RefundCancelled(ctx, req.ID, from)
		return err
	}
	if req.ProviderID != nil {
		_, err := led.ReassignPayment(ctx, req.ID, *req.ProviderID)
		return err
	}
	return nil
}

func (s *Service) afterMatch(ctx context.Context, m matching.Match) {
	if s.matched != nil && m.Assigned() {
		s.matched(ctx, m.Provider.ID)
	}
}

func (s *Service) Get(ctx context.Context, requestID string) (*domain.ServiceRequest, error) {
	return s.store.Requests.GetByID(ctx, requestID)
}

func (s *Service) ListForClient(ctx context.Context, clientID string, status domain.RequestStatus, limit, offset int) ([]domain.ServiceRequest, error) {
	return s.store.Requests.List(ctx, repository.RequestFilter{ClientID: clientID, Status: status, Limit: limit, Offset: offset})
}

func (s *Service) ListForProvider(ctx context.Context, providerID string, status domain.RequestStatus, limit, offset int) ([]domain.ServiceRequest, error) {
	return s.store.Requests.List(ctx, repository.RequestFilter{ProviderID: providerID, Status: status, Limit: limit, Offset: offset})
}

func (s *Service) providerUserID(ctx context.Context, providerID string) string {
	p, err := s.store.Providers.GetByID(ctx, providerID)
	if err != nil {
		s.loggerf("level=warn msg=provider_lookup_failed provider_id=%s err=%q", providerID, err.Error())
		return ""
	}
	return p.UserID
}

func (s *Service) publish(ctx context.Context, typ string, req *domain.ServiceRequest, from domain.RequestStatus, reason string, providerUsers ...string) {
	recipients := []string{req.ClientID}
	for _, u := range providerUsers {
		if u != "" {
			recipients = append(recipients, u)
		}
	}
	s.events.Publish(ctx, domain.RequestEvent{
		Type:           typ,
		RequestID:      req.ID,
		Status:         req.Status,
		PreviousStatus: from,
		ClientID:       req.ClientID,
		ProviderID:     req.ProviderID,
		Reason:         reason,
		OccurredAt:     s.now(),
		Recipients:     recipients,
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
