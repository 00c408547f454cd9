package deliveries

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campus-logistics/delivery-tracker-api/internal/app/authz"
	"github.com/campus-logistics/delivery-tracker-api/internal/domain"
	"github.com/campus-logistics/delivery-tracker-api/internal/platform/metrics"
	clockport "github.com/campus-logistics/delivery-tracker-api/internal/ports/out/clock"
	"github.com/campus-logistics/delivery-tracker-api/internal/ports/out/deliveryrepo"
	"github.com/campus-logistics/delivery-tracker-api/internal/ports/out/userrepo"
)

// Roster answers whether a personnel account may take new deliveries.
type Roster interface {
	IsActivePersonnel(ctx context.Context, id domain.UserID) (bool, error)
}

type Options struct {
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

type Service struct {
	repo   deliveryrepo.Repository
	users  userrepo.Repository
	roster Roster
	clk    clockport.Clock

	log     *zap.Logger
	metrics *metrics.Metrics

	newDeliveryID func() domain.DeliveryID
}

func NewService(repo deliveryrepo.Repository, users userrepo.Repository, roster Roster, clk clockport.Clock, opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:    repo,
		users:   users,
		roster:  roster,
		clk:     clk,
		log:     log,
		metrics: opts.Metrics,
		newDeliveryID: func() domain.DeliveryID {
			return domain.DeliveryID(uuid.NewString())
		},
	}
}

type CreateInput struct {
	Source       string
	Destination  string
	Notes        *string
	ContactPhone *string
}

type UpdateStatusInput struct {
	Status      domain.DeliveryStatus
	PersonnelID *domain.UserID
	// Override skips the transition check. Admin only.
	Override bool
}

// ListFilter narrows List beyond the caller's visibility.
type ListFilter struct {
	StudentID   *domain.UserID
	PersonnelID *domain.UserID
	Statuses    []domain.DeliveryStatus
}

func (s *Service) Create(ctx context.Context, actor domain.User, in CreateInput) (domain.Delivery, error) {
	if err := authz.Require(actor, authz.OpCreateDelivery); err != nil {
		return domain.Delivery{}, err
	}
	source := domain.NormalizePlace(in.Source)
	if source == "" {
		return domain.Delivery{}, validation("source", "must be non-empty")
	}
	destination := domain.NormalizePlace(in.Destination)
	if destination == "" {
		return domain.Delivery{}, validation("destination", "must be non-empty")
	}

	now := s.clk.Now()
	d := domain.Delivery{
		ID:           s.newDeliveryID(),
		StudentID:    actor.ID,
		StudentName:  actor.Name,
		Source:       source,
		Destination:  destination,
		Status:       domain.StatusRequested,
		RequestedAt:  now,
		UpdatedAt:    now,
		Notes:        trimOptional(in.Notes),
		ContactPhone: trimOptional(in.ContactPhone),
	}
	ev := domain.StatusEvent{
		DeliveryID: d.ID,
		To:         domain.StatusRequested,
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		At:         now,
	}
	if err := s.repo.Create(ctx, d, ev); err != nil {
		return domain.Delivery{}, err
	}
	s.metrics.DeliveryCreated()
	s.log.Info("delivery requested",
		zap.String("deliveryId", string(d.ID)),
		zap.String("studentId", string(d.StudentID)),
	)
	return d, nil
}

// Accept assigns personnelID and moves a Requested delivery to Accepted. Personnel may only
// accept for themselves; an empty personnelID means the actor.
func (s *Service) Accept(ctx context.Context, actor domain.User, id domain.DeliveryID, personnelID domain.UserID) (domain.Delivery, error) {
	if err := authz.Require(actor, authz.OpAcceptDelivery); err != nil {
		return domain.Delivery{}, err
	}
	if personnelID == "" {
		if actor.Role != domain.RolePersonnel {
			return domain.Delivery{}, validation("personnelId", "required when accepting on behalf of personnel")
		}
		personnelID = actor.ID
	}
	if actor.Role == domain.RolePersonnel && personnelID != actor.ID {
		return domain.Delivery{}, authz.Forbidden("personnel may only accept deliveries for themselves")
	}

	cur, err := s.load(ctx, id)
	if err != nil {
		return domain.Delivery{}, err
	}
	if err := domain.CheckTransition(cur.Status, domain.StatusAccepted); err != nil {
		return domain.Delivery{}, invalidTransition(err)
	}
	name, err := s.resolvePersonnel(ctx, personnelID)
	if err != nil {
		return domain.Delivery{}, err
	}

	next := cur
	next.Status = domain.StatusAccepted
	next.PersonnelID = &personnelID
	next.PersonnelName = &name
	return s.commit(ctx, actor, cur, next, false)
}

// Reject moves a Requested delivery to Rejected. Rejecting an already rejected delivery
// returns it unchanged.
func (s *Service) Reject(ctx context.Context, actor domain.User, id domain.DeliveryID) (domain.Delivery, error) {
	if err := authz.Require(actor, authz.OpRejectDelivery); err != nil {
		return domain.Delivery{}, err
	}
	cur, err := s.load(ctx, id)
	if err != nil {
		return domain.Delivery{}, err
	}
	if cur.Status == domain.StatusRejected {
		return cur, nil
	}
	if err := domain.CheckTransition(cur.Status, domain.StatusRejected); err != nil {
		return domain.Delivery{}, invalidTransition(err)
	}
	next := cur
	next.Status = domain.StatusRejected
	return s.commit(ctx, actor, cur, next, false)
}

// Advance moves an assigned delivery one step along Accepted, Picked Up, En Route, Delivered.
func (s *Service) Advance(ctx context.Context, actor domain.User, id domain.DeliveryID) (domain.Delivery, error) {
	if err := authz.Require(actor, authz.OpAdvanceDelivery); err != nil {
		return domain.Delivery{}, err
	}
	cur, err := s.load(ctx, id)
	if err != nil {
		return domain.Delivery{}, err
	}
	if actor.Role == domain.RolePersonnel && !cur.IsAssignedTo(actor.ID) {
		return domain.Delivery{}, authz.Forbidden("delivery is not assigned to you")
	}
	to, ok := cur.Status.Next()
	if !ok {
		return domain.Delivery{}, invalidTransition(&domain.TransitionError{From: cur.Status, To: cur.Status})
	}
	next := cur
	next.Status = to
	return s.commit(ctx, actor, cur, next, false)
}

// UpdateStatus is the generic status write. Without Override the move must pass
// domain.CheckTransition.
func (s *Service) UpdateStatus(ctx context.Context, actor domain.User, id domain.DeliveryID, in UpdateStatusInput) (domain.Delivery, error) {
	if err := authz.Require(actor, authz.OpUpdateStatus); err != nil {
		return domain.Delivery{}, err
	}
	if in.Override {
		if err := authz.Require(actor, authz.OpOverrideStatus); err != nil {
			return domain.Delivery{}, err
		}
	}
	if _, ok := domain.ParseDeliveryStatus(string(in.Status)); !ok {
		return domain.Delivery{}, validation("status", "unknown status "+string(in.Status))
	}

	cur, err := s.load(ctx, id)
	if err != nil {
		return domain.Delivery{}, err
	}
	if actor.Role == domain.RolePersonnel && cur.Status != domain.StatusRequested && !cur.IsAssignedTo(actor.ID) {
		return domain.Delivery{}, authz.Forbidden("delivery is not assigned to you")
	}
	if !in.Override {
		if err := domain.CheckTransition(cur.Status, in.Status); err != nil {
			return domain.Delivery{}, invalidTransition(err)
		}
	}

	next := cur
	next.Status = in.Status
	if in.PersonnelID != nil {
		if in.Status == domain.StatusRequested {
			return domain.Delivery{}, validation("personnelId", "must be empty when status is Requested")
		}
		if actor.Role == domain.RolePersonnel && *in.PersonnelID != actor.ID {
			return domain.Delivery{}, authz.Forbidden("personnel may only assign themselves")
		}
		name, err := s.resolvePersonnel(ctx, *in.PersonnelID)
		if err != nil {
			return domain.Delivery{}, err
		}
		pid := *in.PersonnelID
		next.PersonnelID = &pid
		next.PersonnelName = &name
	}
	if in.Status == domain.StatusRequested {
		next.PersonnelID = nil
		next.PersonnelName = nil
	}
	if in.Status.RequiresPersonnel() && next.PersonnelID == nil {
		return domain.Delivery{}, validation("personnelId", "required for status "+string(in.Status))
	}
	return s.commit(ctx, actor, cur, next, in.Override)
}

func (s *Service) Get(ctx context.Context, actor domain.User, id domain.DeliveryID) (domain.Delivery, error) {
	d, err := s.load(ctx, id)
	if err != nil {
		return domain.Delivery{}, err
	}
	if !authz.CanView(actor, d) {
		return domain.Delivery{}, notFound(id)
	}
	return d, nil
}

func (s *Service) History(ctx context.Context, actor domain.User, id domain.DeliveryID) ([]domain.StatusEvent, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	evs, err := s.repo.ListEvents(ctx, id)
	if err != nil {
		if errors.Is(err, deliveryrepo.ErrNotFound) {
			return nil, notFound(id)
		}
		return nil, err
	}
	return evs, nil
}

// List returns the deliveries visible to actor that also pass f, ordered by requestedAt.
func (s *Service) List(ctx context.Context, actor domain.User, f ListFilter) ([]domain.Delivery, error) {
	if err := authz.Require(actor, authz.OpViewOwn); err != nil {
		return nil, err
	}
	rf := deliveryrepo.Filter{
		StudentID:   f.StudentID,
		PersonnelID: f.PersonnelID,
		Statuses:    f.Statuses,
	}
	if actor.Role == domain.RoleStudent {
		id := actor.ID
		rf.StudentID = &id
	}
	ds, err := s.repo.List(ctx, rf)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Delivery, 0, len(ds))
	for _, d := range ds {
		if authz.CanView(actor, d) {
			out = append(out, d)
		}
	}
	return out, nil
}

// All returns every delivery. Admin only.
func (s *Service) All(ctx context.Context, actor domain.User) ([]domain.Delivery, error) {
	if err := authz.Require(actor, authz.OpViewAll); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, deliveryrepo.Filter{})
}

func (s *Service) Stats(ctx context.Context, actor domain.User) (domain.DeliveryStats, error) {
	if err := authz.Require(actor, authz.OpViewStats); err != nil {
		return domain.DeliveryStats{}, err
	}
	ds, err := s.repo.List(ctx, deliveryrepo.Filter{})
	if err != nil {
		return domain.DeliveryStats{}, err
	}
	return domain.ComputeDeliveryStats(ds), nil
}

func (s *Service) load(ctx context.Context, id domain.DeliveryID) (domain.Delivery, error) {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, deliveryrepo.ErrNotFound) {
			return domain.Delivery{}, notFound(id)
		}
		return domain.Delivery{}, err
	}
	return d, nil
}

// resolvePersonnel returns the display name of an active personnel account.
func (s *Service) resolvePersonnel(ctx context.Context, id domain.UserID) (string, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return "", personnelNotFound(id)
		}
		return "", err
	}
	if u.Role != domain.RolePersonnel {
		return "", personnelNotFound(id)
	}
	active, err := s.roster.IsActivePersonnel(ctx, id)
	if err != nil {
		return "", err
	}
	if !active {
		return "", personnelInactive(id)
	}
	return u.Name, nil
}

// commit writes next if cur's status is still current and records the event.
func (s *Service) commit(ctx context.Context, actor domain.User, cur, next domain.Delivery, override bool) (domain.Delivery, error) {
	next.UpdatedAt = clockport.After(s.clk, cur.UpdatedAt)
	ev := domain.StatusEvent{
		DeliveryID: cur.ID,
		From:       cur.Status,
		To:         next.Status,
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		Override:   override,
		At:         next.UpdatedAt,
	}
	if err := s.repo.UpdateIfStatus(ctx, next, cur.Status, ev); err != nil {
		switch {
		case errors.Is(err, deliveryrepo.ErrStatusConflict):
			return domain.Delivery{}, conflict(cur.ID)
		case errors.Is(err, deliveryrepo.ErrNotFound):
			return domain.Delivery{}, notFound(cur.ID)
		}
		return domain.Delivery{}, err
	}
	s.metrics.DeliveryTransition(string(next.Status))
	fields := []zap.Field{
		zap.String("deliveryId", string(cur.ID)),
		zap.String("from", string(cur.Status)),
		zap.String("to", string(next.Status)),
		zap.String("actorId", string(actor.ID)),
	}
	if override {
		s.log.Warn("delivery status overridden", fields...)
	} else {
		s.log.Info("delivery status changed", fields...)
	}
	return next, nil
}

func trimOptional(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}
