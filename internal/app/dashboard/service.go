package dashboard

import (
	"context"
	"fmt"

	"github.com/campus-logistics/delivery-tracker-api/internal/app/authz"
	"github.com/campus-logistics/delivery-tracker-api/internal/app/deliveries"
	"github.com/campus-logistics/delivery-tracker-api/internal/domain"
)

// Deliveries returns the deliveries visible to the actor.
type Deliveries interface {
	List(ctx context.Context, actor domain.User, f deliveries.ListFilter) ([]domain.Delivery, error)
}

// Roster returns the staff roster with stats.
type Roster interface {
	List(ctx context.Context, actor domain.User, includeInactive bool) ([]domain.RosterEntry, error)
}

type Options struct {
	// Status narrows the admin delivery table.
	Status *domain.DeliveryStatus
}

// View is the role-dispatched dashboard. Exactly one of the projections is set.
type View struct {
	Role      domain.Role
	User      domain.User
	Student   *StudentView
	Personnel *PersonnelView
	Admin     *AdminView
}

type Service struct {
	deliveries Deliveries
	roster     Roster
}

func NewService(d Deliveries, r Roster) *Service {
	return &Service{deliveries: d, roster: r}
}

func (s *Service) Build(ctx context.Context, actor domain.User, opts Options) (View, error) {
	ds, err := s.deliveries.List(ctx, actor, deliveries.ListFilter{})
	if err != nil {
		return View{}, err
	}
	v := View{Role: actor.Role, User: actor}
	switch actor.Role {
	case domain.RoleStudent:
		sv := Student(actor, ds)
		v.Student = &sv
	case domain.RolePersonnel:
		pv := Personnel(actor, ds)
		v.Personnel = &pv
	case domain.RoleAdmin:
		roster, err := s.roster.List(ctx, actor, true)
		if err != nil {
			return View{}, err
		}
		av := Admin(ds, opts.Status, roster)
		v.Admin = &av
	default:
		return View{}, authz.Forbidden(fmt.Sprintf("role %q has no dashboard", actor.Role))
	}
	return v, nil
}
