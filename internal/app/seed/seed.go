// Package seed loads the demo accounts and deliveries.
package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/campus-logistics/delivery-tracker-api/internal/domain"
	"github.com/campus-logistics/delivery-tracker-api/internal/platform/auth/password"
	clockport "github.com/campus-logistics/delivery-tracker-api/internal/ports/out/clock"
	"github.com/campus-logistics/delivery-tracker-api/internal/ports/out/deliveryrepo"
	"github.com/campus-logistics/delivery-tracker-api/internal/ports/out/userrepo"
)

// Account is a demo login.
type Account struct {
	ID       domain.UserID
	Email    string
	Password string
	Name     string
	Role     domain.Role
}

var Accounts = []Account{
	{ID: "1", Email: "student@campus.edu", Password: "student123", Name: "John Student", Role: domain.RoleStudent},
	{ID: "2", Email: "personnel@campus.edu", Password: "personnel123", Name: "Jane Personnel", Role: domain.RolePersonnel},
	{ID: "3", Email: "admin@campus.edu", Password: "admin123", Name: "Admin User", Role: domain.RoleAdmin},
}

// Roster links personnel accounts to the staff roster.
type Roster interface {
	EnsureForUser(ctx context.Context, u domain.User) (domain.StaffMember, error)
}

type Deps struct {
	Users      userrepo.Repository
	Deliveries deliveryrepo.Repository
	Roster     Roster
	Hasher     password.Hasher
	Clock      clockport.Clock
	Logger     *zap.Logger
}

// Result counts what a Run actually wrote.
type Result struct {
	Users      int
	Deliveries int
}

// Run writes the demo data. Records that already exist are left untouched, so Run is safe
// to call on every start.
func Run(ctx context.Context, deps Deps) (Result, error) {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	var res Result
	now := deps.Clock.Now()

	users := make(map[domain.Role]domain.User, len(Accounts))
	for _, a := range Accounts {
		u, created, err := ensureUser(ctx, deps, a, now)
		if err != nil {
			return res, err
		}
		if created {
			res.Users++
		}
		users[a.Role] = u
		if u.Role == domain.RolePersonnel && deps.Roster != nil {
			if _, err := deps.Roster.EnsureForUser(ctx, u); err != nil {
				return res, fmt.Errorf("seed roster %s: %w", u.Email, err)
			}
		}
	}

	student, jane := users[domain.RoleStudent], users[domain.RolePersonnel]

	created, err := ensureDelivery(ctx, deps.Deliveries, enRoute(student, jane, now))
	if err != nil {
		return res, err
	}
	if created {
		res.Deliveries++
	}
	created, err = ensureDelivery(ctx, deps.Deliveries, requested(student, now))
	if err != nil {
		return res, err
	}
	if created {
		res.Deliveries++
	}

	log.Info("demo data seeded", zap.Int("users", res.Users), zap.Int("deliveries", res.Deliveries))
	return res, nil
}

func ensureUser(ctx context.Context, deps Deps, a Account, now time.Time) (domain.User, bool, error) {
	if existing, err := deps.Users.GetByID(ctx, a.ID); err == nil {
		return existing.Public(), false, nil
	} else if !errors.Is(err, userrepo.ErrNotFound) {
		return domain.User{}, false, err
	}
	hash, err := deps.Hasher.Hash(a.Password)
	if err != nil {
		return domain.User{}, false, fmt.Errorf("hash %s: %w", a.Email, err)
	}
	u := userrepo.User{
		ID:           a.ID,
		Email:        domain.NormalizeEmail(a.Email),
		Name:         a.Name,
		Role:         a.Role,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := deps.Users.Create(ctx, u); err != nil {
		return domain.User{}, false, fmt.Errorf("seed user %s: %w", a.Email, err)
	}
	return u.Public(), true, nil
}

// history is a delivery and the status steps that brought it to its seeded state.
type history struct {
	delivery domain.Delivery
	steps    []step
}

type step struct {
	to    domain.DeliveryStatus
	at    time.Time
	actor domain.User
}

func enRoute(student, jane domain.User, now time.Time) history {
	notes := "Fragile package"
	return history{
		delivery: domain.Delivery{
			ID:          "1",
			StudentID:   student.ID,
			StudentName: student.Name,
			Source:      "Main Gate",
			Destination: "Bethel Hostel",
			Status:      domain.StatusRequested,
			RequestedAt: now.Add(-time.Hour),
			UpdatedAt:   now.Add(-time.Hour),
			Notes:       &notes,
		},
		steps: []step{
			{to: domain.StatusAccepted, at: now.Add(-50 * time.Minute), actor: jane},
			{to: domain.StatusPickedUp, at: now.Add(-40 * time.Minute), actor: jane},
			{to: domain.StatusEnRoute, at: now.Add(-30 * time.Minute), actor: jane},
		},
	}
}

func requested(student domain.User, now time.Time) history {
	return history{
		delivery: domain.Delivery{
			ID:          "2",
			StudentID:   student.ID,
			StudentName: student.Name,
			Source:      "MSQ Gate",
			Destination: "Computer Science Department",
			Status:      domain.StatusRequested,
			RequestedAt: now.Add(-10 * time.Minute),
			UpdatedAt:   now.Add(-10 * time.Minute),
		},
	}
}

func ensureDelivery(ctx context.Context, repo deliveryrepo.Repository, h history) (bool, error) {
	if _, err := repo.Get(ctx, h.delivery.ID); err == nil {
		return false, nil
	} else if !errors.Is(err, deliveryrepo.ErrNotFound) {
		return false, err
	}

	d := h.delivery
	created := domain.StatusEvent{
		DeliveryID: d.ID,
		To:         d.Status,
		ActorID:    d.StudentID,
		ActorName:  d.StudentName,
		At:         d.RequestedAt,
	}
	if err := repo.Create(ctx, d, created); err != nil {
		if errors.Is(err, deliveryrepo.ErrAlreadyExists) {
			return false, nil
		}
		return false, fmt.Errorf("seed delivery %s: %w", d.ID, err)
	}

	for _, st := range h.steps {
		next := d
		next.Status = st.to
		next.UpdatedAt = st.at
		if st.to.RequiresPersonnel() && next.PersonnelID == nil {
			pid, name := st.actor.ID, st.actor.Name
			next.PersonnelID = &pid
			next.PersonnelName = &name
		}
		ev := domain.StatusEvent{
			DeliveryID: d.ID,
			From:       d.Status,
			To:         st.to,
			ActorID:    st.actor.ID,
			ActorName:  st.actor.Name,
			At:         st.at,
		}
		if err := repo.UpdateIfStatus(ctx, next, d.Status, ev); err != nil {
			return false, fmt.Errorf("seed delivery %s -> %s: %w", d.ID, st.to, err)
		}
		d = next
	}
	return true, nil
}
