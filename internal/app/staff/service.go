package staff

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campus-logistics/delivery-tracker-api/internal/app/authz"
	"github.com/campus-logistics/delivery-tracker-api/internal/app/session"
	"github.com/campus-logistics/delivery-tracker-api/internal/domain"
	clockport "github.com/campus-logistics/delivery-tracker-api/internal/ports/out/clock"
	"github.com/campus-logistics/delivery-tracker-api/internal/ports/out/deliveryrepo"
	"github.com/campus-logistics/delivery-tracker-api/internal/ports/out/staffrepo"
	"github.com/campus-logistics/delivery-tracker-api/internal/ports/out/userrepo"
)

// Accounts creates login accounts for new personnel.
type Accounts interface {
	CreateAccount(ctx context.Context, in session.AccountInput) (domain.User, error)
}

type Service struct {
	repo       staffrepo.Repository
	deliveries deliveryrepo.Repository
	users      userrepo.Repository
	accounts   Accounts
	clk        clockport.Clock
	log        *zap.Logger

	newStaffID func() domain.StaffID
}

func NewService(repo staffrepo.Repository, deliveries deliveryrepo.Repository, users userrepo.Repository, accounts Accounts, clk clockport.Clock, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:       repo,
		deliveries: deliveries,
		users:      users,
		accounts:   accounts,
		clk:        clk,
		log:        log,
		newStaffID: func() domain.StaffID {
			return domain.StaffID(uuid.NewString())
		},
	}
}

// List returns the roster in creation order with stats derived from delivery history.
func (s *Service) List(ctx context.Context, actor domain.User, includeInactive bool) ([]domain.RosterEntry, error) {
	if err := authz.Require(actor, authz.OpManageStaff); err != nil {
		return nil, err
	}
	ms, err := s.repo.List(ctx, includeInactive)
	if err != nil {
		return nil, err
	}
	ds, err := s.deliveries.List(ctx, deliveryrepo.Filter{})
	if err != nil {
		return nil, err
	}
	if includeInactive {
		return domain.ComputeRosterStats(ms, ds), nil
	}
	all, err := s.repo.List(ctx, true)
	if err != nil {
		return nil, err
	}
	claimed := domain.ClaimedPersonnel(all)
	out := make([]domain.RosterEntry, 0, len(ms))
	for _, m := range ms {
		out = append(out, domain.RosterEntry{StaffMember: m, Stats: domain.ComputeStaffStats(m, claimed, ds)})
	}
	return out, nil
}

func (s *Service) Add(ctx context.Context, actor domain.User, in AddInput) (domain.RosterEntry, error) {
	if err := authz.Require(actor, authz.OpManageStaff); err != nil {
		return domain.RosterEntry{}, err
	}
	name := domain.NormalizeHumanName(in.Name)
	if name == "" {
		return domain.RosterEntry{}, validation("name", "must be non-empty")
	}
	email := domain.NormalizeEmail(in.Email)
	if email != "" {
		if err := domain.ValidateEmail(email); err != nil {
			return domain.RosterEntry{}, validation("email", err.Error())
		}
	}

	now := s.clk.Now()
	m := domain.StaffMember{
		ID:        s.newStaffID(),
		Name:      name,
		Email:     email,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.Password != nil && strings.TrimSpace(*in.Password) != "" {
		if email == "" {
			return domain.RosterEntry{}, validation("email", "required when creating a login")
		}
		u, err := s.accounts.CreateAccount(ctx, session.AccountInput{
			Email:    email,
			Password: *in.Password,
			Name:     name,
			Role:     domain.RolePersonnel,
		})
		if err != nil {
			return domain.RosterEntry{}, err
		}
		m.UserID = &u.ID
	}
	if err := s.repo.Create(ctx, m); err != nil {
		if m.UserID != nil {
			s.dropAccount(ctx, *m.UserID)
		}
		return domain.RosterEntry{}, err
	}
	s.log.Info("staff member added", zap.String("staffId", string(m.ID)), zap.Bool("linked", m.UserID != nil))
	return domain.RosterEntry{StaffMember: m}, nil
}

// Update edits roster details. Name and email changes are copied to the linked login, which
// keeps its email, so new assignments and logins carry them.
func (s *Service) Update(ctx context.Context, actor domain.User, id domain.StaffID, in UpdateInput) (domain.RosterEntry, error) {
	if err := authz.Require(actor, authz.OpManageStaff); err != nil {
		return domain.RosterEntry{}, err
	}
	m, err := s.get(ctx, id)
	if err != nil {
		return domain.RosterEntry{}, err
	}

	if in.Name.IsSpecified() {
		if in.Name.IsNull() {
			return domain.RosterEntry{}, validation("name", "cannot be null")
		}
		name := domain.NormalizeHumanName(in.Name.Value())
		if name == "" {
			return domain.RosterEntry{}, validation("name", "must be non-empty")
		}
		m.Name = name
	}
	if in.Email.IsSpecified() {
		if in.Email.IsNull() {
			if m.UserID != nil {
				return domain.RosterEntry{}, validation("email", "required while linked to a login")
			}
			m.Email = ""
		} else {
			email := domain.NormalizeEmail(in.Email.Value())
			if err := domain.ValidateEmail(email); err != nil {
				return domain.RosterEntry{}, validation("email", err.Error())
			}
			m.Email = email
		}
	}

	// The login goes first: a taken email must leave the roster untouched.
	if m.UserID != nil && (in.Name.IsSpecified() || in.Email.IsSpecified()) {
		if err := s.syncUser(ctx, *m.UserID, m.Name, m.Email); err != nil {
			return domain.RosterEntry{}, err
		}
	}
	m.UpdatedAt = clockport.After(s.clk, m.UpdatedAt)
	if err := s.repo.Update(ctx, m); err != nil {
		return domain.RosterEntry{}, err
	}
	return s.entry(ctx, m)
}

func (s *Service) SetActive(ctx context.Context, actor domain.User, id domain.StaffID, active bool) (domain.RosterEntry, error) {
	if err := authz.Require(actor, authz.OpManageStaff); err != nil {
		return domain.RosterEntry{}, err
	}
	m, err := s.get(ctx, id)
	if err != nil {
		return domain.RosterEntry{}, err
	}
	if m.Active != active {
		m.Active = active
		m.UpdatedAt = clockport.After(s.clk, m.UpdatedAt)
		if err := s.repo.Update(ctx, m); err != nil {
			return domain.RosterEntry{}, err
		}
		s.log.Info("staff member activation changed", zap.String("staffId", string(m.ID)), zap.Bool("active", active))
	}
	return s.entry(ctx, m)
}

// ImportFromHistory adds a roster entry for every personnel seen on a delivery that no
// roster entry accounts for yet. Personnel with a login are linked to it.
func (s *Service) ImportFromHistory(ctx context.Context, actor domain.User) ([]domain.RosterEntry, error) {
	if err := authz.Require(actor, authz.OpManageStaff); err != nil {
		return nil, err
	}
	ms, err := s.repo.List(ctx, true)
	if err != nil {
		return nil, err
	}
	ds, err := s.deliveries.List(ctx, deliveryrepo.Filter{})
	if err != nil {
		return nil, err
	}

	var added []domain.StaffMember
	claimed := domain.ClaimedPersonnel(ms)
	covered := func(d domain.Delivery) bool {
		for _, group := range [][]domain.StaffMember{ms, added} {
			for _, m := range group {
				if m.MatchesDelivery(d, claimed) {
					return true
				}
			}
		}
		return false
	}

	for _, d := range ds {
		if d.PersonnelID == nil || d.PersonnelName == nil || covered(d) {
			continue
		}
		now := clockport.After(s.clk, lastCreated(ms, added))
		pid := *d.PersonnelID
		m := domain.StaffMember{
			ID:        s.newStaffID(),
			Name:      *d.PersonnelName,
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if u, err := s.users.GetByID(ctx, pid); err == nil && u.Role == domain.RolePersonnel {
			m.UserID = &pid
			m.Email = u.Email
			m.Name = u.Name
		} else if err != nil && !errors.Is(err, userrepo.ErrNotFound) {
			return nil, err
		} else {
			m.SourcePersonnelID = &pid
		}
		if err := s.repo.Create(ctx, m); err != nil {
			return nil, err
		}
		added = append(added, m)
		claimed[pid] = true
	}

	out := make([]domain.RosterEntry, 0, len(added))
	for _, m := range added {
		out = append(out, domain.RosterEntry{StaffMember: m, Stats: domain.ComputeStaffStats(m, claimed, ds)})
	}
	if len(out) > 0 {
		s.log.Info("staff imported from delivery history", zap.Int("count", len(out)))
	}
	return out, nil
}

// EnsureForUser returns the roster entry linked to a personnel account, creating an active
// one when missing.
func (s *Service) EnsureForUser(ctx context.Context, u domain.User) (domain.StaffMember, error) {
	m, err := s.repo.GetByUserID(ctx, u.ID)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, staffrepo.ErrNotFound) {
		return domain.StaffMember{}, err
	}
	now := s.clk.Now()
	uid := u.ID
	m = domain.StaffMember{
		ID:        s.newStaffID(),
		UserID:    &uid,
		Name:      u.Name,
		Email:     u.Email,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, m); err != nil {
		if errors.Is(err, staffrepo.ErrAlreadyExists) {
			return s.repo.GetByUserID(ctx, u.ID)
		}
		return domain.StaffMember{}, err
	}
	return m, nil
}

// IsActivePersonnel reports whether the account has an active roster entry.
func (s *Service) IsActivePersonnel(ctx context.Context, id domain.UserID) (bool, error) {
	m, err := s.repo.GetByUserID(ctx, id)
	if err != nil {
		if errors.Is(err, staffrepo.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return m.Active, nil
}

func (s *Service) get(ctx context.Context, id domain.StaffID) (domain.StaffMember, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, staffrepo.ErrNotFound) {
			return domain.StaffMember{}, staffNotFound(string(id))
		}
		return domain.StaffMember{}, err
	}
	return m, nil
}

func (s *Service) entry(ctx context.Context, m domain.StaffMember) (domain.RosterEntry, error) {
	ms, err := s.repo.List(ctx, true)
	if err != nil {
		return domain.RosterEntry{}, err
	}
	ds, err := s.deliveries.List(ctx, deliveryrepo.Filter{})
	if err != nil {
		return domain.RosterEntry{}, err
	}
	return domain.RosterEntry{StaffMember: m, Stats: domain.ComputeStaffStats(m, domain.ClaimedPersonnel(ms), ds)}, nil
}

// syncUser copies roster name and email onto the linked login.
func (s *Service) syncUser(ctx context.Context, id domain.UserID, name, email string) error {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return nil
		}
		return err
	}
	if u.Name == name && (email == "" || u.Email == email) {
		return nil
	}
	u.Name = name
	if email != "" {
		u.Email = email
	}
	u.UpdatedAt = clockport.After(s.clk, u.UpdatedAt)
	if err := s.users.Update(ctx, u); err != nil {
		if errors.Is(err, userrepo.ErrEmailTaken) {
			return emailTaken(email)
		}
		return err
	}
	return nil
}

// dropAccount removes a login created for a roster row that could not be stored.
func (s *Service) dropAccount(ctx context.Context, id domain.UserID) {
	if err := s.users.Delete(ctx, id); err != nil && !errors.Is(err, userrepo.ErrNotFound) {
		s.log.Error("orphaned personnel account", zap.String("userId", string(id)), zap.Error(err))
	}
}

// lastCreated keeps imported entries in discovery order when the clock does not move.
func lastCreated(groups ...[]domain.StaffMember) (last time.Time) {
	for _, g := range groups {
		for _, m := range g {
			if m.CreatedAt.After(last) {
				last = m.CreatedAt
			}
		}
	}
	return last
}
