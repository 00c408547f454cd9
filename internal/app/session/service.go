package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campus-logistics/delivery-tracker-api/internal/domain"
	"github.com/campus-logistics/delivery-tracker-api/internal/platform/auth/password"
	"github.com/campus-logistics/delivery-tracker-api/internal/platform/auth/sessiontoken"
	"github.com/campus-logistics/delivery-tracker-api/internal/platform/metrics"
	clockport "github.com/campus-logistics/delivery-tracker-api/internal/ports/out/clock"
	"github.com/campus-logistics/delivery-tracker-api/internal/ports/out/sessionstore"
	"github.com/campus-logistics/delivery-tracker-api/internal/ports/out/userrepo"
)

// DefaultTTL is used when Options.TTL is zero.
const DefaultTTL = 24 * time.Hour

type Options struct {
	TTL     time.Duration
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

type Service struct {
	users    userrepo.Repository
	sessions sessionstore.Store
	tokens   *sessiontoken.Signer
	hasher   password.Hasher
	clk      clockport.Clock

	ttl     time.Duration
	log     *zap.Logger
	metrics *metrics.Metrics

	newUserID    func() domain.UserID
	newSessionID func() domain.SessionID
}

func NewService(users userrepo.Repository, sessions sessionstore.Store, tokens *sessiontoken.Signer, hasher password.Hasher, clk clockport.Clock, opts Options) *Service {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		hasher:   hasher,
		clk:      clk,
		ttl:      ttl,
		log:      log,
		metrics:  opts.Metrics,
		newUserID: func() domain.UserID {
			return domain.UserID(uuid.NewString())
		},
		newSessionID: func() domain.SessionID {
			return domain.SessionID(uuid.NewString())
		},
	}
}

// Result is returned by Login and Register.
type Result struct {
	Token   string
	Session domain.Session
}

type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

// AccountInput describes a login account created outside of self-registration.
type AccountInput struct {
	Email    string
	Password string
	Name     string
	Role     domain.Role
}

func (s *Service) Login(ctx context.Context, email, plain string) (Result, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			s.metrics.AuthAttempt("login", false)
			return Result{}, invalidCredentials()
		}
		return Result{}, err
	}
	ok, err := s.hasher.Matches(u.PasswordHash, plain)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		s.metrics.AuthAttempt("login", false)
		return Result{}, invalidCredentials()
	}

	res, err := s.open(ctx, u.Public())
	if err != nil {
		return Result{}, err
	}
	s.metrics.AuthAttempt("login", true)
	s.log.Info("user logged in", zap.String("userId", string(u.ID)), zap.String("role", string(u.Role)))
	return res, nil
}

// Register creates a student account and opens a session for it.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Result, error) {
	u, err := s.CreateAccount(ctx, AccountInput{
		Email:    in.Email,
		Password: in.Password,
		Name:     in.Name,
		Role:     domain.RoleStudent,
	})
	if err != nil {
		s.metrics.AuthAttempt("register", false)
		return Result{}, err
	}
	res, err := s.open(ctx, u)
	if err != nil {
		return Result{}, err
	}
	s.metrics.AuthAttempt("register", true)
	s.log.Info("user registered", zap.String("userId", string(u.ID)))
	return res, nil
}

// CreateAccount validates and stores a new login account without opening a session.
func (s *Service) CreateAccount(ctx context.Context, in AccountInput) (domain.User, error) {
	email := domain.NormalizeEmail(in.Email)
	if err := domain.ValidateEmail(email); err != nil {
		return domain.User{}, validation("email", err.Error())
	}
	name := domain.NormalizeHumanName(in.Name)
	if name == "" {
		return domain.User{}, validation("name", "must be non-empty")
	}
	if strings.TrimSpace(in.Password) == "" {
		return domain.User{}, validation("password", "must be non-empty")
	}
	if !in.Role.Valid() {
		return domain.User{}, validation("role", "must be student, personnel or admin")
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return domain.User{}, emailAlreadyExists()
	} else if !errors.Is(err, userrepo.ErrNotFound) {
		return domain.User{}, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return domain.User{}, err
	}
	now := s.clk.Now()
	u := userrepo.User{
		ID:           s.newUserID(),
		Email:        email,
		Name:         name,
		Role:         in.Role,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, userrepo.ErrEmailTaken) {
			return domain.User{}, emailAlreadyExists()
		}
		return domain.User{}, err
	}
	return u.Public(), nil
}

// Logout removes the session named by token. Logging out twice is not an error; a token
// that fails verification is.
func (s *Service) Logout(ctx context.Context, token string) error {
	sid, _, err := s.tokens.Verify(token)
	if err != nil {
		return unauthorized("invalid session token")
	}
	return s.sessions.Delete(ctx, sid)
}

// Authenticate resolves a token to its live session. The session user is reloaded from the
// account so renames and email changes apply without a new login.
func (s *Service) Authenticate(ctx context.Context, token string) (domain.Session, error) {
	sid, uid, err := s.tokens.Verify(token)
	if err != nil {
		return domain.Session{}, unauthorized("invalid session token")
	}
	sess, err := s.sessions.Get(ctx, sid)
	if err != nil {
		if errors.Is(err, sessionstore.ErrNotFound) {
			return domain.Session{}, unauthorized("session expired or logged out")
		}
		return domain.Session{}, err
	}
	if sess.User.ID != uid {
		return domain.Session{}, unauthorized("invalid session token")
	}
	u, err := s.users.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return domain.Session{}, unauthorized("account no longer exists")
		}
		return domain.Session{}, err
	}
	sess.User = u.Public()
	return sess, nil
}

// Current returns the user bound to token.
func (s *Service) Current(ctx context.Context, token string) (domain.User, error) {
	sess, err := s.Authenticate(ctx, token)
	if err != nil {
		return domain.User{}, err
	}
	return sess.User, nil
}

func (s *Service) open(ctx context.Context, u domain.User) (Result, error) {
	now := s.clk.Now()
	sess := domain.Session{
		ID:        s.newSessionID(),
		User:      u,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.Put(ctx, sess); err != nil {
		return Result{}, err
	}
	tok, err := s.tokens.Sign(sess)
	if err != nil {
		return Result{}, err
	}
	return Result{Token: tok, Session: sess}, nil
}
