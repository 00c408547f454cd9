package userrepo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/campus-logistics/delivery-tracker-api/internal/adapters/postgres"
	"github.com/campus-logistics/delivery-tracker-api/internal/domain"
	"github.com/campus-logistics/delivery-tracker-api/internal/ports/out/userrepo"
)

// Repo is a Postgres implementation of userrepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const selectUser = `
	SELECT id, email, name, role, password_hash, created_at, updated_at
	FROM users
`

func mapUniqueViolation(err error) error {
	if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode {
		switch pe.ConstraintName {
		case "users_email_unique":
			return userrepo.ErrEmailTaken
		case "users_pkey":
			return userrepo.ErrAlreadyExists
		}
	}
	return err
}

func (r *Repo) Create(ctx context.Context, u userrepo.User) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, email, name, role, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		string(u.ID),
		domain.NormalizeEmail(u.Email),
		u.Name,
		string(u.Role),
		u.PasswordHash,
		u.CreatedAt.UTC(),
		u.UpdatedAt.UTC(),
	)
	if err != nil {
		return mapUniqueViolation(err)
	}
	return nil
}

func (r *Repo) Update(ctx context.Context, u userrepo.User) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET email = $2, name = $3, role = $4, password_hash = $5, updated_at = $6
		WHERE id = $1
	`,
		string(u.ID),
		domain.NormalizeEmail(u.Email),
		u.Name,
		string(u.Role),
		u.PasswordHash,
		u.UpdatedAt.UTC(),
	)
	if err != nil {
		return mapUniqueViolation(err)
	}
	if tag.RowsAffected() == 0 {
		return userrepo.ErrNotFound
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, id domain.UserID) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, string(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return userrepo.ErrNotFound
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.UserID) (userrepo.User, error) {
	if r.pool == nil {
		return userrepo.User{}, errors.New("nil postgres pool")
	}
	return scanOne(r.pool.QueryRow(ctx, selectUser+` WHERE id = $1`, string(id)))
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (userrepo.User, error) {
	if r.pool == nil {
		return userrepo.User{}, errors.New("nil postgres pool")
	}
	return scanOne(r.pool.QueryRow(ctx, selectUser+` WHERE email = $1`, domain.NormalizeEmail(email)))
}

func (r *Repo) List(ctx context.Context, role domain.Role) ([]userrepo.User, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	rows, err := r.pool.Query(ctx, selectUser+`
		WHERE ($1 = '' OR role = $1)
		ORDER BY lower(name) ASC, id ASC
	`, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []userrepo.User
	for rows.Next() {
		u, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func scan(row pgx.Row) (userrepo.User, error) {
	var (
		u    userrepo.User
		id   string
		role string
	)
	if err := row.Scan(&id, &u.Email, &u.Name, &role, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return userrepo.User{}, err
	}
	u.ID = domain.UserID(id)
	u.Role = domain.Role(role)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, nil
}

func scanOne(row pgx.Row) (userrepo.User, error) {
	u, err := scan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return userrepo.User{}, userrepo.ErrNotFound
		}
		return userrepo.User{}, err
	}
	return u, nil
}
