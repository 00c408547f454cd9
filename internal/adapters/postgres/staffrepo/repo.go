package staffrepo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/campus-logistics/delivery-tracker-api/internal/adapters/postgres"
	"github.com/campus-logistics/delivery-tracker-api/internal/domain"
	"github.com/campus-logistics/delivery-tracker-api/internal/ports/out/staffrepo"
)

// Repo is a Postgres implementation of staffrepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const selectStaff = `
	SELECT id, user_id, source_personnel_id, name, email, active, created_at, updated_at
	FROM staff
`

func (r *Repo) Create(ctx context.Context, m domain.StaffMember) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO staff (id, user_id, source_personnel_id, name, email, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		string(m.ID),
		userIDArg(m.UserID),
		userIDArg(m.SourcePersonnelID),
		m.Name,
		m.Email,
		m.Active,
		m.CreatedAt.UTC(),
		m.UpdatedAt.UTC(),
	)
	if err != nil {
		if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode {
			return staffrepo.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Update writes name, email and active. The user link, import source and createdAt are
// immutable.
func (r *Repo) Update(ctx context.Context, m domain.StaffMember) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE staff
		SET name = $2, email = $3, active = $4, updated_at = $5
		WHERE id = $1
	`,
		string(m.ID),
		m.Name,
		m.Email,
		m.Active,
		m.UpdatedAt.UTC(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return staffrepo.ErrNotFound
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.StaffID) (domain.StaffMember, error) {
	if r.pool == nil {
		return domain.StaffMember{}, errors.New("nil postgres pool")
	}
	return scanOne(r.pool.QueryRow(ctx, selectStaff+` WHERE id = $1`, string(id)))
}

func (r *Repo) GetByUserID(ctx context.Context, userID domain.UserID) (domain.StaffMember, error) {
	if r.pool == nil {
		return domain.StaffMember{}, errors.New("nil postgres pool")
	}
	return scanOne(r.pool.QueryRow(ctx, selectStaff+` WHERE user_id = $1`, string(userID)))
}

func (r *Repo) List(ctx context.Context, includeInactive bool) ([]domain.StaffMember, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	rows, err := r.pool.Query(ctx, selectStaff+`
		WHERE ($1 OR active)
		ORDER BY created_at ASC, id ASC
	`, includeInactive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.StaffMember
	for rows.Next() {
		m, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func userIDArg(id *domain.UserID) *string {
	if id == nil {
		return nil
	}
	s := string(*id)
	return &s
}

func scan(row pgx.Row) (domain.StaffMember, error) {
	var (
		m        domain.StaffMember
		id       string
		userID   *string
		sourceID *string
	)
	if err := row.Scan(&id, &userID, &sourceID, &m.Name, &m.Email, &m.Active, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return domain.StaffMember{}, err
	}
	m.ID = domain.StaffID(id)
	if userID != nil {
		uid := domain.UserID(*userID)
		m.UserID = &uid
	}
	if sourceID != nil {
		sid := domain.UserID(*sourceID)
		m.SourcePersonnelID = &sid
	}
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	return m, nil
}

func scanOne(row pgx.Row) (domain.StaffMember, error) {
	m, err := scan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.StaffMember{}, staffrepo.ErrNotFound
		}
		return domain.StaffMember{}, err
	}
	return m, nil
}
