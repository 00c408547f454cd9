package deliveryrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/campus-logistics/delivery-tracker-api/internal/adapters/postgres"
	"github.com/campus-logistics/delivery-tracker-api/internal/domain"
	"github.com/campus-logistics/delivery-tracker-api/internal/ports/out/deliveryrepo"
)

// Repo is a Postgres implementation of deliveryrepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const selectDelivery = `
	SELECT id, student_id, student_name, personnel_id, personnel_name,
	       source, destination, status, notes, contact_phone, requested_at, updated_at
	FROM deliveries
`

func (r *Repo) Create(ctx context.Context, d domain.Delivery, ev domain.StatusEvent) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO deliveries (
				id, student_id, student_name, personnel_id, personnel_name,
				source, destination, status, notes, contact_phone, requested_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`,
			string(d.ID),
			string(d.StudentID),
			d.StudentName,
			userIDArg(d.PersonnelID),
			d.PersonnelName,
			d.Source,
			d.Destination,
			string(d.Status),
			d.Notes,
			d.ContactPhone,
			d.RequestedAt.UTC(),
			d.UpdatedAt.UTC(),
		)
		if err != nil {
			if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode {
				return deliveryrepo.ErrAlreadyExists
			}
			return err
		}
		return insertEvent(ctx, tx, d.ID, ev)
	})
}

func (r *Repo) UpdateIfStatus(ctx context.Context, d domain.Delivery, expected domain.DeliveryStatus, ev domain.StatusEvent) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE deliveries
			SET personnel_id = $3,
			    personnel_name = $4,
			    source = $5,
			    destination = $6,
			    status = $7,
			    notes = $8,
			    contact_phone = $9,
			    updated_at = $10
			WHERE id = $1 AND status = $2
		`,
			string(d.ID),
			string(expected),
			userIDArg(d.PersonnelID),
			d.PersonnelName,
			d.Source,
			d.Destination,
			string(d.Status),
			d.Notes,
			d.ContactPhone,
			d.UpdatedAt.UTC(),
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM deliveries WHERE id = $1)`, string(d.ID)).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return deliveryrepo.ErrNotFound
			}
			return deliveryrepo.ErrStatusConflict
		}
		return insertEvent(ctx, tx, d.ID, ev)
	})
}

func insertEvent(ctx context.Context, tx pgx.Tx, id domain.DeliveryID, ev domain.StatusEvent) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO delivery_events (delivery_id, from_status, to_status, actor_id, actor_name, override, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		string(id),
		string(ev.From),
		string(ev.To),
		string(ev.ActorID),
		ev.ActorName,
		ev.Override,
		ev.At.UTC(),
	)
	return err
}

func (r *Repo) Get(ctx context.Context, id domain.DeliveryID) (domain.Delivery, error) {
	if r.pool == nil {
		return domain.Delivery{}, errors.New("nil postgres pool")
	}
	d, err := scan(r.pool.QueryRow(ctx, selectDelivery+` WHERE id = $1`, string(id)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Delivery{}, deliveryrepo.ErrNotFound
		}
		return domain.Delivery{}, err
	}
	return d, nil
}

func (r *Repo) List(ctx context.Context, f deliveryrepo.Filter) ([]domain.Delivery, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	var (
		where []string
		args  []any
	)
	if f.StudentID != nil {
		args = append(args, string(*f.StudentID))
		where = append(where, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if f.PersonnelID != nil {
		args = append(args, string(*f.PersonnelID))
		where = append(where, fmt.Sprintf("personnel_id = $%d", len(args)))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, 0, len(f.Statuses))
		for _, s := range f.Statuses {
			statuses = append(statuses, string(s))
		}
		args = append(args, statuses)
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	q := selectDelivery
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY requested_at ASC, id ASC"

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Delivery
	for rows.Next() {
		d, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *Repo) ListEvents(ctx context.Context, id domain.DeliveryID) ([]domain.StatusEvent, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	var out []domain.StatusEvent
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM deliveries WHERE id = $1)`, string(id)).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return deliveryrepo.ErrNotFound
		}
		rows, err := tx.Query(ctx, `
			SELECT from_status, to_status, actor_id, actor_name, override, at
			FROM delivery_events
			WHERE delivery_id = $1
			ORDER BY at ASC, seq ASC
		`, string(id))
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				ev             domain.StatusEvent
				from, to, actr string
			)
			if err := rows.Scan(&from, &to, &actr, &ev.ActorName, &ev.Override, &ev.At); err != nil {
				return err
			}
			ev.DeliveryID = id
			ev.From = domain.DeliveryStatus(from)
			ev.To = domain.DeliveryStatus(to)
			ev.ActorID = domain.UserID(actr)
			ev.At = ev.At.UTC()
			out = append(out, ev)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func userIDArg(id *domain.UserID) *string {
	if id == nil {
		return nil
	}
	s := string(*id)
	return &s
}

func scan(row pgx.Row) (domain.Delivery, error) {
	var (
		d                     domain.Delivery
		id, studentID, status string
		personnelID           *string
	)
	if err := row.Scan(
		&id,
		&studentID,
		&d.StudentName,
		&personnelID,
		&d.PersonnelName,
		&d.Source,
		&d.Destination,
		&status,
		&d.Notes,
		&d.ContactPhone,
		&d.RequestedAt,
		&d.UpdatedAt,
	); err != nil {
		return domain.Delivery{}, err
	}
	d.ID = domain.DeliveryID(id)
	d.StudentID = domain.UserID(studentID)
	if personnelID != nil {
		pid := domain.UserID(*personnelID)
		d.PersonnelID = &pid
	}
	d.Status = domain.DeliveryStatus(status)
	d.RequestedAt = d.RequestedAt.UTC()
	d.UpdatedAt = d.UpdatedAt.UTC()
	return d, nil
}
