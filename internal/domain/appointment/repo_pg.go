package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicrx/clinicrx/internal/platform/db"
)

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) Repository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const appointmentCols = `id, doctor_id, patient_name, doctor_name, date, time, status, notes,
	created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.DoctorID, &a.PatientName, &a.DoctorName, &a.Date, &a.Time,
		&a.Status, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointments (id, doctor_id, patient_name, doctor_name, date, time, status, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		a.ID, a.DoctorID, a.PatientName, a.DoctorName, a.Date, a.Time, a.Status, a.Notes,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, doctorID, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+appointmentCols+` FROM appointments WHERE id = $1 AND doctor_id = $2`, id, doctorID))
}

func listQuery(doctorID uuid.UUID, params ListParams) *db.SearchQuery {
	qb := db.NewSearchQuery("appointments", appointmentCols)
	qb.AddEq("doctor_id", doctorID)
	if params.Status != "" {
		qb.AddEq("status", params.Status)
	}
	if params.Date != "" {
		qb.AddEq("date", params.Date)
	}
	qb.AddContains(params.Search, "patient_name", "doctor_name")
	qb.OrderBy("date, time, created_at, id")
	return qb
}

func (r *appointmentRepoPG) List(ctx context.Context, doctorID uuid.UUID, params ListParams) ([]*Appointment, int, error) {
	qb := listQuery(doctorID, params)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, qb.CountSQL(), qb.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, qb.DataSQL(), qb.DataArgs(params.Limit, params.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	out := []*Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

// Update leaves a column unchanged when its patch field is absent (NULL).
func (r *appointmentRepoPG) Update(ctx context.Context, doctorID, id uuid.UUID, patch *Patch) (*Appointment, error) {
	a, err := scanAppointment(r.conn(ctx).QueryRow(ctx, `
		UPDATE appointments SET
			patient_name = COALESCE($3, patient_name),
			doctor_name  = COALESCE($4, doctor_name),
			date         = COALESCE($5, date),
			time         = COALESCE($6, time),
			status       = COALESCE($7, status),
			notes        = COALESCE($8, notes),
			updated_at   = NOW()
		WHERE id = $1 AND doctor_id = $2
		RETURNING `+appointmentCols,
		id, doctorID, patch.PatientName, patch.DoctorName, patch.Date, patch.Time, patch.Status, patch.Notes,
	))
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("update appointment: %w", err)
	}
	return a, nil
}

func (r *appointmentRepoPG) Delete(ctx context.Context, doctorID, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM appointments WHERE id = $1 AND doctor_id = $2`, id, doctorID)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}
