package patient

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicrx/clinicrx/internal/platform/db"
)

const phoneConstraint = "patients_doctor_phone_key"

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) Repository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const patientCols = `id, doctor_id, name, age, gender, phone, email, address, blood_group,
	allergies, comorbidities, smoking_history, occupational_exposure, insurance_id,
	created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.DoctorID, &p.Name, &p.Age, &p.Gender, &p.Phone, &p.Email,
		&p.Address, &p.BloodGroup, &p.Allergies, &p.Comorbidities, &p.SmokingHistory,
		&p.OccupationalExposure, &p.InsuranceID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (id, doctor_id, name, age, gender, phone, email, address,
			blood_group, allergies, comorbidities, smoking_history, occupational_exposure, insurance_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING created_at, updated_at`,
		p.ID, p.DoctorID, p.Name, p.Age, p.Gender, p.Phone, p.Email, p.Address,
		p.BloodGroup, p.Allergies, p.Comorbidities, p.SmokingHistory, p.OccupationalExposure, p.InsuranceID,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, phoneConstraint) {
			return ErrDuplicatePhone
		}
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (r *patientRepoPG) GetByID(ctx context.Context, doctorID, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE id = $1 AND doctor_id = $2`, id, doctorID))
}

func listQuery(doctorID uuid.UUID, params ListParams) *db.SearchQuery {
	qb := db.NewSearchQuery("patients", patientCols)
	qb.AddEq("doctor_id", doctorID)
	qb.AddContains(params.Search, "name", "phone", "email")
	qb.OrderBy("created_at DESC, id")
	return qb
}

func (r *patientRepoPG) List(ctx context.Context, doctorID uuid.UUID, params ListParams) ([]*Patient, int, error) {
	qb := listQuery(doctorID, params)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, qb.CountSQL(), qb.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, qb.DataSQL(), qb.DataArgs(params.Limit, params.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	patients := []*Patient{}
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		patients = append(patients, p)
	}
	return patients, total, rows.Err()
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE patients SET name=$3, age=$4, gender=$5, phone=$6, email=$7, address=$8,
			blood_group=$9, allergies=$10, comorbidities=$11, smoking_history=$12,
			occupational_exposure=$13, insurance_id=$14, updated_at=NOW()
		WHERE id = $1 AND doctor_id = $2
		RETURNING created_at, updated_at`,
		p.ID, p.DoctorID, p.Name, p.Age, p.Gender, p.Phone, p.Email, p.Address,
		p.BloodGroup, p.Allergies, p.Comorbidities, p.SmokingHistory, p.OccupationalExposure, p.InsuranceID,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return ErrPatientNotFound
		}
		if db.IsUniqueViolation(err, phoneConstraint) {
			return ErrDuplicatePhone
		}
		return fmt.Errorf("update patient: %w", err)
	}
	return nil
}

func (r *patientRepoPG) Delete(ctx context.Context, doctorID, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patients WHERE id = $1 AND doctor_id = $2`, id, doctorID)
	if err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}
