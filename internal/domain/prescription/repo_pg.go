package prescription

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicrx/clinicrx/internal/platform/db"
)

type prescriptionRepoPG struct{ pool *pgxpool.Pool }

func NewPrescriptionRepoPG(pool *pgxpool.Pool) Repository {
	return &prescriptionRepoPG{pool: pool}
}

func (r *prescriptionRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const prescriptionCols = `id, prescription_number, doctor_id, patient_id, patient, diagnosis,
	lifestyle, vitals, tests, medications, created_at, updated_at`

// sections holds the JSONB encodings of a prescription's sections in
// column order.
type sections struct {
	patient, diagnosis, lifestyle, vitals, tests, medications []byte
}

func encodeSections(p *Prescription) (*sections, error) {
	var s sections
	var err error
	for _, f := range []struct {
		dst *[]byte
		v   interface{}
	}{
		{&s.patient, p.Patient},
		{&s.diagnosis, p.Diagnosis},
		{&s.lifestyle, p.Lifestyle},
		{&s.vitals, p.Vitals},
		{&s.tests, p.Tests},
		{&s.medications, p.Medications},
	} {
		if *f.dst, err = json.Marshal(f.v); err != nil {
			return nil, fmt.Errorf("encode prescription: %w", err)
		}
	}
	return &s, nil
}

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	var s sections
	err := row.Scan(&p.ID, &p.PrescriptionNumber, &p.DoctorID, &p.PatientID,
		&s.patient, &s.diagnosis, &s.lifestyle, &s.vitals, &s.tests, &s.medications,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrPrescriptionNotFound
		}
		return nil, err
	}
	for _, f := range []struct {
		src []byte
		dst interface{}
	}{
		{s.patient, &p.Patient},
		{s.diagnosis, &p.Diagnosis},
		{s.lifestyle, &p.Lifestyle},
		{s.vitals, &p.Vitals},
		{s.tests, &p.Tests},
		{s.medications, &p.Medications},
	} {
		if err := json.Unmarshal(f.src, f.dst); err != nil {
			return nil, fmt.Errorf("decode prescription %s: %w", p.ID, err)
		}
	}
	return &p, nil
}

func (r *prescriptionRepoPG) Create(ctx context.Context, p *Prescription) error {
	s, err := encodeSections(p)
	if err != nil {
		return err
	}
	err = r.conn(ctx).QueryRow(ctx, `
		INSERT INTO prescriptions (id, prescription_number, doctor_id, patient_id, patient,
			diagnosis, lifestyle, vitals, tests, medications)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		p.ID, p.PrescriptionNumber, p.DoctorID, p.PatientID, s.patient,
		s.diagnosis, s.lifestyle, s.vitals, s.tests, s.medications,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert prescription: %w", err)
	}
	return nil
}

func (r *prescriptionRepoPG) GetByID(ctx context.Context, doctorID, id uuid.UUID) (*Prescription, error) {
	return scanPrescription(r.conn(ctx).QueryRow(ctx,
		`SELECT `+prescriptionCols+` FROM prescriptions WHERE id = $1 AND doctor_id = $2`, id, doctorID))
}

func listQuery(doctorID uuid.UUID, params ListParams) *db.SearchQuery {
	qb := db.NewSearchQuery("prescriptions", prescriptionCols)
	qb.AddEq("doctor_id", doctorID)
	if params.PatientID != nil {
		qb.AddEq("patient_id", *params.PatientID)
	}
	if term := strings.TrimSpace(params.Search); term != "" {
		i := qb.Idx()
		qb.Add(fmt.Sprintf(`(patient->>'name' ILIKE $%d OR prescription_number ILIKE $%d
			OR EXISTS (SELECT 1 FROM jsonb_array_elements(diagnosis) d WHERE d->>'primaryDiagnosis' ILIKE $%d))`,
			i, i, i), db.ContainsPattern(term))
	}
	qb.OrderBy("created_at DESC, id")
	return qb
}

func (r *prescriptionRepoPG) List(ctx context.Context, doctorID uuid.UUID, params ListParams) ([]*Prescription, int, error) {
	qb := listQuery(doctorID, params)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, qb.CountSQL(), qb.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count prescriptions: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, qb.DataSQL(), qb.DataArgs(params.Limit, params.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list prescriptions: %w", err)
	}
	defer rows.Close()

	out := []*Prescription{}
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (r *prescriptionRepoPG) Update(ctx context.Context, p *Prescription) error {
	s, err := encodeSections(p)
	if err != nil {
		return err
	}
	err = r.conn(ctx).QueryRow(ctx, `
		UPDATE prescriptions SET patient_id=$3, patient=$4, diagnosis=$5, lifestyle=$6,
			vitals=$7, tests=$8, medications=$9, updated_at=NOW()
		WHERE id = $1 AND doctor_id = $2
		RETURNING prescription_number, created_at, updated_at`,
		p.ID, p.DoctorID, p.PatientID, s.patient, s.diagnosis, s.lifestyle,
		s.vitals, s.tests, s.medications,
	).Scan(&p.PrescriptionNumber, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return ErrPrescriptionNotFound
		}
		return fmt.Errorf("update prescription: %w", err)
	}
	return nil
}

func (r *prescriptionRepoPG) Delete(ctx context.Context, doctorID, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM prescriptions WHERE id = $1 AND doctor_id = $2`, id, doctorID)
	if err != nil {
		return fmt.Errorf("delete prescription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPrescriptionNotFound
	}
	return nil
}

// -- Suggestions --

type suggestionRepoPG struct{ pool *pgxpool.Pool }

func NewSuggestionRepoPG(pool *pgxpool.Pool) SuggestionRepository {
	return &suggestionRepoPG{pool: pool}
}

// asArray yields expr when it is a JSON array and an empty array otherwise,
// so missing or null lists unwind to nothing.
func asArray(expr string) string {
	return fmt.Sprintf("CASE WHEN jsonb_typeof(%[1]s) = 'array' THEN %[1]s ELSE '[]'::jsonb END", expr)
}

// suggestionSources select one (v, created_at) row per occurrence for each
// kind. Symptoms are made distinct within a diagnosis entry first.
var suggestionSources = map[Kind]string{
	KindDiagnoses: `SELECT btrim(d.entry->>'primaryDiagnosis') AS v, p.created_at
		FROM prescriptions p
		CROSS JOIN LATERAL jsonb_array_elements(` + asArray("p.diagnosis") + `) AS d(entry)
		WHERE p.doctor_id = $1`,
	KindSymptoms: `SELECT DISTINCT p.id, d.ord, btrim(s.sym) AS v, p.created_at
		FROM prescriptions p
		CROSS JOIN LATERAL jsonb_array_elements(` + asArray("p.diagnosis") + `) WITH ORDINALITY AS d(entry, ord)
		CROSS JOIN LATERAL jsonb_array_elements_text(` + asArray("d.entry->'symptoms'") + `) AS s(sym)
		WHERE p.doctor_id = $1`,
	KindTests: `SELECT btrim(t.name) AS v, p.created_at
		FROM prescriptions p
		CROSS JOIN LATERAL jsonb_array_elements_text(` + asArray("p.tests->'recommendedTests'") + `) AS t(name)
		WHERE p.doctor_id = $1`,
	KindMedicines: `SELECT btrim(m.entry->>'name') AS v, p.created_at
		FROM prescriptions p
		CROSS JOIN LATERAL jsonb_array_elements(` + asArray("p.medications") + `) AS m(entry)
		WHERE p.doctor_id = $1`,
}

// suggestionSQL groups the source rows of kind by value. Ties on count and
// recency fall back to byte order of the value so the result is total.
func suggestionSQL(kind Kind, limit int) (string, error) {
	src, ok := suggestionSources[kind]
	if !ok {
		return "", ErrUnknownKind
	}
	sql := `SELECT v, COUNT(*) AS count, MAX(created_at) AS last_used
		FROM (` + src + `) e
		WHERE v <> ''
		GROUP BY v
		ORDER BY count DESC, last_used DESC, v COLLATE "C" ASC`
	if limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", limit)
	}
	return sql, nil
}

func (r *suggestionRepoPG) Suggestions(ctx context.Context, doctorID uuid.UUID, kind Kind, limit int) ([]Suggestion, error) {
	sql, err := suggestionSQL(kind, limit)
	if err != nil {
		return nil, err
	}
	rows, err := db.Conn(ctx, r.pool).Query(ctx, sql, doctorID)
	if err != nil {
		return nil, fmt.Errorf("saved %s: %w", kind, err)
	}
	defer rows.Close()

	out := []Suggestion{}
	for rows.Next() {
		var s Suggestion
		if err := rows.Scan(&s.Value, &s.Count, &s.LastUsed); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *suggestionRepoPG) UpsertSavedSymptom(ctx context.Context, doctorID uuid.UUID, symptom string, usedAt time.Time) (*SavedSymptom, error) {
	var s SavedSymptom
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO saved_symptoms (doctor_id, symptom, count, last_used)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (doctor_id, symptom)
		DO UPDATE SET count = saved_symptoms.count + 1, last_used = EXCLUDED.last_used
		RETURNING doctor_id, symptom, count, last_used`,
		doctorID, symptom, usedAt,
	).Scan(&s.DoctorID, &s.Symptom, &s.Count, &s.LastUsed)
	if err != nil {
		return nil, fmt.Errorf("upsert saved symptom: %w", err)
	}
	return &s, nil
}

func (r *suggestionRepoPG) ListSavedSymptoms(ctx context.Context, doctorID uuid.UUID) ([]SavedSymptom, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT doctor_id, symptom, count, last_used FROM saved_symptoms
		WHERE doctor_id = $1
		ORDER BY count DESC, last_used DESC, symptom COLLATE "C" ASC`, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list saved symptoms: %w", err)
	}
	defer rows.Close()

	out := []SavedSymptom{}
	for rows.Next() {
		var s SavedSymptom
		if err := rows.Scan(&s.DoctorID, &s.Symptom, &s.Count, &s.LastUsed); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
