package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/clinicrx/clinicrx/pkg/pagination"
)

func newTestService() *Service {
	return NewService(NewMemoryRepository())
}

func janeDoe() *Input {
	return &Input{Name: "Jane Doe", Age: 34, Gender: GenderFemale, Phone: "555-0100"}
}

func mustCreate(t *testing.T, svc *Service, doctorID uuid.UUID, in *Input) *Patient {
	t.Helper()
	p, err := svc.Create(context.Background(), doctorID, in)
	if err != nil {
		t.Fatalf("create %s: %v", in.Name, err)
	}
	return p
}

func TestCreate_AssignsOwnerAndID(t *testing.T) {
	svc := newTestService()
	doc := uuid.New()
	p := mustCreate(t, svc, doc, janeDoe())

	if p.ID == uuid.Nil {
		t.Error("expected an id")
	}
	if p.DoctorID != doc {
		t.Errorf("expected owner %s, got %s", doc, p.DoctorID)
	}
	if p.CreatedAt.IsZero() {
		t.Error("expected createdAt")
	}
}

func TestCreate_DuplicatePhoneSameDoctor(t *testing.T) {
	svc := newTestService()
	doc := uuid.New()
	mustCreate(t, svc, doc, janeDoe())

	other := janeDoe()
	other.Name = "John Roe"
	_, err := svc.Create(context.Background(), doc, other)
	if !errors.Is(err, ErrDuplicatePhone) {
		t.Fatalf("expected ErrDuplicatePhone, got %v", err)
	}
}

func TestCreate_SamePhoneDifferentDoctors(t *testing.T) {
	svc := newTestService()
	mustCreate(t, svc, uuid.New(), janeDoe())
	if _, err := svc.Create(context.Background(), uuid.New(), janeDoe()); err != nil {
		t.Fatalf("same phone under another doctor should succeed: %v", err)
	}
}

func TestOwnershipIsolation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	owner, intruder := uuid.New(), uuid.New()
	p := mustCreate(t, svc, owner, janeDoe())

	if _, err := svc.Get(ctx, intruder, p.ID); !errors.Is(err, ErrPatientNotFound) {
		t.Errorf("get: expected not found, got %v", err)
	}
	if _, err := svc.Update(ctx, intruder, p.ID, janeDoe()); !errors.Is(err, ErrPatientNotFound) {
		t.Errorf("update: expected not found, got %v", err)
	}
	if err := svc.Delete(ctx, intruder, p.ID); !errors.Is(err, ErrPatientNotFound) {
		t.Errorf("delete: expected not found, got %v", err)
	}
	list, total, err := svc.List(ctx, intruder, "", pagination.New(1, 10))
	if err != nil || total != 0 || len(list) != 0 {
		t.Errorf("list: expected nothing, got %d (%v)", total, err)
	}
	if _, err := svc.Get(ctx, owner, p.ID); err != nil {
		t.Errorf("owner should still see the patient: %v", err)
	}
}

func TestList_SearchAndOrder(t *testing.T) {
	svc := newTestService()
	doc := uuid.New()
	mustCreate(t, svc, doc, &Input{Name: "Alice Smith", Gender: GenderFemale, Phone: "111"})
	mustCreate(t, svc, doc, &Input{Name: "Bob Jones", Gender: GenderMale, Phone: "222", Email: "bob@SMITH.org"})
	mustCreate(t, svc, doc, &Input{Name: "Carol White", Gender: GenderFemale, Phone: "333"})

	list, total, err := svc.List(context.Background(), doc, "smith", pagination.New(1, 10))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(list) != 2 {
		t.Fatalf("expected 2 matches, got %d", total)
	}
	if list[0].Name != "Bob Jones" || list[1].Name != "Alice Smith" {
		t.Errorf("expected newest first, got %s, %s", list[0].Name, list[1].Name)
	}

	list, _, _ = svc.List(context.Background(), doc, "33", pagination.New(1, 10))
	if len(list) != 1 || list[0].Name != "Carol White" {
		t.Errorf("expected phone match, got %v", list)
	}
}

func TestList_Pagination(t *testing.T) {
	svc := newTestService()
	doc := uuid.New()
	for i := 0; i < 25; i++ {
		mustCreate(t, svc, doc, &Input{Name: fmt.Sprintf("P%02d", i), Gender: GenderOther, Phone: fmt.Sprintf("555-%04d", i)})
	}

	list, total, err := svc.List(context.Background(), doc, "", pagination.New(3, 10))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 25 {
		t.Errorf("expected total 25, got %d", total)
	}
	if len(list) != 5 {
		t.Fatalf("expected 5 on the last page, got %d", len(list))
	}
	if list[4].Name != "P00" {
		t.Errorf("expected the oldest patient last, got %s", list[4].Name)
	}
}

func TestUpdate_ReplacesFields(t *testing.T) {
	svc := newTestService()
	doc := uuid.New()
	created := mustCreate(t, svc, doc, &Input{Name: "Jane", Gender: GenderFemale, Phone: "1", Allergies: "penicillin"})

	updated, err := svc.Update(context.Background(), doc, created.ID, &Input{Name: "Jane D", Age: 35, Gender: GenderFemale, Phone: "2"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Allergies != "" {
		t.Errorf("update should replace every field, allergies = %q", updated.Allergies)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Error("createdAt must not change")
	}

	got, _ := svc.Get(context.Background(), doc, created.ID)
	if got.Phone != "2" || got.Age != 35 {
		t.Errorf("unexpected stored patient %+v", got)
	}
	// The old phone is free again.
	if _, err := svc.Create(context.Background(), doc, &Input{Name: "New", Gender: GenderMale, Phone: "1"}); err != nil {
		t.Errorf("released phone should be reusable: %v", err)
	}
}

func TestUpdate_DuplicatePhone(t *testing.T) {
	svc := newTestService()
	doc := uuid.New()
	mustCreate(t, svc, doc, &Input{Name: "A", Gender: GenderFemale, Phone: "1"})
	b := mustCreate(t, svc, doc, &Input{Name: "B", Gender: GenderMale, Phone: "2"})

	_, err := svc.Update(context.Background(), doc, b.ID, &Input{Name: "B", Gender: GenderMale, Phone: "1"})
	if !errors.Is(err, ErrDuplicatePhone) {
		t.Fatalf("expected ErrDuplicatePhone, got %v", err)
	}
	if _, err := svc.Update(context.Background(), doc, b.ID, &Input{Name: "B2", Gender: GenderMale, Phone: "2"}); err != nil {
		t.Errorf("keeping its own phone should succeed: %v", err)
	}
}

func TestDelete(t *testing.T) {
	svc := newTestService()
	doc := uuid.New()
	p := mustCreate(t, svc, doc, janeDoe())

	if err := svc.Delete(context.Background(), doc, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(context.Background(), doc, p.ID); !errors.Is(err, ErrPatientNotFound) {
		t.Errorf("expected not found after delete, got %v", err)
	}
	if err := svc.Delete(context.Background(), doc, p.ID); !errors.Is(err, ErrPatientNotFound) {
		t.Errorf("second delete: expected not found, got %v", err)
	}
}

func TestListQuery_SQL(t *testing.T) {
	doc := uuid.New()
	qb := listQuery(doc, ListParams{Search: "jane", Limit: 10})
	sql := qb.DataSQL()
	for _, want := range []string{
		"doctor_id = $1",
		"(name ILIKE $2 OR phone ILIKE $2 OR email ILIKE $2)",
		"ORDER BY created_at DESC",
		"LIMIT $3 OFFSET $4",
	} {
		if !strings.Contains(sql, want) {
			t.Errorf("expected %q in %s", want, sql)
		}
	}
}

func TestListFilter_Mongo(t *testing.T) {
	doc := uuid.New()
	f := listFilter(doc, "")
	if _, ok := f["$or"]; ok {
		t.Error("blank search should not add $or")
	}
	f = listFilter(doc, "a.b")
	or, ok := f["$or"].(bson.A)
	if !ok || len(or) != 3 {
		t.Fatalf("expected 3 alternatives, got %v", f["$or"])
	}
	if f["doctorId"] != doc.String() {
		t.Errorf("expected doctor scope, got %v", f["doctorId"])
	}
}
