package prescription

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicrx/clinicrx/internal/platform/auth"
	"github.com/clinicrx/clinicrx/internal/platform/validation"
)

func newTestHandler() (*Handler, *testEnv, *echo.Echo) {
	e := echo.New()
	e.Validator = validation.New()
	env := newTestEnv()
	return NewHandler(env.svc), env, e
}

func asDoctor(req *http.Request, doctorID uuid.UUID) *http.Request {
	claims := &auth.Claims{Role: auth.RoleDoctor}
	claims.Subject = doctorID.String()
	return req.WithContext(auth.WithClaims(context.Background(), claims))
}

func newContext(e *echo.Echo, method, target, body string, doctorID uuid.UUID) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(asDoctor(req, doctorID), rec), rec
}

func expectHTTPError(t *testing.T, err error, code int) {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T (%v)", err, err)
	}
	if he.Code != code {
		t.Errorf("expected %d, got %d (%v)", code, he.Code, he.Message)
	}
}

const (
	patientJSON    = `"patient":{"name":"Jane Doe","age":34,"gender":"female"}`
	diagnosisJSON  = `"diagnosis":[{"primaryDiagnosis":"Migraine","symptoms":["Headache"],"severity":"mild"}]`
	sectionsJSON   = `"lifestyle":{},"vitals":{"bloodPressure":"120/80"},"tests":{"recommendedTests":["MRI"]}`
	medicationJSON = `"medications":[{"name":"Ibuprofen","dosage":"400mg"}]`
)

func body(parts ...string) string {
	return "{" + strings.Join(parts, ",") + "}"
}

var fullBody = body(patientJSON, diagnosisJSON, sectionsJSON, medicationJSON)

func createViaHandler(t *testing.T, h *Handler, e *echo.Echo, doc uuid.UUID, payload string) Prescription {
	t.Helper()
	c, rec := newContext(e, http.MethodPost, "/api/prescriptions", payload, doc)
	if err := h.Create(c); err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var p Prescription
	json.Unmarshal(rec.Body.Bytes(), &p)
	return p
}

func TestHandler_Create(t *testing.T) {
	h, _, e := newTestHandler()
	doc := uuid.New()
	p := createViaHandler(t, h, e, doc, fullBody)

	if p.PrescriptionNumber != "RX-0001" {
		t.Errorf("expected RX-0001, got %s", p.PrescriptionNumber)
	}
	if p.Patient.Name != "Jane Doe" || p.Vitals.BloodPressure != "120/80" {
		t.Errorf("sections not echoed: %+v", p)
	}
	if p.Doctor == nil || p.Doctor.ID != doc {
		t.Errorf("expected doctor view, got %+v", p.Doctor)
	}
}

func TestHandler_Create_Validation(t *testing.T) {
	h, _, e := newTestHandler()
	cases := map[string]string{
		body(diagnosisJSON, sectionsJSON, medicationJSON):                                "patient is required",
		body(patientJSON, sectionsJSON, medicationJSON):                                  "diagnosis is required",
		body(patientJSON, `"diagnosis":[]`, sectionsJSON, medicationJSON):                "diagnosis must have at least one entry",
		body(patientJSON, `"diagnosis":[{"symptoms":[]}]`, sectionsJSON, medicationJSON): "diagnosis[0].primaryDiagnosis is required",
		body(patientJSON, diagnosisJSON, `"vitals":{},"tests":{}`, medicationJSON):       "lifestyle is required",
		body(patientJSON, diagnosisJSON, `"lifestyle":{},"tests":{}`, medicationJSON):    "vitals is required",
		body(patientJSON, diagnosisJSON, `"lifestyle":{},"vitals":{}`, medicationJSON):   "tests is required",
		body(patientJSON, diagnosisJSON, sectionsJSON, `"medications":[]`):               "medications must have at least one entry",
		body(patientJSON, diagnosisJSON, sectionsJSON, `"medications":[{"dosage":"1"}]`): "medications[0].name is required",
	}
	for payload, want := range cases {
		c, _ := newContext(e, http.MethodPost, "/api/prescriptions", payload, uuid.New())
		err := h.Create(c)
		expectHTTPError(t, err, http.StatusBadRequest)
		if he, ok := err.(*echo.HTTPError); ok && he.Message != want {
			t.Errorf("%s: expected %q, got %v", payload, want, he.Message)
		}
	}
}

func TestHandler_Create_UnknownPatient(t *testing.T) {
	h, _, e := newTestHandler()
	payload := body(`"patientId":"`+uuid.NewString()+`"`, patientJSON, diagnosisJSON, sectionsJSON, medicationJSON)
	c, _ := newContext(e, http.MethodPost, "/api/prescriptions", payload, uuid.New())
	expectHTTPError(t, h.Create(c), http.StatusNotFound)
}

func TestHandler_List(t *testing.T) {
	h, env, e := newTestHandler()
	doc := uuid.New()
	pid := uuid.New()
	env.patients.owned[pid] = doc
	createViaHandler(t, h, e, doc, fullBody)
	createViaHandler(t, h, e, doc, body(`"patientId":"`+pid.String()+`"`, patientJSON, diagnosisJSON, sectionsJSON, medicationJSON))

	c, rec := newContext(e, http.MethodGet, "/api/prescriptions?patientId="+pid.String()+"&limit=5", "", doc)
	if err := h.List(c); err != nil {
		t.Fatalf("list: %v", err)
	}
	var resp struct {
		Data  []Prescription `json:"data"`
		Total int            `json:"total"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 1 || len(resp.Data) != 1 || resp.Data[0].PrescriptionNumber != "RX-0002" {
		t.Errorf("unexpected page %s", rec.Body.String())
	}

	c, _ = newContext(e, http.MethodGet, "/api/prescriptions?patientId=nope", "", doc)
	expectHTTPError(t, h.List(c), http.StatusBadRequest)
}

func TestHandler_UpdateKeepsNumber(t *testing.T) {
	h, _, e := newTestHandler()
	doc := uuid.New()
	p := createViaHandler(t, h, e, doc, fullBody)

	payload := body(patientJSON, `"diagnosis":[{"primaryDiagnosis":"Cluster headache"}]`, sectionsJSON, medicationJSON)
	c, rec := newContext(e, http.MethodPut, "/", payload, doc)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())
	if err := h.Update(c); err != nil {
		t.Fatalf("update: %v", err)
	}
	var updated Prescription
	json.Unmarshal(rec.Body.Bytes(), &updated)
	if updated.PrescriptionNumber != p.PrescriptionNumber || updated.Diagnosis[0].PrimaryDiagnosis != "Cluster headache" {
		t.Errorf("unexpected update result %+v", updated)
	}
}

func TestHandler_GetAndDeleteOtherDoctor(t *testing.T) {
	h, _, e := newTestHandler()
	doc := uuid.New()
	p := createViaHandler(t, h, e, doc, fullBody)

	c, _ := newContext(e, http.MethodGet, "/", "", uuid.New())
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())
	expectHTTPError(t, h.Get(c), http.StatusNotFound)

	c, _ = newContext(e, http.MethodDelete, "/", "", uuid.New())
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())
	expectHTTPError(t, h.Delete(c), http.StatusNotFound)

	c, rec := newContext(e, http.MethodDelete, "/", "", doc)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())
	if err := h.Delete(c); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "prescription deleted successfully") {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_GetBadID(t *testing.T) {
	h, _, e := newTestHandler()
	c, _ := newContext(e, http.MethodGet, "/", "", uuid.New())
	c.SetParamNames("id")
	c.SetParamValues("RX-0001")
	expectHTTPError(t, h.Get(c), http.StatusNotFound)
}

func TestHandler_SavedLists(t *testing.T) {
	h, _, e := newTestHandler()
	doc := uuid.New()
	createViaHandler(t, h, e, doc, fullBody)
	createViaHandler(t, h, e, doc, fullBody)

	c, rec := newContext(e, http.MethodGet, "/api/prescriptions/saved-diagnoses", "", doc)
	if err := h.suggestions(KindDiagnoses)(c); err != nil {
		t.Fatalf("saved diagnoses: %v", err)
	}
	var diagnoses []Suggestion
	json.Unmarshal(rec.Body.Bytes(), &diagnoses)
	if len(diagnoses) != 1 || diagnoses[0].Value != "Migraine" || diagnoses[0].Count != 2 {
		t.Errorf("unexpected saved diagnoses %s", rec.Body.String())
	}

	c, rec = newContext(e, http.MethodPost, "/api/prescriptions/saved-symptoms", `{"symptom":"Aura"}`, doc)
	if err := h.AddSavedSymptom(c); err != nil {
		t.Fatalf("add symptom: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	c, rec = newContext(e, http.MethodGet, "/api/prescriptions/saved-symptoms?limit=10", "", doc)
	if err := h.suggestions(KindSymptoms)(c); err != nil {
		t.Fatalf("saved symptoms: %v", err)
	}
	var symptoms []Suggestion
	json.Unmarshal(rec.Body.Bytes(), &symptoms)
	if len(symptoms) != 2 || symptoms[0].Value != "Headache" || symptoms[1].Source != SourceCustom {
		t.Errorf("unexpected saved symptoms %s", rec.Body.String())
	}
}

func TestHandler_AddSavedSymptom_Validation(t *testing.T) {
	h, _, e := newTestHandler()
	c, _ := newContext(e, http.MethodPost, "/api/prescriptions/saved-symptoms", `{}`, uuid.New())
	expectHTTPError(t, h.AddSavedSymptom(c), http.StatusBadRequest)

	c, _ = newContext(e, http.MethodPost, "/api/prescriptions/saved-symptoms", `{"symptom":"   "}`, uuid.New())
	expectHTTPError(t, h.AddSavedSymptom(c), http.StatusBadRequest)
}

func TestHandler_Unauthenticated(t *testing.T) {
	h, _, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/prescriptions/saved-tests", nil), httptest.NewRecorder())
	expectHTTPError(t, h.suggestions(KindTests)(c), http.StatusUnauthorized)
}
