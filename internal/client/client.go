// Package client is a Go client for the clinicrx API. Authentication state
// lives in an explicit Session that every authenticated call takes.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinicrx/clinicrx/internal/domain/account"
	"github.com/clinicrx/clinicrx/internal/domain/appointment"
	"github.com/clinicrx/clinicrx/internal/domain/patient"
	"github.com/clinicrx/clinicrx/internal/domain/prescription"
)

const defaultTimeout = 30 * time.Second

// ErrNoSession is returned by authenticated calls made without a token.
var ErrNoSession = errors.New("client: not logged in")

// APIError is a non-2xx response. Message is the server's message field.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("clinicrx: %d %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == status
}

// Session is a logged-in doctor.
type Session struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expiresAt"`
	User      *account.User `json:"user"`
}

// Valid reports whether the session has a token that has not yet expired.
func (s *Session) Valid() bool {
	return s != nil && s.Token != "" && time.Now().Before(s.ExpiresAt)
}

// Page is one page of a list response.
type Page[T any] struct {
	Data       []T `json:"data"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

type message struct {
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, s *Session, method, path string, query url.Values, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s != nil {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var m message
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&m)
		if m.Message == "" {
			m.Message = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: m.Message}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// authed is do for routes behind the JWT middleware.
func (c *Client) authed(ctx context.Context, s *Session, method, path string, query url.Values, in, out interface{}) error {
	if s == nil || s.Token == "" {
		return ErrNoSession
	}
	return c.do(ctx, s, method, path, query, in, out)
}

// pageQuery adds page and limit when they are set.
func pageQuery(q url.Values, page, limit int) url.Values {
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return q
}

// Auth

func (c *Client) Register(ctx context.Context, req *account.RegisterRequest) (*account.User, error) {
	var res struct {
		User *account.User `json:"user"`
	}
	if err := c.do(ctx, nil, http.MethodPost, "/api/auth/register", nil, req, &res); err != nil {
		return nil, err
	}
	return res.User, nil
}

func (c *Client) VerifyEmail(ctx context.Context, token string) (*account.User, error) {
	var res struct {
		User *account.User `json:"user"`
	}
	in := account.VerifyEmailRequest{Token: token}
	if err := c.do(ctx, nil, http.MethodPost, "/api/auth/verify-email", nil, in, &res); err != nil {
		return nil, err
	}
	return res.User, nil
}

func (c *Client) ResendVerification(ctx context.Context, email string) error {
	in := account.ResendVerificationRequest{Email: email}
	return c.do(ctx, nil, http.MethodPost, "/api/auth/resend-verification", nil, in, nil)
}

func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	s := &Session{}
	in := account.LoginRequest{Email: email, Password: password}
	if err := c.do(ctx, nil, http.MethodPost, "/api/auth/login", nil, in, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (c *Client) Me(ctx context.Context, s *Session) (*account.User, error) {
	var u account.User
	if err := c.authed(ctx, s, http.MethodGet, "/api/auth/me", nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Logout revokes the session's token on the server and clears it locally.
func (c *Client) Logout(ctx context.Context, s *Session) error {
	if err := c.authed(ctx, s, http.MethodPost, "/api/auth/logout", nil, nil, nil); err != nil {
		return err
	}
	s.Token = ""
	return nil
}

// Patients

type PatientQuery struct {
	Search string
	Page   int
	Limit  int
}

func (c *Client) ListPatients(ctx context.Context, s *Session, q PatientQuery) (*Page[patient.Patient], error) {
	query := url.Values{}
	if q.Search != "" {
		query.Set("search", q.Search)
	}
	var out Page[patient.Patient]
	if err := c.authed(ctx, s, http.MethodGet, "/api/patients", pageQuery(query, q.Page, q.Limit), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreatePatient(ctx context.Context, s *Session, in *patient.Input) (*patient.Patient, error) {
	var out patient.Patient
	if err := c.authed(ctx, s, http.MethodPost, "/api/patients", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetPatient(ctx context.Context, s *Session, id uuid.UUID) (*patient.Patient, error) {
	var out patient.Patient
	if err := c.authed(ctx, s, http.MethodGet, "/api/patients/"+id.String(), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdatePatient(ctx context.Context, s *Session, id uuid.UUID, in *patient.Input) (*patient.Patient, error) {
	var out patient.Patient
	if err := c.authed(ctx, s, http.MethodPut, "/api/patients/"+id.String(), nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeletePatient(ctx context.Context, s *Session, id uuid.UUID) error {
	return c.authed(ctx, s, http.MethodDelete, "/api/patients/"+id.String(), nil, nil, nil)
}

// Prescriptions

type PrescriptionQuery struct {
	Search    string
	PatientID *uuid.UUID
	Page      int
	Limit     int
}

func (c *Client) ListPrescriptions(ctx context.Context, s *Session, q PrescriptionQuery) (*Page[prescription.Prescription], error) {
	query := url.Values{}
	if q.Search != "" {
		query.Set("search", q.Search)
	}
	if q.PatientID != nil {
		query.Set("patientId", q.PatientID.String())
	}
	var out Page[prescription.Prescription]
	if err := c.authed(ctx, s, http.MethodGet, "/api/prescriptions", pageQuery(query, q.Page, q.Limit), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreatePrescription(ctx context.Context, s *Session, in *prescription.Input) (*prescription.Prescription, error) {
	var out prescription.Prescription
	if err := c.authed(ctx, s, http.MethodPost, "/api/prescriptions", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetPrescription(ctx context.Context, s *Session, id uuid.UUID) (*prescription.Prescription, error) {
	var out prescription.Prescription
	if err := c.authed(ctx, s, http.MethodGet, "/api/prescriptions/"+id.String(), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdatePrescription(ctx context.Context, s *Session, id uuid.UUID, in *prescription.Input) (*prescription.Prescription, error) {
	var out prescription.Prescription
	if err := c.authed(ctx, s, http.MethodPut, "/api/prescriptions/"+id.String(), nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeletePrescription(ctx context.Context, s *Session, id uuid.UUID) error {
	return c.authed(ctx, s, http.MethodDelete, "/api/prescriptions/"+id.String(), nil, nil, nil)
}

// Suggestions returns one of the saved suggestion lists. A limit of zero
// uses the server default.
func (c *Client) Suggestions(ctx context.Context, s *Session, kind prescription.Kind, limit int) ([]prescription.Suggestion, error) {
	var out []prescription.Suggestion
	query := pageQuery(url.Values{}, 0, limit)
	if err := c.authed(ctx, s, http.MethodGet, "/api/prescriptions/saved-"+string(kind), query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AddSavedSymptom(ctx context.Context, s *Session, symptom string) (*prescription.SavedSymptom, error) {
	var out prescription.SavedSymptom
	in := prescription.SavedSymptomRequest{Symptom: symptom}
	if err := c.authed(ctx, s, http.MethodPost, "/api/prescriptions/saved-symptoms", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Appointments

type AppointmentQuery struct {
	Search string
	Status string
	Date   string
	Page   int
	Limit  int
}

func (c *Client) ListAppointments(ctx context.Context, s *Session, q AppointmentQuery) (*Page[appointment.Appointment], error) {
	query := url.Values{}
	for k, v := range map[string]string{"search": q.Search, "status": q.Status, "date": q.Date} {
		if v != "" {
			query.Set(k, v)
		}
	}
	var out Page[appointment.Appointment]
	if err := c.authed(ctx, s, http.MethodGet, "/api/appointments", pageQuery(query, q.Page, q.Limit), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateAppointment(ctx context.Context, s *Session, in *appointment.CreateInput) (*appointment.Appointment, error) {
	var out appointment.Appointment
	if err := c.authed(ctx, s, http.MethodPost, "/api/appointments", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetAppointment(ctx context.Context, s *Session, id uuid.UUID) (*appointment.Appointment, error) {
	var out appointment.Appointment
	if err := c.authed(ctx, s, http.MethodGet, "/api/appointments/"+id.String(), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateAppointment sends only the fields set in patch.
func (c *Client) UpdateAppointment(ctx context.Context, s *Session, id uuid.UUID, patch *appointment.Patch) (*appointment.Appointment, error) {
	var out appointment.Appointment
	if err := c.authed(ctx, s, http.MethodPut, "/api/appointments/"+id.String(), nil, patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteAppointment(ctx context.Context, s *Session, id uuid.UUID) error {
	return c.authed(ctx, s, http.MethodDelete, "/api/appointments/"+id.String(), nil, nil, nil)
}
