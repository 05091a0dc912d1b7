package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
)

type stubIdentityService struct {
	registerFn     func(ctx context.Context, in ports.RegisterInput) (*domain.Profile, error)
	authenticateFn func(ctx context.Context, identifier, password string) (*ports.AuthResult, error)
	listFn         func(ctx context.Context) ([]domain.Profile, error)
	getFn          func(ctx context.Context, id string) (*domain.Profile, error)
	updateFn       func(ctx context.Context, in ports.UpdateProfileInput) (*domain.Profile, error)
	deleteFn       func(ctx context.Context, id string) (*ports.DeleteResult, error)
}

func (s *stubIdentityService) Register(ctx context.Context, in ports.RegisterInput) (*domain.Profile, error) {
	return s.registerFn(ctx, in)
}

func (s *stubIdentityService) Authenticate(ctx context.Context, identifier, password string) (*ports.AuthResult, error) {
	return s.authenticateFn(ctx, identifier, password)
}

func (s *stubIdentityService) ListProfiles(ctx context.Context) ([]domain.Profile, error) {
	return s.listFn(ctx)
}

func (s *stubIdentityService) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	return s.getFn(ctx, id)
}

func (s *stubIdentityService) UpdateProfile(ctx context.Context, in ports.UpdateProfileInput) (*domain.Profile, error) {
	return s.updateFn(ctx, in)
}

func (s *stubIdentityService) DeleteProfile(ctx context.Context, id string) (*ports.DeleteResult, error) {
	return s.deleteFn(ctx, id)
}

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

func jsonContext(e *echo.Echo, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

var sampleProfile = domain.Profile{
	ID:        "u-1",
	Username:  "alice",
	Email:     "alice@example.com",
	CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	Role:      domain.RoleUser,
}

func TestIdentityHandler_Register_Success(t *testing.T) {
	e := newTestEcho()
	stub := &stubIdentityService{
		registerFn: func(ctx context.Context, in ports.RegisterInput) (*domain.Profile, error) {
			if in.Username != "alice" || in.Email != "alice@example.com" || in.Password != "secret" {
				t.Fatalf("unexpected input: %+v", in)
			}
			p := sampleProfile
			return &p, nil
		},
	}
	handler := NewIdentityHandler(stub)

	c, rec := jsonContext(e, http.MethodPost, "/auth/register", `{"username":"alice","email":"alice@example.com","password":"secret"}`)
	if err := handler.Register(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["id"] != "u-1" || resp["username"] != "alice" || resp["role"] != "user" || resp["created_at"] == nil {
		t.Fatalf("unexpected payload: %+v", resp)
	}
	for _, leaked := range []string{"password", "passwordHash", "password_hash", "PasswordHash"} {
		if _, ok := resp[leaked]; ok {
			t.Fatalf("response leaked %q", leaked)
		}
	}
}

func TestIdentityHandler_Register_MissingFields(t *testing.T) {
	e := newTestEcho()
	stub := &stubIdentityService{
		registerFn: func(ctx context.Context, in ports.RegisterInput) (*domain.Profile, error) {
			t.Fatalf("service must not be called")
			return nil, nil
		},
	}
	handler := NewIdentityHandler(stub)

	c, _ := jsonContext(e, http.MethodPost, "/auth/register", `{"username":"alice"}`)
	err := handler.Register(c)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if !strings.Contains(err.Error(), "email is required") || !strings.Contains(err.Error(), "password is required") {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestIdentityHandler_Register_InvalidPayload(t *testing.T) {
	e := newTestEcho()
	handler := NewIdentityHandler(&stubIdentityService{})

	c, _ := jsonContext(e, http.MethodPost, "/auth/register", `{"username":`)
	err := handler.Register(c)

	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 HTTPError, got %v", err)
	}
}

func TestIdentityHandler_Register_UserExists(t *testing.T) {
	e := newTestEcho()
	stub := &stubIdentityService{
		registerFn: func(ctx context.Context, in ports.RegisterInput) (*domain.Profile, error) {
			return nil, domain.ErrUserExists
		},
	}
	handler := NewIdentityHandler(stub)

	c, _ := jsonContext(e, http.MethodPost, "/auth/register", `{"username":"bob","email":"b@x.com","password":"pw"}`)
	if err := handler.Register(c); !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestIdentityHandler_Login_Success(t *testing.T) {
	e := newTestEcho()
	stub := &stubIdentityService{
		authenticateFn: func(ctx context.Context, identifier, password string) (*ports.AuthResult, error) {
			if identifier != "alice" || password != "secret" {
				t.Fatalf("unexpected credentials: %s/%s", identifier, password)
			}
			return &ports.AuthResult{UserID: "u-1", Username: "alice", Email: "alice@example.com", Role: domain.RoleAdmin}, nil
		},
	}
	handler := NewIdentityHandler(stub)

	c, rec := jsonContext(e, http.MethodPost, "/auth/login", `{"identifier":"alice","password":"secret"}`)
	if err := handler.Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["message"] == "" || resp["userId"] != "u-1" || resp["username"] != "alice" || resp["email"] != "alice@example.com" || resp["role"] != "admin" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestIdentityHandler_Login_IdentifierFallback(t *testing.T) {
	cases := map[string]string{
		`{"username":"alice","password":"pw"}`:                             "alice",
		`{"email":"alice@example.com","password":"pw"}`:                    "alice@example.com",
		`{"identifier":"id","username":"alice","password":"pw"}`:           "id",
		`{"username":"alice","email":"alice@example.com","password":"pw"}`: "alice",
	}

	for body, want := range cases {
		e := newTestEcho()
		var got string
		stub := &stubIdentityService{
			authenticateFn: func(ctx context.Context, identifier, password string) (*ports.AuthResult, error) {
				got = identifier
				return &ports.AuthResult{UserID: "u-1"}, nil
			},
		}

		c, _ := jsonContext(e, http.MethodPost, "/auth/login", body)
		if err := NewIdentityHandler(stub).Login(c); err != nil {
			t.Fatalf("body %s: handler error: %v", body, err)
		}
		if got != want {
			t.Fatalf("body %s: expected identifier %q, got %q", body, want, got)
		}
	}
}

func TestIdentityHandler_Login_InvalidCredentials(t *testing.T) {
	e := newTestEcho()
	stub := &stubIdentityService{
		authenticateFn: func(ctx context.Context, identifier, password string) (*ports.AuthResult, error) {
			return nil, domain.ErrInvalidCredentials
		},
	}

	c, _ := jsonContext(e, http.MethodPost, "/auth/login", `{"identifier":"alice","password":"wrong"}`)
	if err := NewIdentityHandler(stub).Login(c); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestIdentityHandler_List(t *testing.T) {
	e := newTestEcho()
	stub := &stubIdentityService{
		listFn: func(ctx context.Context) ([]domain.Profile, error) {
			return []domain.Profile{sampleProfile, {ID: "u-2", Username: "bob", Role: domain.RoleAdmin}}, nil
		},
	}

	c, rec := jsonContext(e, http.MethodGet, "/profiles", "")
	if err := NewIdentityHandler(stub).List(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var resp []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(resp) != 2 || resp[1]["username"] != "bob" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestIdentityHandler_Get_PassesID(t *testing.T) {
	e := newTestEcho()
	stub := &stubIdentityService{
		getFn: func(ctx context.Context, id string) (*domain.Profile, error) {
			if id != "u-1" {
				return nil, domain.ErrUserNotFound
			}
			p := sampleProfile
			return &p, nil
		},
	}
	handler := NewIdentityHandler(stub)

	c, rec := jsonContext(e, http.MethodGet, "/profiles/u-1", "")
	c.SetParamNames("id")
	c.SetParamValues("u-1")
	if err := handler.Get(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	c, _ = jsonContext(e, http.MethodGet, "/profiles/nope", "")
	c.SetParamNames("id")
	c.SetParamValues("nope")
	if err := handler.Get(c); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestIdentityHandler_Update_InvalidRole(t *testing.T) {
	e := newTestEcho()
	stub := &stubIdentityService{
		updateFn: func(ctx context.Context, in ports.UpdateProfileInput) (*domain.Profile, error) {
			t.Fatalf("service must not be called")
			return nil, nil
		},
	}

	c, _ := jsonContext(e, http.MethodPut, "/profiles/u-1", `{"username":"a","email":"a@x.com","role":"superadmin"}`)
	c.SetParamNames("id")
	c.SetParamValues("u-1")
	err := NewIdentityHandler(stub).Update(c)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if err.Error() != "role must be one of: user, admin" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestIdentityHandler_Update_Success(t *testing.T) {
	e := newTestEcho()
	stub := &stubIdentityService{
		updateFn: func(ctx context.Context, in ports.UpdateProfileInput) (*domain.Profile, error) {
			if in.ID != "u-1" || in.Role != "admin" {
				t.Fatalf("unexpected input: %+v", in)
			}
			return &domain.Profile{ID: in.ID, Username: in.Username, Email: in.Email, Role: domain.Role(in.Role)}, nil
		},
	}

	c, rec := jsonContext(e, http.MethodPut, "/profiles/u-1", `{"username":"a","email":"a@x.com","role":"admin"}`)
	c.SetParamNames("id")
	c.SetParamValues("u-1")
	if err := NewIdentityHandler(stub).Update(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"role":"admin"`) {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}

func TestIdentityHandler_Delete_Outcomes(t *testing.T) {
	cases := []struct {
		name     string
		result   *ports.DeleteResult
		wantCode int
		wantBody string
	}{
		{"complete", &ports.DeleteResult{Outcome: ports.DeleteComplete}, http.StatusNoContent, ""},
		{"peer skipped", &ports.DeleteResult{Outcome: ports.DeletePeerSkipped}, http.StatusNoContent, ""},
		{
			"partial",
			&ports.DeleteResult{Outcome: ports.DeletePartial, PeerErr: &domain.PeerError{Status: 503, Detail: "properties db down"}},
			http.StatusInternalServerError,
			`{"error":"Failed to delete associated properties: properties db down"}`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEcho()
			stub := &stubIdentityService{
				deleteFn: func(ctx context.Context, id string) (*ports.DeleteResult, error) {
					return tc.result, nil
				},
			}

			c, rec := jsonContext(e, http.MethodDelete, "/profiles/u-1", "")
			c.SetParamNames("id")
			c.SetParamValues("u-1")
			if err := NewIdentityHandler(stub).Delete(c); err != nil {
				t.Fatalf("handler error: %v", err)
			}
			if rec.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, rec.Code)
			}
			if got := strings.TrimSpace(rec.Body.String()); got != tc.wantBody {
				t.Fatalf("expected body %q, got %q", tc.wantBody, got)
			}
		})
	}
}

func TestIdentityHandler_Delete_NotFound(t *testing.T) {
	e := newTestEcho()
	stub := &stubIdentityService{
		deleteFn: func(ctx context.Context, id string) (*ports.DeleteResult, error) {
			return nil, domain.ErrUserNotFound
		},
	}

	c, _ := jsonContext(e, http.MethodDelete, "/profiles/missing", "")
	if err := NewIdentityHandler(stub).Delete(c); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
