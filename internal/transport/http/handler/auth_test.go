package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/phone-auth-api/internal/domain"
	"github.com/phone-auth-api/internal/transport/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockAuthSvc struct{ mock.Mock }

func (m *mockAuthSvc) Signup(ctx context.Context, req domain.SignupRequest) (*domain.SignupResult, error) {
	args := m.Called(ctx, req)
	if r, _ := args.Get(0).(*domain.SignupResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthSvc) VerifyPhone(ctx context.Context, req domain.PhoneVerificationRequest) (*domain.AuthResult, error) {
	args := m.Called(ctx, req)
	if r, _ := args.Get(0).(*domain.AuthResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthSvc) ResendPhoneVerification(ctx context.Context, req domain.ResendPhoneVerificationRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockAuthSvc) Login(ctx context.Context, req domain.LoginRequest) (*domain.AuthResult, error) {
	args := m.Called(ctx, req)
	if r, _ := args.Get(0).(*domain.AuthResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthSvc) CurrentUser(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthSvc) DeleteAccount(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

type mockSessionSvc struct{ mock.Mock }

func (m *mockSessionSvc) IssueTokens(u *domain.User) (domain.TokenPair, error) {
	args := m.Called(u)
	return args.Get(0).(domain.TokenPair), args.Error(1)
}

func (m *mockSessionSvc) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	args := m.Called(ctx, refreshToken)
	return args.Get(0).(domain.TokenPair), args.Error(1)
}

func (m *mockSessionSvc) Revoke(ctx context.Context, refreshToken string) error {
	return m.Called(ctx, refreshToken).Error(0)
}

func (m *mockSessionSvc) Authenticate(ctx context.Context, accessToken string) (*domain.User, error) {
	args := m.Called(ctx, accessToken)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

// --- helpers ---

func jsonReq(t *testing.T, method, target string, v interface{}) *http.Request {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	return httptest.NewRequest(method, target, bytes.NewReader(body))
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rr.Body).Decode(v))
}

// withUser runs the request through middleware.Auth with a session mock that
// accepts "tok" for u.
func withUser(h http.HandlerFunc, u *domain.User, w http.ResponseWriter, r *http.Request) {
	sessions := new(mockSessionSvc)
	sessions.On("Authenticate", mock.Anything, "tok").Return(u, nil)
	r.Header.Set("Authorization", "Bearer tok")
	middleware.Auth(sessions)(h).ServeHTTP(w, r)
}

// --- Signup ---

func TestSignup_InvalidBody(t *testing.T) {
	h := NewAuthHandler(new(mockAuthSvc), new(mockSessionSvc))
	r := httptest.NewRequest(http.MethodPost, "/auth/signup", bytes.NewBufferString("not-json"))
	rr := httptest.NewRecorder()
	h.Signup(rr, r)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSignup_HappyPath(t *testing.T) {
	svc := new(mockAuthSvc)
	req := domain.SignupRequest{PhoneNumber: "+15551234567", Password: "pw"}
	svc.On("Signup", mock.Anything, req).Return(&domain.SignupResult{
		User:          &domain.User{UserID: "u1"},
		SecurityToken: "sec",
	}, nil)
	h := NewAuthHandler(svc, new(mockSessionSvc))

	rr := httptest.NewRecorder()
	h.Signup(rr, jsonReq(t, http.MethodPost, "/auth/signup", req))

	assert.Equal(t, http.StatusCreated, rr.Code)
	var resp SignupEnvelope
	decodeBody(t, rr, &resp)
	assert.Equal(t, "u1", resp.UserID)
	assert.Equal(t, "sec", resp.SecurityToken)
	svc.AssertExpectations(t)
}

func TestSignup_DuplicatePhone(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("Signup", mock.Anything, mock.Anything).Return(nil, domain.NewValidationError("phone_number", domain.ErrDuplicatePhone))
	h := NewAuthHandler(svc, new(mockSessionSvc))

	rr := httptest.NewRecorder()
	h.Signup(rr, jsonReq(t, http.MethodPost, "/auth/signup", domain.SignupRequest{PhoneNumber: "+15551234567", Password: "pw"}))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	var resp MessageEnvelope
	decodeBody(t, rr, &resp)
	assert.Equal(t, "phone_number", resp.Field)
	assert.Equal(t, domain.ErrDuplicatePhone.Error(), resp.Error)
}

// --- VerifyPhone / Resend ---

func TestVerifyPhone_HappyPath(t *testing.T) {
	svc := new(mockAuthSvc)
	u := &domain.User{UserID: "u1", PhoneNumber: "+15551234567", PhoneIsVerified: true, PasswordHash: "secret-hash"}
	svc.On("VerifyPhone", mock.Anything, mock.Anything).Return(&domain.AuthResult{
		User:   u,
		Tokens: domain.TokenPair{Access: "a", Refresh: "r"},
	}, nil)
	h := NewAuthHandler(svc, new(mockSessionSvc))

	rr := httptest.NewRecorder()
	h.VerifyPhone(rr, jsonReq(t, http.MethodPost, "/auth/phone-verification",
		domain.PhoneVerificationRequest{UserID: "u1", SecurityToken: "s", OTP: "000000"}))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "secret-hash")
	var resp AuthEnvelope
	decodeBody(t, rr, &resp)
	assert.Equal(t, "u1", resp.User.UserID)
	assert.True(t, resp.User.PhoneIsVerified)
	assert.Equal(t, "a", resp.Tokens.Access)
	assert.Equal(t, "r", resp.Tokens.Refresh)
}

func TestVerifyPhone_InvalidOTP(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("VerifyPhone", mock.Anything, mock.Anything).Return(nil, domain.NewValidationError("otp", domain.ErrInvalidOTP))
	h := NewAuthHandler(svc, new(mockSessionSvc))

	rr := httptest.NewRecorder()
	h.VerifyPhone(rr, jsonReq(t, http.MethodPost, "/auth/phone-verification", domain.PhoneVerificationRequest{}))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	var resp MessageEnvelope
	decodeBody(t, rr, &resp)
	assert.Equal(t, "otp", resp.Field)
}

func TestResend_HappyPath(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("ResendPhoneVerification", mock.Anything, domain.ResendPhoneVerificationRequest{UserID: "u1", SecurityToken: "s"}).Return(nil)
	h := NewAuthHandler(svc, new(mockSessionSvc))

	rr := httptest.NewRecorder()
	h.ResendPhoneVerification(rr, jsonReq(t, http.MethodPost, "/auth/resend-phone-verification",
		domain.ResendPhoneVerificationRequest{UserID: "u1", SecurityToken: "s"}))

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

// --- Login ---

func TestLogin_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"invalid credentials", fmt.Errorf("login: %w", domain.ErrInvalidCredentials), http.StatusBadRequest, "Invalid credentials"},
		{"not verified", domain.ErrPhoneNotVerified, http.StatusBadRequest, "Phone number is not verified."},
		{"unauthorized", domain.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{"not found", domain.ErrNotFound, http.StatusNotFound, "not found"},
		{"internal", errors.New("disk on fire"), http.StatusInternalServerError, "internal server error"},
		{"invalid kind", domain.ErrInvalidKind, http.StatusInternalServerError, "internal server error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := new(mockAuthSvc)
			svc.On("Login", mock.Anything, mock.Anything).Return(nil, tc.err)
			h := NewAuthHandler(svc, new(mockSessionSvc))

			rr := httptest.NewRecorder()
			h.Login(rr, jsonReq(t, http.MethodPost, "/auth/login", domain.LoginRequest{PhoneNumber: "+15551234567", Password: "pw"}))

			assert.Equal(t, tc.status, rr.Code)
			var resp MessageEnvelope
			decodeBody(t, rr, &resp)
			assert.Equal(t, tc.msg, resp.Error)
			assert.NotContains(t, rr.Body.String(), "disk on fire")
		})
	}
}

func TestLogin_HappyPath(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("Login", mock.Anything, mock.Anything).Return(&domain.AuthResult{
		User:   &domain.User{UserID: "u1"},
		Tokens: domain.TokenPair{Access: "a", Refresh: "r"},
	}, nil)
	h := NewAuthHandler(svc, new(mockSessionSvc))

	rr := httptest.NewRecorder()
	h.Login(rr, jsonReq(t, http.MethodPost, "/auth/login", domain.LoginRequest{PhoneNumber: "+15551234567", Password: "pw"}))
	assert.Equal(t, http.StatusOK, rr.Code)
}

// --- CurrentUser / DeleteAccount ---

func TestCurrentUser_MissingUser(t *testing.T) {
	h := NewAuthHandler(new(mockAuthSvc), new(mockSessionSvc))
	rr := httptest.NewRecorder()
	h.CurrentUser(rr, httptest.NewRequest(http.MethodGet, "/auth/user", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCurrentUser_HappyPath(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("CurrentUser", mock.Anything, "u1").Return(&domain.User{UserID: "u1", FirstName: "Ada"}, nil)
	h := NewAuthHandler(svc, new(mockSessionSvc))
	rr := httptest.NewRecorder()
	withUser(h.CurrentUser, &domain.User{UserID: "u1"}, rr, httptest.NewRequest(http.MethodGet, "/auth/user", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp UserEnvelope
	decodeBody(t, rr, &resp)
	assert.Equal(t, "Ada", resp.User.FirstName)
	svc.AssertExpectations(t)
}

func TestCurrentUser_Deleted(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("CurrentUser", mock.Anything, "u1").Return(nil, domain.ErrUnauthorized)
	h := NewAuthHandler(svc, new(mockSessionSvc))
	rr := httptest.NewRecorder()
	withUser(h.CurrentUser, &domain.User{UserID: "u1"}, rr, httptest.NewRequest(http.MethodGet, "/auth/user", nil))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestDeleteAccount_HappyPath(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("DeleteAccount", mock.Anything, "u1").Return(nil)
	h := NewAuthHandler(svc, new(mockSessionSvc))

	rr := httptest.NewRecorder()
	withUser(h.DeleteAccount, &domain.User{UserID: "u1"}, rr, httptest.NewRequest(http.MethodDelete, "/auth/user", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

// --- Refresh / Logout ---

func TestRefresh_MissingToken(t *testing.T) {
	h := NewAuthHandler(new(mockAuthSvc), new(mockSessionSvc))
	rr := httptest.NewRecorder()
	h.Refresh(rr, jsonReq(t, http.MethodPost, "/auth/token/refresh", map[string]string{}))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	var resp MessageEnvelope
	decodeBody(t, rr, &resp)
	assert.Equal(t, "refresh", resp.Field)
}

func TestRefresh_Reused(t *testing.T) {
	sessions := new(mockSessionSvc)
	sessions.On("Refresh", mock.Anything, "r1").Return(domain.TokenPair{}, fmt.Errorf("already used: %w", domain.ErrUnauthorized))
	h := NewAuthHandler(new(mockAuthSvc), sessions)

	rr := httptest.NewRecorder()
	h.Refresh(rr, jsonReq(t, http.MethodPost, "/auth/token/refresh", refreshRequest{Refresh: "r1"}))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRefresh_HappyPath(t *testing.T) {
	sessions := new(mockSessionSvc)
	sessions.On("Refresh", mock.Anything, "r1").Return(domain.TokenPair{Access: "a2", Refresh: "r2"}, nil)
	h := NewAuthHandler(new(mockAuthSvc), sessions)

	rr := httptest.NewRecorder()
	h.Refresh(rr, jsonReq(t, http.MethodPost, "/auth/token/refresh", refreshRequest{Refresh: "r1"}))

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp TokensEnvelope
	decodeBody(t, rr, &resp)
	assert.Equal(t, "r2", resp.Tokens.Refresh)
}

func TestLogout_HappyPath(t *testing.T) {
	sessions := new(mockSessionSvc)
	sessions.On("Revoke", mock.Anything, "r1").Return(nil)
	h := NewAuthHandler(new(mockAuthSvc), sessions)

	rr := httptest.NewRecorder()
	h.Logout(rr, jsonReq(t, http.MethodPost, "/auth/logout", refreshRequest{Refresh: "r1"}))
	assert.Equal(t, http.StatusOK, rr.Code)
	sessions.AssertExpectations(t)
}

// --- Health ---

func TestPing(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/health-check/{action}", NewHealthHandler().Ping)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health-check/ping", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	var resp MessageEnvelope
	decodeBody(t, rr, &resp)
	assert.Equal(t, "pong", resp.Message)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health-check/other", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
