// ABOUTME: Tests for the HTTP registration endpoint and the token issuer
// ABOUTME: Verifies password policy enforcement, duplicate handling, and token round trips

package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhilian/gateway/internal/store"
	"github.com/zhilian/gateway/internal/wire"
)

func postRegister(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRegister_Success(t *testing.T) {
	mock := store.NewMockStore()
	handler := RegisterHandler(mock, nil)

	rec := postRegister(t, handler, `{"username":"alice","password":"secret1234"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Type     string `json:"type"`
		UserID   string `json:"user_id"`
		Username string `json:"username"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, wire.TypeRegisterSuccess, resp.Type)
	assert.Equal(t, "alice", resp.Username)
	assert.NotEmpty(t, resp.UserID)

	// stored with a bcrypt hash, never the raw password
	user, err := mock.GetUserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1234", user.PasswordHash)
	assert.True(t, strings.HasPrefix(user.PasswordHash, "$2"))
}

func TestRegister_PasswordPolicy(t *testing.T) {
	tests := []struct {
		name     string
		password string
	}{
		{"too short", "ab1"},
		{"no digit", "onlyletters"},
		{"no letter", "1234567890"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RegisterHandler(store.NewMockStore(), nil)
			body, _ := json.Marshal(map[string]string{"username": "alice", "password": tt.password})

			rec := postRegister(t, handler, string(body))
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var frame wire.ErrorFrame
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &frame))
			assert.Equal(t, wire.CodeAuthInvalidPassword, frame.Code)
		})
	}
}

func TestRegister_DuplicateUsername(t *testing.T) {
	mock := store.NewMockStore()
	handler := RegisterHandler(mock, nil)

	rec := postRegister(t, handler, `{"username":"alice","password":"secret1234"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postRegister(t, handler, `{"username":"alice","password":"other12345"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var frame wire.ErrorFrame
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &frame))
	assert.Equal(t, wire.CodeAuthUserExists, frame.Code)
}

func TestRegister_MissingFields(t *testing.T) {
	handler := RegisterHandler(store.NewMockStore(), nil)

	rec := postRegister(t, handler, `{"password":"secret1234"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postRegister(t, handler, `{"username":"alice"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postRegister(t, handler, `notjson`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegister_MethodNotAllowed(t *testing.T) {
	handler := RegisterHandler(store.NewMockStore(), nil)
	req := httptest.NewRequest(http.MethodGet, "/api/register", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer([]byte("0123456789abcdef0123456789abcdef"))

	token, err := issuer.Issue("u1")
	require.NoError(t, err)

	userID, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)
}

func TestTokenIssuer_RejectsTampering(t *testing.T) {
	issuer := NewTokenIssuer([]byte("0123456789abcdef0123456789abcdef"))
	other := NewTokenIssuer([]byte("ffffffffffffffffffffffffffffffff"))

	token, err := issuer.Issue("u1")
	require.NoError(t, err)

	_, err = other.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRequireToken_PassesSubject(t *testing.T) {
	issuer := NewTokenIssuer([]byte("0123456789abcdef0123456789abcdef"))
	token, err := issuer.Issue("u1")
	require.NoError(t, err)

	var gotSubject string
	handler := RequireToken(issuer, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub, ok := SubjectFromContext(r.Context())
		require.True(t, ok)
		gotSubject = sub
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", gotSubject)
}

func TestRequireToken_Rejections(t *testing.T) {
	issuer := NewTokenIssuer([]byte("0123456789abcdef0123456789abcdef"))
	other := NewTokenIssuer([]byte("ffffffffffffffffffffffffffffffff"))
	crossToken, err := other.Issue("u1")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "wrong scheme", header: "Basic abc"},
		{name: "garbage token", header: "Bearer not.a.token"},
		{name: "wrong secret", header: "Bearer " + crossToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := RequireToken(issuer, nil, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				called = true
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.False(t, called)

			var frame wire.ErrorFrame
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &frame))
			assert.Equal(t, wire.CodeAuthInvalidToken, frame.Code)
		})
	}
}
