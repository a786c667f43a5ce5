package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"inkwell/internal/models"
	"inkwell/internal/moderation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsers struct {
	users map[int64]*models.User
	err   error
}

func (f *fakeUsers) GetUser(_ context.Context, id int64) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

type gateFixture struct {
	now    time.Time
	issuer *Issuer
	users  *fakeUsers
	gate   *Gate
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()
	f := &gateFixture{
		now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		users: &fakeUsers{users: map[int64]*models.User{
			1: {ID: 1, Username: "admin", Role: models.RoleAdmin},
			2: {ID: 2, Username: "alice", Role: models.RoleUser},
		}},
	}
	var err error
	f.issuer, err = NewIssuer(testSecret, 24*time.Hour, WithTokenClock(fixedClock(&f.now)))
	require.NoError(t, err)
	f.gate = NewGate(f.issuer, f.users)
	f.gate.SetClock(fixedClock(&f.now))
	return f
}

func (f *gateFixture) token(t *testing.T, id int64) string {
	t.Helper()
	token, _, err := f.issuer.Issue(f.users.users[id])
	require.NoError(t, err)
	return token
}

// serve runs a request through the gate and returns the response and the
// principal the inner handler observed
func (f *gateFixture) serve(header string) (*httptest.ResponseRecorder, *models.User) {
	var seen *models.User
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	f.gate.Middleware(inner).ServeHTTP(rec, req)
	return rec, seen
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, rec.Code, body.Status)
	return body
}

func TestGate_Anonymous(t *testing.T) {
	f := newGateFixture(t)

	rec, seen := f.serve("")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, seen)
}

func TestGate_ValidCredential(t *testing.T) {
	f := newGateFixture(t)

	rec, seen := f.serve("Bearer " + f.token(t, 2))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "alice", seen.Username)
}

func TestGate_InvalidCredential(t *testing.T) {
	f := newGateFixture(t)

	for name, header := range map[string]string{
		"wrong scheme":  "Basic " + f.token(t, 2),
		"empty bearer":  "Bearer ",
		"garbage token": "Bearer abc.def.ghi",
	} {
		t.Run(name, func(t *testing.T) {
			rec, seen := f.serve(header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Nil(t, seen)
			assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
			assert.Equal(t, "invalid_credential", decodeError(t, rec).Error)
		})
	}
}

func TestGate_ExpiredCredential(t *testing.T) {
	f := newGateFixture(t)
	token := f.token(t, 2)

	f.now = f.now.Add(25 * time.Hour)
	rec, _ := f.serve("Bearer " + token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "credential_expired", decodeError(t, rec).Error)
}

func TestGate_DeletedPrincipal(t *testing.T) {
	f := newGateFixture(t)
	token := f.token(t, 2)

	delete(f.users.users, 2)
	rec, _ := f.serve("Bearer " + token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "principal_not_found", decodeError(t, rec).Error)
}

func TestGate_BanState(t *testing.T) {
	f := newGateFixture(t)
	// Credential issued before the ban still carries no ban state
	token := f.token(t, 2)

	until := f.now.Add(7 * 24 * time.Hour)
	f.users.users[2].Ban(&until, "Spam")

	t.Run("active ban rejected", func(t *testing.T) {
		rec, seen := f.serve("Bearer " + token)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Nil(t, seen)
		body := decodeError(t, rec)
		assert.Equal(t, "account_banned", body.Error)
		assert.Equal(t, "Your account has been banned until March 17, 2026 at 12:00 PM UTC. Reason: Spam", body.Message)
	})

	t.Run("expired ban admitted", func(t *testing.T) {
		f.now = until.Add(time.Second)
		rec, seen := f.serve("Bearer " + token)
		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, seen)
		assert.True(t, seen.IsBanned, "stored flag is left for the next ban to overwrite")
	})

	t.Run("permanent ban rejected", func(t *testing.T) {
		f.users.users[2].Ban(nil, "")
		rec, _ := f.serve("Bearer " + token)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "Your account has been banned permanently", decodeError(t, rec).Message)
	})

	t.Run("unban takes effect immediately", func(t *testing.T) {
		f.users.users[2].Unban()
		rec, _ := f.serve("Bearer " + token)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestGate_StoreFailure(t *testing.T) {
	f := newGateFixture(t)
	token := f.token(t, 2)

	f.users.err = errors.New("disk on fire")
	rec, _ := f.serve("Bearer " + token)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal", decodeError(t, rec).Error)
}

func TestRequireUser(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	RequireUser(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "authentication_required", decodeError(t, rec).Error)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithPrincipal(req.Context(), &models.User{ID: 2}))
	rec = httptest.NewRecorder()
	RequireUser(ok).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequirePermission(t *testing.T) {
	policy, err := moderation.NewPolicy("")
	require.NoError(t, err)

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := RequirePermission(policy, moderation.PermissionResolveReports)(ok)

	cases := []struct {
		name string
		user *models.User
		want int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"user", &models.User{ID: 2, Role: models.RoleUser}, http.StatusForbidden},
		{"admin", &models.User{ID: 1, Role: models.RoleAdmin}, http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/api/admin/reports/1/resolve", nil)
			if tc.user != nil {
				req = req.WithContext(WithPrincipal(req.Context(), tc.user))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}
