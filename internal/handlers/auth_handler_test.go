package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/almahub/backend/internal/identity"
	"github.com/almahub/backend/internal/middleware"
	"github.com/almahub/backend/internal/models"
	"github.com/almahub/backend/internal/profile"
	"github.com/almahub/backend/internal/storage"
)

// testEnv mounts the auth and profile routes over the local identity provider
// and a cache-only repository.
type testEnv struct {
	router   *chi.Mux
	provider *identity.LocalProvider
	profiles *profile.Repository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	provider := identity.NewLocalProvider("test-secret", time.Hour)
	cache, err := storage.NewCache(t.TempDir(), models.CacheSchemaVersion, nil)
	require.NoError(t, err)
	profiles := profile.NewRepository(nil, profile.CacheTier{Cache: cache}, zap.NewNop(), nil)

	authHandler := NewAuthHandler(provider, provider, profiles, zap.NewNop())
	profileHandler := NewProfileHandler(profiles, zap.NewNop())

	r := chi.NewRouter()
	r.Post("/api/auth/register", authHandler.Register)
	r.Post("/api/auth/login", authHandler.Login)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(provider))
		r.Post("/api/auth/logout", authHandler.Logout)
		r.Get("/api/profile", profileHandler.GetProfile)
		r.Put("/api/profile", profileHandler.UpdateProfile)
		r.Put("/api/profile/role", profileHandler.UpdateRole)
		r.Get("/api/profile/{userId}", profileHandler.GetPublicProfile)
	})

	return &testEnv{router: r, provider: provider, profiles: profiles}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	var resp struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success, "expected success response, got error %q", resp.Error)
	if out != nil {
		require.NoError(t, json.Unmarshal(resp.Data, out))
	}
}

func (e *testEnv) registerTeacher(t *testing.T) (token string, auth models.AuthResponse) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/register", "", models.RegisterRequest{
		Email:    "prof@example.edu",
		Password: "secret1",
		Name:     "Prof. Nowak",
		Role:     "teacher",
		Fields:   models.Document{"teacherId": "T-2024-001"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	decodeData(t, rec, &auth)
	return auth.Token, auth
}

func TestRegisterCreatesProfileWithRole(t *testing.T) {
	env := newTestEnv(t)

	_, auth := env.registerTeacher(t)
	require.NotEmpty(t, auth.Token)
	require.NotNil(t, auth.Profile)
	assert.Equal(t, models.RoleTeacher, auth.Profile.Role)
	require.NotNil(t, auth.Profile.Teacher)
	assert.Equal(t, "T-2024-001", auth.Profile.Teacher.TeacherID)
	assert.Equal(t, "prof@example.edu", auth.Profile.Email)
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/register", "", models.RegisterRequest{Email: "x@example.edu"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.registerTeacher(t)

	rec := env.do(t, http.MethodPost, "/api/auth/register", "", models.RegisterRequest{
		Email:    "prof@example.edu",
		Password: "secret1",
		Name:     "Someone Else",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLoginReturnsExistingProfile(t *testing.T) {
	env := newTestEnv(t)
	env.registerTeacher(t)

	rec := env.do(t, http.MethodPost, "/api/auth/login", "", models.LoginRequest{
		Email:    "prof@example.edu",
		Password: "secret1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var auth models.AuthResponse
	decodeData(t, rec, &auth)
	require.NotEmpty(t, auth.Token)
	require.NotNil(t, auth.Profile)
	assert.Equal(t, models.RoleTeacher, auth.Profile.Role)
}

func TestLoginSynthesizesDefaultProfile(t *testing.T) {
	env := newTestEnv(t)

	// Account exists but no profile document was ever written.
	_, err := env.provider.SignUp(context.Background(), "jan@example.edu", "secret1", "Jan")
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/api/auth/login", "", models.LoginRequest{
		Email:    "jan@example.edu",
		Password: "secret1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var auth models.AuthResponse
	decodeData(t, rec, &auth)
	require.NotNil(t, auth.Profile)
	assert.Equal(t, models.RoleStudent, auth.Profile.Role)
}

func TestLoginBadCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.registerTeacher(t)

	rec := env.do(t, http.MethodPost, "/api/auth/login", "", models.LoginRequest{
		Email:    "prof@example.edu",
		Password: "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", models.LoginRequest{
		Email:    "nobody@example.edu",
		Password: "secret1",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutAlwaysSucceeds(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerTeacher(t)

	rec := env.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Logging out twice is fine.
	rec = env.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetProfileRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	token, auth := env.registerTeacher(t)

	rec := env.do(t, http.MethodGet, "/api/profile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var prof models.Profile
	decodeData(t, rec, &prof)
	assert.Equal(t, auth.Profile.UID, prof.UID)
	assert.Equal(t, models.RoleTeacher, prof.Role)
}

func TestUpdateProfileMergesFields(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerTeacher(t)

	rec := env.do(t, http.MethodPut, "/api/profile", token, models.Document{
		"designation": "Associate Professor",
		"uid":         "spoofed",
		"role":        "department",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var prof models.Profile
	decodeData(t, rec, &prof)
	require.NotNil(t, prof.Teacher)
	assert.Equal(t, "Associate Professor", prof.Teacher.Designation)
	assert.Equal(t, "T-2024-001", prof.Teacher.TeacherID, "untouched fields persist")
	assert.Equal(t, models.RoleTeacher, prof.Role, "role is not editable here")
	assert.NotEqual(t, "spoofed", prof.UID)
}

func TestUpdateRoleEndpoint(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerTeacher(t)

	rec := env.do(t, http.MethodPut, "/api/profile/role", token, updateRoleRequest{
		Role:   "department",
		Fields: models.Document{"deptCode": "CS"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var prof models.Profile
	decodeData(t, rec, &prof)
	assert.Equal(t, models.RoleDepartment, prof.Role)
	require.NotNil(t, prof.Department)
	assert.Equal(t, "CS", prof.Department.DeptCode)
}

func TestUpdateRoleRejectsUnknownRole(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerTeacher(t)

	rec := env.do(t, http.MethodPut, "/api/profile/role", token, updateRoleRequest{Role: "admin"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPublicProfileHidesDetails(t *testing.T) {
	env := newTestEnv(t)
	token, auth := env.registerTeacher(t)

	rec := env.do(t, http.MethodGet, "/api/profile/"+auth.Profile.UID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var pub map[string]interface{}
	decodeData(t, rec, &pub)
	assert.Equal(t, auth.Profile.UID, pub["uid"])
	assert.Equal(t, "teacher", pub["role"])
	_, hasEmail := pub["email"]
	assert.False(t, hasEmail)
}

func TestGetPublicProfileNotFound(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerTeacher(t)

	rec := env.do(t, http.MethodGet, "/api/profile/no-such-uid", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
