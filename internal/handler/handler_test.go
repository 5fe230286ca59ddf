package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"account-service/internal/model"
	"account-service/internal/service"
	"account-service/pkg/cognito"
	"account-service/pkg/config"
	"account-service/pkg/jwtutil"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func init() {
	jwtutil.Initialize(&config.JWTConfig{SigningKey: "test-signing-key", ExpirationHours: 1})
}

// fakeProvider emulates the user pool endpoint. When failType is set,
// every call is rejected with that exception type.
type fakeProvider struct {
	failType string
}

func (f *fakeProvider) handler(w http.ResponseWriter, r *http.Request) {
	if f.failType != "" {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, `{"__type": %q, "message": "rejected"}`, f.failType)
		return
	}
	switch r.Header.Get("X-Amz-Target") {
	case "AWSCognitoIdentityProviderService.SignUp":
		w.Write([]byte(`{"UserConfirmed": false, "UserSub": "sub-1"}`))
	case "AWSCognitoIdentityProviderService.InitiateAuth":
		w.Write([]byte(`{"AuthenticationResult": {"AccessToken": "at", "RefreshToken": "rt"}}`))
	default:
		w.Write([]byte(`{}`))
	}
}

type testEnv struct {
	auth     *AuthHandler
	users    *UserHandler
	svc      *service.ProvisionService
	provider *fakeProvider
}

func newTestEnv(t *testing.T) *testEnv {
	provider := &fakeProvider{}
	srv := httptest.NewServer(http.HandlerFunc(provider.handler))
	t.Cleanup(srv.Close)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.Company{}, &model.Permission{}))

	idp := cognito.NewClient(&config.CognitoConfig{
		Endpoint: srv.URL,
		ClientID: "client-123",
	}, zap.NewNop())
	svc := service.NewProvisionService(db, idp, zap.NewNop())

	return &testEnv{
		auth:     NewAuthHandler(svc, idp),
		users:    NewUserHandler(svc),
		svc:      svc,
		provider: provider,
	}
}

func jsonRequest(method, target, body string) (*httptest.ResponseRecorder, echo.Context) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return rec, e.NewContext(req, rec)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (env *testEnv) seedSignup(t *testing.T, email, company string) *model.Permission {
	permission, err := env.svc.Signup(service.SignupInput{
		Email: email, Password: "pw", Name: "Seed", CompanyName: company,
	})
	require.NoError(t, err)
	return permission
}

func TestSignupEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec, c := jsonRequest(http.MethodPost, "/auth/signup",
		`{"email": "a@x.com", "password": "Secret1!", "name": "Alice", "nameCompany": "Acme"}`)
	require.NoError(t, env.auth.Signup(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "ADMIN", body["role"])
	assert.Equal(t, true, body["status"])
	company := body["company"].(map[string]interface{})
	assert.Equal(t, "Acme", company["name"])
}

func TestSignupMissingFields(t *testing.T) {
	env := newTestEnv(t)

	rec, c := jsonRequest(http.MethodPost, "/auth/signup", `{"email": "a@x.com"}`)
	require.NoError(t, env.auth.Signup(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignupProviderRejection(t *testing.T) {
	env := newTestEnv(t)
	env.provider.failType = cognito.ErrInvalidPassword

	rec, c := jsonRequest(http.MethodPost, "/auth/signup",
		`{"email": "a@x.com", "password": "x", "name": "Alice", "nameCompany": "Acme"}`)
	require.NoError(t, env.auth.Signup(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, cognito.ErrInvalidPassword, decode(t, rec)["code"])
}

func TestLoginEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seedSignup(t, "a@x.com", "Acme")

	rec, c := jsonRequest(http.MethodPost, "/auth/login",
		`{"email": "a@x.com", "password": "pw"}`)
	require.NoError(t, env.auth.Login(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "at", body["accessToken"])
	assert.Equal(t, "rt", body["refreshToken"])
	assert.NotEmpty(t, body["token"])
	user := body["user"].(map[string]interface{})
	assert.Equal(t, "a@x.com", user["email"])
	assert.Len(t, user["permissions"], 1)

	claims, err := jwtutil.ValidateToken(body["token"].(string))
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", claims.Email)
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.provider.failType = cognito.ErrNotAuthorized

	rec, c := jsonRequest(http.MethodPost, "/auth/login",
		`{"email": "a@x.com", "password": "wrong"}`)
	require.NoError(t, env.auth.Login(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, cognito.ErrNotAuthorized, decode(t, rec)["code"])
}

func TestLoginUnconfirmedUser(t *testing.T) {
	env := newTestEnv(t)
	env.provider.failType = cognito.ErrUserNotConfirmed

	rec, c := jsonRequest(http.MethodPost, "/auth/login",
		`{"email": "a@x.com", "password": "pw"}`)
	require.NoError(t, env.auth.Login(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, cognito.ErrUserNotConfirmed, decode(t, rec)["code"])
}

func TestLoginNoLocalUser(t *testing.T) {
	env := newTestEnv(t)

	rec, c := jsonRequest(http.MethodPost, "/auth/login",
		`{"email": "ghost@x.com", "password": "pw"}`)
	require.NoError(t, env.auth.Login(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegisterEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec, c := jsonRequest(http.MethodPost, "/auth/register",
		`{"email": "a@x.com", "password": "Secret1!", "name": "Alice"}`)
	require.NoError(t, env.auth.Register(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "sub-1", body["userSub"])
	assert.Equal(t, false, body["userConfirmed"])
}

func TestGoogleRedirect(t *testing.T) {
	env := newTestEnv(t)
	env.seedSignup(t, "a@x.com", "Acme")

	rec, c := jsonRequest(http.MethodGet, "/auth/google/redirect", "")
	c.Request().Header.Set("X-Auth-Email", "a@x.com")
	require.NoError(t, env.auth.GoogleRedirect(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	user := decode(t, rec)["user"].(map[string]interface{})
	assert.Equal(t, "a@x.com", user["email"])
}

func TestGoogleRedirectNoIdentity(t *testing.T) {
	env := newTestEnv(t)

	rec, c := jsonRequest(http.MethodGet, "/auth/google/redirect", "")
	require.NoError(t, env.auth.GoogleRedirect(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetUserRequiresParams(t *testing.T) {
	env := newTestEnv(t)

	rec, c := jsonRequest(http.MethodGet, "/users/user?idUser=u1", "")
	require.NoError(t, env.users.GetUser(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetUserScoped(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedSignup(t, "a@x.com", "Acme")

	rec, c := jsonRequest(http.MethodGet,
		"/users/user?idUser="+admin.UserID+"&idCompany="+admin.CompanyID, "")
	require.NoError(t, env.users.GetUser(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a@x.com", decode(t, rec)["email"])

	rec, c = jsonRequest(http.MethodGet,
		"/users/user?idUser="+admin.UserID+"&idCompany=other", "")
	require.NoError(t, env.users.GetUser(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateUserEndpoint(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedSignup(t, "owner@x.com", "Acme")

	rec, c := jsonRequest(http.MethodPost, "/users/create", fmt.Sprintf(
		`{"email": "member@x.com", "password": "pw", "name": "Member", "idCompany": %q, "role": "MEMBER"}`,
		admin.CompanyID))
	require.NoError(t, env.users.Create(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "MEMBER", decode(t, rec)["role"])
}

func TestCreateUserUnknownCompany(t *testing.T) {
	env := newTestEnv(t)

	rec, c := jsonRequest(http.MethodPost, "/users/create",
		`{"email": "member@x.com", "password": "pw", "name": "Member", "idCompany": "missing", "role": "MEMBER"}`)
	require.NoError(t, env.users.Create(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateUserBadRole(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedSignup(t, "owner@x.com", "Acme")

	rec, c := jsonRequest(http.MethodPost, "/users/create", fmt.Sprintf(
		`{"email": "member@x.com", "password": "pw", "name": "Member", "idCompany": %q, "role": "SUPERUSER"}`,
		admin.CompanyID))
	require.NoError(t, env.users.Create(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdatePermissionEndpoint(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedSignup(t, "a@x.com", "Acme")

	rec, c := jsonRequest(http.MethodPatch, "/users/updatePermission", fmt.Sprintf(
		`{"idUser": %q, "idCompany": %q, "role": "MEMBER", "status": false}`,
		admin.UserID, admin.CompanyID))
	require.NoError(t, env.users.UpdatePermission(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode(t, rec)["updated"])
}

func TestUpdatePermissionNoMatch(t *testing.T) {
	env := newTestEnv(t)

	rec, c := jsonRequest(http.MethodPatch, "/users/updatePermission",
		`{"idUser": "u", "idCompany": "c", "status": false}`)
	require.NoError(t, env.users.UpdatePermission(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeletePermissionEndpoint(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedSignup(t, "a@x.com", "Acme")

	rec, c := jsonRequest(http.MethodDelete, "/users/deletePermission",
		fmt.Sprintf(`{"idPermission": %q}`, admin.ID))
	require.NoError(t, env.users.DeletePermission(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, c = jsonRequest(http.MethodDelete, "/users/deletePermission",
		fmt.Sprintf(`{"idPermission": %q}`, admin.ID))
	require.NoError(t, env.users.DeletePermission(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
