package tests

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/campusmate/apps/api/echo"
	"github.com/trezcool/campusmate/core/user"
	"github.com/trezcool/campusmate/services/email"
	"github.com/trezcool/campusmate/tests"
)

func asAdmin(usr *user.User) { usr.Roles = []string{user.RoleAdmin} }

func deactivated(usr *user.User) { usr.IsActive = false }

func Test_userApi_signup(t *testing.T) {
	env, app := setup(t)
	env.CreateUser(t, "taken")

	body := func(uname, email, pwd, confirm string) []byte {
		return marchallObj(t, user.NewUser{Username: uname, Email: email, Password: pwd, PasswordConfirm: confirm})
	}

	tests := []struct {
		name     string
		body     []byte
		wantCode int
		wantErr  string
		wantFld  string
	}{
		{name: "username taken", body: body("Taken", "new@asu.edu", goodPassword, goodPassword), wantCode: http.StatusBadRequest, wantErr: "a user with this username already exists"},
		{name: "email taken", body: body("newbie", "TAKEN@example.com", goodPassword, goodPassword), wantCode: http.StatusBadRequest, wantErr: "a user with this email already exists"},
		{name: "passwords differ", body: body("newbie", "new@asu.edu", goodPassword, "nope"), wantCode: http.StatusBadRequest, wantFld: "password_confirm"},
		{name: "bad email", body: body("newbie", "new@", goodPassword, goodPassword), wantCode: http.StatusBadRequest, wantFld: "email"},
		{name: "weak password", body: body("newbie", "new@asu.edu", "password", "password"), wantCode: http.StatusBadRequest, wantFld: "password"},
		{name: "ok", body: body(" NewBie ", "New@ASU.edu", goodPassword, goodPassword), wantCode: http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(app, http.MethodPost, "/v1/users/signup", "", tt.body)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())

			switch {
			case tt.wantErr != "":
				checkCodeAndData(t, httpTest{wantCode: tt.wantCode, wantData: marchallObj(t, httpErr{Error: tt.wantErr})}, rec)
			case tt.wantFld != "":
				var fldErrs map[string]string
				decode(t, rec, &fldErrs)
				assert.Contains(t, fldErrs, tt.wantFld)
			default:
				var usr user.User
				decode(t, rec, &usr)
				assert.Equal(t, "newbie", usr.Username)
				assert.Equal(t, "new@asu.edu", usr.Email)
				assert.Equal(t, user.StudentRoles, usr.Roles)
				assert.True(t, usr.IsActive)
			}
		})
	}
}

func Test_userApi_login(t *testing.T) {
	env, app := setup(t)
	testutil.CreateUser(t, env.UserRepo, "jdoe", "jdoe@asu.edu", goodPassword, user.StudentRoles, true)
	testutil.CreateUser(t, env.UserRepo, "ndog", "ndog@asu.edu", goodPassword, user.StudentRoles, false)

	body := func(login, pwd string) []byte { return marchallObj(t, LoginRequest{Username: login, Password: pwd}) }

	runTests(t, app, []httpTest{
		{
			name: "missing password", method: http.MethodPost, path: "/v1/users/login", body: body("jdoe", ""),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"password": "password is a required field"}),
		},
		{
			name: "wrong password", method: http.MethodPost, path: "/v1/users/login", body: body("jdoe", "Wr0ng-Passw0rd!"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "unknown user", method: http.MethodPost, path: "/v1/users/login", body: body("ghost", goodPassword),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "deactivated", method: http.MethodPost, path: "/v1/users/login", body: body("ndog", goodPassword),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	})

	for _, login := range []string{"JDoe", "jdoe@asu.edu"} {
		t.Run("ok "+login, func(t *testing.T) {
			rec := do(app, http.MethodPost, "/v1/users/login", "", body(login, goodPassword))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var resp LoginResponse
			decode(t, rec, &resp)
			require.NotEmpty(t, resp.Token)

			rec = do(app, http.MethodGet, "/v1/users/me", resp.Token)
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}

	usr, err := env.Users.GetByUsername(context.Background(), "jdoe")
	require.NoError(t, err)
	assert.False(t, usr.LastLogin.IsZero())
}

func Test_userApi_me(t *testing.T) {
	env, app := setup(t)
	usr := env.CreateUser(t, "jdoe")
	naughty := env.CreateUser(t, "ndog", deactivated)
	token := getToken(t, usr)

	runTests(t, app, []httpTest{
		{name: "auth required", path: "/v1/users/me", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "deactivated", path: "/v1/users/me", token: getToken(t, naughty),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{name: "ok", path: "/v1/users/me", token: token, wantData: marchallObj(t, usr)},
		{
			name: "bad theme", method: http.MethodPut, path: "/v1/users/me", token: token,
			body: []byte(`{"theme": "neon"}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "bad canvas url", method: http.MethodPut, path: "/v1/users/me", token: token,
			body: []byte(`{"canvas_ical_url": "https://example.com/feed.ics"}`), wantCode: http.StatusBadRequest,
		},
	})

	t.Run("update", func(t *testing.T) {
		rec := do(app, http.MethodPut, "/v1/users/me", token, []byte(`{"theme": " Dark ", "study_reminders": false}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got user.User
		decode(t, rec, &got)
		assert.Equal(t, user.ThemeDark, got.Theme)
		assert.False(t, got.StudyReminders)
		assert.True(t, got.EmailNotifications)
	})

	t.Run("delete", func(t *testing.T) {
		rec := do(app, http.MethodDelete, "/v1/users/me", token)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		rec = do(app, http.MethodGet, "/v1/users/me", token)
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "user not authenticated"})}, rec)
	})
}

func Test_userApi_refreshToken(t *testing.T) {
	env, app := setup(t)
	usr := env.CreateUser(t, "jdoe")
	naughty := env.CreateUser(t, "ndog", deactivated)

	expired, err := GenerateToken(GetUserClaims(usr, time.Now().Add(-5*time.Hour).Unix()))
	require.NoError(t, err)

	runTests(t, app, []httpTest{
		{name: "auth required", method: http.MethodPost, path: "/v1/users/token-refresh", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "deactivated", method: http.MethodPost, path: "/v1/users/token-refresh", token: getToken(t, naughty),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name: "refresh expired", method: http.MethodPost, path: "/v1/users/token-refresh", token: expired,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "refresh has expired"}),
		},
	})

	t.Run("ok", func(t *testing.T) {
		rec := do(app, http.MethodPost, "/v1/users/token-refresh", getToken(t, usr))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp LoginResponse
		decode(t, rec, &resp)
		assert.NotEmpty(t, resp.Token)
	})
}

func Test_userApi_passwordReset(t *testing.T) {
	env, app := setup(t)
	testutil.CreateUser(t, env.UserRepo, "jdoe", "jdoe@asu.edu", goodPassword, user.StudentRoles, true)

	okMsg := SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	}
	runTests(t, app, []httpTest{
		{name: "bad email", method: http.MethodPost, path: "/v1/users/password-reset", body: []byte(`{"email": "jdoe"}`), wantCode: http.StatusBadRequest},
		{name: "unknown email", method: http.MethodPost, path: "/v1/users/password-reset", body: []byte(`{"email": "ghost@asu.edu"}`), wantData: marchallObj(t, okMsg)},
	})
	assert.Empty(t, emailsvc.Outbox.To("ghost@asu.edu"))

	rec := do(app, http.MethodPost, "/v1/users/password-reset", "", []byte(`{"email": "JDoe@asu.edu"}`))
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, okMsg)}, rec)

	sent := emailsvc.Outbox.To("jdoe@asu.edu")
	require.Len(t, sent, 1)
	data := sent[0].TemplateData.(map[string]interface{})
	uid, token := data["UID"].(string), data["Token"].(string)

	newPwd := "An0ther-Secret!"
	confirm := func(uid, token string) []byte {
		return marchallObj(t, user.ResetUserPassword{UID: uid, Token: token, Password: newPwd, PasswordConfirm: newPwd})
	}
	runTests(t, app, []httpTest{
		{
			name: "bad token", method: http.MethodPost, path: "/v1/users/password-reset-confirm", body: confirm(uid, "abc-def"),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "ok", method: http.MethodPost, path: "/v1/users/password-reset-confirm", body: confirm(uid, token),
			wantData: marchallObj(t, SuccessResponse{Success: "Password has been reset with the new password."}),
		},
		{
			name: "link used", method: http.MethodPost, path: "/v1/users/password-reset-confirm", body: confirm(uid, token),
			wantCode: http.StatusBadRequest,
		},
	})

	_, err := env.Users.Authenticate(context.Background(), "jdoe", newPwd)
	assert.NoError(t, err)
}

func Test_userApi_admin(t *testing.T) {
	env, app := setup(t)
	admin := env.CreateUser(t, "admin", asAdmin)
	jdoe := env.CreateUser(t, "jdoe")
	jane := env.CreateUser(t, "jane")
	bob := env.CreateUser(t, "bob")
	adminToken := getToken(t, admin)

	path := func(search, ordering string, roles ...string) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if ordering != "" {
			v.Add("ordering", ordering)
		}
		for _, r := range roles {
			v.Add("role", r)
		}
		return "/v1/users?" + v.Encode()
	}

	runTests(t, app, []httpTest{
		{name: "auth required", path: "/v1/users", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "admin required", path: "/v1/users", token: getToken(t, jdoe),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "order by username", path: path("", "username"), token: adminToken, wantData: marchallList(t, admin, bob, jane, jdoe)},
		{name: "order by -username", path: path("", "-username"), token: adminToken, wantData: marchallList(t, jdoe, jane, bob, admin)},
		{name: "search", path: path("J", "username"), token: adminToken, wantData: marchallList(t, jane, jdoe)},
		{name: "search (unknown)", path: path("lol", ""), token: adminToken, wantData: marchallList(t)},
		{name: "role", path: path("", "username", user.RoleAdmin), token: adminToken, wantData: marchallList(t, admin)},
		{
			name: "cannot delete self", method: http.MethodDelete, path: "/v1/users?id=" + itoa(jdoe.ID) + "&id=" + itoa(admin.ID), token: adminToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "delete", method: http.MethodDelete, path: "/v1/users?id=" + itoa(jdoe.ID) + "&id=" + itoa(bob.ID), token: adminToken,
			wantCode: http.StatusNoContent,
		},
		{name: "deleted", path: path("", "username"), token: adminToken, wantData: marchallList(t, admin, jane)},
	})
}
