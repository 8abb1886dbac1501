package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campusmate/core/class"
)

func Test_classApi(t *testing.T) {
	env, app := setup(t)
	jdoe := env.CreateUser(t, "jdoe")
	jane := env.CreateUser(t, "jane")
	bob := env.CreateUser(t, "bob")
	token := getToken(t, jdoe)

	cse := env.CreateClass(t, "CSE 110", jdoe, jane)
	mat := env.CreateClass(t, "MAT 265", bob)

	var created class.Class
	t.Run("create", func(t *testing.T) {
		rec := do(app, http.MethodPost, "/v1/classes", token, []byte(`{"name": " Algebra ", "color": "#FF0000"}`))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		decode(t, rec, &created)
		assert.Equal(t, "Algebra", created.Name)
		assert.Equal(t, "#ff0000", created.Color)
		assert.Equal(t, jdoe.ID, created.CreatedBy.Int)
	})

	runTests(t, app, []httpTest{
		{name: "auth required", path: "/v1/classes", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "name required", method: http.MethodPost, path: "/v1/classes", token: token, body: []byte(`{"color": "#fff"}`), wantCode: http.StatusBadRequest},
		{name: "bad color", method: http.MethodPost, path: "/v1/classes", token: token, body: []byte(`{"name": "Art", "color": "red"}`), wantCode: http.StatusBadRequest},
		{
			name: "archive (not enrolled)", method: http.MethodPost, path: "/v1/classes/" + itoa(mat.ID) + "/archive", token: token,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "you are not enrolled in this class"}),
		},
		{
			name: "archive (unknown)", method: http.MethodPost, path: "/v1/classes/999/archive", token: token,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "class not found"}),
		},
		{name: "archive (bad id)", method: http.MethodPost, path: "/v1/classes/abc/archive", token: token, wantCode: http.StatusNotFound},
		{name: "archive", method: http.MethodPost, path: "/v1/classes/" + itoa(created.ID) + "/archive", token: token},
		{
			name: "buddies", path: "/v1/classes/buddies", token: token,
			wantData: marchallList(t, class.Buddy{ID: jane.ID, Username: "jane", ClassName: "CSE 110"}),
		},
	})

	t.Run("list", func(t *testing.T) {
		rec := do(app, http.MethodGet, "/v1/classes", token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var uc class.UserClasses
		decode(t, rec, &uc)
		require.Len(t, uc.Active, 1)
		assert.Equal(t, cse.ID, uc.Active[0].ID)
		require.Len(t, uc.Archived, 1)
		assert.Equal(t, created.ID, uc.Archived[0].ID)
		assert.True(t, uc.Archived[0].ArchivedAt.Valid)
	})

	t.Run("classmates", func(t *testing.T) {
		rec := do(app, http.MethodGet, "/v1/classes/classmates", getToken(t, jane))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var cms []class.Classmates
		decode(t, rec, &cms)
		require.Len(t, cms, 1)
		assert.Equal(t, "CSE 110", cms[0].Class.Name)
		assert.Equal(t, []class.Peer{{ID: jdoe.ID, Username: "jdoe", Email: "jdoe@example.com"}}, cms[0].Students)
	})

	t.Run("restore", func(t *testing.T) {
		rec := do(app, http.MethodPost, "/v1/classes/"+itoa(created.ID)+"/restore", token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var cls class.Class
		decode(t, rec, &cls)
		assert.False(t, cls.Archived)
		assert.False(t, cls.ArchivedAt.Valid)
	})
}
