package resource_test

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campusmate/core/class"
	"github.com/trezcool/campusmate/core/resource"
	"github.com/trezcool/campusmate/tests"
)

func TestNewLink_Validate(t *testing.T) {
	validate, _ := testutil.NewValidator()
	tests := []struct {
		name    string
		nl      resource.NewLink
		wantErr bool
	}{
		{name: "no class", nl: resource.NewLink{Title: "Docs", URL: "https://go.dev"}, wantErr: true},
		{name: "no title", nl: resource.NewLink{ClassID: 1, URL: "https://go.dev"}, wantErr: true},
		{name: "bad url", nl: resource.NewLink{ClassID: 1, Title: "Docs", URL: "go dev"}, wantErr: true},
		{name: "ok", nl: resource.NewLink{ClassID: 1, Title: " Docs ", URL: "https://go.dev", Type: "Video"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.nl.Validate(validate)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, "Docs", tt.nl.Title)
				assert.Equal(t, "video", tt.nl.Type)
			}
		})
	}
}

func TestQueryFilter_Validate(t *testing.T) {
	validate, _ := testutil.NewValidator()
	qf := resource.QueryFilter{Sort: " Title "}
	require.NoError(t, qf.Validate(validate))
	assert.Equal(t, resource.SortTitle, qf.Sort)
	qf = resource.QueryFilter{Sort: "popular"}
	assert.Error(t, qf.Validate(validate))
}

func TestService(t *testing.T) {
	defer resource.SetNow(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))()
	env := testutil.NewEnv(t)
	ctx := context.Background()
	jdoe := env.CreateUser(t, "jdoe")
	amy := env.CreateUser(t, "amy")
	bob := env.CreateUser(t, "bob")
	cse := env.CreateClass(t, "CSE-110", jdoe, amy)

	upload := func(usr string, nu resource.NewUpload) (resource.Resource, error) {
		u, err := env.Users.GetByUsername(ctx, usr)
		require.NoError(t, err)
		return env.Resources.Upload(ctx, u, nu, strings.NewReader("%PDF-1.4 notes"))
	}

	t.Run("upload errors", func(t *testing.T) {
		tests := []struct {
			name    string
			usr     string
			nu      resource.NewUpload
			wantErr error
		}{
			{name: "not enrolled", usr: "bob", nu: resource.NewUpload{ClassID: cse.ID, Title: "x", Filename: "x.pdf"}, wantErr: class.ErrNotEnrolled},
			{name: "unknown class", usr: "jdoe", nu: resource.NewUpload{ClassID: 999, Title: "x", Filename: "x.pdf"}, wantErr: class.ErrNotFound},
			{name: "no file", usr: "jdoe", nu: resource.NewUpload{ClassID: cse.ID, Title: "x"}, wantErr: resource.ErrNoFileSelected},
			{name: "not allowed", usr: "jdoe", nu: resource.NewUpload{ClassID: cse.ID, Title: "x", Filename: "x.exe"}, wantErr: resource.ErrFileNotAllowed},
			{name: "nothing left of the name", usr: "jdoe", nu: resource.NewUpload{ClassID: cse.ID, Title: "x", Filename: "é.pdf"}, wantErr: resource.ErrFileNotAllowed},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := upload(tt.usr, tt.nu)
				assert.Equal(t, tt.wantErr, err)
			})
		}
	})

	notes, err := upload("jdoe", resource.NewUpload{ClassID: cse.ID, Title: "Notes", Filename: "week 1.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "week_1.pdf", notes.Filename)
	assert.Equal(t, "20240301_100000_week_1.pdf", notes.StoragePath)
	assert.Equal(t, "pdf", notes.Type)
	assert.Equal(t, jdoe.ID, notes.UserID.Int)

	notifs, err := env.Notifications.Unread(ctx, amy)
	require.NoError(t, err)
	require.Len(t, notifs, 1)
	assert.Equal(t, `jdoe shared "Notes" in CSE-110`, notifs[0].Message)

	link, err := env.Resources.ShareLink(ctx, jdoe, resource.NewLink{ClassID: cse.ID, Title: "Syllabus", URL: "https://asu.edu/cse110"})
	require.NoError(t, err)
	assert.Equal(t, resource.TypeLink, link.Type)

	t.Run("download", func(t *testing.T) {
		res, f, err := env.Resources.Download(ctx, amy, notes.ID)
		require.NoError(t, err)
		data, err := io.ReadAll(f)
		require.NoError(t, err)
		require.NoError(t, f.Close())
		assert.Equal(t, "%PDF-1.4 notes", string(data))
		assert.Equal(t, 1, res.Downloads)

		_, _, err = env.Resources.Download(ctx, bob, notes.ID)
		assert.Equal(t, class.ErrNotEnrolled, err)
		_, _, err = env.Resources.Download(ctx, amy, link.ID)
		assert.Equal(t, resource.ErrNoFile, err)
		_, _, err = env.Resources.Download(ctx, amy, 999)
		assert.Equal(t, resource.ErrNotFound, err)
	})

	t.Run("like", func(t *testing.T) {
		res, err := env.Resources.Like(ctx, amy, notes.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Likes)
		_, err = env.Resources.Like(ctx, amy, notes.ID)
		assert.Equal(t, resource.ErrAlreadyLiked, err)
		_, err = env.Resources.Like(ctx, jdoe, link.ID)
		require.NoError(t, err, "owners can like their own resources")
		_, err = env.Resources.Like(ctx, bob, notes.ID)
		assert.Equal(t, class.ErrNotEnrolled, err)

		// 2 shares and 1 like from someone else
		summary, err := env.Rewards.Summary(ctx, jdoe.ID)
		require.NoError(t, err)
		assert.Equal(t, 22, summary.Points)
	})

	t.Run("list", func(t *testing.T) {
		list, err := env.Resources.List(ctx, amy, resource.QueryFilter{Sort: resource.SortTitle})
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "Notes", list[0].Title)
		assert.Equal(t, 1, list[0].Downloads)
		assert.Equal(t, 1, list[0].Likes)

		list, err = env.Resources.List(ctx, amy, resource.QueryFilter{Type: "pdf"})
		require.NoError(t, err)
		assert.Len(t, list, 1)

		list, err = env.Resources.List(ctx, bob, resource.QueryFilter{})
		require.NoError(t, err)
		assert.Empty(t, list)

		_, err = env.Resources.ForClass(ctx, bob, cse.ID)
		assert.Equal(t, class.ErrNotEnrolled, err)
		list, err = env.Resources.ForClass(ctx, jdoe, cse.ID)
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})

	t.Run("delete", func(t *testing.T) {
		assert.Equal(t, resource.ErrNotOwner, env.Resources.Delete(ctx, amy, notes.ID))
		require.NoError(t, env.Resources.Delete(ctx, jdoe, notes.ID))
		assert.Equal(t, resource.ErrNotFound, env.Resources.Delete(ctx, jdoe, notes.ID))
		_, err := env.Store.Open(notes.StoragePath)
		assert.Equal(t, resource.ErrFileNotFound, err)
	})
}

func TestService_sameFilename(t *testing.T) {
	defer resource.SetNow(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))()
	env := testutil.NewEnv(t)
	ctx := context.Background()
	jdoe := env.CreateUser(t, "jdoe")
	amy := env.CreateUser(t, "amy")
	cse := env.CreateClass(t, "CSE-110", jdoe, amy)

	nu := resource.NewUpload{ClassID: cse.ID, Title: "Notes", Filename: "notes.pdf"}
	a, err := env.Resources.Upload(ctx, jdoe, nu, strings.NewReader("JDOE CONTENT"))
	require.NoError(t, err)
	b, err := env.Resources.Upload(ctx, amy, nu, strings.NewReader("AMY CONTENT"))
	require.NoError(t, err)

	assert.Equal(t, "20240301_100000_notes.pdf", a.StoragePath)
	assert.Equal(t, "20240301_100000_notes_1.pdf", b.StoragePath)
	assert.Equal(t, "notes.pdf", b.Filename)

	read := func(id int) string {
		t.Helper()
		_, f, err := env.Resources.Download(ctx, jdoe, id)
		require.NoError(t, err)
		defer f.Close()
		data, err := io.ReadAll(f)
		require.NoError(t, err)
		return string(data)
	}
	assert.Equal(t, "JDOE CONTENT", read(a.ID))
	assert.Equal(t, "AMY CONTENT", read(b.ID))

	require.NoError(t, env.Resources.Delete(ctx, amy, b.ID))
	assert.Equal(t, "JDOE CONTENT", read(a.ID))
}
