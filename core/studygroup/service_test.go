package studygroup_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campusmate/core"
	"github.com/trezcool/campusmate/core/class"
	"github.com/trezcool/campusmate/core/studygroup"
	"github.com/trezcool/campusmate/tests"
)

func TestNewGroup_Validate(t *testing.T) {
	validate, _ := testutil.NewValidator()
	tests := []struct {
		name    string
		ng      studygroup.NewGroup
		wantErr bool
	}{
		{name: "no name", ng: studygroup.NewGroup{Name: " "}, wantErr: true},
		{name: "too small", ng: studygroup.NewGroup{Name: "prep", MaxMembers: 1}, wantErr: true},
		{name: "too big", ng: studygroup.NewGroup{Name: "prep", MaxMembers: 51}, wantErr: true},
		{name: "bad link", ng: studygroup.NewGroup{Name: "prep", MeetingLink: "zoom"}, wantErr: true},
		{name: "ok", ng: studygroup.NewGroup{Name: "prep", MeetingLink: "https://zoom.us/j/1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ng.Validate(validate)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestService(t *testing.T) {
	defer studygroup.SetNow(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))()
	env := testutil.NewEnv(t)
	ctx := context.Background()
	jdoe := env.CreateUser(t, "jdoe")
	amy := env.CreateUser(t, "amy")
	bob := env.CreateUser(t, "bob")
	carl := env.CreateUser(t, "carl")
	dan := env.CreateUser(t, "dan")
	cse := env.CreateClass(t, "CSE-110", jdoe, amy, bob, carl)

	points := func(id int) int {
		s, err := env.Rewards.Summary(ctx, id)
		require.NoError(t, err)
		return s.Points
	}

	_, err := env.Groups.Create(ctx, dan, cse.ID, studygroup.NewGroup{Name: "nope"})
	assert.Equal(t, class.ErrNotEnrolled, err)

	g, err := env.Groups.Create(ctx, jdoe, cse.ID, studygroup.NewGroup{
		Name:        "Midterm prep",
		MaxMembers:  3,
		MeetingLink: "https://zoom.us/j/1",
	})
	require.NoError(t, err)
	assert.Equal(t, []studygroup.Member{{ID: jdoe.ID, Username: "jdoe"}}, g.Members)
	assert.Equal(t, 5, points(jdoe.ID))

	dflt, err := env.Groups.Create(ctx, amy, cse.ID, studygroup.NewGroup{Name: "Homework club"})
	require.NoError(t, err)
	assert.Equal(t, studygroup.DefaultMaxMembers, dflt.MaxMembers)

	t.Run("join", func(t *testing.T) {
		g, err := env.Groups.Join(ctx, amy, g.ID)
		require.NoError(t, err)
		assert.Len(t, g.Members, 2)
		assert.Equal(t, 5+2, points(amy.ID))

		tests := []struct {
			name    string
			usr     string
			id      int
			wantErr error
		}{
			{name: "already member", usr: "amy", id: g.ID, wantErr: studygroup.ErrAlreadyMember},
			{name: "not enrolled", usr: "dan", id: g.ID, wantErr: class.ErrNotEnrolled},
			{name: "unknown group", usr: "amy", id: 999, wantErr: studygroup.ErrNotFound},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				usr, err := env.Users.GetByUsername(ctx, tt.usr)
				require.NoError(t, err)
				_, err = env.Groups.Join(ctx, usr, tt.id)
				assert.Equal(t, tt.wantErr, err)
			})
		}

		_, err = env.Groups.Join(ctx, bob, g.ID)
		require.NoError(t, err)
		_, err = env.Groups.Join(ctx, carl, g.ID)
		assert.Equal(t, studygroup.ErrGroupFull, err)
	})

	t.Run("leave", func(t *testing.T) {
		assert.Equal(t, studygroup.ErrCreatorLeave, env.Groups.Leave(ctx, jdoe, g.ID))
		assert.Equal(t, studygroup.ErrLeaveNotMember, env.Groups.Leave(ctx, carl, g.ID))
		assert.Equal(t, studygroup.ErrNotFound, env.Groups.Leave(ctx, carl, 999))
		require.NoError(t, env.Groups.Leave(ctx, bob, g.ID))

		groups, err := env.Groups.ListForClass(ctx, carl, cse.ID)
		require.NoError(t, err)
		require.Len(t, groups, 2)
		assert.Equal(t, []studygroup.Member{{ID: amy.ID, Username: "amy"}, {ID: jdoe.ID, Username: "jdoe"}}, groups[0].Members)

		_, err = env.Groups.ListForClass(ctx, dan, cse.ID)
		assert.Equal(t, class.ErrNotEnrolled, err)
	})

	var meeting studygroup.Meeting
	t.Run("schedule meeting", func(t *testing.T) {
		_, err := env.Groups.ScheduleMeeting(ctx, carl, g.ID, studygroup.NewMeeting{Date: "2024-03-05T18:30"})
		assert.Equal(t, studygroup.ErrNotMember, err)

		_, err = env.Groups.ScheduleMeeting(ctx, jdoe, g.ID, studygroup.NewMeeting{Date: "next tuesday"})
		assert.True(t, core.IsValidation(err))

		_, err = env.Groups.ScheduleMeeting(ctx, jdoe, g.ID, studygroup.NewMeeting{Date: "2024-02-05T18:30"})
		require.Error(t, err)
		assert.Equal(t, "date: meeting date must be in the future", err.Error())

		meeting, err = env.Groups.ScheduleMeeting(ctx, jdoe, g.ID, studygroup.NewMeeting{Date: "2024-03-05T18:30", Duration: 90})
		require.NoError(t, err)
		assert.True(t, meeting.Date.Equal(time.Date(2024, 3, 5, 18, 30, 0, 0, time.UTC)))
		assert.Equal(t, "https://zoom.us/j/1", meeting.MeetingLink, "defaults to the group link")

		notifs, err := env.Notifications.Unread(ctx, amy)
		require.NoError(t, err)
		require.NotEmpty(t, notifs)
		assert.Equal(t, "jdoe scheduled a Midterm prep meeting on Tue Mar 5 at 18:30", notifs[0].Message)
		notifs, err = env.Notifications.Unread(ctx, jdoe)
		require.NoError(t, err)
		assert.Empty(t, notifs)
	})

	t.Run("attend", func(t *testing.T) {
		m, err := env.Groups.Attend(ctx, amy, meeting.ID)
		require.NoError(t, err)
		assert.Equal(t, []int{amy.ID}, m.Attendees)
		assert.Equal(t, 5+2+3, points(amy.ID))

		_, err = env.Groups.Attend(ctx, amy, meeting.ID)
		assert.Equal(t, studygroup.ErrAlreadyAttending, err)
		_, err = env.Groups.Attend(ctx, carl, meeting.ID)
		assert.Equal(t, studygroup.ErrNotMember, err)
		_, err = env.Groups.Attend(ctx, amy, 999)
		assert.Equal(t, studygroup.ErrMeetingNotFound, err)

		meetings, err := env.Groups.Meetings(ctx, jdoe, g.ID)
		require.NoError(t, err)
		require.Len(t, meetings, 1)
		assert.Equal(t, []int{amy.ID}, meetings[0].Attendees)

		_, err = env.Groups.Meetings(ctx, dan, g.ID)
		assert.Equal(t, class.ErrNotEnrolled, err)
	})
}
