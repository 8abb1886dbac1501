package event_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/campusmate/core"
	"github.com/trezcool/campusmate/core/class"
	"github.com/trezcool/campusmate/core/event"
	inmemdb "github.com/trezcool/campusmate/storage/database/inmem"
	"github.com/trezcool/campusmate/tests"
)

var now = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func addEvent(t *testing.T, env *testutil.Env, userID int, title, typ string, date time.Time, classID ...int) event.Event {
	t.Helper()
	evt := event.Event{Title: title, Type: typ, Date: date, UserID: userID}
	if len(classID) > 0 {
		evt.ClassID = null.IntFrom(classID[0])
	}
	evt, err := env.Events.Create(context.Background(), evt)
	require.NoError(t, err)
	return evt
}

func dates(events []event.Event) []time.Time {
	res := make([]time.Time, 0, len(events))
	for _, evt := range events {
		res = append(res, evt.Date.UTC())
	}
	return res
}

func TestService_Add(t *testing.T) {
	defer event.SetNow(now)()
	env := testutil.NewEnv(t)
	ctx := context.Background()
	jdoe := env.CreateUser(t, "jdoe")
	amy := env.CreateUser(t, "amy")
	cls := env.CreateClass(t, "CSE-110", jdoe)

	evt, err := env.Events.Add(ctx, jdoe, event.NewEvent{Title: "Lab", Date: "2024-03-05T09:30", ClassID: &cls.ID})
	require.NoError(t, err)
	assert.Equal(t, event.TypeAssignment, evt.Type, "events without a type are assignments")
	assert.Equal(t, event.StatusPending, evt.Status)
	assert.True(t, evt.Date.Equal(time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)))
	assert.Equal(t, null.IntFrom(cls.ID), evt.ClassID)

	_, err = env.Events.Add(ctx, jdoe, event.NewEvent{Title: "Lab", Date: "next week"})
	assert.True(t, core.IsValidation(err))

	_, err = env.Events.Add(ctx, amy, event.NewEvent{Title: "Lab", Date: "2024-03-05", ClassID: &cls.ID})
	assert.Equal(t, class.ErrNotEnrolled, err)

	t.Run("status and delete are owner only", func(t *testing.T) {
		_, err := env.Events.UpdateStatus(ctx, amy, evt.ID, event.UpdateStatus{Status: event.StatusDone})
		assert.Equal(t, event.ErrNotFound, err)
		assert.Equal(t, event.ErrNotFound, env.Events.Delete(ctx, amy, evt.ID))

		evt, err := env.Events.UpdateStatus(ctx, jdoe, evt.ID, event.UpdateStatus{Status: event.StatusDone})
		require.NoError(t, err)
		assert.Equal(t, event.StatusDone, evt.Status)
		require.NoError(t, env.Events.Delete(ctx, jdoe, evt.ID))
		assert.Equal(t, event.ErrNotFound, env.Events.Delete(ctx, jdoe, evt.ID))
	})
}

func TestService_Feed(t *testing.T) {
	defer event.SetNow(now)()
	env := testutil.NewEnv(t)
	ctx := context.Background()
	jdoe := env.CreateUser(t, "jdoe")
	active := env.CreateClass(t, "CSE-110", jdoe)
	archived := env.CreateClass(t, "MAT-265", jdoe)
	_, err := env.Classes.Archive(ctx, jdoe, archived.ID)
	require.NoError(t, err)

	hw := addEvent(t, env, jdoe.ID, "HW 1", event.TypeAssignment, now.Add(48*time.Hour), active.ID)
	addEvent(t, env, jdoe.ID, "Quiz", event.TypeAssignment, now.Add(72*time.Hour), archived.ID)
	study := addEvent(t, env, jdoe.ID, "Study", event.TypeStudySession, now.Add(24*time.Hour), active.ID)
	free := addEvent(t, env, jdoe.ID, "Gym", event.TypeOther, now.Add(96*time.Hour))

	items, err := env.Events.Feed(ctx, jdoe)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []int{study.ID, hw.ID, free.ID}, []int{items[0].ID, items[1].ID, items[2].ID})
	assert.Equal(t, event.ColorStudySession, items[0].BackgroundColor)
	assert.Equal(t, active.Color, items[1].BackgroundColor)
	assert.Equal(t, event.TypeAssignment, items[1].ClassName)
	assert.Equal(t, "CSE-110", items[1].Course)
	assert.Equal(t, event.TypeStudySession, items[0].ClassName)
	assert.Empty(t, items[2].Course)
	assert.Equal(t, event.ColorNoClass, items[2].BackgroundColor)
	assert.True(t, items[1].End.Equal(items[1].Start.Add(time.Hour)))

	var buf bytes.Buffer
	require.NoError(t, env.Events.ExportICS(ctx, jdoe, &buf))
	ics := buf.String()
	assert.Contains(t, ics, "BEGIN:VCALENDAR")
	assert.Contains(t, ics, "SUMMARY:HW 1")
	assert.Contains(t, ics, "CATEGORIES:assignment,CSE-110")
	assert.NotContains(t, ics, "SUMMARY:Quiz")
}

func TestService_ExportICS_escapesCategories(t *testing.T) {
	defer event.SetNow(now)()
	env := testutil.NewEnv(t)
	ctx := context.Background()
	jdoe := env.CreateUser(t, "jdoe")
	cls := env.CreateClass(t, "Logic; Sets, Proofs", jdoe)
	addEvent(t, env, jdoe.ID, "HW", event.TypeAssignment, now.Add(time.Hour), cls.ID)

	var buf bytes.Buffer
	require.NoError(t, env.Events.ExportICS(ctx, jdoe, &buf))
	assert.Contains(t, buf.String(), `CATEGORIES:assignment,Logic\; Sets\, Proofs`)
}

func TestService_GenerateSchedule(t *testing.T) {
	defer event.SetNow(now)()
	env := testutil.NewEnv(t)
	ctx := context.Background()
	jdoe := env.CreateUser(t, "jdoe")
	amy := env.CreateUser(t, "amy")
	cls := env.CreateClass(t, "CSE-110", jdoe)
	other := env.CreateClass(t, "MAT-265", amy)

	addEvent(t, env, jdoe.ID, "HW 2", event.TypeAssignment, time.Date(2024, 3, 10, 23, 59, 0, 0, time.UTC), cls.ID)
	addEvent(t, env, jdoe.ID, "HW 1", event.TypeAssignment, time.Date(2024, 3, 3, 23, 59, 0, 0, time.UTC), cls.ID)
	stale := addEvent(t, env, jdoe.ID, "Old session", event.TypeStudySession, time.Date(2024, 3, 4, 14, 0, 0, 0, time.UTC), cls.ID)
	kept := addEvent(t, env, jdoe.ID, "Later session", event.TypeStudySession, time.Date(2024, 4, 5, 14, 0, 0, 0, time.UTC), cls.ID)

	tests := []struct {
		name    string
		req     event.ScheduleRequest
		wantErr func(error) bool
	}{
		{name: "class of someone else", req: event.ScheduleRequest{ClassID: other.ID, StartDate: "2024-03-01", EndDate: "2024-03-31"}, wantErr: core.IsValidation},
		{name: "bad start", req: event.ScheduleRequest{ClassID: cls.ID, StartDate: "03/01/2024", EndDate: "2024-03-31"}, wantErr: core.IsValidation},
		{name: "end before start", req: event.ScheduleRequest{ClassID: cls.ID, StartDate: "2024-03-31", EndDate: "2024-03-01"}, wantErr: core.IsValidation},
		{name: "no assignments", req: event.ScheduleRequest{ClassID: cls.ID, StartDate: "2024-05-01", EndDate: "2024-05-31"}, wantErr: core.IsNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.Events.GenerateSchedule(ctx, jdoe, tt.req)
			assert.True(t, tt.wantErr(err), "got %v", err)
		})
	}

	sessions, err := env.Events.GenerateSchedule(ctx, jdoe, event.ScheduleRequest{ClassID: cls.ID, StartDate: "2024-03-01", EndDate: "2024-03-31"})
	require.NoError(t, err)
	at14 := func(day int) time.Time { return time.Date(2024, 3, day, 14, 0, 0, 0, time.UTC) }
	assert.Equal(t, []time.Time{at14(2), at14(5), at14(7), at14(9)}, dates(sessions))
	assert.Equal(t, "Study Session for HW 1", sessions[0].Title)
	assert.Equal(t, null.IntFrom(cls.ID), sessions[0].ClassID)

	existing, err := env.Events.Query(ctx, event.QueryFilter{UserID: jdoe.ID, Types: []string{event.TypeStudySession}})
	require.NoError(t, err)
	ids := make([]int, 0, len(existing))
	for _, evt := range existing {
		ids = append(ids, evt.ID)
	}
	assert.NotContains(t, ids, stale.ID)
	assert.Contains(t, ids, kept.ID)
	assert.Len(t, ids, 5)
}

func TestService_GenerateSchedule_dstDay(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("no tzdata: %v", err)
	}
	defer event.SetNow(now)()
	env := testutil.NewEnv(t)
	ctx := context.Background()
	svc := event.NewService(inmemdb.NewEventRepository(env.DB), env.Classes, loc)
	jdoe := env.CreateUser(t, "jdoe")
	cls := env.CreateClass(t, "CSE-110", jdoe)

	// 2024-03-10 only has 23 hours in New York
	evt := event.Event{Title: "HW", Type: event.TypeAssignment, Date: time.Date(2024, 3, 11, 0, 30, 0, 0, loc), UserID: jdoe.ID, ClassID: null.IntFrom(cls.ID)}
	_, err = svc.Create(ctx, evt)
	require.NoError(t, err)

	_, err = svc.GenerateSchedule(ctx, jdoe, event.ScheduleRequest{ClassID: cls.ID, StartDate: "2024-03-10", EndDate: "2024-03-10"})
	assert.Equal(t, event.ErrNoAssignments, err, "the range ends at 23:59:59 local time")
}

func TestService_GenerateSmartSchedule(t *testing.T) {
	defer event.SetNow(now)()
	env := testutil.NewEnv(t)
	ctx := context.Background()
	jdoe := env.CreateUser(t, "jdoe")

	_, err := env.Events.GenerateSmartSchedule(ctx, jdoe)
	assert.Equal(t, event.ErrNoClasses, err)

	cls := env.CreateClass(t, "CSE-110", jdoe)
	_, err = env.Events.GenerateSmartSchedule(ctx, jdoe)
	assert.Equal(t, event.ErrNoUpcomingAssignments, err)

	due := now.Add(10 * 24 * time.Hour)
	addEvent(t, env, jdoe.ID, "Project", event.TypeAssignment, due, cls.ID)
	addEvent(t, env, jdoe.ID, "Far away", event.TypeAssignment, now.Add(60*24*time.Hour), cls.ID)

	sessions, err := env.Events.GenerateSmartSchedule(ctx, jdoe)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{due.AddDate(0, 0, -5), due.AddDate(0, 0, -3), due.AddDate(0, 0, -1)}, dates(sessions))
	assert.Equal(t, "Study for Project", sessions[0].Title)

	// regenerating replaces the previous sessions
	sessions, err = env.Events.GenerateSmartSchedule(ctx, jdoe)
	require.NoError(t, err)
	all, err := env.Events.Query(ctx, event.QueryFilter{UserID: jdoe.ID, Types: []string{event.TypeStudySession}})
	require.NoError(t, err)
	assert.Len(t, all, len(sessions))
}

func TestService_StudentSchedule(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	jdoe := env.CreateUser(t, "jdoe")
	amy := env.CreateUser(t, "amy")
	eve := env.CreateUser(t, "eve")
	cls := env.CreateClass(t, "CSE-110", jdoe, amy)

	hw := addEvent(t, env, amy.ID, "HW", event.TypeAssignment, now, cls.ID)
	addEvent(t, env, amy.ID, "Gym", event.TypeOther, now)

	ids, err := env.Events.StudentSchedule(ctx, jdoe, amy.ID, cls.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{hw.ID}, ids)

	_, err = env.Events.StudentSchedule(ctx, eve, amy.ID, cls.ID)
	assert.Equal(t, class.ErrNotEnrolled, err)
}
