package inmemdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/campusmate/core/class"
	"github.com/trezcool/campusmate/core/message"
	"github.com/trezcool/campusmate/core/notification"
	"github.com/trezcool/campusmate/core/resource"
	"github.com/trezcool/campusmate/core/reward"
	"github.com/trezcool/campusmate/core/studygroup"
	"github.com/trezcool/campusmate/core/user"
)

func TestDB_deleteUserCascades(t *testing.T) {
	ctx := context.Background()
	db, err := Open()
	require.NoError(t, err)

	userRepo := NewUserRepository(db)
	classRepo := NewClassRepository(db)
	msgRepo := NewMessageRepository(db)
	notifRepo := NewNotificationRepository(db)
	resRepo := NewResourceRepository(db)
	groupRepo := NewStudyGroupRepository(db)
	rewardRepo := NewRewardRepository(db)

	jdoe, err := userRepo.CreateUser(ctx, user.User{Username: "jdoe", Email: "jdoe@example.com"})
	require.NoError(t, err)
	amy, err := userRepo.CreateUser(ctx, user.User{Username: "amy", Email: "amy@example.com"})
	require.NoError(t, err)

	cls, err := classRepo.CreateClass(ctx, class.Class{Name: "CS101", CreatedBy: null.IntFrom(jdoe.ID)})
	require.NoError(t, err)
	require.NoError(t, classRepo.Enroll(ctx, jdoe.ID, cls.ID))
	require.NoError(t, classRepo.Enroll(ctx, amy.ID, cls.ID))

	_, err = msgRepo.CreateMessage(ctx, message.Message{SenderID: jdoe.ID, RecipientID: amy.ID, Type: message.TypeMessage, Status: message.StatusUnread})
	require.NoError(t, err)
	require.NoError(t, msgRepo.AddFriendship(ctx, jdoe.ID, amy.ID))
	_, err = notifRepo.CreateNotification(ctx, notification.Notification{UserID: jdoe.ID, Message: "hi", Type: notification.TypeGeneral})
	require.NoError(t, err)

	res, err := resRepo.CreateResource(ctx, resource.Resource{Title: "Notes", ClassID: cls.ID, UserID: null.IntFrom(jdoe.ID)})
	require.NoError(t, err)
	grp, err := groupRepo.CreateGroup(ctx, studygroup.Group{Name: "Crammers", ClassID: cls.ID, CreatedBy: jdoe.ID})
	require.NoError(t, err)
	require.NoError(t, groupRepo.AddMember(ctx, grp.ID, amy.ID))
	_, err = rewardRepo.CreateEntry(ctx, reward.Entry{UserID: jdoe.ID, Points: 10, Reason: "resource_shared"})
	require.NoError(t, err)

	n, err := userRepo.DeleteUsersByID(ctx, jdoe.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = userRepo.GetUser(ctx, user.GetFilter{ID: jdoe.ID})
	assert.Equal(t, user.ErrNotFound, err)

	cls, err = classRepo.GetClass(ctx, cls.ID)
	require.NoError(t, err)
	assert.False(t, cls.CreatedBy.Valid, "class creator should be set to null")

	enrolled, _ := classRepo.IsEnrolled(ctx, jdoe.ID, cls.ID)
	assert.False(t, enrolled)
	members, _ := classRepo.QueryMembers(ctx, cls.ID)
	require.Len(t, members, 1)
	assert.Equal(t, amy.ID, members[0].ID)

	unread, _ := msgRepo.CountUnread(ctx, amy.ID, 0)
	assert.Zero(t, unread)
	friends, _ := msgRepo.QueryFriendIDs(ctx, amy.ID)
	assert.Empty(t, friends)
	notifs, _ := notifRepo.QueryUnread(ctx, jdoe.ID)
	assert.Empty(t, notifs)

	res, err = resRepo.GetResource(ctx, res.ID)
	require.NoError(t, err)
	assert.False(t, res.UserID.Valid, "resource owner should be set to null")

	_, err = groupRepo.GetGroup(ctx, grp.ID)
	assert.Equal(t, studygroup.ErrNotFound, err)

	total, _ := rewardRepo.TotalPoints(ctx, jdoe.ID)
	assert.Zero(t, total)
}

func TestMessageRepository(t *testing.T) {
	ctx := context.Background()
	db, _ := Open()
	userRepo := NewUserRepository(db)
	repo := NewMessageRepository(db)

	a, _ := userRepo.CreateUser(ctx, user.User{Username: "a", Email: "a@example.com"})
	b, _ := userRepo.CreateUser(ctx, user.User{Username: "b", Email: "b@example.com"})
	now := time.Now().UTC()

	_, _ = repo.CreateMessage(ctx, message.Message{SenderID: a.ID, RecipientID: b.ID, Content: "first", Timestamp: now, Type: message.TypeMessage, Status: message.StatusUnread})
	_, _ = repo.CreateMessage(ctx, message.Message{SenderID: b.ID, RecipientID: a.ID, Content: "second", Timestamp: now.Add(time.Minute), Type: message.TypeMessage, Status: message.StatusUnread})
	_, _ = repo.CreateMessage(ctx, message.Message{SenderID: a.ID, RecipientID: b.ID, Content: "connect?", Timestamp: now.Add(2 * time.Minute), Type: message.TypeConnectionRequest, Status: message.StatusUnread})

	conv, err := repo.QueryConversation(ctx, a.ID, b.ID)
	require.NoError(t, err)
	require.Len(t, conv, 2, "connection requests are not part of conversations")
	assert.Equal(t, "first", conv[0].Content)

	last, err := repo.LastMessage(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "second", last.Content)

	cnt, _ := repo.CountUnread(ctx, b.ID, 0)
	assert.Equal(t, 2, cnt)
	cnt, _ = repo.CountUnread(ctx, b.ID, a.ID)
	assert.Equal(t, 2, cnt)

	marked, err := repo.MarkRead(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, marked, "pending connection requests are marked read too")
	cnt, _ = repo.CountUnread(ctx, b.ID, a.ID)
	assert.Zero(t, cnt)
	cnt, _ = repo.CountUnread(ctx, a.ID, b.ID)
	assert.Equal(t, 1, cnt, "messages sent the other way stay unread")

	_, err = repo.LastMessage(ctx, a.ID, 99)
	assert.Equal(t, message.ErrNotFound, err)

	assert.Equal(t, user.ErrNotFound, repo.AddFriendship(ctx, a.ID, 99))
	require.NoError(t, repo.AddFriendship(ctx, a.ID, b.ID))
	ok, _ := repo.AreFriends(ctx, b.ID, a.ID)
	assert.True(t, ok)
}

func TestResourceRepository(t *testing.T) {
	ctx := context.Background()
	db, _ := Open()
	repo := NewResourceRepository(db)
	t0 := time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC)

	r1, _ := repo.CreateResource(ctx, resource.Resource{Title: "b", ClassID: 1, Type: "pdf", CreatedAt: t0})
	r2, _ := repo.CreateResource(ctx, resource.Resource{Title: "a", ClassID: 1, Type: resource.TypeLink, CreatedAt: t0.Add(time.Hour)})
	_, _ = repo.CreateResource(ctx, resource.Resource{Title: "c", ClassID: 2, Type: "pdf", CreatedAt: t0.Add(2 * time.Hour)})

	tests := []struct {
		name   string
		filter resource.QueryFilter
		want   []int
	}{
		{name: "no classes", filter: resource.QueryFilter{}, want: []int{}},
		{name: "newest", filter: resource.QueryFilter{ClassIDs: []int{1}}, want: []int{r2.ID, r1.ID}},
		{name: "oldest", filter: resource.QueryFilter{ClassIDs: []int{1}, Sort: resource.SortOldest}, want: []int{r1.ID, r2.ID}},
		{name: "title", filter: resource.QueryFilter{ClassIDs: []int{1, 2}, Sort: resource.SortTitle, ClassID: 1}, want: []int{r2.ID, r1.ID}},
		{name: "type", filter: resource.QueryFilter{ClassIDs: []int{1}, Type: "pdf"}, want: []int{r1.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := repo.QueryResources(ctx, tt.filter)
			require.NoError(t, err)
			ids := make([]int, 0, len(list))
			for _, res := range list {
				ids = append(ids, res.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	added, err := repo.AddLike(ctx, r1.ID, 5)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = repo.AddLike(ctx, r1.ID, 5)
	require.NoError(t, err)
	assert.False(t, added)
	require.NoError(t, repo.IncrementDownloads(ctx, r1.ID))

	got, _ := repo.GetResource(ctx, r1.ID)
	assert.Equal(t, 1, got.Likes)
	assert.Equal(t, 1, got.Downloads)

	require.NoError(t, repo.DeleteResource(ctx, r1.ID))
	assert.Equal(t, resource.ErrNotFound, repo.DeleteResource(ctx, r1.ID))
	_, err = repo.AddLike(ctx, r1.ID, 5)
	assert.Equal(t, resource.ErrNotFound, err)
}

func TestStudyGroupRepository_meetings(t *testing.T) {
	ctx := context.Background()
	db, _ := Open()
	userRepo := NewUserRepository(db)
	repo := NewStudyGroupRepository(db)

	amy, _ := userRepo.CreateUser(ctx, user.User{Username: "amy", Email: "amy@example.com"})
	grp, err := repo.CreateGroup(ctx, studygroup.Group{Name: "G", ClassID: 1, CreatedBy: amy.ID, MaxMembers: 5})
	require.NoError(t, err)
	require.NoError(t, repo.AddMember(ctx, grp.ID, amy.ID))

	grp, err = repo.GetGroup(ctx, grp.ID)
	require.NoError(t, err)
	require.Len(t, grp.Members, 1)
	assert.Equal(t, "amy", grp.Members[0].Username)

	mtg, err := repo.CreateMeeting(ctx, studygroup.Meeting{GroupID: grp.ID, Date: time.Now().Add(time.Hour), Duration: 60})
	require.NoError(t, err)
	added, err := repo.AddAttendee(ctx, mtg.ID, amy.ID)
	require.NoError(t, err)
	assert.True(t, added)
	added, _ = repo.AddAttendee(ctx, mtg.ID, amy.ID)
	assert.False(t, added)

	mtg, err = repo.GetMeeting(ctx, mtg.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{amy.ID}, mtg.Attendees)

	require.NoError(t, repo.RemoveMember(ctx, grp.ID, amy.ID))
	grp, _ = repo.GetGroup(ctx, grp.ID)
	assert.Empty(t, grp.Members)
}
