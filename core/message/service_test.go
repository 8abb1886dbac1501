package message_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campusmate/core"
	"github.com/trezcool/campusmate/core/message"
	"github.com/trezcool/campusmate/core/notification"
	"github.com/trezcool/campusmate/tests"
)

func TestNewMessage_Validate(t *testing.T) {
	validate, _ := testutil.NewValidator()
	tests := []struct {
		name    string
		nm      message.NewMessage
		wantErr bool
	}{
		{name: "no recipient", nm: message.NewMessage{Content: "hi"}, wantErr: true},
		{name: "blank content", nm: message.NewMessage{RecipientID: 1, Content: "  \t "}, wantErr: true},
		{name: "too long", nm: message.NewMessage{RecipientID: 1, Content: strings.Repeat("a", 5001)}, wantErr: true},
		{name: "ok", nm: message.NewMessage{RecipientID: 1, Content: " hi "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.nm.Validate(validate)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, "hi", tt.nm.Content)
			}
		})
	}
}

func TestService_Send(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	jdoe := env.CreateUser(t, "jdoe")
	amy := env.CreateUser(t, "amy")

	_, err := env.Messages.Send(ctx, jdoe, message.NewMessage{RecipientID: jdoe.ID, Content: "me"})
	assert.Equal(t, message.ErrSelfMessage, err)
	_, err = env.Messages.Send(ctx, jdoe, message.NewMessage{RecipientID: 999, Content: "hi"})
	assert.Equal(t, message.ErrUserNotFound, err)

	msg, err := env.Messages.Send(ctx, jdoe, message.NewMessage{RecipientID: amy.ID, Content: "hi amy"})
	require.NoError(t, err)
	assert.Equal(t, message.TypeMessage, msg.Type)
	assert.Equal(t, message.StatusUnread, msg.Status)

	// both ends get the message live
	for _, id := range []int{jdoe.ID, amy.ID} {
		evts := env.Publisher.Events(id, core.EventNewMessage)
		require.Len(t, evts, 1)
		payload, err := json.Marshal(evts[0].Payload)
		require.NoError(t, err)
		assert.Contains(t, string(payload), `"content":"hi amy"`)
	}
	unread := env.Publisher.Events(amy.ID, core.EventUpdateUnread)
	require.Len(t, unread, 1)
	assert.Equal(t, map[string]int{"count": 1}, unread[0].Payload)
	assert.Empty(t, env.Publisher.Events(jdoe.ID, core.EventUpdateUnread))

	notifs, err := env.Notifications.Unread(ctx, amy)
	require.NoError(t, err)
	require.Len(t, notifs, 1)
	assert.Equal(t, "New message from jdoe", notifs[0].Message)
	assert.Equal(t, notification.TypeMessage, notifs[0].Type)
}

func TestService_Conversation(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	jdoe := env.CreateUser(t, "jdoe")
	amy := env.CreateUser(t, "amy")
	bob := env.CreateUser(t, "bob")

	send := func(from, to int, content string) {
		sender, err := env.Users.GetByID(ctx, from)
		require.NoError(t, err)
		_, err = env.Messages.Send(ctx, sender, message.NewMessage{RecipientID: to, Content: content})
		require.NoError(t, err)
	}
	send(jdoe.ID, amy.ID, "one")
	send(amy.ID, jdoe.ID, "two")
	send(amy.ID, jdoe.ID, "three")
	send(bob.ID, jdoe.ID, "from bob")

	n, err := env.Messages.UnreadCount(ctx, jdoe)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	n, err = env.Messages.UnreadCountFrom(ctx, jdoe, amy.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	msgs, err := env.Messages.Conversation(ctx, jdoe, amy.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "one", msgs[0].Content)
	assert.Equal(t, "three", msgs[2].Content)

	// reading a conversation marks it read
	n, err = env.Messages.UnreadCount(ctx, jdoe)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, env.Messages.MarkRead(ctx, jdoe, bob.ID))
	n, err = env.Messages.UnreadCount(ctx, jdoe)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = env.Messages.Conversation(ctx, jdoe, 999)
	assert.Equal(t, message.ErrUserNotFound, err)
}

func TestService_ConnectAndAccept(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	jdoe := env.CreateUser(t, "jdoe")
	amy := env.CreateUser(t, "amy")
	bob := env.CreateUser(t, "bob")

	_, err := env.Messages.Connect(ctx, jdoe, jdoe.ID)
	assert.Equal(t, message.ErrSelfFriend, err)

	req, err := env.Messages.Connect(ctx, jdoe, amy.ID)
	require.NoError(t, err)
	assert.Equal(t, message.TypeConnectionRequest, req.Type)
	notifs, err := env.Notifications.Unread(ctx, amy)
	require.NoError(t, err)
	require.Len(t, notifs, 1)
	assert.Equal(t, "jdoe wants to connect with you", notifs[0].Message)

	_, err = env.Messages.Accept(ctx, bob, req.ID)
	assert.Equal(t, message.ErrNotFound, err, "only the recipient can accept")
	_, err = env.Messages.Accept(ctx, amy, 999)
	assert.Equal(t, message.ErrNotFound, err)

	req, err = env.Messages.Accept(ctx, amy, req.ID)
	require.NoError(t, err)
	assert.Equal(t, message.StatusAccepted, req.Status)
	_, err = env.Messages.Accept(ctx, amy, req.ID)
	assert.Equal(t, message.ErrNotPendingRequest, err)

	accepted := env.Publisher.Events(jdoe.ID, core.EventMessageAccepted)
	require.Len(t, accepted, 1)
	assert.Equal(t, message.Peer{ID: amy.ID, Username: "amy", Email: "amy@example.com"}, accepted[0].Payload)

	friends, err := env.Messages.Friends(ctx, jdoe)
	require.NoError(t, err)
	assert.Equal(t, []message.Peer{{ID: amy.ID, Username: "amy", Email: "amy@example.com"}}, friends)
	friends, err = env.Messages.Friends(ctx, amy)
	require.NoError(t, err)
	assert.Len(t, friends, 1)

	// connection requests are not part of conversations
	convs, err := env.Messages.Conversations(ctx, amy)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Nil(t, convs[0].LastMessage)
}

func TestService_AddFriendAndConversations(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	jdoe := env.CreateUser(t, "jdoe")
	amy := env.CreateUser(t, "amy")
	bob := env.CreateUser(t, "bob")

	_, err := env.Messages.AddFriend(ctx, jdoe, jdoe.ID)
	assert.Equal(t, message.ErrSelfFriend, err)
	_, err = env.Messages.AddFriend(ctx, jdoe, 999)
	assert.Equal(t, message.ErrUserNotFound, err)

	for _, u := range []int{bob.ID, amy.ID} {
		_, err = env.Messages.AddFriend(ctx, jdoe, u)
		require.NoError(t, err)
	}
	_, err = env.Messages.AddFriend(ctx, amy, jdoe.ID)
	assert.Equal(t, message.ErrAlreadyFriends, err)

	_, err = env.Messages.Send(ctx, bob, message.NewMessage{RecipientID: jdoe.ID, Content: "yo"})
	require.NoError(t, err)

	convs, err := env.Messages.Conversations(ctx, jdoe)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, "amy", convs[0].Peer.Username)
	assert.Nil(t, convs[0].LastMessage)
	assert.Zero(t, convs[0].UnreadCount)
	assert.Equal(t, "bob", convs[1].Peer.Username)
	require.NotNil(t, convs[1].LastMessage)
	assert.Equal(t, "yo", convs[1].LastMessage.Content)
	assert.Equal(t, 1, convs[1].UnreadCount)
}

func TestService_MarkReadClearsRequests(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	jdoe := env.CreateUser(t, "jdoe")
	amy := env.CreateUser(t, "amy")

	req, err := env.Messages.Connect(ctx, amy, jdoe.ID)
	require.NoError(t, err)
	n, err := env.Messages.UnreadCountFrom(ctx, jdoe, amy.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, env.Messages.MarkRead(ctx, jdoe, amy.ID))
	n, err = env.Messages.UnreadCountFrom(ctx, jdoe, amy.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	// a read request can still be accepted
	req, err = env.Messages.Accept(ctx, jdoe, req.ID)
	require.NoError(t, err)
	assert.Equal(t, message.StatusAccepted, req.Status)

	_, err = env.Messages.Connect(ctx, amy, jdoe.ID)
	require.NoError(t, err)
	_, err = env.Messages.Conversation(ctx, jdoe, amy.ID)
	require.NoError(t, err)
	n, err = env.Messages.UnreadCount(ctx, jdoe)
	require.NoError(t, err)
	assert.Zero(t, n, "opening the conversation clears pending requests too")
}
