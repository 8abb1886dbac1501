package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/campusmate/apps/api/echo"
	"github.com/trezcool/campusmate/core/message"
)

func Test_messageApi(t *testing.T) {
	env, app := setup(t)
	jdoe := env.CreateUser(t, "jdoe")
	jane := env.CreateUser(t, "jane")
	bob := env.CreateUser(t, "bob")
	jdoeToken, janeToken := getToken(t, jdoe), getToken(t, jane)

	send := func(to int, content string) []byte {
		return marchallObj(t, message.NewMessage{RecipientID: to, Content: content})
	}

	runTests(t, app, []httpTest{
		{name: "auth required", path: "/v1/messages", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "content required", method: http.MethodPost, path: "/v1/messages", token: jdoeToken, body: send(jane.ID, "  "), wantCode: http.StatusBadRequest},
		{
			name: "to self", method: http.MethodPost, path: "/v1/messages", token: jdoeToken, body: send(jdoe.ID, "hi me"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "you cannot message yourself"}),
		},
		{
			name: "to ghost", method: http.MethodPost, path: "/v1/messages", token: jdoeToken, body: send(999, "hi"),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "User not found"}),
		},
		{name: "no friends", path: "/v1/messages/friends", token: jdoeToken, wantData: marchallList(t)},
		{
			name: "add friend", method: http.MethodPost, path: "/v1/messages/friends/" + itoa(jane.ID), token: jdoeToken,
			wantCode: http.StatusCreated, wantData: marchallObj(t, message.Peer{ID: jane.ID, Username: "jane", Email: "jane@example.com"}),
		},
		{
			name: "already friends", method: http.MethodPost, path: "/v1/messages/friends/" + itoa(jdoe.ID), token: janeToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "Already friends"}),
		},
		{
			name: "friends", path: "/v1/messages/friends", token: janeToken,
			wantData: marchallList(t, message.Peer{ID: jdoe.ID, Username: "jdoe", Email: "jdoe@example.com"}),
		},
	})

	for _, content := range []string{"hi jane", "are you there?"} {
		rec := do(app, http.MethodPost, "/v1/messages", jdoeToken, send(jane.ID, content))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	t.Run("unread", func(t *testing.T) {
		rec := do(app, http.MethodGet, "/v1/messages/unread-count", janeToken)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, UnreadCountResponse{Count: 2})}, rec)

		rec = do(app, http.MethodGet, "/v1/messages", janeToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var convs []message.Conversation
		decode(t, rec, &convs)
		require.Len(t, convs, 1)
		assert.Equal(t, jdoe.ID, convs[0].Peer.ID)
		assert.Equal(t, 2, convs[0].UnreadCount)
		require.NotNil(t, convs[0].LastMessage)
		assert.Equal(t, "are you there?", convs[0].LastMessage.Content)
	})

	t.Run("conversation", func(t *testing.T) {
		rec := do(app, http.MethodGet, "/v1/messages/"+itoa(jdoe.ID), janeToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var msgs []message.Message
		decode(t, rec, &msgs)
		require.Len(t, msgs, 2)
		assert.Equal(t, "hi jane", msgs[0].Content)
		assert.Equal(t, message.StatusUnread, msgs[0].Status)

		rec = do(app, http.MethodGet, "/v1/messages/unread-count", janeToken)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, UnreadCountResponse{Count: 0})}, rec)

		rec = do(app, http.MethodGet, "/v1/messages/999", janeToken)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("mark read", func(t *testing.T) {
		_, err := env.Messages.Send(context.Background(), jane, message.NewMessage{RecipientID: jdoe.ID, Content: "yes"})
		require.NoError(t, err)

		rec := do(app, http.MethodPost, "/v1/messages/mark-read/"+itoa(jane.ID), jdoeToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		n, err := env.Messages.UnreadCount(context.Background(), jdoe)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("connect", func(t *testing.T) {
		rec := do(app, http.MethodPost, "/v1/messages/connect/"+itoa(jdoe.ID), jdoeToken)
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "you cannot add yourself as friend"})}, rec)

		rec = do(app, http.MethodPost, "/v1/messages/connect/"+itoa(jdoe.ID), getToken(t, bob))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var req message.Message
		decode(t, rec, &req)
		assert.Equal(t, message.TypeConnectionRequest, req.Type)

		rec = do(app, http.MethodPost, "/v1/messages/accept/"+itoa(req.ID), janeToken)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = do(app, http.MethodPost, "/v1/messages/accept/"+itoa(req.ID), jdoeToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		decode(t, rec, &req)
		assert.Equal(t, message.StatusAccepted, req.Status)

		rec = do(app, http.MethodPost, "/v1/messages/accept/"+itoa(req.ID), jdoeToken)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = do(app, http.MethodGet, "/v1/messages/friends", jdoeToken)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t,
			message.Peer{ID: bob.ID, Username: "bob", Email: "bob@example.com"},
			message.Peer{ID: jane.ID, Username: "jane", Email: "jane@example.com"},
		)}, rec)
	})
}
