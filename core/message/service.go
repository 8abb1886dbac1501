package message

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/campusmate/core"
	"github.com/trezcool/campusmate/core/notification"
	"github.com/trezcool/campusmate/core/user"
)

var (
	// errors
	ErrNotFound          = core.NewNotFoundError("message not found")
	ErrUserNotFound      = core.NewNotFoundError("User not found")
	ErrSelfMessage       = core.NewValidationError(errors.New("you cannot message yourself"))
	ErrSelfFriend        = core.NewValidationError(errors.New("you cannot add yourself as friend"))
	ErrAlreadyFriends    = core.NewValidationError(errors.New("Already friends"))
	ErrNotPendingRequest = core.NewValidationError(errors.New("this connection request is no longer pending"))
)

type (
	Repository interface {
		CreateMessage(ctx context.Context, msg Message) (Message, error)
		GetMessage(ctx context.Context, id int) (Message, error)
		UpdateMessage(ctx context.Context, msg Message) (Message, error)
		// QueryConversation returns the messages exchanged between `userID` and `peerID`, oldest first.
		QueryConversation(ctx context.Context, userID, peerID int) ([]Message, error)
		// LastMessage returns the latest message exchanged between `userID` and `peerID`,
		// ErrNotFound if there is none.
		LastMessage(ctx context.Context, userID, peerID int) (Message, error)
		// CountUnread counts the unread messages received by `recipientID`, only those from
		// `senderID` when it is not zero.
		CountUnread(ctx context.Context, recipientID, senderID int) (int, error)
		// MarkRead marks the unread messages from `senderID` to `recipientID` as read.
		MarkRead(ctx context.Context, recipientID, senderID int) (int, error)
		// AddFriendship makes `userID` and `friendID` friends of each other.
		AddFriendship(ctx context.Context, userID, friendID int) error
		AreFriends(ctx context.Context, userID, friendID int) (bool, error)
		QueryFriendIDs(ctx context.Context, userID int) ([]int, error)
	}

	Service struct {
		repo      Repository
		userSvc   *user.Service
		notifSvc  *notification.Service
		publisher core.Publisher
	}

	// pushed to live connections
	messageData struct {
		ID          int    `json:"id"`
		Content     string `json:"content"`
		SenderID    int    `json:"sender_id"`
		RecipientID int    `json:"recipient_id"`
		Timestamp   string `json:"timestamp"`
	}
)

func NewService(repo Repository, userSvc *user.Service, notifSvc *notification.Service, publisher core.Publisher) *Service {
	return &Service{
		repo:      repo,
		userSvc:   userSvc,
		notifSvc:  notifSvc,
		publisher: publisher,
	}
}

func (svc *Service) getPeer(ctx context.Context, id int) (user.User, error) {
	peer, err := svc.userSvc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, ErrUserNotFound
		}
		return user.User{}, errors.Wrap(err, "finding user")
	}
	return peer, nil
}

// Send stores a message from `sender` and pushes it to both users.
func (svc *Service) Send(ctx context.Context, sender user.User, nm NewMessage) (Message, error) {
	if nm.RecipientID == sender.ID {
		return Message{}, ErrSelfMessage
	}
	recipient, err := svc.getPeer(ctx, nm.RecipientID)
	if err != nil {
		return Message{}, err
	}

	msg, err := svc.repo.CreateMessage(ctx, Message{
		SenderID:    sender.ID,
		RecipientID: recipient.ID,
		Content:     nm.Content,
		Timestamp:   time.Now().UTC(),
		Type:        TypeMessage,
		Status:      StatusUnread,
	})
	if err != nil {
		return Message{}, errors.Wrap(err, "creating message")
	}

	data := messageData{
		ID:          msg.ID,
		Content:     msg.Content,
		SenderID:    msg.SenderID,
		RecipientID: msg.RecipientID,
		Timestamp:   msg.Timestamp.Format("03:04 PM"),
	}
	svc.publisher.Publish(sender.ID, core.RealtimeEvent{Type: core.EventNewMessage, Payload: data})
	svc.publisher.Publish(recipient.ID, core.RealtimeEvent{Type: core.EventNewMessage, Payload: data})
	if count, err := svc.UnreadCount(ctx, recipient); err == nil {
		svc.publisher.Publish(recipient.ID, core.RealtimeEvent{
			Type:    core.EventUpdateUnread,
			Payload: map[string]int{"count": count},
		})
	}

	if _, err = svc.notifSvc.Notify(ctx, recipient.ID, "New message from "+sender.Username, notification.TypeMessage); err != nil {
		return Message{}, errors.Wrap(err, "notifying recipient")
	}
	return msg, nil
}

// Conversation returns the messages between `usr` and `peerID`, oldest first,
// and marks the received ones as read.
func (svc *Service) Conversation(ctx context.Context, usr user.User, peerID int) ([]Message, error) {
	if _, err := svc.getPeer(ctx, peerID); err != nil {
		return nil, err
	}
	msgs, err := svc.repo.QueryConversation(ctx, usr.ID, peerID)
	if err != nil {
		return nil, errors.Wrap(err, "querying conversation")
	}
	if _, err = svc.repo.MarkRead(ctx, usr.ID, peerID); err != nil {
		return nil, errors.Wrap(err, "marking messages read")
	}
	return msgs, nil
}

// Conversations lists the friends of `usr` with their last message and unread count.
func (svc *Service) Conversations(ctx context.Context, usr user.User) ([]Conversation, error) {
	friends, err := svc.Friends(ctx, usr)
	if err != nil {
		return nil, err
	}
	convs := make([]Conversation, 0, len(friends))
	for _, f := range friends {
		conv := Conversation{Peer: f}
		last, err := svc.repo.LastMessage(ctx, usr.ID, f.ID)
		switch {
		case err == nil:
			conv.LastMessage = &last
		case errors.Cause(err) != ErrNotFound:
			return nil, errors.Wrap(err, "finding last message")
		}
		if conv.UnreadCount, err = svc.UnreadCountFrom(ctx, usr, f.ID); err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	return convs, nil
}

func (svc *Service) UnreadCount(ctx context.Context, usr user.User) (int, error) {
	return svc.UnreadCountFrom(ctx, usr, 0)
}

func (svc *Service) UnreadCountFrom(ctx context.Context, usr user.User, senderID int) (int, error) {
	n, err := svc.repo.CountUnread(ctx, usr.ID, senderID)
	if err != nil {
		return 0, errors.Wrap(err, "counting unread messages")
	}
	return capCount(n), nil
}

func (svc *Service) MarkRead(ctx context.Context, usr user.User, senderID int) error {
	if _, err := svc.repo.MarkRead(ctx, usr.ID, senderID); err != nil {
		return errors.Wrap(err, "marking messages read")
	}
	return nil
}

// Connect sends a connection request from `usr` to `peerID`.
func (svc *Service) Connect(ctx context.Context, usr user.User, peerID int) (Message, error) {
	if peerID == usr.ID {
		return Message{}, ErrSelfFriend
	}
	peer, err := svc.getPeer(ctx, peerID)
	if err != nil {
		return Message{}, err
	}
	req, err := svc.repo.CreateMessage(ctx, Message{
		SenderID:    usr.ID,
		RecipientID: peer.ID,
		Timestamp:   time.Now().UTC(),
		Type:        TypeConnectionRequest,
		Status:      StatusUnread,
	})
	if err != nil {
		return Message{}, errors.Wrap(err, "creating connection request")
	}
	msg := fmt.Sprintf("%s wants to connect with you", usr.Username)
	if _, err = svc.notifSvc.Notify(ctx, peer.ID, msg, notification.TypeMessage); err != nil {
		return Message{}, errors.Wrap(err, "notifying peer")
	}
	return req, nil
}

// Accept accepts the connection request `requestID` sent to `usr`; both users become friends.
func (svc *Service) Accept(ctx context.Context, usr user.User, requestID int) (Message, error) {
	req, err := svc.repo.GetMessage(ctx, requestID)
	if err != nil {
		return Message{}, err
	}
	if req.Type != TypeConnectionRequest || req.RecipientID != usr.ID {
		return Message{}, ErrNotFound
	}
	if req.Status == StatusAccepted {
		return Message{}, ErrNotPendingRequest
	}

	req.Status = StatusAccepted
	if req, err = svc.repo.UpdateMessage(ctx, req); err != nil {
		return Message{}, errors.Wrap(err, "updating connection request")
	}
	if err = svc.repo.AddFriendship(ctx, usr.ID, req.SenderID); err != nil {
		return Message{}, errors.Wrap(err, "adding friendship")
	}
	svc.publisher.Publish(req.SenderID, core.RealtimeEvent{
		Type:    core.EventMessageAccepted,
		Payload: Peer{ID: usr.ID, Username: usr.Username, Email: usr.Email},
	})
	return req, nil
}

// AddFriend makes `usr` and `friendID` friends without a request.
func (svc *Service) AddFriend(ctx context.Context, usr user.User, friendID int) (Peer, error) {
	if friendID == usr.ID {
		return Peer{}, ErrSelfFriend
	}
	friend, err := svc.getPeer(ctx, friendID)
	if err != nil {
		return Peer{}, err
	}
	ok, err := svc.repo.AreFriends(ctx, usr.ID, friend.ID)
	if err != nil {
		return Peer{}, errors.Wrap(err, "checking friendship")
	}
	if ok {
		return Peer{}, ErrAlreadyFriends
	}
	if err = svc.repo.AddFriendship(ctx, usr.ID, friend.ID); err != nil {
		return Peer{}, errors.Wrap(err, "adding friendship")
	}
	return Peer{ID: friend.ID, Username: friend.Username, Email: friend.Email}, nil
}

// Friends returns the friends of `usr`, ordered by username.
func (svc *Service) Friends(ctx context.Context, usr user.User) ([]Peer, error) {
	ids, err := svc.repo.QueryFriendIDs(ctx, usr.ID)
	if err != nil {
		return nil, errors.Wrap(err, "querying friends")
	}
	users, err := svc.userSvc.QueryByID(ctx, ids...)
	if err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	peers := make([]Peer, 0, len(users))
	for _, u := range users {
		peers = append(peers, Peer{ID: u.ID, Username: u.Username, Email: u.Email})
	}
	return peers, nil
}
