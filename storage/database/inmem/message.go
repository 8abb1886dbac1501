package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/campusmate/core/message"
	"github.com/trezcool/campusmate/core/user"
)

type messageRepository struct {
	db *DB
}

var _ message.Repository = (*messageRepository)(nil) // interface compliance check

func NewMessageRepository(db *DB) *messageRepository {
	return &messageRepository{db: db}
}

func (repo *messageRepository) CreateMessage(ctx context.Context, msg message.Message) (message.Message, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	msg.ID = repo.db.nextPK("messages")
	repo.db.messages[msg.ID] = &msg
	return msg, nil
}

func (repo *messageRepository) GetMessage(ctx context.Context, id int) (message.Message, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if msg, ok := repo.db.messages[id]; ok {
		return *msg, nil
	}
	return message.Message{}, message.ErrNotFound
}

func (repo *messageRepository) UpdateMessage(ctx context.Context, msg message.Message) (message.Message, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.messages[msg.ID]; !ok {
		return message.Message{}, message.ErrNotFound
	}
	repo.db.messages[msg.ID] = &msg
	return msg, nil
}

// conversation must be called with the lock held.
func (repo *messageRepository) conversation(userID, peerID int) []message.Message {
	msgs := make([]message.Message, 0)
	for _, msg := range repo.db.messages {
		if msg.Type != message.TypeMessage {
			continue
		}
		if (msg.SenderID == userID && msg.RecipientID == peerID) || (msg.SenderID == peerID && msg.RecipientID == userID) {
			msgs = append(msgs, *msg)
		}
	}
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].Timestamp.Equal(msgs[j].Timestamp) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
	return msgs
}

func (repo *messageRepository) QueryConversation(ctx context.Context, userID, peerID int) ([]message.Message, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.conversation(userID, peerID), nil
}

func (repo *messageRepository) LastMessage(ctx context.Context, userID, peerID int) (message.Message, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	msgs := repo.conversation(userID, peerID)
	if len(msgs) == 0 {
		return message.Message{}, message.ErrNotFound
	}
	return msgs[len(msgs)-1], nil
}

func (repo *messageRepository) CountUnread(ctx context.Context, recipientID, senderID int) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var cnt int
	for _, msg := range repo.db.messages {
		if msg.RecipientID == recipientID && msg.Status == message.StatusUnread && (senderID == 0 || msg.SenderID == senderID) {
			cnt++
		}
	}
	return cnt, nil
}

func (repo *messageRepository) MarkRead(ctx context.Context, recipientID, senderID int) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var cnt int
	for _, msg := range repo.db.messages {
		if msg.RecipientID == recipientID && msg.SenderID == senderID && msg.Status == message.StatusUnread {
			msg.Status = message.StatusRead
			cnt++
		}
	}
	return cnt, nil
}

func (repo *messageRepository) AddFriendship(ctx context.Context, userID, friendID int) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.users[userID]; !ok {
		return user.ErrNotFound
	}
	if _, ok := repo.db.users[friendID]; !ok {
		return user.ErrNotFound
	}
	repo.db.friends[pair{userID, friendID}] = true
	repo.db.friends[pair{friendID, userID}] = true
	return nil
}

func (repo *messageRepository) AreFriends(ctx context.Context, userID, friendID int) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.db.friends[pair{userID, friendID}], nil
}

func (repo *messageRepository) QueryFriendIDs(ctx context.Context, userID int) ([]int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	ids := make([]int, 0)
	for k := range repo.db.friends {
		if k[0] == userID {
			ids = append(ids, k[1])
		}
	}
	sort.Ints(ids)
	return ids, nil
}
