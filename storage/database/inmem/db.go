package inmemdb

import (
	"sync"

	"github.com/trezcool/campusmate/core/class"
	"github.com/trezcool/campusmate/core/event"
	"github.com/trezcool/campusmate/core/message"
	"github.com/trezcool/campusmate/core/notification"
	"github.com/trezcool/campusmate/core/resource"
	"github.com/trezcool/campusmate/core/reward"
	"github.com/trezcool/campusmate/core/studygroup"
	"github.com/trezcool/campusmate/core/user"
)

type (
	pair [2]int

	// DB is a process local database for tests and demos. Every table shares one lock
	// so that deleting a user can cascade like the SQL schema does.
	DB struct {
		sync.RWMutex
		pks map[string]int

		users         map[int]*user.User
		classes       map[int]*class.Class
		enrollments   map[pair]bool // {user, class}
		events        map[int]*event.Event
		messages      map[int]*message.Message
		friends       map[pair]bool // {user, friend}, both directions stored
		notifications map[int]*notification.Notification
		resources     map[int]*resource.Resource
		resourceLikes map[pair]bool // {user, resource}
		groups        map[int]*studygroup.Group
		groupMembers  map[pair]bool // {user, group}
		meetings      map[int]*studygroup.Meeting
		attendees     map[pair]bool // {user, meeting}
		rewards       map[int]*reward.Entry
	}
)

func Open() (*DB, error) {
	db := &DB{
		pks:           make(map[string]int),
		users:         make(map[int]*user.User),
		classes:       make(map[int]*class.Class),
		enrollments:   make(map[pair]bool),
		events:        make(map[int]*event.Event),
		messages:      make(map[int]*message.Message),
		friends:       make(map[pair]bool),
		notifications: make(map[int]*notification.Notification),
		resources:     make(map[int]*resource.Resource),
		resourceLikes: make(map[pair]bool),
		groups:        make(map[int]*studygroup.Group),
		groupMembers:  make(map[pair]bool),
		meetings:      make(map[int]*studygroup.Meeting),
		attendees:     make(map[pair]bool),
		rewards:       make(map[int]*reward.Entry),
	}
	return db, nil
}

// nextPK must be called with the write lock held.
func (db *DB) nextPK(table string) int {
	db.pks[table]++
	return db.pks[table]
}

// deleteUser removes `id` and everything referencing it. Must be called with the write lock held.
func (db *DB) deleteUser(id int) {
	delete(db.users, id)
	for k := range db.enrollments {
		if k[0] == id {
			delete(db.enrollments, k)
		}
	}
	for _, cls := range db.classes {
		if cls.CreatedBy.Valid && cls.CreatedBy.Int == id {
			cls.CreatedBy.Valid = false
		}
	}
	for evtID, evt := range db.events {
		if evt.UserID == id {
			delete(db.events, evtID)
		}
	}
	for msgID, msg := range db.messages {
		if msg.SenderID == id || msg.RecipientID == id {
			delete(db.messages, msgID)
		}
	}
	for k := range db.friends {
		if k[0] == id || k[1] == id {
			delete(db.friends, k)
		}
	}
	for nID, n := range db.notifications {
		if n.UserID == id {
			delete(db.notifications, nID)
		}
	}
	for _, res := range db.resources {
		if res.UserID.Valid && res.UserID.Int == id {
			res.UserID.Valid = false
		}
	}
	for k := range db.resourceLikes {
		if k[0] == id {
			delete(db.resourceLikes, k)
		}
	}
	for gID, g := range db.groups {
		if g.CreatedBy == id {
			db.deleteGroup(gID)
		}
	}
	for k := range db.groupMembers {
		if k[0] == id {
			delete(db.groupMembers, k)
		}
	}
	for k := range db.attendees {
		if k[0] == id {
			delete(db.attendees, k)
		}
	}
	for eID, e := range db.rewards {
		if e.UserID == id {
			delete(db.rewards, eID)
		}
	}
}

// deleteGroup must be called with the write lock held.
func (db *DB) deleteGroup(id int) {
	delete(db.groups, id)
	for k := range db.groupMembers {
		if k[1] == id {
			delete(db.groupMembers, k)
		}
	}
	for mID, m := range db.meetings {
		if m.GroupID == id {
			delete(db.meetings, mID)
			for k := range db.attendees {
				if k[1] == mID {
					delete(db.attendees, k)
				}
			}
		}
	}
}
