package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/campusmate/core/studygroup"
	"github.com/trezcool/campusmate/core/user"
)

type studyGroupRepository struct {
	db *DB
}

var _ studygroup.Repository = (*studyGroupRepository)(nil) // interface compliance check

func NewStudyGroupRepository(db *DB) *studyGroupRepository {
	return &studyGroupRepository{db: db}
}

// withMembers must be called with the lock held.
func (repo *studyGroupRepository) withMembers(g studygroup.Group) studygroup.Group {
	g.Members = make([]studygroup.Member, 0)
	for k := range repo.db.groupMembers {
		if k[1] != g.ID {
			continue
		}
		if usr, ok := repo.db.users[k[0]]; ok {
			g.Members = append(g.Members, studygroup.Member{ID: usr.ID, Username: usr.Username})
		}
	}
	sort.Slice(g.Members, func(i, j int) bool { return g.Members[i].Username < g.Members[j].Username })
	return g
}

// withAttendees must be called with the lock held.
func (repo *studyGroupRepository) withAttendees(m studygroup.Meeting) studygroup.Meeting {
	m.Attendees = make([]int, 0)
	for k := range repo.db.attendees {
		if k[1] == m.ID {
			m.Attendees = append(m.Attendees, k[0])
		}
	}
	sort.Ints(m.Attendees)
	return m
}

func (repo *studyGroupRepository) CreateGroup(ctx context.Context, g studygroup.Group) (studygroup.Group, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	g.ID = repo.db.nextPK("study_groups")
	g.Members = nil
	repo.db.groups[g.ID] = &g
	return g, nil
}

func (repo *studyGroupRepository) GetGroup(ctx context.Context, id int) (studygroup.Group, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if g, ok := repo.db.groups[id]; ok {
		return repo.withMembers(*g), nil
	}
	return studygroup.Group{}, studygroup.ErrNotFound
}

func (repo *studyGroupRepository) QueryGroups(ctx context.Context, classID int) ([]studygroup.Group, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	groups := make([]studygroup.Group, 0)
	for _, g := range repo.db.groups {
		if g.ClassID == classID {
			groups = append(groups, repo.withMembers(*g))
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	return groups, nil
}

func (repo *studyGroupRepository) AddMember(ctx context.Context, groupID, userID int) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.groups[groupID]; !ok {
		return studygroup.ErrNotFound
	}
	if _, ok := repo.db.users[userID]; !ok {
		return user.ErrNotFound
	}
	repo.db.groupMembers[pair{userID, groupID}] = true
	return nil
}

func (repo *studyGroupRepository) RemoveMember(ctx context.Context, groupID, userID int) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	delete(repo.db.groupMembers, pair{userID, groupID})
	return nil
}

func (repo *studyGroupRepository) CreateMeeting(ctx context.Context, m studygroup.Meeting) (studygroup.Meeting, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.groups[m.GroupID]; !ok {
		return studygroup.Meeting{}, studygroup.ErrNotFound
	}
	m.ID = repo.db.nextPK("meetings")
	m.Attendees = nil
	repo.db.meetings[m.ID] = &m
	return m, nil
}

func (repo *studyGroupRepository) GetMeeting(ctx context.Context, id int) (studygroup.Meeting, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if m, ok := repo.db.meetings[id]; ok {
		return repo.withAttendees(*m), nil
	}
	return studygroup.Meeting{}, studygroup.ErrMeetingNotFound
}

func (repo *studyGroupRepository) QueryMeetings(ctx context.Context, groupID int) ([]studygroup.Meeting, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	meetings := make([]studygroup.Meeting, 0)
	for _, m := range repo.db.meetings {
		if m.GroupID == groupID {
			meetings = append(meetings, repo.withAttendees(*m))
		}
	}
	sort.Slice(meetings, func(i, j int) bool {
		if meetings[i].Date.Equal(meetings[j].Date) {
			return meetings[i].ID < meetings[j].ID
		}
		return meetings[i].Date.Before(meetings[j].Date)
	})
	return meetings, nil
}

func (repo *studyGroupRepository) AddAttendee(ctx context.Context, meetingID, userID int) (bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.meetings[meetingID]; !ok {
		return false, studygroup.ErrMeetingNotFound
	}
	k := pair{userID, meetingID}
	if repo.db.attendees[k] {
		return false, nil
	}
	repo.db.attendees[k] = true
	return true, nil
}
