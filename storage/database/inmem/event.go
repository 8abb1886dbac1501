package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/campusmate/core/event"
)

type eventRepository struct {
	db *DB
}

var _ event.Repository = (*eventRepository)(nil) // interface compliance check

func NewEventRepository(db *DB) *eventRepository {
	return &eventRepository{db: db}
}

func (repo *eventRepository) CreateEvent(ctx context.Context, evt event.Event) (event.Event, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	evt.ID = repo.db.nextPK("events")
	repo.db.events[evt.ID] = &evt
	return evt, nil
}

func (repo *eventRepository) GetEvent(ctx context.Context, id int) (event.Event, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if evt, ok := repo.db.events[id]; ok {
		return *evt, nil
	}
	return event.Event{}, event.ErrNotFound
}

func (repo *eventRepository) QueryEvents(ctx context.Context, filter event.QueryFilter) ([]event.Event, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	events := make([]event.Event, 0)
	for _, evt := range repo.db.events {
		if filter.Match(*evt) {
			events = append(events, *evt)
		}
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].Date.Equal(events[j].Date) {
			return events[i].ID < events[j].ID
		}
		return events[i].Date.Before(events[j].Date)
	})
	return events, nil
}

func (repo *eventRepository) EventExists(ctx context.Context, userID int, title string, date time.Time) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, evt := range repo.db.events {
		if evt.UserID == userID && evt.Title == title && evt.Date.Equal(date) {
			return true, nil
		}
	}
	return false, nil
}

func (repo *eventRepository) UpdateEvent(ctx context.Context, evt event.Event) (event.Event, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.events[evt.ID]; !ok {
		return event.Event{}, event.ErrNotFound
	}
	repo.db.events[evt.ID] = &evt
	return evt, nil
}

func (repo *eventRepository) DeleteEvents(ctx context.Context, filter event.QueryFilter) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var cnt int
	for id, evt := range repo.db.events {
		if filter.Match(*evt) {
			delete(repo.db.events, id)
			cnt++
		}
	}
	return cnt, nil
}

func (repo *eventRepository) DeleteEvent(ctx context.Context, id int) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.events[id]; !ok {
		return event.ErrNotFound
	}
	delete(repo.db.events, id)
	return nil
}
