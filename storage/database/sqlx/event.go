package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/campusmate/core/event"
)

const eventColumns = `id, title, description, date, location, type, status, user_id, class_id, created_at`

type (
	eventRow struct {
		ID          int       `db:"id"`
		Title       string    `db:"title"`
		Description string    `db:"description"`
		Date        time.Time `db:"date"`
		Location    string    `db:"location"`
		Type        string    `db:"type"`
		Status      string    `db:"status"`
		UserID      int       `db:"user_id"`
		ClassID     null.Int  `db:"class_id"`
		CreatedAt   time.Time `db:"created_at"`
	}

	eventRepository struct {
		db *sqlx.DB
	}
)

var _ event.Repository = (*eventRepository)(nil) // interface compliance check

func NewEventRepository(db *sqlx.DB) *eventRepository {
	return &eventRepository{db: db}
}

func toEventRow(evt event.Event) eventRow {
	return eventRow{
		ID:          evt.ID,
		Title:       evt.Title,
		Description: evt.Description,
		Date:        evt.Date,
		Location:    evt.Location,
		Type:        evt.Type,
		Status:      evt.Status,
		UserID:      evt.UserID,
		ClassID:     evt.ClassID,
		CreatedAt:   evt.CreatedAt.UTC(),
	}
}

func (r eventRow) toEvent() event.Event {
	return event.Event{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Date:        r.Date,
		Location:    r.Location,
		Type:        r.Type,
		Status:      r.Status,
		UserID:      r.UserID,
		ClassID:     r.ClassID,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

func eventWhere(filter event.QueryFilter) whereBuilder {
	var wb whereBuilder
	if filter.UserID != 0 {
		wb.add(`user_id = ?`, filter.UserID)
	}
	if filter.ClassID.Valid {
		wb.add(`class_id = ?`, filter.ClassID.Int)
	}
	if len(filter.Types) > 0 {
		wb.add(`type = ANY (?)`, pq.StringArray(filter.Types))
	}
	if !filter.From.IsZero() {
		wb.add(`date >= ?`, filter.From)
	}
	if !filter.To.IsZero() {
		wb.add(`date <= ?`, filter.To)
	}
	return wb
}

func (repo *eventRepository) CreateEvent(ctx context.Context, evt event.Event) (event.Event, error) {
	q := `INSERT INTO events (title, description, date, location, type, status, user_id, class_id, created_at)
	VALUES (:title, :description, :date, :location, :type, :status, :user_id, :class_id, :created_at)
	RETURNING id`
	if err := namedGet(ctx, repo.db, &evt.ID, q, toEventRow(evt)); err != nil {
		return event.Event{}, errors.Wrap(err, "inserting event")
	}
	return evt, nil
}

func (repo *eventRepository) GetEvent(ctx context.Context, id int) (event.Event, error) {
	var row eventRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id); err != nil {
		return event.Event{}, trapNoRowsErr(err, event.ErrNotFound, "finding event")
	}
	return row.toEvent(), nil
}

func (repo *eventRepository) QueryEvents(ctx context.Context, filter event.QueryFilter) ([]event.Event, error) {
	wb := eventWhere(filter)
	q := `SELECT ` + eventColumns + ` FROM events` + wb.String() + ` ORDER BY date, id`
	var rows []eventRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), wb.args...); err != nil {
		return nil, errors.Wrap(err, "querying events")
	}
	events := make([]event.Event, 0, len(rows))
	for _, r := range rows {
		events = append(events, r.toEvent())
	}
	return events, nil
}

func (repo *eventRepository) EventExists(ctx context.Context, userID int, title string, date time.Time) (bool, error) {
	var ok bool
	q := `SELECT EXISTS (SELECT 1 FROM events WHERE user_id = $1 AND title = $2 AND date = $3)`
	if err := repo.db.GetContext(ctx, &ok, q, userID, title, date); err != nil {
		return false, errors.Wrap(err, "checking event")
	}
	return ok, nil
}

func (repo *eventRepository) UpdateEvent(ctx context.Context, evt event.Event) (event.Event, error) {
	q := `UPDATE events SET title = :title, description = :description, date = :date, location = :location,
		type = :type, status = :status, class_id = :class_id
	WHERE id = :id`
	res, err := namedExec(ctx, repo.db, q, toEventRow(evt))
	if err != nil {
		return event.Event{}, errors.Wrap(err, "updating event")
	}
	n, err := rowsAffected(res)
	if err != nil {
		return event.Event{}, errors.Wrap(err, "updating event")
	}
	if n == 0 {
		return event.Event{}, event.ErrNotFound
	}
	return evt, nil
}

func (repo *eventRepository) DeleteEvents(ctx context.Context, filter event.QueryFilter) (int, error) {
	wb := eventWhere(filter)
	if len(wb.conds) == 0 {
		return 0, errors.New("refusing to delete events without filter")
	}
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(`DELETE FROM events`+wb.String()), wb.args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting events")
	}
	return rowsAffected(res)
}

func (repo *eventRepository) DeleteEvent(ctx context.Context, id int) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting event")
	}
	n, err := rowsAffected(res)
	if err != nil {
		return errors.Wrap(err, "deleting event")
	}
	if n == 0 {
		return event.ErrNotFound
	}
	return nil
}
