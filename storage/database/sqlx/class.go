package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/campusmate/core/class"
	"github.com/trezcool/campusmate/core/user"
)

const classColumns = `id, name, color, archived, archived_at, created_by, created_at`

type (
	classRow struct {
		ID         int       `db:"id"`
		Name       string    `db:"name"`
		Color      string    `db:"color"`
		Archived   bool      `db:"archived"`
		ArchivedAt null.Time `db:"archived_at"`
		CreatedBy  null.Int  `db:"created_by"`
		CreatedAt  time.Time `db:"created_at"`
	}

	classRepository struct {
		db *sqlx.DB
	}
)

var _ class.Repository = (*classRepository)(nil) // interface compliance check

func NewClassRepository(db *sqlx.DB) *classRepository {
	return &classRepository{db: db}
}

func toClassRow(cls class.Class) classRow {
	return classRow{
		ID:         cls.ID,
		Name:       cls.Name,
		Color:      cls.Color,
		Archived:   cls.Archived,
		ArchivedAt: cls.ArchivedAt,
		CreatedBy:  cls.CreatedBy,
		CreatedAt:  cls.CreatedAt.UTC(),
	}
}

func (r classRow) toClass() class.Class {
	return class.Class{
		ID:         r.ID,
		Name:       r.Name,
		Color:      r.Color,
		Archived:   r.Archived,
		ArchivedAt: r.ArchivedAt,
		CreatedBy:  r.CreatedBy,
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

func (repo *classRepository) CreateClass(ctx context.Context, cls class.Class) (class.Class, error) {
	q := `INSERT INTO classes (name, color, archived, archived_at, created_by, created_at)
	VALUES (:name, :color, :archived, :archived_at, :created_by, :created_at)
	RETURNING id`
	if err := namedGet(ctx, repo.db, &cls.ID, q, toClassRow(cls)); err != nil {
		return class.Class{}, errors.Wrap(err, "inserting class")
	}
	return cls, nil
}

func (repo *classRepository) GetClass(ctx context.Context, id int) (class.Class, error) {
	var row classRow
	q := `SELECT ` + classColumns + ` FROM classes WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return class.Class{}, trapNoRowsErr(err, class.ErrNotFound, "finding class")
	}
	return row.toClass(), nil
}

func (repo *classRepository) GetClassByName(ctx context.Context, name string) (class.Class, error) {
	var row classRow
	q := `SELECT ` + classColumns + ` FROM classes WHERE name = $1 ORDER BY id LIMIT 1`
	if err := repo.db.GetContext(ctx, &row, q, name); err != nil {
		return class.Class{}, trapNoRowsErr(err, class.ErrNotFound, "finding class by name")
	}
	return row.toClass(), nil
}

func (repo *classRepository) QueryUserClasses(ctx context.Context, userID int, archived *bool) ([]class.Class, error) {
	var wb whereBuilder
	wb.add(`uc.user_id = ?`, userID)
	if archived != nil {
		wb.add(`c.archived = ?`, *archived)
	}
	q := `SELECT c.id, c.name, c.color, c.archived, c.archived_at, c.created_by, c.created_at
	FROM classes c JOIN user_classes uc ON uc.class_id = c.id` + wb.String() + ` ORDER BY c.name, c.id`

	var rows []classRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), wb.args...); err != nil {
		return nil, errors.Wrap(err, "querying user classes")
	}
	classes := make([]class.Class, 0, len(rows))
	for _, r := range rows {
		classes = append(classes, r.toClass())
	}
	return classes, nil
}

func (repo *classRepository) UpdateClass(ctx context.Context, cls class.Class) (class.Class, error) {
	q := `UPDATE classes SET name = :name, color = :color, archived = :archived, archived_at = :archived_at
	WHERE id = :id`
	res, err := namedExec(ctx, repo.db, q, toClassRow(cls))
	if err != nil {
		return class.Class{}, errors.Wrap(err, "updating class")
	}
	n, err := rowsAffected(res)
	if err != nil {
		return class.Class{}, errors.Wrap(err, "updating class")
	}
	if n == 0 {
		return class.Class{}, class.ErrNotFound
	}
	return cls, nil
}

func (repo *classRepository) Enroll(ctx context.Context, userID, classID int) error {
	q := `INSERT INTO user_classes (user_id, class_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	if _, err := repo.db.ExecContext(ctx, q, userID, classID); err != nil {
		return errors.Wrap(err, "enrolling user")
	}
	return nil
}

func (repo *classRepository) IsEnrolled(ctx context.Context, userID, classID int) (bool, error) {
	var ok bool
	q := `SELECT EXISTS (SELECT 1 FROM user_classes WHERE user_id = $1 AND class_id = $2)`
	if err := repo.db.GetContext(ctx, &ok, q, userID, classID); err != nil {
		return false, errors.Wrap(err, "checking enrollment")
	}
	return ok, nil
}

func (repo *classRepository) QueryMembers(ctx context.Context, classID int) ([]user.User, error) {
	q := `SELECT u.id, u.username, u.email, u.password_hash, u.is_active, u.roles, u.canvas_ical_url,
		u.email_notifications, u.study_reminders, u.group_notifications, u.theme, u.created_at,
		u.updated_at, u.last_login
	FROM users u JOIN user_classes uc ON uc.user_id = u.id
	WHERE uc.class_id = $1
	ORDER BY u.username`
	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, q, classID); err != nil {
		return nil, errors.Wrap(err, "querying class members")
	}
	return toUsers(rows), nil
}
