package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/campusmate/core"
	"github.com/trezcool/campusmate/core/user"
)

const userColumns = `id, username, email, password_hash, is_active, roles, canvas_ical_url, email_notifications,
	study_reminders, group_notifications, theme, created_at, updated_at, last_login`

var userOrderingFields = map[string]string{
	"id":         "id",
	"username":   "username",
	"email":      "email",
	"created_at": "created_at",
	"last_login": "last_login",
}

type (
	userRow struct {
		ID                 int            `db:"id"`
		Username           string         `db:"username"`
		Email              string         `db:"email"`
		PasswordHash       []byte         `db:"password_hash"`
		IsActive           bool           `db:"is_active"`
		Roles              pq.StringArray `db:"roles"`
		CanvasICalURL      string         `db:"canvas_ical_url"`
		EmailNotifications bool           `db:"email_notifications"`
		StudyReminders     bool           `db:"study_reminders"`
		GroupNotifications bool           `db:"group_notifications"`
		Theme              string         `db:"theme"`
		CreatedAt          time.Time      `db:"created_at"`
		UpdatedAt          time.Time      `db:"updated_at"`
		LastLogin          null.Time      `db:"last_login"`
	}

	userRepository struct {
		db *sqlx.DB
	}
)

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

func toUserRow(usr user.User) userRow {
	return userRow{
		ID:                 usr.ID,
		Username:           usr.Username,
		Email:              usr.Email,
		PasswordHash:       usr.PasswordHash,
		IsActive:           usr.IsActive,
		Roles:              usr.Roles,
		CanvasICalURL:      usr.CanvasICalURL,
		EmailNotifications: usr.EmailNotifications,
		StudyReminders:     usr.StudyReminders,
		GroupNotifications: usr.GroupNotifications,
		Theme:              usr.Theme,
		CreatedAt:          usr.CreatedAt.UTC(),
		UpdatedAt:          usr.UpdatedAt.UTC(),
		LastLogin:          null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (r userRow) toUser() user.User {
	return user.User{
		ID:                 r.ID,
		Username:           r.Username,
		Email:              r.Email,
		PasswordHash:       r.PasswordHash,
		IsActive:           r.IsActive,
		Roles:              []string(r.Roles),
		CanvasICalURL:      r.CanvasICalURL,
		EmailNotifications: r.EmailNotifications,
		StudyReminders:     r.StudyReminders,
		GroupNotifications: r.GroupNotifications,
		Theme:              r.Theme,
		CreatedAt:          r.CreatedAt.UTC(),
		UpdatedAt:          r.UpdatedAt.UTC(),
		LastLogin:          r.LastLogin.Time.UTC(),
	}
}

func toUsers(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toUser())
	}
	return users
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	q := `SELECT username FROM users WHERE (username = ? OR email = ?)`
	args := []interface{}{username, email}
	if len(excludedUsers) > 0 {
		ids := make([]int, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		q += ` AND id NOT IN (?)`
		args = append(args, ids)
	}
	q, args, err := inQuery(repo.db, q+` LIMIT 1`, args...)
	if err != nil {
		return errors.Wrap(err, "building uniqueness query")
	}

	var found string
	if err = repo.db.GetContext(ctx, &found, q, args...); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return nil
		}
		return errors.Wrap(err, "checking user uniqueness")
	}
	if found == username {
		return user.ErrUsernameExists
	}
	return user.ErrEmailExists
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	row := toUserRow(usr)
	q := `INSERT INTO users (username, email, password_hash, is_active, roles, canvas_ical_url, email_notifications,
		study_reminders, group_notifications, theme, created_at, updated_at, last_login)
	VALUES (:username, :email, :password_hash, :is_active, :roles, :canvas_ical_url, :email_notifications,
		:study_reminders, :group_notifications, :theme, :created_at, :updated_at, :last_login)
	RETURNING id`
	if err := namedGet(ctx, repo.db, &usr.ID, q, row); err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	var wb whereBuilder
	if filter != nil {
		// users with Username or Email matching the search keyword
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			wb.add(`(username ILIKE ? OR email ILIKE ?)`, val, val)
		}
		// users with any role that starts with any of the provided roles
		if len(filter.Roles) > 0 {
			prefixes := make([]string, 0, len(filter.Roles))
			for _, role := range filter.Roles {
				prefixes = append(prefixes, role+"%")
			}
			wb.add(`EXISTS (SELECT 1 FROM UNNEST(roles) user_role WHERE user_role ILIKE ANY (?))`, pq.StringArray(prefixes))
		}
		if filter.IsActive != nil {
			wb.add(`is_active = ?`, *filter.IsActive)
		}
		if !filter.CreatedFrom.IsZero() {
			wb.add(`created_at >= ?`, filter.CreatedFrom.UTC())
		}
		if !filter.CreatedTo.IsZero() {
			wb.add(`created_at <= ?`, filter.CreatedTo.UTC())
		}
		if filter.HasCanvas {
			wb.add(`canvas_ical_url <> ''`)
		}
	}

	q := `SELECT ` + userColumns + ` FROM users` + wb.String() + orderByClause(ordering, userOrderingFields, "id ASC")
	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), wb.args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return toUsers(rows), nil
}

func (repo *userRepository) QueryUsersByID(ctx context.Context, ids ...int) ([]user.User, error) {
	if len(ids) == 0 {
		return make([]user.User, 0), nil
	}
	q, args, err := inQuery(repo.db, `SELECT `+userColumns+` FROM users WHERE id IN (?) ORDER BY username`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "building users query")
	}
	var rows []userRow
	if err = repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying users by ID")
	}
	return toUsers(rows), nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var wb whereBuilder
	switch {
	case filter.ID != 0:
		wb.add(`id = ?`, filter.ID)
	case filter.Username != "":
		wb.add(`username = ?`, filter.Username)
	case filter.Email != "":
		wb.add(`email = ?`, filter.Email)
	case len(filter.UsernameOrEmail) > 0:
		uname := filter.UsernameOrEmail[0]
		email := uname
		if len(filter.UsernameOrEmail) == 2 && filter.UsernameOrEmail[1] != "" {
			email = filter.UsernameOrEmail[1]
		}
		wb.add(`(username = ? OR email = ?)`, uname, email)
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	q := `SELECT ` + userColumns + ` FROM users` + wb.String() + ` LIMIT 1`
	if err := repo.db.GetContext(ctx, &row, repo.db.Rebind(q), wb.args...); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user")
	}
	return row.toUser(), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := `UPDATE users SET username = :username, email = :email, password_hash = :password_hash,
		is_active = :is_active, roles = :roles, canvas_ical_url = :canvas_ical_url,
		email_notifications = :email_notifications, study_reminders = :study_reminders,
		group_notifications = :group_notifications, theme = :theme, updated_at = :updated_at,
		last_login = :last_login
	WHERE id = :id`
	res, err := namedExec(ctx, repo.db, q, toUserRow(usr))
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := rowsAffected(res); err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	} else if n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo *userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID == 0 {
		return repo.CreateUser(ctx, usr)
	}
	return repo.UpdateUser(ctx, usr)
}

// DeleteUsersByID relies on ON DELETE CASCADE / SET NULL foreign keys to clean up user data.
func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...int) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	q, args, err := inQuery(repo.db, `DELETE FROM users WHERE id IN (?)`, ids)
	if err != nil {
		return 0, errors.Wrap(err, "building delete query")
	}
	res, err := repo.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	return rowsAffected(res)
}
