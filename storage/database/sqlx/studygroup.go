package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/campusmate/core/studygroup"
)

const groupColumns = `id, name, class_id, created_by, created_at, max_members, meeting_link, description`

type (
	groupRow struct {
		ID          int       `db:"id"`
		Name        string    `db:"name"`
		ClassID     int       `db:"class_id"`
		CreatedBy   int       `db:"created_by"`
		CreatedAt   time.Time `db:"created_at"`
		MaxMembers  int       `db:"max_members"`
		MeetingLink string    `db:"meeting_link"`
		Description string    `db:"description"`
	}

	memberRow struct {
		GroupID  int    `db:"group_id"`
		ID       int    `db:"id"`
		Username string `db:"username"`
	}

	meetingRow struct {
		ID          int       `db:"id"`
		GroupID     int       `db:"group_id"`
		Date        time.Time `db:"date"`
		Duration    int       `db:"duration"`
		Location    string    `db:"location"`
		MeetingLink string    `db:"meeting_link"`
		Notes       string    `db:"notes"`
	}

	attendeeRow struct {
		MeetingID int `db:"meeting_id"`
		UserID    int `db:"user_id"`
	}

	studyGroupRepository struct {
		db *sqlx.DB
	}
)

var _ studygroup.Repository = (*studyGroupRepository)(nil) // interface compliance check

func NewStudyGroupRepository(db *sqlx.DB) *studyGroupRepository {
	return &studyGroupRepository{db: db}
}

func (r groupRow) toGroup() studygroup.Group {
	return studygroup.Group{
		ID:          r.ID,
		Name:        r.Name,
		ClassID:     r.ClassID,
		CreatedBy:   r.CreatedBy,
		CreatedAt:   r.CreatedAt.UTC(),
		MaxMembers:  r.MaxMembers,
		MeetingLink: r.MeetingLink,
		Description: r.Description,
		Members:     make([]studygroup.Member, 0),
	}
}

func (r meetingRow) toMeeting() studygroup.Meeting {
	return studygroup.Meeting{
		ID:          r.ID,
		GroupID:     r.GroupID,
		Date:        r.Date,
		Duration:    r.Duration,
		Location:    r.Location,
		MeetingLink: r.MeetingLink,
		Notes:       r.Notes,
		Attendees:   make([]int, 0),
	}
}

// withMembers loads the members of `groups` in one query.
func (repo *studyGroupRepository) withMembers(ctx context.Context, groups []studygroup.Group) error {
	if len(groups) == 0 {
		return nil
	}
	ids := make([]int, 0, len(groups))
	idx := make(map[int]int, len(groups))
	for i, g := range groups {
		ids = append(ids, g.ID)
		idx[g.ID] = i
	}
	q, args, err := inQuery(repo.db, `SELECT m.group_id, u.id, u.username
	FROM study_group_members m JOIN users u ON u.id = m.user_id
	WHERE m.group_id IN (?)
	ORDER BY u.username`, ids)
	if err != nil {
		return errors.Wrap(err, "building members query")
	}
	var rows []memberRow
	if err = repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return errors.Wrap(err, "querying group members")
	}
	for _, r := range rows {
		g := &groups[idx[r.GroupID]]
		g.Members = append(g.Members, studygroup.Member{ID: r.ID, Username: r.Username})
	}
	return nil
}

// withAttendees loads the attendees of `meetings` in one query.
func (repo *studyGroupRepository) withAttendees(ctx context.Context, meetings []studygroup.Meeting) error {
	if len(meetings) == 0 {
		return nil
	}
	ids := make([]int, 0, len(meetings))
	idx := make(map[int]int, len(meetings))
	for i, m := range meetings {
		ids = append(ids, m.ID)
		idx[m.ID] = i
	}
	q, args, err := inQuery(repo.db, `SELECT meeting_id, user_id FROM meeting_attendees
	WHERE meeting_id IN (?) ORDER BY user_id`, ids)
	if err != nil {
		return errors.Wrap(err, "building attendees query")
	}
	var rows []attendeeRow
	if err = repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return errors.Wrap(err, "querying meeting attendees")
	}
	for _, r := range rows {
		m := &meetings[idx[r.MeetingID]]
		m.Attendees = append(m.Attendees, r.UserID)
	}
	return nil
}

func (repo *studyGroupRepository) CreateGroup(ctx context.Context, g studygroup.Group) (studygroup.Group, error) {
	row := groupRow{
		Name:        g.Name,
		ClassID:     g.ClassID,
		CreatedBy:   g.CreatedBy,
		CreatedAt:   g.CreatedAt.UTC(),
		MaxMembers:  g.MaxMembers,
		MeetingLink: g.MeetingLink,
		Description: g.Description,
	}
	q := `INSERT INTO study_groups (name, class_id, created_by, created_at, max_members, meeting_link, description)
	VALUES (:name, :class_id, :created_by, :created_at, :max_members, :meeting_link, :description)
	RETURNING id`
	if err := namedGet(ctx, repo.db, &g.ID, q, row); err != nil {
		return studygroup.Group{}, errors.Wrap(err, "inserting study group")
	}
	g.Members = nil
	return g, nil
}

func (repo *studyGroupRepository) GetGroup(ctx context.Context, id int) (studygroup.Group, error) {
	var row groupRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+groupColumns+` FROM study_groups WHERE id = $1`, id); err != nil {
		return studygroup.Group{}, trapNoRowsErr(err, studygroup.ErrNotFound, "finding study group")
	}
	groups := []studygroup.Group{row.toGroup()}
	if err := repo.withMembers(ctx, groups); err != nil {
		return studygroup.Group{}, err
	}
	return groups[0], nil
}

func (repo *studyGroupRepository) QueryGroups(ctx context.Context, classID int) ([]studygroup.Group, error) {
	var rows []groupRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT `+groupColumns+` FROM study_groups WHERE class_id = $1 ORDER BY id`, classID); err != nil {
		return nil, errors.Wrap(err, "querying study groups")
	}
	groups := make([]studygroup.Group, 0, len(rows))
	for _, r := range rows {
		groups = append(groups, r.toGroup())
	}
	if err := repo.withMembers(ctx, groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func (repo *studyGroupRepository) AddMember(ctx context.Context, groupID, userID int) error {
	q := `INSERT INTO study_group_members (user_id, group_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	if _, err := repo.db.ExecContext(ctx, q, userID, groupID); err != nil {
		return trapForeignKeyErr(err, studygroup.ErrNotFound, "adding group member")
	}
	return nil
}

func (repo *studyGroupRepository) RemoveMember(ctx context.Context, groupID, userID int) error {
	q := `DELETE FROM study_group_members WHERE user_id = $1 AND group_id = $2`
	if _, err := repo.db.ExecContext(ctx, q, userID, groupID); err != nil {
		return errors.Wrap(err, "removing group member")
	}
	return nil
}

func (repo *studyGroupRepository) CreateMeeting(ctx context.Context, m studygroup.Meeting) (studygroup.Meeting, error) {
	row := meetingRow{
		GroupID:     m.GroupID,
		Date:        m.Date,
		Duration:    m.Duration,
		Location:    m.Location,
		MeetingLink: m.MeetingLink,
		Notes:       m.Notes,
	}
	q := `INSERT INTO meetings (group_id, date, duration, location, meeting_link, notes)
	VALUES (:group_id, :date, :duration, :location, :meeting_link, :notes)
	RETURNING id`
	if err := namedGet(ctx, repo.db, &m.ID, q, row); err != nil {
		return studygroup.Meeting{}, trapForeignKeyErr(err, studygroup.ErrNotFound, "inserting meeting")
	}
	m.Attendees = nil
	return m, nil
}

func (repo *studyGroupRepository) GetMeeting(ctx context.Context, id int) (studygroup.Meeting, error) {
	var row meetingRow
	q := `SELECT id, group_id, date, duration, location, meeting_link, notes FROM meetings WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return studygroup.Meeting{}, trapNoRowsErr(err, studygroup.ErrMeetingNotFound, "finding meeting")
	}
	meetings := []studygroup.Meeting{row.toMeeting()}
	if err := repo.withAttendees(ctx, meetings); err != nil {
		return studygroup.Meeting{}, err
	}
	return meetings[0], nil
}

func (repo *studyGroupRepository) QueryMeetings(ctx context.Context, groupID int) ([]studygroup.Meeting, error) {
	var rows []meetingRow
	q := `SELECT id, group_id, date, duration, location, meeting_link, notes FROM meetings
	WHERE group_id = $1 ORDER BY date, id`
	if err := repo.db.SelectContext(ctx, &rows, q, groupID); err != nil {
		return nil, errors.Wrap(err, "querying meetings")
	}
	meetings := make([]studygroup.Meeting, 0, len(rows))
	for _, r := range rows {
		meetings = append(meetings, r.toMeeting())
	}
	if err := repo.withAttendees(ctx, meetings); err != nil {
		return nil, err
	}
	return meetings, nil
}

func (repo *studyGroupRepository) AddAttendee(ctx context.Context, meetingID, userID int) (bool, error) {
	q := `INSERT INTO meeting_attendees (user_id, meeting_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	res, err := repo.db.ExecContext(ctx, q, userID, meetingID)
	if err != nil {
		return false, trapForeignKeyErr(err, studygroup.ErrMeetingNotFound, "adding attendee")
	}
	n, err := rowsAffected(res)
	if err != nil {
		return false, errors.Wrap(err, "adding attendee")
	}
	return n > 0, nil
}
