package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/campusmate/core/resource"
)

const resourceColumns = `id, title, description, url, filename, storage_path, type, class_id, user_id,
	created_at, likes, downloads`

var resourceSorts = map[string]string{
	resource.SortNewest: "created_at DESC, id DESC",
	resource.SortOldest: "created_at ASC, id ASC",
	resource.SortTitle:  "title ASC, id DESC",
}

type (
	resourceRow struct {
		ID          int       `db:"id"`
		Title       string    `db:"title"`
		Description string    `db:"description"`
		URL         string    `db:"url"`
		Filename    string    `db:"filename"`
		StoragePath string    `db:"storage_path"`
		Type        string    `db:"type"`
		ClassID     int       `db:"class_id"`
		UserID      null.Int  `db:"user_id"`
		CreatedAt   time.Time `db:"created_at"`
		Likes       int       `db:"likes"`
		Downloads   int       `db:"downloads"`
	}

	resourceRepository struct {
		db *sqlx.DB
	}
)

var _ resource.Repository = (*resourceRepository)(nil) // interface compliance check

func NewResourceRepository(db *sqlx.DB) *resourceRepository {
	return &resourceRepository{db: db}
}

func (r resourceRow) toResource() resource.Resource {
	return resource.Resource{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		URL:         r.URL,
		Filename:    r.Filename,
		StoragePath: r.StoragePath,
		Type:        r.Type,
		ClassID:     r.ClassID,
		UserID:      r.UserID,
		CreatedAt:   r.CreatedAt.UTC(),
		Likes:       r.Likes,
		Downloads:   r.Downloads,
	}
}

func (repo *resourceRepository) CreateResource(ctx context.Context, res resource.Resource) (resource.Resource, error) {
	row := resourceRow{
		Title:       res.Title,
		Description: res.Description,
		URL:         res.URL,
		Filename:    res.Filename,
		StoragePath: res.StoragePath,
		Type:        res.Type,
		ClassID:     res.ClassID,
		UserID:      res.UserID,
		CreatedAt:   res.CreatedAt.UTC(),
	}
	q := `INSERT INTO resources (title, description, url, filename, storage_path, type, class_id, user_id, created_at)
	VALUES (:title, :description, :url, :filename, :storage_path, :type, :class_id, :user_id, :created_at)
	RETURNING id`
	if err := namedGet(ctx, repo.db, &res.ID, q, row); err != nil {
		return resource.Resource{}, errors.Wrap(err, "inserting resource")
	}
	return res, nil
}

func (repo *resourceRepository) GetResource(ctx context.Context, id int) (resource.Resource, error) {
	var row resourceRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+resourceColumns+` FROM resources WHERE id = $1`, id); err != nil {
		return resource.Resource{}, trapNoRowsErr(err, resource.ErrNotFound, "finding resource")
	}
	return row.toResource(), nil
}

func (repo *resourceRepository) QueryResources(ctx context.Context, filter resource.QueryFilter) ([]resource.Resource, error) {
	if len(filter.ClassIDs) == 0 {
		return make([]resource.Resource, 0), nil
	}
	var wb whereBuilder
	wb.add(`class_id IN (?)`, filter.ClassIDs)
	if filter.ClassID != 0 {
		wb.add(`class_id = ?`, filter.ClassID)
	}
	if filter.Type != "" {
		wb.add(`type = ?`, filter.Type)
	}
	order, ok := resourceSorts[filter.Sort]
	if !ok {
		order = resourceSorts[resource.SortNewest]
	}

	q, args, err := inQuery(repo.db, `SELECT `+resourceColumns+` FROM resources`+wb.String()+` ORDER BY `+order, wb.args...)
	if err != nil {
		return nil, errors.Wrap(err, "building resources query")
	}
	var rows []resourceRow
	if err = repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying resources")
	}
	list := make([]resource.Resource, 0, len(rows))
	for _, r := range rows {
		list = append(list, r.toResource())
	}
	return list, nil
}

func (repo *resourceRepository) IncrementDownloads(ctx context.Context, id int) error {
	res, err := repo.db.ExecContext(ctx, `UPDATE resources SET downloads = downloads + 1 WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "incrementing downloads")
	}
	n, err := rowsAffected(res)
	if err != nil {
		return errors.Wrap(err, "incrementing downloads")
	}
	if n == 0 {
		return resource.ErrNotFound
	}
	return nil
}

func (repo *resourceRepository) AddLike(ctx context.Context, id, userID int) (bool, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `INSERT INTO resource_likes (user_id, resource_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, id)
	if err != nil {
		return false, trapForeignKeyErr(err, resource.ErrNotFound, "adding like")
	}
	n, err := rowsAffected(res)
	if err != nil {
		return false, errors.Wrap(err, "adding like")
	}
	if n == 0 {
		return false, nil
	}
	if _, err = tx.ExecContext(ctx, `UPDATE resources SET likes = likes + 1 WHERE id = $1`, id); err != nil {
		return false, errors.Wrap(err, "incrementing likes")
	}
	if err = tx.Commit(); err != nil {
		return false, errors.Wrap(err, "committing like")
	}
	return true, nil
}

func (repo *resourceRepository) DeleteResource(ctx context.Context, id int) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM resources WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting resource")
	}
	n, err := rowsAffected(res)
	if err != nil {
		return errors.Wrap(err, "deleting resource")
	}
	if n == 0 {
		return resource.ErrNotFound
	}
	return nil
}
