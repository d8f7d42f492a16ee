package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"fintrack/internal/core"
)

type categoryRow struct {
	ID        int64     `db:"id"`
	UserID    string    `db:"user_id"`
	Name      string    `db:"name"`
	Type      string    `db:"type"`
	Color     string    `db:"color"`
	Icon      string    `db:"icon"`
	Archived  bool      `db:"archived"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (row categoryRow) toCore() core.Category {
	return core.Category{
		ID:        row.ID,
		UserID:    row.UserID,
		Name:      row.Name,
		Type:      core.CategoryType(row.Type),
		Color:     row.Color,
		Icon:      row.Icon,
		Archived:  row.Archived,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

// InsertCategory persists c and fills in its ID and timestamps.
func (r *Repository) InsertCategory(ctx context.Context, c *core.Category) error {
	now := utc(time.Now())
	query, args, err := r.sb.Insert("categories").
		Columns("user_id", "name", "type", "color", "icon", "archived", "created_at", "updated_at").
		Values(c.UserID, c.Name, string(c.Type), c.Color, c.Icon, c.Archived, now, now).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert category: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return core.Conflict("Category with this name already exists")
		}
		return fmt.Errorf("insert category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("category insert id: %w", err)
	}
	c.ID = id
	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}

// GetCategory fetches a category scoped to its owner.
func (r *Repository) GetCategory(ctx context.Context, userID string, id int64) (*core.Category, error) {
	return r.getCategory(ctx, sq.Eq{"id": id, "user_id": userID})
}

// GetCategoryAnyOwner fetches a category regardless of owner. The
// transaction validation gate uses it to distinguish a missing category from
// one owned by another user.
func (r *Repository) GetCategoryAnyOwner(ctx context.Context, id int64) (*core.Category, error) {
	return r.getCategory(ctx, sq.Eq{"id": id})
}

// GetCategoryByName fetches by the per-user unique name.
func (r *Repository) GetCategoryByName(ctx context.Context, userID, name string) (*core.Category, error) {
	return r.getCategory(ctx, sq.Eq{"user_id": userID, "name": name})
}

func (r *Repository) getCategory(ctx context.Context, where sq.Eq) (*core.Category, error) {
	query, args, err := r.sb.Select(categoryColumns...).From("categories").Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select category: %w", err)
	}

	var row categoryRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.NotFound("Category not found")
		}
		return nil, fmt.Errorf("select category: %w", err)
	}
	c := row.toCore()
	return &c, nil
}

var categoryColumns = []string{
	"id", "user_id", "name", "type", "color", "icon", "archived", "created_at", "updated_at",
}

// ListCategories returns one page of the user's categories plus the total
// filtered count.
func (r *Repository) ListCategories(ctx context.Context, userID string, f core.CategoryFilter) ([]core.Category, int64, error) {
	where := sq.And{sq.Eq{"user_id": userID}}
	if f.Type != nil {
		where = append(where, sq.Eq{"type": string(*f.Type)})
	}
	if !f.IncludeArchived {
		where = append(where, sq.Eq{"archived": false})
	}
	if f.Search != "" {
		where = append(where, sq.Expr(`name LIKE ? ESCAPE '\'`, "%"+escapeLike(f.Search)+"%"))
	}

	page := f.Pagination.Normalize()
	query, args, err := r.sb.Select(categoryColumns...).
		From("categories").
		Where(where).
		OrderBy("name ASC").
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset())).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list categories: %w", err)
	}

	var rows []categoryRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list categories: %w", err)
	}

	total, err := r.count(ctx, "categories", where)
	if err != nil {
		return nil, 0, err
	}

	cats := make([]core.Category, len(rows))
	for i, row := range rows {
		cats[i] = row.toCore()
	}
	return cats, total, nil
}

// UpdateCategory rewrites the mutable fields of c.
func (r *Repository) UpdateCategory(ctx context.Context, c *core.Category) error {
	now := utc(time.Now())
	query, args, err := r.sb.Update("categories").
		Set("name", c.Name).
		Set("type", string(c.Type)).
		Set("color", c.Color).
		Set("icon", c.Icon).
		Set("archived", c.Archived).
		Set("updated_at", now).
		Where(sq.Eq{"id": c.ID, "user_id": c.UserID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update category: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return core.Conflict("Category with this name already exists")
		}
		return fmt.Errorf("update category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NotFound("Category not found")
	}
	c.UpdatedAt = now
	return nil
}

func (r *Repository) count(ctx context.Context, table string, where sq.Sqlizer) (int64, error) {
	query, args, err := r.sb.Select("COUNT(*)").From(table).Where(where).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count %s: %w", table, err)
	}
	var total int64
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return total, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}
