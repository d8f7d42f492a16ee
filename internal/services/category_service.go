package services

import (
	"context"
	"strings"

	"fintrack/internal/core"
)

// CategoryService manages per-user category identity and lifecycle.
type CategoryService struct {
	store CategoryStore
}

func NewCategoryService(store CategoryStore) *CategoryService {
	return &CategoryService{store: store}
}

// Create validates and persists a new category for the user.
func (s *CategoryService) Create(ctx context.Context, userID string, c core.Category) (*core.Category, error) {
	c.ID = 0
	c.UserID = userID
	c.Name = strings.TrimSpace(c.Name)
	c.Archived = false

	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.InsertCategory(ctx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Get returns the category scoped to its owner.
func (s *CategoryService) Get(ctx context.Context, userID string, id int64) (*core.Category, error) {
	return s.store.GetCategory(ctx, userID, id)
}

// List returns one page of the user's categories. Archived categories are
// excluded unless the filter opts in.
func (s *CategoryService) List(ctx context.Context, userID string, f core.CategoryFilter) ([]core.Category, core.PageInfo, error) {
	f.Pagination = f.Pagination.Normalize()
	categories, total, err := s.store.ListCategories(ctx, userID, f)
	if err != nil {
		return nil, core.PageInfo{}, err
	}
	return categories, core.NewPageInfo(f.Pagination, total), nil
}

// CategoryPatch carries the updatable category fields; nil means unchanged.
type CategoryPatch struct {
	Name  *string
	Type  *core.CategoryType
	Color *string
	Icon  *string
}

// Update applies the patch, re-validating the merged record. Renaming onto
// an existing name fails with a conflict.
func (s *CategoryService) Update(ctx context.Context, userID string, id int64, patch CategoryPatch) (*core.Category, error) {
	c, err := s.store.GetCategory(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name != c.Name {
			if err := s.checkNameFree(ctx, userID, name); err != nil {
				return nil, err
			}
		}
		c.Name = name
	}
	if patch.Type != nil {
		c.Type = *patch.Type
	}
	if patch.Color != nil {
		c.Color = *patch.Color
	}
	if patch.Icon != nil {
		c.Icon = *patch.Icon
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.UpdateCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Archive soft-deletes the category. Idempotent: archiving an already
// archived category succeeds. Existing transaction and budget references
// stay valid; only new references are blocked.
func (s *CategoryService) Archive(ctx context.Context, userID string, id int64) error {
	c, err := s.store.GetCategory(ctx, userID, id)
	if err != nil {
		return err
	}
	if c.Archived {
		return nil
	}
	c.Archived = true
	return s.store.UpdateCategory(ctx, c)
}

func (s *CategoryService) checkNameFree(ctx context.Context, userID, name string) error {
	_, err := s.store.GetCategoryByName(ctx, userID, name)
	if err == nil {
		return core.Conflict("Category with this name already exists")
	}
	if core.KindOf(err) == core.KindNotFound {
		return nil
	}
	return err
}
