package storage

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"FeedIngestor/internal/domain"
	"FeedIngestor/internal/ports"
)

// CategoryRepository reads users and their interest categories.
type CategoryRepository struct {
	db *gorm.DB
}

var _ ports.CategoryRepository = (*CategoryRepository)(nil)

// NewCategoryRepository binds the repository to db.
func NewCategoryRepository(db *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// ActiveForUser returns the user's active categories ordered by id.
func (r *CategoryRepository) ActiveForUser(ctx context.Context, userID uint) ([]domain.UserCategory, error) {
	var rows []userCategoryModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load categories of user %d: %w", userID, err)
	}

	categories := make([]domain.UserCategory, 0, len(rows))
	for _, row := range rows {
		categories = append(categories, row.toDomain())
	}
	return categories, nil
}

// UsersWithActiveCategories returns distinct users owning at least one
// active category, ordered by id.
func (r *CategoryRepository) UsersWithActiveCategories(ctx context.Context) ([]domain.User, error) {
	active := r.db.Model(&userCategoryModel{}).Select("user_id").Where("is_active = ?", true)

	var rows []userModel
	err := r.db.WithContext(ctx).
		Where("id IN (?)", active).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load users with categories: %w", err)
	}

	users := make([]domain.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, domain.User{ID: row.ID, Username: row.Username, Email: row.Email})
	}
	return users, nil
}

// CreateUser inserts a user with the given categories.
func (r *CategoryRepository) CreateUser(ctx context.Context, user domain.User, categories []domain.UserCategory) (domain.User, error) {
	row := userModel{Username: user.Username, Email: user.Email}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		for _, c := range categories {
			category := userCategoryModel{
				UserID:       row.ID,
				CategoryName: c.Name,
				Keywords:     c.Keywords,
				IsActive:     c.IsActive,
			}
			if err := tx.Create(&category).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("create user %s: %w", user.Username, err)
	}
	return domain.User{ID: row.ID, Username: row.Username, Email: row.Email}, nil
}
