package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"sam-assistant/internal/model"
)

type OperatorRepository struct {
	db *gorm.DB
}

func NewOperatorRepository(db *gorm.DB) *OperatorRepository {
	return &OperatorRepository{db: db}
}

func (r *OperatorRepository) Create(ctx context.Context, operator *model.Operator) error {
	if err := r.db.WithContext(ctx).Create(operator).Error; err != nil {
		return fmt.Errorf("create operator failed: %w", err)
	}
	return nil
}

// FindByUsername returns nil when no operator has the username.
func (r *OperatorRepository) FindByUsername(ctx context.Context, username string) (*model.Operator, error) {
	return r.first(ctx, "find operator by username", "username = ?", username)
}

func (r *OperatorRepository) FindByID(ctx context.Context, id uint) (*model.Operator, error) {
	return r.first(ctx, "find operator by id", "id = ?", id)
}

// FindConflicting returns any operator already holding username or email.
func (r *OperatorRepository) FindConflicting(ctx context.Context, username, email string) ([]model.Operator, error) {
	var operators []model.Operator
	if err := r.db.WithContext(ctx).
		Where("username = ? OR email = ?", username, email).
		Find(&operators).Error; err != nil {
		return nil, fmt.Errorf("find conflicting operators failed: %w", err)
	}
	return operators, nil
}

func (r *OperatorRepository) first(ctx context.Context, op, query string, arg interface{}) (*model.Operator, error) {
	var operator model.Operator
	err := r.db.WithContext(ctx).Where(query, arg).First(&operator).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", op, err)
	}
	return &operator, nil
}
