package usecase

import (
	"context"
	"errors"
	"strings"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"go.uber.org/zap"
)

type CategoryUsecase struct {
	tx         repo.TransactionManager
	categories repo.CategoryRepository
	logger     *zap.Logger
}

// DI
func NewCategoryUsecase(tx repo.TransactionManager, categories repo.CategoryRepository, logger *zap.Logger) *CategoryUsecase {
	return &CategoryUsecase{tx: tx, categories: categories, logger: logger}
}

type CategoryInput struct {
	Name        string
	Description string
}

type CategoryListOutput struct {
	Items []model.Category `json:"items"`
	Total int64            `json:"total"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
}

const maxCategoryNameLen = 100

func validateCategoryInput(in CategoryInput) (string, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return "", newError(ErrInvalidArgument, "name required")
	}
	if len(name) > maxCategoryNameLen {
		return "", newError(ErrInvalidArgument, "name too long")
	}
	return name, nil
}

func (u *CategoryUsecase) List(ctx context.Context, page, limit int) (CategoryListOutput, error) {
	if page < 1 {
		return CategoryListOutput{}, newError(ErrInvalidArgument, "invalid page")
	}
	if limit < 1 || limit > 100 {
		return CategoryListOutput{}, newError(ErrInvalidArgument, "invalid limit")
	}

	items, total, err := u.categories.List(ctx, page, limit)
	if err != nil {
		return CategoryListOutput{}, storeError(err)
	}
	return CategoryListOutput{Items: items, Total: total, Page: page, Limit: limit}, nil
}

// 同名カテゴリは409
func (u *CategoryUsecase) Create(ctx context.Context, adminUserID int64, in CategoryInput) (model.Category, error) {
	if adminUserID <= 0 {
		return model.Category{}, ErrUnauthorized
	}
	name, err := validateCategoryInput(in)
	if err != nil {
		return model.Category{}, err
	}

	c := model.Category{Name: name, Description: in.Description}
	if err := u.categories.Create(ctx, &c); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return model.Category{}, newError(ErrConflict, "category %q already exists", name)
		}
		return model.Category{}, storeError(err)
	}

	u.logger.Info("category created", zap.Int64("actor_user_id", adminUserID), zap.Int64("category_id", c.ID))
	return c, nil
}

func (u *CategoryUsecase) Update(ctx context.Context, adminUserID, categoryID int64, in CategoryInput) (model.Category, error) {
	if adminUserID <= 0 {
		return model.Category{}, ErrUnauthorized
	}
	if categoryID <= 0 {
		return model.Category{}, newError(ErrInvalidArgument, "invalid category id")
	}
	name, err := validateCategoryInput(in)
	if err != nil {
		return model.Category{}, err
	}

	var out model.Category
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		c, err := r.Categories().FindByID(ctx, categoryID)
		if errors.Is(err, repo.ErrNotFound) {
			return newError(ErrNotFound, "category %d", categoryID)
		}
		if err != nil {
			return storeError(err)
		}

		c.Name = name
		c.Description = in.Description
		if err := r.Categories().Update(ctx, c); err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return newError(ErrConflict, "category %q already exists", name)
			}
			return storeError(err)
		}
		out = c
		return nil
	})
	if err != nil {
		return model.Category{}, storeError(err)
	}
	return out, nil
}

// 商品が残っているカテゴリは消せない
func (u *CategoryUsecase) Delete(ctx context.Context, adminUserID, categoryID int64) error {
	if adminUserID <= 0 {
		return ErrUnauthorized
	}
	if categoryID <= 0 {
		return newError(ErrInvalidArgument, "invalid category id")
	}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if _, err := r.Categories().FindByID(ctx, categoryID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return newError(ErrNotFound, "category %d", categoryID)
			}
			return storeError(err)
		}

		n, err := r.Products().CountByCategory(ctx, categoryID)
		if err != nil {
			return storeError(err)
		}
		if n > 0 {
			return newError(ErrConflict, "category %d still has %d products", categoryID, n)
		}

		return storeError(r.Categories().Delete(ctx, categoryID))
	})
	if err != nil {
		return storeError(err)
	}

	u.logger.Info("category deleted", zap.Int64("actor_user_id", adminUserID), zap.Int64("category_id", categoryID))
	return nil
}

// 商品作成・更新時のカテゴリ確認（nilはカテゴリ無し）
func checkCategory(ctx context.Context, categories repo.CategoryRepository, categoryID *int64) error {
	if categoryID == nil {
		return nil
	}
	if *categoryID <= 0 {
		return newError(ErrInvalidArgument, "invalid category_id")
	}
	_, err := categories.FindByID(ctx, *categoryID)
	if errors.Is(err, repo.ErrNotFound) {
		return newError(ErrInvalidArgument, "category %d does not exist", *categoryID)
	}
	return storeError(err)
}
