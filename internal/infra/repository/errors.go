package repository

import (
	"errors"

	repo "storefront/internal/repository"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Postgres の SQLSTATE
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgLockNotAvailable     = "55P03"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// GORM / pgx のエラーを repository の共通エラーに寄せる
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repo.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return errors.Join(repo.ErrDuplicate, err)
		case pgForeignKeyViolation:
			return errors.Join(repo.ErrReferenced, err)
		case pgLockNotAvailable, pgSerializationFailure, pgDeadlockDetected:
			return errors.Join(repo.ErrLocked, err)
		}
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errors.Join(repo.ErrDuplicate, err)
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return errors.Join(repo.ErrReferenced, err)
	}
	return err
}
