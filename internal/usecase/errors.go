package usecase

import (
	"errors"
	"fmt"

	repo "storefront/internal/repository"
)

// Handlerがステータスコードに変換する（handler.writeError）
var (
	//400 入力不正
	ErrInvalidArgument = errors.New("invalid argument")
	//401 認証失敗
	ErrUnauthorized = errors.New("unauthorized")
	//403 権限
	ErrForbidden = errors.New("forbidden")
	//404
	ErrNotFound        = errors.New("not found")
	ErrProductNotFound = errors.New("product not found")
	ErrLineNotFound    = errors.New("cart line not found")
	ErrAddressNotFound = errors.New("address not found")
	//400 空カートで注文しようとした
	ErrEmptyCart = errors.New("cart is empty")
	//409 ロック待ち超過・同時送信・一意制約
	ErrConflict = errors.New("conflict")
	//409 許可されていないステータス遷移
	ErrInvalidTransition = errors.New("invalid status transition")
	//500 カート合計と明細が合わない
	ErrInconsistent = errors.New("cart total inconsistent")
	//500
	ErrInternal = errors.New("internal error")
)

// kindにメッセージを付ける（errors.Isでkindを判定できる）
func newError(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// usecaseの種別エラーか
func isKind(err error) bool {
	for _, k := range []error{
		ErrInvalidArgument, ErrUnauthorized, ErrForbidden,
		ErrNotFound, ErrProductNotFound, ErrLineNotFound, ErrAddressNotFound,
		ErrEmptyCart, ErrConflict, ErrInvalidTransition, ErrInconsistent, ErrInternal,
	} {
		if errors.Is(err, k) {
			return true
		}
	}
	return false
}

// repositoryのエラーを種別に寄せる。原因はログ用に残す
func storeError(err error) error {
	switch {
	case err == nil:
		return nil
	case isKind(err):
		return err
	case errors.Is(err, repo.ErrLocked):
		return fmt.Errorf("%w: cart is busy, retry: %w", ErrConflict, err)
	case errors.Is(err, repo.ErrDuplicate), errors.Is(err, repo.ErrReferenced):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	default:
		return fmt.Errorf("%w: %w", ErrInternal, err)
	}
}
