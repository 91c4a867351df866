package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// 行ロック待ちのタイムアウト・デッドロック・直列化失敗
	ErrLocked = errors.New("row locked")
	// 一意制約違反
	ErrDuplicate = errors.New("duplicate key")
	// 外部キーで参照されている
	ErrReferenced = errors.New("still referenced")
)
