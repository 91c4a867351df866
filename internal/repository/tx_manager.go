package repository

import "context"

// トランザクション内で使う約束
type TxRepos interface {
	Carts() CartRepository
	Products() ProductRepository
	Categories() CategoryRepository
	Inventory() InventoryRepository
	Orders() OrderRepository
	OrderItems() OrderItemRepository
	Payments() PaymentRepository
	Addresses() AddressRepository
	AuditLogs() AuditLogRepository
	Users() UserRepository
}

// UsecaseからTxの開始/commit/rollbackを隠す。
// fnがエラーを返したら全てロールバックされる。
type TransactionManager interface {
	WithinTx(ctx context.Context, fn func(r TxRepos) error) error
}
