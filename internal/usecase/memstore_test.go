package usecase_test

import (
	"context"
	"sort"
	"strings"
	"sync"

	"storefront/internal/domain/event"
	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/shopspring/decimal"
)

// テスト用のインメモリDB。
// WithinTxは全体ロックで直列化し、エラーならスナップショットに戻す。
type memStore struct {
	mu sync.Mutex

	nextID      int64
	products    map[int64]model.Product
	deleted     map[int64]model.Product
	categories  map[int64]model.Category
	carts       map[int64]model.Cart
	orders      map[int64]model.Order
	payments    map[int64]model.Payment
	addresses   map[int64]model.Address
	users       map[int64]model.User
	audits      []model.AuditLog
	adjustments []model.InventoryAdjustment

	// "OrderItems.CreateBulk" などの名前で失敗させる
	failOn map[string]error
	// カートの行ロック直後に呼ぶ（ロック待ちの間に他のTxがコミットした状態を作る）
	afterCartLock func(s *memStore, cartID int64)
	// 共有ロックで読んだ商品ID
	sharedReads []int64
}

func newMemStore() *memStore {
	return &memStore{
		products:   map[int64]model.Product{},
		deleted:    map[int64]model.Product{},
		categories: map[int64]model.Category{},
		carts:      map[int64]model.Cart{},
		orders:     map[int64]model.Order{},
		payments:   map[int64]model.Payment{},
		addresses:  map[int64]model.Address{},
		users:      map[int64]model.User{},
		failOn:     map[string]error{},
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) fault(op string) error {
	return s.failOn[op]
}

type memState struct {
	nextID      int64
	products    map[int64]model.Product
	deleted     map[int64]model.Product
	categories  map[int64]model.Category
	carts       map[int64]model.Cart
	orders      map[int64]model.Order
	payments    map[int64]model.Payment
	addresses   map[int64]model.Address
	users       map[int64]model.User
	audits      []model.AuditLog
	adjustments []model.InventoryAdjustment
}

func (s *memStore) snapshot() memState {
	st := memState{
		nextID:      s.nextID,
		products:    map[int64]model.Product{},
		deleted:     map[int64]model.Product{},
		categories:  map[int64]model.Category{},
		carts:       map[int64]model.Cart{},
		orders:      map[int64]model.Order{},
		payments:    map[int64]model.Payment{},
		addresses:   map[int64]model.Address{},
		users:       map[int64]model.User{},
		audits:      append([]model.AuditLog(nil), s.audits...),
		adjustments: append([]model.InventoryAdjustment(nil), s.adjustments...),
	}
	for k, v := range s.products {
		st.products[k] = v
	}
	for k, v := range s.deleted {
		st.deleted[k] = v
	}
	for k, v := range s.categories {
		st.categories[k] = v
	}
	for k, v := range s.carts {
		st.carts[k] = cloneCart(v)
	}
	for k, v := range s.orders {
		st.orders[k] = cloneOrder(v)
	}
	for k, v := range s.payments {
		st.payments[k] = v
	}
	for k, v := range s.addresses {
		st.addresses[k] = v
	}
	for k, v := range s.users {
		st.users[k] = v
	}
	return st
}

func (s *memStore) restore(st memState) {
	s.nextID = st.nextID
	s.products = st.products
	s.deleted = st.deleted
	s.categories = st.categories
	s.carts = st.carts
	s.orders = st.orders
	s.payments = st.payments
	s.addresses = st.addresses
	s.users = st.users
	s.audits = st.audits
	s.adjustments = st.adjustments
}

func cloneCart(c model.Cart) model.Cart {
	c.Items = append([]model.CartItem{}, c.Items...)
	return c
}

func cloneOrder(o model.Order) model.Order {
	o.Items = append([]model.OrderItem{}, o.Items...)
	if o.Payment != nil {
		p := *o.Payment
		o.Payment = &p
	}
	return o
}

// ---- TransactionManager ----

func (s *memStore) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.snapshot()
	if err := fn(memTx{base{s: s, inTx: true}}); err != nil {
		s.restore(st)
		return err
	}
	return nil
}

// Tx外から使うリポジトリ
func (s *memStore) Carts() *memCarts           { return &memCarts{base{s: s}} }
func (s *memStore) Products() *memProducts     { return &memProducts{base{s: s}} }
func (s *memStore) Categories() *memCategories { return &memCategories{base{s: s}} }
func (s *memStore) Addresses() *memAddresses   { return &memAddresses{base{s: s}} }
func (s *memStore) AuditLogs() *memAudits      { return &memAudits{base{s: s}} }
func (s *memStore) Users() *memUsers           { return &memUsers{base{s: s}} }

// ---- テストの準備・確認用 ----

func (s *memStore) seedProduct(p model.Product) model.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.id()
	p.ApplyPricing()
	s.products[p.ID] = p
	return p
}

func (s *memStore) seedCategory(name string) model.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := model.Category{ID: s.id(), Name: name}
	s.categories[c.ID] = c
	return c
}

func (s *memStore) sharedProductReads() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.sharedReads...)
}

func (s *memStore) seedAddress(a model.Address) model.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.id()
	s.addresses[a.ID] = a
	return a
}

func (s *memStore) seedUser(u model.User) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = s.id()
	s.users[u.ID] = u
	return u
}

func (s *memStore) cartOf(userID int64) (model.Cart, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.carts {
		if c.UserID == userID {
			return cloneCart(c), true
		}
	}
	return model.Cart{}, false
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *memStore) paymentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payments)
}

func (s *memStore) auditLogs() []model.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.AuditLog(nil), s.audits...)
}

func (s *memStore) product(id int64) model.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id]
}

// Tx内ではロック済みなので取らない
type base struct {
	s    *memStore
	inTx bool
}

func (b base) lock() func() {
	if b.inTx {
		return func() {}
	}
	b.s.mu.Lock()
	return b.s.mu.Unlock
}

type memTx struct{ base }

func (t memTx) Carts() repo.CartRepository           { return &memCarts{t.base} }
func (t memTx) Products() repo.ProductRepository     { return &memProducts{t.base} }
func (t memTx) Categories() repo.CategoryRepository  { return &memCategories{t.base} }
func (t memTx) Inventory() repo.InventoryRepository  { return &memProducts{t.base} }
func (t memTx) Orders() repo.OrderRepository         { return &memOrders{t.base} }
func (t memTx) OrderItems() repo.OrderItemRepository { return &memOrderItems{t.base} }
func (t memTx) Payments() repo.PaymentRepository     { return &memPayments{t.base} }
func (t memTx) Addresses() repo.AddressRepository    { return &memAddresses{t.base} }
func (t memTx) AuditLogs() repo.AuditLogRepository   { return &memAudits{t.base} }
func (t memTx) Users() repo.UserRepository           { return &memUsers{t.base} }

// ---- carts ----

type memCarts struct{ base }

func (r *memCarts) GetOrCreateByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	defer r.lock()()
	if err := r.s.fault("Carts.GetOrCreateByUserID"); err != nil {
		return model.Cart{}, err
	}
	for _, c := range r.s.carts {
		if c.UserID == userID {
			return cloneCart(c), nil
		}
	}
	c := model.Cart{ID: r.s.id(), UserID: userID, TotalPrice: decimal.Zero, Items: []model.CartItem{}}
	r.s.carts[c.ID] = c
	return cloneCart(c), nil
}

func (r *memCarts) FindByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	defer r.lock()()
	for _, c := range r.s.carts {
		if c.UserID == userID {
			return cloneCart(c), nil
		}
	}
	return model.Cart{}, repo.ErrNotFound
}

func (r *memCarts) LockByID(ctx context.Context, cartID int64) (model.Cart, error) {
	defer r.lock()()
	if err := r.s.fault("Carts.LockByID"); err != nil {
		return model.Cart{}, err
	}
	if r.s.afterCartLock != nil {
		r.s.afterCartLock(r.s, cartID)
	}
	c, ok := r.s.carts[cartID]
	if !ok {
		return model.Cart{}, repo.ErrNotFound
	}
	return cloneCart(c), nil
}

func (r *memCarts) Save(ctx context.Context, cart *model.Cart) error {
	defer r.lock()()
	if err := r.s.fault("Carts.Save"); err != nil {
		return err
	}
	if _, ok := r.s.carts[cart.ID]; !ok {
		return repo.ErrNotFound
	}
	for i := range cart.Items {
		if cart.Items[i].ID == 0 {
			cart.Items[i].ID = r.s.id()
		}
		cart.Items[i].CartID = cart.ID
	}
	r.s.carts[cart.ID] = cloneCart(*cart)
	return nil
}

func (r *memCarts) FindByID(ctx context.Context, cartID int64) (model.Cart, error) {
	defer r.lock()()
	c, ok := r.s.carts[cartID]
	if !ok {
		return model.Cart{}, repo.ErrNotFound
	}
	return cloneCart(c), nil
}

func (r *memCarts) ListAll(ctx context.Context) ([]model.Cart, error) {
	defer r.lock()()
	out := make([]model.Cart, 0, len(r.s.carts))
	for _, c := range r.s.carts {
		out = append(out, cloneCart(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memCarts) ListCartIDsByProductID(ctx context.Context, productID int64) ([]int64, error) {
	defer r.lock()()
	var ids []int64
	for _, c := range r.s.carts {
		for _, it := range c.Items {
			if it.ProductID == productID {
				ids = append(ids, c.ID)
				break
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// ---- products / inventory ----

type memProducts struct{ base }

func (r *memProducts) ListPublic(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	defer r.lock()()
	var out []model.Product
	for _, p := range r.s.products {
		if !p.IsActive {
			continue
		}
		if q.Q != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(q.Q)) {
			continue
		}
		if q.CategoryID != nil && (p.CategoryID == nil || *p.CategoryID != *q.CategoryID) {
			continue
		}
		if q.MinPrice != nil && p.SpecialPrice.LessThan(*q.MinPrice) {
			continue
		}
		if q.MaxPrice != nil && p.SpecialPrice.GreaterThan(*q.MaxPrice) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (r *memProducts) FindByID(ctx context.Context, id int64) (model.Product, error) {
	defer r.lock()()
	p, ok := r.s.products[id]
	if !ok {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func (r *memProducts) FindByIDForShare(ctx context.Context, id int64) (model.Product, error) {
	defer r.lock()()
	if err := r.s.fault("Products.FindByIDForShare"); err != nil {
		return model.Product{}, err
	}
	r.s.sharedReads = append(r.s.sharedReads, id)
	p, ok := r.s.products[id]
	if !ok {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func (r *memProducts) ListBySeller(ctx context.Context, sellerID int64, page, limit int) ([]model.Product, int64, error) {
	defer r.lock()()
	var out []model.Product
	for _, p := range r.s.products {
		if p.SellerID != nil && *p.SellerID == sellerID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	total := int64(len(out))
	start := (page - 1) * limit
	if start >= len(out) {
		return []model.Product{}, total, nil
	}
	end := start + limit
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], total, nil
}

func (r *memProducts) CountByCategory(ctx context.Context, categoryID int64) (int64, error) {
	defer r.lock()()
	var n int64
	for _, m := range []map[int64]model.Product{r.s.products, r.s.deleted} {
		for _, p := range m {
			if p.CategoryID != nil && *p.CategoryID == categoryID {
				n++
			}
		}
	}
	return n, nil
}

func (r *memProducts) ListByIDsUnscoped(ctx context.Context, ids []int64) ([]model.Product, error) {
	defer r.lock()()
	var out []model.Product
	for _, id := range ids {
		if p, ok := r.s.products[id]; ok {
			out = append(out, p)
		} else if p, ok := r.s.deleted[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memProducts) Create(ctx context.Context, p model.Product) (model.Product, error) {
	defer r.lock()()
	p.ID = r.s.id()
	p.ApplyPricing()
	r.s.products[p.ID] = p
	return p, nil
}

func (r *memProducts) Update(ctx context.Context, p model.Product) error {
	defer r.lock()()
	if err := r.s.fault("Products.Update"); err != nil {
		return err
	}
	if _, ok := r.s.products[p.ID]; !ok {
		return repo.ErrNotFound
	}
	p.ApplyPricing()
	r.s.products[p.ID] = p
	return nil
}

func (r *memProducts) SoftDelete(ctx context.Context, id int64) error {
	defer r.lock()()
	p, ok := r.s.products[id]
	if !ok {
		return repo.ErrNotFound
	}
	delete(r.s.products, id)
	r.s.deleted[id] = p
	return nil
}

func (r *memProducts) SetStock(ctx context.Context, productID int64, newStock int64) (int64, error) {
	defer r.lock()()
	p, ok := r.s.products[productID]
	if !ok {
		return 0, repo.ErrNotFound
	}
	before := p.Stock
	p.Stock = newStock
	r.s.products[productID] = p
	return before, nil
}

func (r *memProducts) CreateAdjustment(ctx context.Context, a model.InventoryAdjustment) error {
	defer r.lock()()
	if err := r.s.fault("Inventory.CreateAdjustment"); err != nil {
		return err
	}
	a.ID = r.s.id()
	r.s.adjustments = append(r.s.adjustments, a)
	return nil
}

func (r *memProducts) ListAdjustments(ctx context.Context, productID int64, limit int) ([]model.InventoryAdjustment, error) {
	defer r.lock()()
	var out []model.InventoryAdjustment
	for i := len(r.s.adjustments) - 1; i >= 0 && len(out) < limit; i-- {
		if r.s.adjustments[i].ProductID == productID {
			out = append(out, r.s.adjustments[i])
		}
	}
	return out, nil
}

// ---- categories ----

type memCategories struct{ base }

func (r *memCategories) List(ctx context.Context, page, limit int) ([]model.Category, int64, error) {
	defer r.lock()()
	out := make([]model.Category, 0, len(r.s.categories))
	for _, c := range r.s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	total := int64(len(out))
	start := (page - 1) * limit
	if start >= len(out) {
		return []model.Category{}, total, nil
	}
	end := start + limit
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], total, nil
}

func (r *memCategories) FindByID(ctx context.Context, id int64) (model.Category, error) {
	defer r.lock()()
	c, ok := r.s.categories[id]
	if !ok {
		return model.Category{}, repo.ErrNotFound
	}
	return c, nil
}

func (r *memCategories) nameTaken(name string, except int64) bool {
	for _, c := range r.s.categories {
		if c.ID != except && c.Name == name {
			return true
		}
	}
	return false
}

func (r *memCategories) Create(ctx context.Context, c *model.Category) error {
	defer r.lock()()
	if r.nameTaken(c.Name, 0) {
		return repo.ErrDuplicate
	}
	c.ID = r.s.id()
	r.s.categories[c.ID] = *c
	return nil
}

func (r *memCategories) Update(ctx context.Context, c model.Category) error {
	defer r.lock()()
	if _, ok := r.s.categories[c.ID]; !ok {
		return repo.ErrNotFound
	}
	if r.nameTaken(c.Name, c.ID) {
		return repo.ErrDuplicate
	}
	r.s.categories[c.ID] = c
	return nil
}

func (r *memCategories) Delete(ctx context.Context, id int64) error {
	defer r.lock()()
	if _, ok := r.s.categories[id]; !ok {
		return repo.ErrNotFound
	}
	delete(r.s.categories, id)
	return nil
}

// ---- orders / order items / payments ----

type memOrders struct{ base }

func (r *memOrders) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	defer r.lock()()
	o, ok := r.s.orders[orderID]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return r.withPayment(o), nil
}

func (r *memOrders) withPayment(o model.Order) model.Order {
	o = cloneOrder(o)
	if p, ok := r.s.payments[o.PaymentID]; ok {
		o.Payment = &p
	}
	return o
}

func (r *memOrders) ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error) {
	defer r.lock()()
	var all []model.Order
	for _, o := range r.s.orders {
		if o.UserID == userID {
			all = append(all, r.withPayment(o))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	return paginate(all, page, limit), int64(len(all)), nil
}

func (r *memOrders) Create(ctx context.Context, order *model.Order) error {
	defer r.lock()()
	if err := r.s.fault("Orders.Create"); err != nil {
		return err
	}
	for _, o := range r.s.orders {
		if o.UserID == order.UserID && o.IdempotencyKey == order.IdempotencyKey {
			return repo.ErrDuplicate
		}
	}
	order.ID = r.s.id()
	stored := cloneOrder(*order)
	stored.Items = nil
	stored.Payment = nil
	r.s.orders[order.ID] = stored
	return nil
}

func (r *memOrders) UpdateStatus(ctx context.Context, orderID int64, status model.OrderStatus) error {
	defer r.lock()()
	o, ok := r.s.orders[orderID]
	if !ok {
		return repo.ErrNotFound
	}
	o.Status = status
	r.s.orders[orderID] = o
	return nil
}

func (r *memOrders) FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error) {
	defer r.lock()()
	for _, o := range r.s.orders {
		if o.UserID == userID && o.IdempotencyKey == key {
			return r.withPayment(o), true, nil
		}
	}
	return model.Order{}, false, nil
}

func (r *memOrders) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	defer r.lock()()
	var all []model.Order
	for _, o := range r.s.orders {
		if f.Status != "" && string(o.Status) != f.Status {
			continue
		}
		if f.UserID != nil && o.UserID != *f.UserID {
			continue
		}
		all = append(all, r.withPayment(o))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	return paginate(all, f.Page, f.Limit), int64(len(all)), nil
}

func paginate(all []model.Order, page, limit int) []model.Order {
	start := (page - 1) * limit
	if start >= len(all) {
		return []model.Order{}
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}

type memOrderItems struct{ base }

func (r *memOrderItems) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	defer r.lock()()
	if err := r.s.fault("OrderItems.CreateBulk"); err != nil {
		return err
	}
	o, ok := r.s.orders[orderID]
	if !ok {
		return repo.ErrNotFound
	}
	for i := range items {
		items[i].ID = r.s.id()
		items[i].OrderID = orderID
	}
	o.Items = append(o.Items, items...)
	r.s.orders[orderID] = o
	return nil
}

type memPayments struct{ base }

func (r *memPayments) Create(ctx context.Context, p *model.Payment) error {
	defer r.lock()()
	if err := r.s.fault("Payments.Create"); err != nil {
		return err
	}
	p.ID = r.s.id()
	r.s.payments[p.ID] = *p
	return nil
}

// ---- addresses ----

type memAddresses struct{ base }

func (r *memAddresses) Create(ctx context.Context, a model.Address) (model.Address, error) {
	defer r.lock()()
	a.ID = r.s.id()
	r.s.addresses[a.ID] = a
	return a, nil
}

func (r *memAddresses) ListByUserID(ctx context.Context, userID int64) ([]model.Address, error) {
	defer r.lock()()
	var out []model.Address
	for _, a := range r.s.addresses {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memAddresses) FindByIDForUser(ctx context.Context, addressID, userID int64) (model.Address, error) {
	defer r.lock()()
	a, ok := r.s.addresses[addressID]
	if !ok || a.UserID != userID {
		return model.Address{}, repo.ErrNotFound
	}
	return a, nil
}

func (r *memAddresses) Update(ctx context.Context, a model.Address) error {
	defer r.lock()()
	if _, ok := r.s.addresses[a.ID]; !ok {
		return repo.ErrNotFound
	}
	r.s.addresses[a.ID] = a
	return nil
}

func (r *memAddresses) Delete(ctx context.Context, addressID int64) error {
	defer r.lock()()
	if _, ok := r.s.addresses[addressID]; !ok {
		return repo.ErrNotFound
	}
	delete(r.s.addresses, addressID)
	return nil
}

func (r *memAddresses) SetDefault(ctx context.Context, userID, addressID int64) error {
	defer r.lock()()
	if a, ok := r.s.addresses[addressID]; !ok || a.UserID != userID {
		return repo.ErrNotFound
	}
	for id, a := range r.s.addresses {
		if a.UserID == userID {
			a.IsDefault = id == addressID
			r.s.addresses[id] = a
		}
	}
	return nil
}

// ---- audit logs ----

type memAudits struct{ base }

func (r *memAudits) Create(ctx context.Context, l model.AuditLog) error {
	defer r.lock()()
	if err := r.s.fault("AuditLogs.Create"); err != nil {
		return err
	}
	l.ID = r.s.id()
	r.s.audits = append(r.s.audits, l)
	return nil
}

func (r *memAudits) List(ctx context.Context, f repo.AuditLogFilter) ([]model.AuditLog, int64, error) {
	defer r.lock()()
	var out []model.AuditLog
	for _, l := range r.s.audits {
		if f.Action != nil && l.Action != *f.Action {
			continue
		}
		if f.ResourceType != nil && l.ResourceType != *f.ResourceType {
			continue
		}
		if f.ResourceID != nil && l.ResourceID != *f.ResourceID {
			continue
		}
		if f.ActorUserID != nil && l.ActorUserID != *f.ActorUserID {
			continue
		}
		out = append(out, l)
	}
	total := int64(len(out))

	//新しい順にしてLimit/Offset
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if f.Offset >= len(out) {
		return []model.AuditLog{}, total, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, total, nil
}

// ---- users ----

type memUsers struct{ base }

func (r *memUsers) Create(ctx context.Context, u *model.User) error {
	defer r.lock()()
	for _, x := range r.s.users {
		if x.Email == u.Email {
			return repo.ErrDuplicate
		}
	}
	u.ID = r.s.id()
	r.s.users[u.ID] = *u
	return nil
}

func (r *memUsers) FindByID(ctx context.Context, id int64) (*model.User, error) {
	defer r.lock()()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &u, nil
}

func (r *memUsers) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	defer r.lock()()
	for _, u := range r.s.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (r *memUsers) Update(ctx context.Context, u *model.User) error {
	defer r.lock()()
	if _, ok := r.s.users[u.ID]; !ok {
		return repo.ErrNotFound
	}
	r.s.users[u.ID] = *u
	return nil
}

func (r *memUsers) IncrementTokenVersion(ctx context.Context, id int64) error {
	defer r.lock()()
	u, ok := r.s.users[id]
	if !ok {
		return repo.ErrNotFound
	}
	u.TokenVersion++
	r.s.users[id] = u
	return nil
}

// ---- events / guard ----

type recordingPublisher struct {
	mu     sync.Mutex
	events []event.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, e event.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) published() []event.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]event.Event(nil), p.events...)
}

type stubGuard struct {
	busy bool
	err  error
}

func (g stubGuard) Acquire(ctx context.Context, userID int64, key string) (func(), bool, error) {
	if g.err != nil {
		return nil, false, g.err
	}
	if g.busy {
		return nil, false, nil
	}
	return func() {}, true, nil
}

var (
	_ repo.TransactionManager  = (*memStore)(nil)
	_ repo.CartRepository      = (*memCarts)(nil)
	_ repo.CartItemRepository  = (*memCarts)(nil)
	_ repo.ProductRepository   = (*memProducts)(nil)
	_ repo.InventoryRepository = (*memProducts)(nil)
	_ repo.CategoryRepository  = (*memCategories)(nil)
	_ repo.AddressRepository   = (*memAddresses)(nil)
	_ repo.AuditLogRepository  = (*memAudits)(nil)
	_ repo.UserRepository      = (*memUsers)(nil)
)
