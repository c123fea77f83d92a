package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mmeshcher/marketplace/internal/model"
)

// MemoryStore реализует потокобезопасное in-memory хранилище. Используется в тестах и при запуске без БД.
type MemoryStore struct {
	mu            sync.RWMutex
	accounts      map[string]model.Account
	products      map[string]model.Product
	coupons       map[string]model.Coupon
	orders        map[string]model.Order
	orderSeq      []string
	withdrawals   map[string]model.Withdrawal
	withdrawalSeq []string
	notifications map[string][]model.Notification

	// payoutMu сериализует подтверждение выплат так же, как блокировка строки продавца в PostgreSQL.
	payoutMu sync.Mutex
}

// NewMemoryStore создаёт пустое in-memory хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:      make(map[string]model.Account),
		products:      make(map[string]model.Product),
		coupons:       make(map[string]model.Coupon),
		orders:        make(map[string]model.Order),
		withdrawals:   make(map[string]model.Withdrawal),
		notifications: make(map[string][]model.Notification),
	}
}

// Close ничего не делает: ресурсов нет.
func (m *MemoryStore) Close() error { return nil }

// CreateAccount сохраняет новую учётную запись.
func (m *MemoryStore) CreateAccount(_ context.Context, a *model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.accounts {
		if strings.EqualFold(existing.Email, a.Email) || (a.Phone != "" && existing.Phone == a.Phone) {
			return ErrAccountExists
		}
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	m.accounts[a.ID] = cloneAccount(*a)
	return nil
}

// GetAccountByID возвращает учётную запись по идентификатору.
func (m *MemoryStore) GetAccountByID(_ context.Context, id string) (*model.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	res := cloneAccount(a)
	return &res, nil
}

// GetAccountByIdentifier ищет учётную запись по email или телефону.
func (m *MemoryStore) GetAccountByIdentifier(_ context.Context, identifier string) (*model.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, a := range m.accounts {
		if strings.EqualFold(a.Email, identifier) || (a.Phone != "" && a.Phone == identifier) {
			res := cloneAccount(a)
			return &res, nil
		}
	}
	return nil, ErrNotFound
}

// SetBlocked меняет признак блокировки и увеличивает версию сессии.
func (m *MemoryStore) SetBlocked(_ context.Context, id string, blocked bool) (*model.Account, error) {
	return m.updateAccount(id, func(a *model.Account) error {
		a.Blocked = blocked
		a.SessionVersion++
		return nil
	})
}

// BumpSessionVersion увеличивает версию сессии учётной записи.
func (m *MemoryStore) BumpSessionVersion(_ context.Context, id string) (*model.Account, error) {
	return m.updateAccount(id, func(a *model.Account) error {
		a.SessionVersion++
		return nil
	})
}

// TransitionVendorStatus переводит продавца из статуса from в статус to.
func (m *MemoryStore) TransitionVendorStatus(_ context.Context, id string, from, to model.VendorStatus, reason string) (*model.Account, error) {
	return m.updateAccount(id, func(a *model.Account) error {
		if a.Role != model.RoleVendor || a.VendorStatus != from {
			return ErrConflict
		}
		a.VendorStatus = to
		a.RejectionReason = reason
		return nil
	})
}

func (m *MemoryStore) updateAccount(id string, fn func(a *model.Account) error) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	if err := fn(&a); err != nil {
		return nil, err
	}
	m.accounts[id] = a
	res := cloneAccount(a)
	return &res, nil
}

// PutProduct добавляет или заменяет товар каталога.
func (m *MemoryStore) PutProduct(_ context.Context, p model.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.products[p.ID] = p
	return nil
}

// GetProducts возвращает найденные товары по идентификаторам.
func (m *MemoryStore) GetProducts(_ context.Context, ids []string) (map[string]model.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	res := make(map[string]model.Product, len(ids))
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			res[id] = p
		}
	}
	return res, nil
}

// CreateCoupon сохраняет новый купон.
func (m *MemoryStore) CreateCoupon(_ context.Context, c *model.Coupon) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.coupons {
		if existing.Status == model.CouponStatusActive && existing.Code == c.Code {
			return ErrCouponExists
		}
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	m.coupons[c.ID] = *c
	return nil
}

// FindActiveCoupon возвращает активный купон, действующий в указанный день.
func (m *MemoryStore) FindActiveCoupon(_ context.Context, code string, day time.Time) (*model.Coupon, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.findActiveCouponLocked(code, day)
	if !ok {
		return nil, ErrCouponNotFound
	}
	return &c, nil
}

// ReserveCoupon атомарно увеличивает счётчик использований, если лимит не исчерпан.
func (m *MemoryStore) ReserveCoupon(_ context.Context, code string, day time.Time, vendorScope []string) (*model.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.findActiveCouponLocked(code, day)
	if !ok || (vendorScope != nil && !c.AppliesTo(vendorScope)) {
		return nil, ErrCouponNotFound
	}
	if c.UsageCount >= c.UsageLimit {
		return nil, ErrCouponLimitReached
	}

	c.UsageCount++
	m.coupons[c.ID] = c
	return &c, nil
}

// ReleaseCoupon отменяет резервирование купона.
func (m *MemoryStore) ReleaseCoupon(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.coupons[id]
	if !ok {
		return ErrNotFound
	}
	if c.UsageCount > 0 {
		c.UsageCount--
		m.coupons[id] = c
	}
	return nil
}

func (m *MemoryStore) findActiveCouponLocked(code string, day time.Time) (model.Coupon, bool) {
	for _, c := range m.coupons {
		if c.Code == code && c.ActiveOn(day) {
			return c, true
		}
	}
	return model.Coupon{}, false
}

// CreateOrder сохраняет заказ и увеличивает счётчики продаж товаров.
func (m *MemoryStore) CreateOrder(_ context.Context, o *model.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orders[o.ID]; ok {
		return ErrConflict
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}

	for _, it := range o.Items {
		if p, ok := m.products[it.ProductID]; ok {
			p.SalesCount += int64(it.Quantity)
			m.products[it.ProductID] = p
		}
	}

	m.orders[o.ID] = cloneOrder(*o)
	m.orderSeq = append(m.orderSeq, o.ID)
	return nil
}

// GetOrder возвращает заказ по идентификатору.
func (m *MemoryStore) GetOrder(_ context.Context, id string) (*model.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	res := cloneOrder(o)
	return &res, nil
}

// ListOrdersByBuyer возвращает заказы покупателя, новые первыми.
func (m *MemoryStore) ListOrdersByBuyer(_ context.Context, buyerID string) ([]model.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var res []model.Order
	for i := len(m.orderSeq) - 1; i >= 0; i-- {
		o := m.orders[m.orderSeq[i]]
		if o.BuyerID == buyerID {
			res = append(res, cloneOrder(o))
		}
	}
	return res, nil
}

// ListOrdersByVendor возвращает заказы, содержащие позиции продавца, только с его позициями.
func (m *MemoryStore) ListOrdersByVendor(_ context.Context, vendorID string) ([]model.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var res []model.Order
	for i := len(m.orderSeq) - 1; i >= 0; i-- {
		o := cloneOrder(m.orders[m.orderSeq[i]])
		items := o.Items[:0]
		for _, it := range o.Items {
			if it.VendorID == vendorID {
				items = append(items, it)
			}
		}
		if len(items) == 0 {
			continue
		}
		o.Items = items
		res = append(res, o)
	}
	return res, nil
}

// ListVendorItems возвращает все позиции продавца по всей истории заказов.
func (m *MemoryStore) ListVendorItems(_ context.Context, vendorID string) ([]model.LineItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var res []model.LineItem
	for _, id := range m.orderSeq {
		for _, it := range m.orders[id].Items {
			if it.VendorID == vendorID {
				res = append(res, it)
			}
		}
	}
	return res, nil
}

// UpdateVendorItemStatus переводит позиции продавца в заказе из статуса from в статус to.
func (m *MemoryStore) UpdateVendorItemStatus(_ context.Context, orderID, vendorID string, from, to model.ItemStatus) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	o = cloneOrder(o)

	found := false
	for i := range o.Items {
		if o.Items[i].VendorID != vendorID {
			continue
		}
		found = true
		if o.Items[i].Status != from {
			return nil, ErrConflict
		}
		o.Items[i].Status = to
	}
	if !found {
		return nil, ErrNotFound
	}

	o.Status = model.DeriveOrderStatus(o.Items)
	m.orders[orderID] = o
	res := cloneOrder(o)
	return &res, nil
}

// CreateWithdrawal сохраняет заявку на выплату.
func (m *MemoryStore) CreateWithdrawal(_ context.Context, w *model.Withdrawal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	m.withdrawals[w.ID] = *w
	m.withdrawalSeq = append(m.withdrawalSeq, w.ID)
	return nil
}

// ListWithdrawalsByVendor возвращает заявки продавца, новые первыми.
func (m *MemoryStore) ListWithdrawalsByVendor(_ context.Context, vendorID string) ([]model.Withdrawal, error) {
	return m.listWithdrawals(func(w model.Withdrawal) bool { return w.VendorID == vendorID }), nil
}

// ListWithdrawalsByStatus возвращает заявки в указанном статусе, новые первыми.
func (m *MemoryStore) ListWithdrawalsByStatus(_ context.Context, status model.WithdrawalStatus) ([]model.Withdrawal, error) {
	return m.listWithdrawals(func(w model.Withdrawal) bool { return w.Status == status }), nil
}

func (m *MemoryStore) listWithdrawals(match func(model.Withdrawal) bool) []model.Withdrawal {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var res []model.Withdrawal
	for i := len(m.withdrawalSeq) - 1; i >= 0; i-- {
		w := m.withdrawals[m.withdrawalSeq[i]]
		if match(w) {
			res = append(res, w)
		}
	}
	return res
}

// CompleteWithdrawal подтверждает заявку, если verify не вернул ошибку.
func (m *MemoryStore) CompleteWithdrawal(ctx context.Context, id string, verify PayoutCheck) (*model.Withdrawal, error) {
	m.payoutMu.Lock()
	defer m.payoutMu.Unlock()

	m.mu.RLock()
	w, ok := m.withdrawals[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if w.Status != model.WithdrawalStatusPending {
		return nil, ErrConflict
	}

	if err := verify(ctx, m, w); err != nil {
		return nil, err
	}

	return m.finishWithdrawal(id, model.WithdrawalStatusCompleted, "")
}

// RejectWithdrawal отклоняет заявку, находящуюся в ожидании.
func (m *MemoryStore) RejectWithdrawal(_ context.Context, id, reason string) (*model.Withdrawal, error) {
	return m.finishWithdrawal(id, model.WithdrawalStatusRejected, reason)
}

func (m *MemoryStore) finishWithdrawal(id string, status model.WithdrawalStatus, reason string) (*model.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.withdrawals[id]
	if !ok {
		return nil, ErrNotFound
	}
	if w.Status != model.WithdrawalStatusPending {
		return nil, ErrConflict
	}

	now := time.Now().UTC()
	w.Status = status
	w.Reason = reason
	w.ProcessedAt = &now
	m.withdrawals[id] = w
	return &w, nil
}

// CreateNotification сохраняет уведомление.
func (m *MemoryStore) CreateNotification(_ context.Context, n *model.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	m.notifications[n.RecipientID] = append(m.notifications[n.RecipientID], *n)
	return nil
}

// ListNotifications возвращает уведомления получателя, новые первыми.
func (m *MemoryStore) ListNotifications(_ context.Context, recipientID string) ([]model.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := m.notifications[recipientID]
	res := make([]model.Notification, len(list))
	copy(res, list)
	sort.SliceStable(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

// MarkNotificationRead отмечает уведомление получателя прочитанным.
func (m *MemoryStore) MarkNotificationRead(_ context.Context, recipientID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.notifications[recipientID]
	for i := range list {
		if list[i].ID == id {
			list[i].Read = true
			return nil
		}
	}
	return ErrNotFound
}

func cloneAccount(a model.Account) model.Account {
	if a.PasswordHash != nil {
		a.PasswordHash = append([]byte(nil), a.PasswordHash...)
	}
	return a
}

func cloneOrder(o model.Order) model.Order {
	o.Items = append([]model.LineItem(nil), o.Items...)
	return o
}
