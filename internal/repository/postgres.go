package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/marketplace/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
// Денежные суммы хранятся в сотых долях (копейках), процентные скидки хранятся в сотых долях процента.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{100 * time.Millisecond, 300 * time.Millisecond, 500 * time.Millisecond}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		retryable := isConnectionError(err)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			retryable = pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
		}

		if !retryable || i == len(delays) {
			break
		}

		timer := time.NewTimer(delays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func toCents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

func fromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

const accountColumns = `id, role, name, email, phone, password_hash, blocked, session_version, vendor_status, rejection_reason, created_at`

func scanAccount(row pgx.Row) (*model.Account, error) {
	var (
		a            model.Account
		role         string
		vendorStatus string
	)
	err := row.Scan(&a.ID, &role, &a.Name, &a.Email, &a.Phone, &a.PasswordHash, &a.Blocked,
		&a.SessionVersion, &vendorStatus, &a.RejectionReason, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	a.Role = model.Role(role)
	a.VendorStatus = model.VendorStatus(vendorStatus)
	return &a, nil
}

// CreateAccount создаёт новую учётную запись.
func (r *PostgresRepository) CreateAccount(ctx context.Context, a *model.Account) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO accounts (id, role, name, email, phone, password_hash, blocked, session_version, vendor_status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at`,
		a.ID, string(a.Role), a.Name, a.Email, a.Phone, a.PasswordHash, a.Blocked, a.SessionVersion, string(a.VendorStatus),
	).Scan(&a.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrAccountExists, a.Email)
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// GetAccountByID возвращает учётную запись по идентификатору.
func (r *PostgresRepository) GetAccountByID(ctx context.Context, id string) (*model.Account, error) {
	a, err := scanAccount(r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, err
}

// GetAccountByIdentifier ищет учётную запись по email или телефону.
func (r *PostgresRepository) GetAccountByIdentifier(ctx context.Context, identifier string) (*model.Account, error) {
	a, err := scanAccount(r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts
		 WHERE lower(email) = lower($1) OR (phone <> '' AND phone = $1)
		 LIMIT 1`, identifier))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get account by identifier: %w", err)
	}
	return a, err
}

// SetBlocked меняет признак блокировки и одновременно увеличивает версию сессии.
func (r *PostgresRepository) SetBlocked(ctx context.Context, id string, blocked bool) (*model.Account, error) {
	a, err := scanAccount(r.pool.QueryRow(ctx,
		`UPDATE accounts SET blocked = $2, session_version = session_version + 1
		 WHERE id = $1
		 RETURNING `+accountColumns, id, blocked))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("set blocked: %w", err)
	}
	return a, err
}

// BumpSessionVersion увеличивает версию сессии, делая выданные токены недействительными.
func (r *PostgresRepository) BumpSessionVersion(ctx context.Context, id string) (*model.Account, error) {
	a, err := scanAccount(r.pool.QueryRow(ctx,
		`UPDATE accounts SET session_version = session_version + 1
		 WHERE id = $1
		 RETURNING `+accountColumns, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("bump session version: %w", err)
	}
	return a, err
}

// TransitionVendorStatus переводит продавца из статуса from в статус to одним условным обновлением.
func (r *PostgresRepository) TransitionVendorStatus(ctx context.Context, id string, from, to model.VendorStatus, reason string) (*model.Account, error) {
	a, err := scanAccount(r.pool.QueryRow(ctx,
		`UPDATE accounts SET vendor_status = $3, rejection_reason = $4
		 WHERE id = $1 AND role = $5 AND vendor_status = $2
		 RETURNING `+accountColumns,
		id, string(from), string(to), reason, string(model.RoleVendor)))
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("transition vendor status: %w", err)
	}

	if _, err := r.GetAccountByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrConflict
}

// GetProducts возвращает товары каталога по идентификаторам.
func (r *PostgresRepository) GetProducts(ctx context.Context, ids []string) (map[string]model.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, vendor_id, name, price, sales_count FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	res := make(map[string]model.Product, len(ids))
	for rows.Next() {
		var (
			p          model.Product
			priceCents int64
		)
		if err := rows.Scan(&p.ID, &p.VendorID, &p.Name, &priceCents, &p.SalesCount); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		p.Price = fromCents(priceCents)
		res[p.ID] = p
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

const couponColumns = `id, code, vendor_id, discount_kind, discount_value, usage_count, usage_limit, expires_at, status, created_at`

func scanCoupon(row pgx.Row) (*model.Coupon, error) {
	var (
		c          model.Coupon
		kind       string
		valueCents int64
		status     string
	)
	err := row.Scan(&c.ID, &c.Code, &c.VendorID, &kind, &valueCents, &c.UsageCount, &c.UsageLimit,
		&c.ExpiresAt, &status, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.DiscountKind = model.DiscountKind(kind)
	c.DiscountValue = fromCents(valueCents)
	c.Status = model.CouponStatus(status)
	return &c, nil
}

// CreateCoupon сохраняет новый купон.
func (r *PostgresRepository) CreateCoupon(ctx context.Context, c *model.Coupon) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO coupons (id, code, vendor_id, discount_kind, discount_value, usage_count, usage_limit, expires_at, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8::date, $9)
		 RETURNING created_at`,
		c.ID, c.Code, c.VendorID, string(c.DiscountKind), toCents(c.DiscountValue), c.UsageCount, c.UsageLimit,
		model.DateOf(c.ExpiresAt), string(c.Status),
	).Scan(&c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrCouponExists, c.Code)
		}
		return fmt.Errorf("create coupon: %w", err)
	}
	return nil
}

// FindActiveCoupon возвращает активный купон, срок действия которого не истёк к дню day.
func (r *PostgresRepository) FindActiveCoupon(ctx context.Context, code string, day time.Time) (*model.Coupon, error) {
	c, err := scanCoupon(r.pool.QueryRow(ctx,
		`SELECT `+couponColumns+` FROM coupons
		 WHERE code = $1 AND status = $2 AND expires_at >= $3::date`,
		code, string(model.CouponStatusActive), model.DateOf(day)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCouponNotFound
		}
		return nil, fmt.Errorf("find coupon: %w", err)
	}
	return c, nil
}

// ReserveCoupon увеличивает счётчик использований купона одним условным UPDATE:
// проверка лимита и инкремент выполняются атомарно на стороне БД.
// vendorScope == nil отключает проверку продавца.
func (r *PostgresRepository) ReserveCoupon(ctx context.Context, code string, day time.Time, vendorScope []string) (*model.Coupon, error) {
	c, err := scanCoupon(r.pool.QueryRow(ctx,
		`UPDATE coupons SET usage_count = usage_count + 1
		 WHERE code = $1 AND status = $2 AND expires_at >= $3::date
		   AND usage_count < usage_limit
		   AND ($4::text[] IS NULL OR vendor_id = '' OR vendor_id = ANY($4::text[]))
		 RETURNING `+couponColumns,
		code, string(model.CouponStatusActive), model.DateOf(day), vendorScope))
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("reserve coupon: %w", err)
	}

	existing, err := r.FindActiveCoupon(ctx, code, day)
	if err != nil {
		return nil, err
	}
	if vendorScope != nil && !existing.AppliesTo(vendorScope) {
		return nil, ErrCouponNotFound
	}
	return nil, ErrCouponLimitReached
}

// ReleaseCoupon уменьшает счётчик использований купона после неудачного оформления заказа.
func (r *PostgresRepository) ReleaseCoupon(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE coupons SET usage_count = usage_count - 1 WHERE id = $1 AND usage_count > 0`, id)
	if err != nil {
		return fmt.Errorf("release coupon: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateOrder сохраняет заказ с позициями и увеличивает счётчики продаж в одной транзакции.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o *model.Order) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		err = tx.QueryRow(ctx,
			`INSERT INTO orders (id, buyer_id, subtotal, discount, total, coupon_id, coupon_code, status)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 RETURNING created_at`,
			o.ID, o.BuyerID, toCents(o.Subtotal), toCents(o.Discount), toCents(o.Total),
			o.CouponID, o.CouponCode, string(o.Status),
		).Scan(&o.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: order %s", ErrConflict, o.ID)
			}
			return fmt.Errorf("insert order: %w", err)
		}

		batch := &pgx.Batch{}
		for i, it := range o.Items {
			batch.Queue(
				`INSERT INTO order_items (order_id, position, product_id, vendor_id, unit_price, quantity, status)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				o.ID, i, it.ProductID, it.VendorID, toCents(it.UnitPrice), it.Quantity, string(it.Status),
			)
			batch.Queue(
				`UPDATE products SET sales_count = sales_count + $2 WHERE id = $1`,
				it.ProductID, it.Quantity,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert order items: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// GetOrder возвращает заказ со всеми позициями.
func (r *PostgresRepository) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	orders, err := r.queryOrders(ctx,
		`SELECT id, buyer_id, subtotal, discount, total, coupon_id, coupon_code, status, created_at
		 FROM orders WHERE id = $1`, "", id)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, ErrNotFound
	}
	return &orders[0], nil
}

// ListOrdersByBuyer возвращает заказы покупателя, новые первыми.
func (r *PostgresRepository) ListOrdersByBuyer(ctx context.Context, buyerID string) ([]model.Order, error) {
	return r.queryOrders(ctx,
		`SELECT id, buyer_id, subtotal, discount, total, coupon_id, coupon_code, status, created_at
		 FROM orders WHERE buyer_id = $1
		 ORDER BY created_at DESC`, "", buyerID)
}

// ListOrdersByVendor возвращает заказы, содержащие позиции продавца, только с его позициями.
func (r *PostgresRepository) ListOrdersByVendor(ctx context.Context, vendorID string) ([]model.Order, error) {
	return r.queryOrders(ctx,
		`SELECT o.id, o.buyer_id, o.subtotal, o.discount, o.total, o.coupon_id, o.coupon_code, o.status, o.created_at
		 FROM orders o
		 WHERE EXISTS (SELECT 1 FROM order_items i WHERE i.order_id = o.id AND i.vendor_id = $1)
		 ORDER BY o.created_at DESC`, vendorID, vendorID)
}

// queryOrders выполняет запрос заказов и подгружает позиции; itemsVendor ограничивает позиции одним продавцом.
func (r *PostgresRepository) queryOrders(ctx context.Context, query, itemsVendor string, args ...any) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var (
		orders []model.Order
		ids    []string
	)
	for rows.Next() {
		var (
			o                         model.Order
			subtotal, discount, total int64
			status                    string
		)
		if err := rows.Scan(&o.ID, &o.BuyerID, &subtotal, &discount, &total, &o.CouponID, &o.CouponCode,
			&status, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.Subtotal = fromCents(subtotal)
		o.Discount = fromCents(discount)
		o.Total = fromCents(total)
		o.Status = model.OrderStatus(status)
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	items, err := r.loadItems(ctx, ids, itemsVendor)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

func (r *PostgresRepository) loadItems(ctx context.Context, orderIDs []string, vendorID string) (map[string][]model.LineItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT order_id, product_id, vendor_id, unit_price, quantity, status
		 FROM order_items
		 WHERE order_id = ANY($1) AND ($2 = '' OR vendor_id = $2)
		 ORDER BY order_id, position`,
		orderIDs, vendorID,
	)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	res := make(map[string][]model.LineItem, len(orderIDs))
	for rows.Next() {
		var (
			orderID string
			it      model.LineItem
			price   int64
			status  string
		)
		if err := rows.Scan(&orderID, &it.ProductID, &it.VendorID, &price, &it.Quantity, &status); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		it.UnitPrice = fromCents(price)
		it.Status = model.ItemStatus(status)
		res[orderID] = append(res[orderID], it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// ListVendorItems возвращает все позиции продавца по всей истории заказов.
func (r *PostgresRepository) ListVendorItems(ctx context.Context, vendorID string) ([]model.LineItem, error) {
	return listVendorItems(ctx, r.pool, vendorID)
}

func listVendorItems(ctx context.Context, q querier, vendorID string) ([]model.LineItem, error) {
	rows, err := q.Query(ctx,
		`SELECT product_id, vendor_id, unit_price, quantity, status
		 FROM order_items WHERE vendor_id = $1`, vendorID)
	if err != nil {
		return nil, fmt.Errorf("select vendor items: %w", err)
	}
	defer rows.Close()

	var res []model.LineItem
	for rows.Next() {
		var (
			it     model.LineItem
			price  int64
			status string
		)
		if err := rows.Scan(&it.ProductID, &it.VendorID, &price, &it.Quantity, &status); err != nil {
			return nil, fmt.Errorf("scan vendor item: %w", err)
		}
		it.UnitPrice = fromCents(price)
		it.Status = model.ItemStatus(status)
		res = append(res, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// UpdateVendorItemStatus переводит позиции продавца в заказе из статуса from в статус to
// и пересчитывает сводный статус заказа.
func (r *PostgresRepository) UpdateVendorItemStatus(ctx context.Context, orderID, vendorID string, from, to model.ItemStatus) (*model.Order, error) {
	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var dummy int
		err = tx.QueryRow(ctx, `SELECT 1 FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&dummy)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("lock order: %w", err)
		}

		var total, matching int
		err = tx.QueryRow(ctx,
			`SELECT COUNT(*), COUNT(*) FILTER (WHERE status = $3)
			 FROM order_items WHERE order_id = $1 AND vendor_id = $2`,
			orderID, vendorID, string(from),
		).Scan(&total, &matching)
		if err != nil {
			return fmt.Errorf("count vendor items: %w", err)
		}
		if total == 0 {
			return ErrNotFound
		}
		if matching != total {
			return ErrConflict
		}

		if _, err := tx.Exec(ctx,
			`UPDATE order_items SET status = $3 WHERE order_id = $1 AND vendor_id = $2`,
			orderID, vendorID, string(to)); err != nil {
			return fmt.Errorf("update items: %w", err)
		}

		statuses, err := tx.Query(ctx, `SELECT status FROM order_items WHERE order_id = $1`, orderID)
		if err != nil {
			return fmt.Errorf("select item statuses: %w", err)
		}
		var items []model.LineItem
		for statuses.Next() {
			var s string
			if err := statuses.Scan(&s); err != nil {
				statuses.Close()
				return fmt.Errorf("scan item status: %w", err)
			}
			items = append(items, model.LineItem{Status: model.ItemStatus(s)})
		}
		statuses.Close()
		if err := statuses.Err(); err != nil {
			return fmt.Errorf("rows error: %w", err)
		}

		if _, err := tx.Exec(ctx, `UPDATE orders SET status = $2 WHERE id = $1`,
			orderID, string(model.DeriveOrderStatus(items))); err != nil {
			return fmt.Errorf("update order status: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.GetOrder(ctx, orderID)
}

const withdrawalColumns = `id, vendor_id, amount, method, status, reason, created_at, processed_at`

func scanWithdrawal(row pgx.Row) (*model.Withdrawal, error) {
	var (
		w      model.Withdrawal
		amount int64
		status string
	)
	if err := row.Scan(&w.ID, &w.VendorID, &amount, &w.Method, &status, &w.Reason, &w.CreatedAt, &w.ProcessedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	w.Amount = fromCents(amount)
	w.Status = model.WithdrawalStatus(status)
	return &w, nil
}

// CreateWithdrawal сохраняет заявку на выплату.
func (r *PostgresRepository) CreateWithdrawal(ctx context.Context, w *model.Withdrawal) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO withdrawals (id, vendor_id, amount, method, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		w.ID, w.VendorID, toCents(w.Amount), w.Method, string(w.Status),
	).Scan(&w.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert withdrawal: %w", err)
	}
	return nil
}

// ListWithdrawalsByVendor возвращает историю заявок продавца.
func (r *PostgresRepository) ListWithdrawalsByVendor(ctx context.Context, vendorID string) ([]model.Withdrawal, error) {
	return queryWithdrawals(ctx, r.pool,
		`SELECT `+withdrawalColumns+` FROM withdrawals WHERE vendor_id = $1 ORDER BY created_at DESC`, vendorID)
}

// ListWithdrawalsByStatus возвращает заявки в указанном статусе.
func (r *PostgresRepository) ListWithdrawalsByStatus(ctx context.Context, status model.WithdrawalStatus) ([]model.Withdrawal, error) {
	return queryWithdrawals(ctx, r.pool,
		`SELECT `+withdrawalColumns+` FROM withdrawals WHERE status = $1 ORDER BY created_at DESC`, string(status))
}

func queryWithdrawals(ctx context.Context, q querier, query string, args ...any) ([]model.Withdrawal, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select withdrawals: %w", err)
	}
	defer rows.Close()

	var res []model.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan withdrawal: %w", err)
		}
		res = append(res, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// querier покрывает чтение и через пул, и внутри транзакции.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// txHistory читает историю продавца внутри транзакции подтверждения выплаты.
type txHistory struct {
	tx pgx.Tx
}

func (h txHistory) ListVendorItems(ctx context.Context, vendorID string) ([]model.LineItem, error) {
	return listVendorItems(ctx, h.tx, vendorID)
}

func (h txHistory) ListWithdrawalsByVendor(ctx context.Context, vendorID string) ([]model.Withdrawal, error) {
	return queryWithdrawals(ctx, h.tx,
		`SELECT `+withdrawalColumns+` FROM withdrawals WHERE vendor_id = $1 ORDER BY created_at DESC`, vendorID)
}

// CompleteWithdrawal подтверждает заявку. Строка продавца блокируется на время проверки verify,
// поэтому параллельные подтверждения выплат одного продавца выполняются последовательно.
// verify получает историю из той же транзакции и не берёт второе соединение из пула.
func (r *PostgresRepository) CompleteWithdrawal(ctx context.Context, id string, verify PayoutCheck) (*model.Withdrawal, error) {
	var done *model.Withdrawal
	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		w, err := scanWithdrawal(tx.QueryRow(ctx,
			`SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return err
			}
			return fmt.Errorf("lock withdrawal: %w", err)
		}
		if w.Status != model.WithdrawalStatusPending {
			return ErrConflict
		}

		var dummy int
		err = tx.QueryRow(ctx, `SELECT 1 FROM accounts WHERE id = $1 FOR UPDATE`, w.VendorID).Scan(&dummy)
		if err != nil {
			return fmt.Errorf("lock vendor for update: %w", err)
		}

		if err := verify(ctx, txHistory{tx: tx}, *w); err != nil {
			return err
		}

		done, err = scanWithdrawal(tx.QueryRow(ctx,
			`UPDATE withdrawals SET status = $2, processed_at = now()
			 WHERE id = $1
			 RETURNING `+withdrawalColumns, id, string(model.WithdrawalStatusCompleted)))
		if err != nil {
			return fmt.Errorf("complete withdrawal: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return done, nil
}

// RejectWithdrawal отклоняет заявку, находящуюся в ожидании.
func (r *PostgresRepository) RejectWithdrawal(ctx context.Context, id, reason string) (*model.Withdrawal, error) {
	w, err := scanWithdrawal(r.pool.QueryRow(ctx,
		`UPDATE withdrawals SET status = $2, reason = $3, processed_at = now()
		 WHERE id = $1 AND status = $4
		 RETURNING `+withdrawalColumns,
		id, string(model.WithdrawalStatusRejected), reason, string(model.WithdrawalStatusPending)))
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("reject withdrawal: %w", err)
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM withdrawals WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check withdrawal: %w", err)
	}
	if !exists {
		return nil, ErrNotFound
	}
	return nil, ErrConflict
}

// CreateNotification сохраняет уведомление.
func (r *PostgresRepository) CreateNotification(ctx context.Context, n *model.Notification) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO notifications (id, recipient_id, title, message, kind, read)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		n.ID, n.RecipientID, n.Title, n.Message, n.Kind, n.Read,
	).Scan(&n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListNotifications возвращает уведомления получателя, новые первыми.
func (r *PostgresRepository) ListNotifications(ctx context.Context, recipientID string) ([]model.Notification, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, recipient_id, title, message, kind, read, created_at
		 FROM notifications WHERE recipient_id = $1
		 ORDER BY created_at DESC`, recipientID)
	if err != nil {
		return nil, fmt.Errorf("select notifications: %w", err)
	}
	defer rows.Close()

	var res []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Title, &n.Message, &n.Kind, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		res = append(res, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// MarkNotificationRead отмечает уведомление получателя прочитанным.
func (r *PostgresRepository) MarkNotificationRead(ctx context.Context, recipientID, id string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE notifications SET read = TRUE WHERE id = $1 AND recipient_id = $2`, id, recipientID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
