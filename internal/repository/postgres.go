// Package repository содержит реализацию доступа к данным в PostgreSQL
// и резервное хранилище в памяти.
package repository

import (
	"context"
	"embed"
	"encoding/json"
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

	"github.com/mmeshcher/pekara-system/internal/model"
	"github.com/mmeshcher/pekara-system/internal/validation"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrCustomerNotFound возвращается, если покупатель не найден.
var (
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrCustomerExists возвращается при попытке создать покупателя с уже занятым телефоном.
	ErrCustomerExists = errors.New("customer already exists")
	// ErrProductNotFound возвращается, если товар не найден.
	ErrProductNotFound = errors.New("product not found")
	// ErrOrderNotFound возвращается, если заказ не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderDelivered возвращается при попытке изменить доставленный заказ.
	ErrOrderDelivered = errors.New("order already delivered")
	// ErrOrderCanceled возвращается при попытке доставить отменённый заказ.
	ErrOrderCanceled = errors.New("order already canceled")
)

// OrderStatusGroup — группа статусов для выборки заказов персоналом.
type OrderStatusGroup string

const (
	// OrderGroupOpen — только подтверждённые заказы.
	OrderGroupOpen OrderStatusGroup = "open"
	// OrderGroupAll — подтверждённые, доставленные и отменённые.
	OrderGroupAll OrderStatusGroup = "all"
)

// OrderDateFilter — фильтр по дате создания заказа.
type OrderDateFilter string

const (
	OrderDateToday OrderDateFilter = "today"
	OrderDateAll   OrderDateFilter = "all"
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
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

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

const productColumns = `id, project_id, sku, name_hr, name_de, name_en, base_price_cents, currency,
	 is_active, discount_active, discount_type, discount_value, discount_name,
	 discount_categories, discount_from, discount_until, created_at`

func scanProduct(row pgx.Row) (*model.Product, error) {
	var (
		p           model.Product
		nameHR      string
		nameDE      string
		nameEN      string
		dActive     bool
		dType       string
		dValue      int64
		dName       string
		dCategories string
		dFrom       *time.Time
		dUntil      *time.Time
	)

	err := row.Scan(&p.ID, &p.ProjectID, &p.SKU, &nameHR, &nameDE, &nameEN,
		&p.BasePriceCents, &p.Currency, &p.Active,
		&dActive, &dType, &dValue, &dName, &dCategories, &dFrom, &dUntil,
		&p.CreatedAt)
	if err != nil {
		return nil, err
	}

	p.Names = map[string]string{"hr": nameHR, "de": nameDE, "en": nameEN}

	// Скидка хранится в колонках товара; пустой тип означает, что скидка
	// никогда не настраивалась.
	if dType != "" || dActive {
		p.Discount = &model.Discount{
			Active:     dActive,
			Type:       model.DiscountType(dType),
			Value:      dValue,
			Name:       dName,
			Categories: validation.SplitCategories(dCategories),
			From:       dFrom,
			Until:      dUntil,
		}
	}

	return &p, nil
}

// ListProducts возвращает все товары проекта.
func (r *PostgresRepository) ListProducts(ctx context.Context, projectID string) ([]model.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE project_id = $1 ORDER BY sku`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var res []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		res = append(res, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// UpsertProduct создаёт или обновляет товар по натуральному ключу (project_id, sku).
func (r *PostgresRepository) UpsertProduct(ctx context.Context, p *model.Product) (int64, error) {
	var (
		dActive     bool
		dType       string
		dValue      int64
		dName       string
		dCategories string
		dFrom       *time.Time
		dUntil      *time.Time
	)
	if p.Discount != nil {
		dActive = p.Discount.Active
		dType = string(p.Discount.Type)
		dValue = p.Discount.Value
		dName = p.Discount.Name
		dCategories = strings.Join(p.Discount.Categories, ",")
		dFrom = p.Discount.From
		dUntil = p.Discount.Until
	}

	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO products (project_id, sku, name_hr, name_de, name_en, base_price_cents, currency,
			is_active, discount_active, discount_type, discount_value, discount_name,
			discount_categories, discount_from, discount_until)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 ON CONFLICT (project_id, sku) DO UPDATE SET
			name_hr = EXCLUDED.name_hr,
			name_de = EXCLUDED.name_de,
			name_en = EXCLUDED.name_en,
			base_price_cents = EXCLUDED.base_price_cents,
			currency = EXCLUDED.currency,
			is_active = EXCLUDED.is_active,
			discount_active = EXCLUDED.discount_active,
			discount_type = EXCLUDED.discount_type,
			discount_value = EXCLUDED.discount_value,
			discount_name = EXCLUDED.discount_name,
			discount_categories = EXCLUDED.discount_categories,
			discount_from = EXCLUDED.discount_from,
			discount_until = EXCLUDED.discount_until
		 RETURNING id`,
		p.ProjectID, p.SKU, p.Names["hr"], p.Names["de"], p.Names["en"],
		p.BasePriceCents, p.Currency, p.Active,
		dActive, dType, dValue, dName, dCategories, dFrom, dUntil,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert product: %w", err)
	}

	return id, nil
}

// GetCustomerByPhone возвращает покупателя проекта по телефону.
func (r *PostgresRepository) GetCustomerByPhone(ctx context.Context, projectID, phone string) (*model.Customer, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, project_id, phone, pin, name, categories, created_at
		 FROM customers
		 WHERE project_id = $1 AND phone = $2`,
		projectID, phone,
	)

	c, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}

	return c, nil
}

func scanCustomer(row pgx.Row) (*model.Customer, error) {
	var (
		c          model.Customer
		categories string
	)
	if err := row.Scan(&c.ID, &c.ProjectID, &c.Phone, &c.PIN, &c.Name, &categories, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.Categories = validation.SplitCategories(categories)
	return &c, nil
}

// ListCustomers возвращает всех покупателей проекта.
func (r *PostgresRepository) ListCustomers(ctx context.Context, projectID string) ([]model.Customer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, project_id, phone, pin, name, categories, created_at
		 FROM customers
		 WHERE project_id = $1
		 ORDER BY created_at DESC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("select customers: %w", err)
	}
	defer rows.Close()

	var res []model.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		res = append(res, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CreateCustomer создаёт нового покупателя.
func (r *PostgresRepository) CreateCustomer(ctx context.Context, c *model.Customer) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO customers (project_id, phone, pin, name, categories)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		c.ProjectID, c.Phone, c.PIN, c.Name, strings.Join(c.Categories, ","),
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("%w: %s", ErrCustomerExists, c.Phone)
		}
		return 0, fmt.Errorf("create customer: %w", err)
	}
	return id, nil
}

// UpdateCustomerName обновляет имя покупателя, не трогая остальные поля.
func (r *PostgresRepository) UpdateCustomerName(ctx context.Context, projectID, phone, name string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE customers SET name = $3 WHERE project_id = $1 AND phone = $2`,
		projectID, phone, name,
	)
	if err != nil {
		return fmt.Errorf("update customer name: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCustomerNotFound
	}
	return nil
}

// UpsertCustomer создаёт или обновляет покупателя по натуральному ключу (project_id, phone).
// Используется админским контуром: в отличие от чата, он может менять PIN и категории.
func (r *PostgresRepository) UpsertCustomer(ctx context.Context, c *model.Customer) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO customers (project_id, phone, pin, name, categories)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (project_id, phone) DO UPDATE SET
			pin = EXCLUDED.pin,
			name = EXCLUDED.name,
			categories = EXCLUDED.categories
		 RETURNING id`,
		c.ProjectID, c.Phone, c.PIN, c.Name, strings.Join(c.Categories, ","),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert customer: %w", err)
	}
	return id, nil
}

// DeleteCustomer удаляет покупателя по идентификатору.
func (r *PostgresRepository) DeleteCustomer(ctx context.Context, projectID string, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM customers WHERE project_id = $1 AND id = $2`,
		projectID, id,
	)
	if err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCustomerNotFound
	}
	return nil
}

// CreateOrder сохраняет подтверждённый заказ и отменяет предыдущий
// подтверждённый заказ того же телефона в одной транзакции.
//
// Строка покупателя блокируется FOR UPDATE, чтобы сериализовать параллельные
// подтверждения по одному телефону: живым остаётся ровно один заказ.
// Возвращает идентификатор нового заказа и идентификатор вытесненного, если
// он был.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o *model.Order) (int64, *int64, error) {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal items: %w", err)
	}
	linesJSON, err := json.Marshal(o.Lines)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal lines: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var dummy int
	err = tx.QueryRow(ctx,
		`SELECT 1 FROM customers WHERE project_id = $1 AND phone = $2 FOR UPDATE`,
		o.ProjectID, o.Phone,
	).Scan(&dummy)
	if err != nil {
		return 0, nil, fmt.Errorf("lock customer for update: %w", err)
	}

	// Вытесняется только ещё подтверждённый заказ; доставленные неизменяемы.
	var supersedes *int64
	var prevID int64
	err = tx.QueryRow(ctx,
		`SELECT id FROM orders
		 WHERE project_id = $1 AND phone = $2 AND status = $3
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		o.ProjectID, o.Phone, string(model.OrderStatusConfirmed),
	).Scan(&prevID)
	switch {
	case err == nil:
		if _, err := tx.Exec(ctx,
			`UPDATE orders SET status = $2 WHERE id = $1`,
			prevID, string(model.OrderStatusCanceled),
		); err != nil {
			return 0, nil, fmt.Errorf("cancel superseded order: %w", err)
		}
		supersedes = &prevID
	case errors.Is(err, pgx.ErrNoRows):
		// Первый живой заказ для этого телефона.
	default:
		return 0, nil, fmt.Errorf("select superseded order: %w", err)
	}

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO orders (project_id, phone, pin, customer_name, pickup_time, items, lines,
			total_cents, currency, status, supersedes_id, client_ip, user_agent)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING id`,
		o.ProjectID, o.Phone, o.PIN, o.Name, o.PickupTime, itemsJSON, linesJSON,
		o.TotalCents, o.Currency, string(model.OrderStatusConfirmed),
		supersedes, o.ClientIP, o.UserAgent,
	).Scan(&id)
	if err != nil {
		return 0, nil, fmt.Errorf("insert order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, nil, fmt.Errorf("commit tx: %w", err)
	}

	return id, supersedes, nil
}

const orderColumns = `id, project_id, phone, pin, customer_name, pickup_time, items, lines,
	 total_cents, currency, status, supersedes_id, client_ip, user_agent, created_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o         model.Order
		itemsJSON []byte
		linesJSON []byte
		status    string
	)

	err := row.Scan(&o.ID, &o.ProjectID, &o.Phone, &o.PIN, &o.Name, &o.PickupTime,
		&itemsJSON, &linesJSON, &o.TotalCents, &o.Currency, &status,
		&o.SupersedesID, &o.ClientIP, &o.UserAgent, &o.CreatedAt)
	if err != nil {
		return nil, err
	}

	o.Status = model.OrderStatus(status)
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return nil, fmt.Errorf("unmarshal items: %w", err)
	}
	if err := json.Unmarshal(linesJSON, &o.Lines); err != nil {
		return nil, fmt.Errorf("unmarshal lines: %w", err)
	}

	return &o, nil
}

// GetOrder возвращает заказ проекта по идентификатору.
func (r *PostgresRepository) GetOrder(ctx context.Context, projectID string, id int64) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE project_id = $1 AND id = $2`,
		projectID, id,
	)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	return o, nil
}

// ListOrders возвращает заказы проекта по группе статусов и фильтру даты,
// свежие первыми.
func (r *PostgresRepository) ListOrders(ctx context.Context, projectID string, group OrderStatusGroup, date OrderDateFilter) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE project_id = $1`
	args := []any{projectID}

	if group == OrderGroupOpen {
		args = append(args, string(model.OrderStatusConfirmed))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if date == OrderDateToday {
		query += " AND created_at >= CURRENT_DATE"
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var res []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		res = append(res, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// MarkDelivered переводит заказ в статус delivered. Повторная отметка уже
// доставленного заказа — no-op.
func (r *PostgresRepository) MarkDelivered(ctx context.Context, projectID string, id int64) (*model.Order, error) {
	return r.setOrderStatus(ctx, projectID, id, model.OrderStatusDelivered)
}

// CancelOrder переводит заказ в статус canceled. Доставленный заказ отменить
// нельзя, повторная отмена — no-op.
func (r *PostgresRepository) CancelOrder(ctx context.Context, projectID string, id int64) (*model.Order, error) {
	return r.setOrderStatus(ctx, projectID, id, model.OrderStatusCanceled)
}

func (r *PostgresRepository) setOrderStatus(ctx context.Context, projectID string, id int64, target model.OrderStatus) (*model.Order, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE project_id = $1 AND id = $2 FOR UPDATE`,
		projectID, id,
	)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if o.Status == target {
		// Идемпотентный переход: состояние уже достигнуто.
		return o, tx.Commit(ctx)
	}
	// Оба конечных статуса терминальны.
	if o.Status == model.OrderStatusDelivered {
		return nil, ErrOrderDelivered
	}
	if o.Status == model.OrderStatusCanceled {
		return nil, ErrOrderCanceled
	}

	if _, err := tx.Exec(ctx,
		`UPDATE orders SET status = $3 WHERE project_id = $1 AND id = $2`,
		projectID, id, string(target),
	); err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	o.Status = target
	return o, nil
}
