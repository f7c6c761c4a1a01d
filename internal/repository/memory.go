package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mmeshcher/pekara-system/internal/model"
)

// MemoryRepository — хранилище в памяти. Служит резервным набором данных,
// когда СУБД не сконфигурирована, и хранилищем в тестах.
type MemoryRepository struct {
	mu        sync.Mutex
	products  map[int64]*model.Product
	customers map[int64]*model.Customer
	orders    map[int64]*model.Order
	nextID    int64
}

// NewMemoryRepository создаёт пустое хранилище в памяти.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		products:  make(map[int64]*model.Product),
		customers: make(map[int64]*model.Customer),
		orders:    make(map[int64]*model.Order),
		nextID:    1,
	}
}

// NewMemoryRepositoryWithDefaults создаёт хранилище, заполненное каталогом
// проекта по умолчанию.
func NewMemoryRepositoryWithDefaults() *MemoryRepository {
	r := NewMemoryRepository()
	for _, p := range DefaultCatalog() {
		p := p
		_, _ = r.UpsertProduct(context.Background(), &p)
	}
	return r
}

// DefaultCatalog возвращает стартовый каталог проекта burek01.
func DefaultCatalog() []model.Product {
	return []model.Product{
		{
			ProjectID: model.DefaultProjectID,
			SKU:       "burek_sir",
			Names: map[string]string{
				"hr": "Burek sa sirom",
				"de": "Burek mit Käse",
				"en": "Cheese burek",
			},
			BasePriceCents: 500,
			Currency:       "EUR",
			Active:         true,
			Discount: &model.Discount{
				Active:     true,
				Type:       model.DiscountPercentage,
				Value:      20,
				Name:       "studentski popust",
				Categories: []string{"student"},
			},
		},
		{
			ProjectID: model.DefaultProjectID,
			SKU:       "burek_meso",
			Names: map[string]string{
				"hr": "Burek s mesom",
				"de": "Burek mit Fleisch",
				"en": "Meat burek",
			},
			BasePriceCents: 500,
			Currency:       "EUR",
			Active:         true,
		},
		{
			ProjectID: model.DefaultProjectID,
			SKU:       "burek_krumpir",
			Names: map[string]string{
				"hr": "Burek s krumpirom",
				"de": "Burek mit Kartoffeln",
				"en": "Potato burek",
			},
			BasePriceCents: 450,
			Currency:       "EUR",
			Active:         true,
		},
	}
}

// Close ничего не освобождает, метод нужен для общего контракта с PostgreSQL.
func (r *MemoryRepository) Close() error { return nil }

func (r *MemoryRepository) allocID() int64 {
	id := r.nextID
	r.nextID++
	return id
}

func cloneProduct(p *model.Product) *model.Product {
	cp := *p
	cp.Names = make(map[string]string, len(p.Names))
	for k, v := range p.Names {
		cp.Names[k] = v
	}
	if p.Discount != nil {
		d := *p.Discount
		d.Categories = append([]string(nil), p.Discount.Categories...)
		cp.Discount = &d
	}
	return &cp
}

func cloneCustomer(c *model.Customer) *model.Customer {
	cc := *c
	cc.Categories = append([]string(nil), c.Categories...)
	return &cc
}

func cloneOrder(o *model.Order) *model.Order {
	co := *o
	co.Items = make(map[string]int, len(o.Items))
	for k, v := range o.Items {
		co.Items[k] = v
	}
	co.Lines = append([]model.OrderLine(nil), o.Lines...)
	if o.SupersedesID != nil {
		v := *o.SupersedesID
		co.SupersedesID = &v
	}
	return &co
}

// ListProducts возвращает все товары проекта.
func (r *MemoryRepository) ListProducts(ctx context.Context, projectID string) ([]model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res []model.Product
	for _, p := range r.products {
		if p.ProjectID == projectID {
			res = append(res, *cloneProduct(p))
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].SKU < res[j].SKU })
	return res, nil
}

// UpsertProduct создаёт или обновляет товар по (project_id, sku).
func (r *MemoryRepository) UpsertProduct(ctx context.Context, p *model.Product) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, existing := range r.products {
		if existing.ProjectID == p.ProjectID && existing.SKU == p.SKU {
			cp := cloneProduct(p)
			cp.ID = id
			cp.CreatedAt = existing.CreatedAt
			r.products[id] = cp
			return id, nil
		}
	}

	cp := cloneProduct(p)
	cp.ID = r.allocID()
	cp.CreatedAt = time.Now()
	r.products[cp.ID] = cp
	return cp.ID, nil
}

// GetCustomerByPhone возвращает покупателя проекта по телефону.
func (r *MemoryRepository) GetCustomerByPhone(ctx context.Context, projectID, phone string) (*model.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.customers {
		if c.ProjectID == projectID && c.Phone == phone {
			return cloneCustomer(c), nil
		}
	}
	return nil, ErrCustomerNotFound
}

// ListCustomers возвращает всех покупателей проекта.
func (r *MemoryRepository) ListCustomers(ctx context.Context, projectID string) ([]model.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res []model.Customer
	for _, c := range r.customers {
		if c.ProjectID == projectID {
			res = append(res, *cloneCustomer(c))
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID > res[j].ID })
	return res, nil
}

// CreateCustomer создаёт нового покупателя.
func (r *MemoryRepository) CreateCustomer(ctx context.Context, c *model.Customer) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.customers {
		if existing.ProjectID == c.ProjectID && existing.Phone == c.Phone {
			return 0, ErrCustomerExists
		}
	}

	cc := cloneCustomer(c)
	cc.ID = r.allocID()
	cc.CreatedAt = time.Now()
	r.customers[cc.ID] = cc
	return cc.ID, nil
}

// UpdateCustomerName обновляет имя покупателя.
func (r *MemoryRepository) UpdateCustomerName(ctx context.Context, projectID, phone, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.customers {
		if c.ProjectID == projectID && c.Phone == phone {
			c.Name = name
			return nil
		}
	}
	return ErrCustomerNotFound
}

// UpsertCustomer создаёт или обновляет покупателя по (project_id, phone).
func (r *MemoryRepository) UpsertCustomer(ctx context.Context, c *model.Customer) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, existing := range r.customers {
		if existing.ProjectID == c.ProjectID && existing.Phone == c.Phone {
			cc := cloneCustomer(c)
			cc.ID = id
			cc.CreatedAt = existing.CreatedAt
			r.customers[id] = cc
			return id, nil
		}
	}

	cc := cloneCustomer(c)
	cc.ID = r.allocID()
	cc.CreatedAt = time.Now()
	r.customers[cc.ID] = cc
	return cc.ID, nil
}

// DeleteCustomer удаляет покупателя по идентификатору.
func (r *MemoryRepository) DeleteCustomer(ctx context.Context, projectID string, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.customers[id]
	if !ok || c.ProjectID != projectID {
		return ErrCustomerNotFound
	}
	delete(r.customers, id)
	return nil
}

// CreateOrder сохраняет подтверждённый заказ и отменяет предыдущий
// подтверждённый заказ того же телефона. Мьютекс хранилища даёт ту же
// атомарность, что транзакция в PostgreSQL.
func (r *MemoryRepository) CreateOrder(ctx context.Context, o *model.Order) (int64, *int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var prev *model.Order
	for _, existing := range r.orders {
		if existing.ProjectID != o.ProjectID || existing.Phone != o.Phone {
			continue
		}
		if existing.Status != model.OrderStatusConfirmed {
			continue
		}
		if prev == nil || existing.CreatedAt.After(prev.CreatedAt) ||
			(existing.CreatedAt.Equal(prev.CreatedAt) && existing.ID > prev.ID) {
			prev = existing
		}
	}

	var supersedes *int64
	if prev != nil {
		prev.Status = model.OrderStatusCanceled
		id := prev.ID
		supersedes = &id
	}

	co := cloneOrder(o)
	co.ID = r.allocID()
	co.Status = model.OrderStatusConfirmed
	co.SupersedesID = supersedes
	co.CreatedAt = time.Now()
	r.orders[co.ID] = co

	return co.ID, supersedes, nil
}

// GetOrder возвращает заказ проекта по идентификатору.
func (r *MemoryRepository) GetOrder(ctx context.Context, projectID string, id int64) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok || o.ProjectID != projectID {
		return nil, ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

// ListOrders возвращает заказы проекта, свежие первыми.
func (r *MemoryRepository) ListOrders(ctx context.Context, projectID string, group OrderStatusGroup, date OrderDateFilter) ([]model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()

	var res []model.Order
	for _, o := range r.orders {
		if o.ProjectID != projectID {
			continue
		}
		if group == OrderGroupOpen && o.Status != model.OrderStatusConfirmed {
			continue
		}
		if date == OrderDateToday {
			y1, m1, d1 := o.CreatedAt.Date()
			y2, m2, d2 := now.Date()
			if y1 != y2 || m1 != m2 || d1 != d2 {
				continue
			}
		}
		res = append(res, *cloneOrder(o))
	}

	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].ID > res[j].ID
		}
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}

// MarkDelivered переводит заказ в статус delivered.
func (r *MemoryRepository) MarkDelivered(ctx context.Context, projectID string, id int64) (*model.Order, error) {
	return r.setOrderStatus(projectID, id, model.OrderStatusDelivered)
}

// CancelOrder переводит заказ в статус canceled.
func (r *MemoryRepository) CancelOrder(ctx context.Context, projectID string, id int64) (*model.Order, error) {
	return r.setOrderStatus(projectID, id, model.OrderStatusCanceled)
}

func (r *MemoryRepository) setOrderStatus(projectID string, id int64, target model.OrderStatus) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok || o.ProjectID != projectID {
		return nil, ErrOrderNotFound
	}

	if o.Status == target {
		return cloneOrder(o), nil
	}
	if o.Status == model.OrderStatusDelivered {
		return nil, ErrOrderDelivered
	}
	if o.Status == model.OrderStatusCanceled {
		return nil, ErrOrderCanceled
	}

	o.Status = target
	return cloneOrder(o), nil
}
