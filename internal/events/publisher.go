// Package events публикует события жизненного цикла заказов в NATS.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/mmeshcher/pekara-system/internal/model"
)

const subjectPrefix = "pekara.orders."

// OrderEvent — полезная нагрузка события заказа. PIN в события не попадает.
type OrderEvent struct {
	OrderID      int64          `json:"order_id"`
	ProjectID    string         `json:"project_id"`
	Phone        string         `json:"phone"`
	Status       string         `json:"status"`
	Items        map[string]int `json:"items,omitempty"`
	TotalCents   int64          `json:"total_cents"`
	Currency     string         `json:"currency"`
	SupersedesID *int64         `json:"supersedes_id,omitempty"`
	OccurredAt   time.Time      `json:"occurred_at"`
}

// Publisher отправляет события заказов в NATS. Nil-издатель допустим и
// молча игнорирует публикации: событийный контур опционален.
type Publisher struct {
	nc     *nats.Conn
	logger *zap.Logger
}

// NewPublisher подключается к NATS по указанному адресу.
func NewPublisher(url string, logger *zap.Logger) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("pekara-backend"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	return &Publisher{nc: nc, logger: logger}, nil
}

// Close закрывает соединение с NATS.
func (p *Publisher) Close() {
	if p != nil && p.nc != nil {
		p.nc.Close()
	}
}

// OrderConfirmed публикует событие подтверждения заказа.
func (p *Publisher) OrderConfirmed(o *model.Order) {
	p.publish("confirmed", o)
}

// OrderDelivered публикует событие доставки заказа.
func (p *Publisher) OrderDelivered(o *model.Order) {
	p.publish("delivered", o)
}

// OrderCanceled публикует событие отмены заказа.
func (p *Publisher) OrderCanceled(o *model.Order) {
	p.publish("canceled", o)
}

// publish отправляет событие наилучшим образом: сбой публикации логируется,
// но не влияет на обработку заказа.
func (p *Publisher) publish(kind string, o *model.Order) {
	if p == nil || p.nc == nil {
		return
	}

	evt := OrderEvent{
		OrderID:      o.ID,
		ProjectID:    o.ProjectID,
		Phone:        o.Phone,
		Status:       string(o.Status),
		Items:        o.Items,
		TotalCents:   o.TotalCents,
		Currency:     o.Currency,
		SupersedesID: o.SupersedesID,
		OccurredAt:   time.Now().UTC(),
	}

	data, err := json.Marshal(evt)
	if err != nil {
		p.logger.Error("marshal order event", zap.Error(err), zap.Int64("orderID", o.ID))
		return
	}

	if err := p.nc.Publish(subjectPrefix+kind, data); err != nil {
		p.logger.Error("publish order event",
			zap.Error(err),
			zap.String("subject", subjectPrefix+kind),
			zap.Int64("orderID", o.ID),
		)
	}
}
