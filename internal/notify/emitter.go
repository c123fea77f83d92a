// Package notify записывает уведомления пользователям и при необходимости рассылает их в брокер.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/marketplace/internal/model"
)

// Виды уведомлений.
const (
	KindOrder      = "order"
	KindOrderItem  = "order_item"
	KindVendor     = "vendor"
	KindPayout     = "payout"
	KindModeration = "moderation"
)

// Store сохраняет уведомления.
type Store interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
}

// Publisher доставляет уведомление во внешнюю систему.
type Publisher interface {
	Publish(ctx context.Context, n model.Notification) error
}

// Emitter сохраняет уведомления. Ошибки логируются и не влияют на вызывающую операцию.
type Emitter struct {
	store     Store
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewEmitter создаёт Emitter. publisher может быть nil.
func NewEmitter(store Store, publisher Publisher, logger *zap.Logger) *Emitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Emitter{
		store:     store,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Emit добавляет непрочитанное уведомление получателю.
func (e *Emitter) Emit(ctx context.Context, recipientID, title, message, kind string) {
	n := model.Notification{
		ID:          uuid.NewString(),
		RecipientID: recipientID,
		Title:       title,
		Message:     message,
		Kind:        kind,
		CreatedAt:   e.now().UTC(),
	}

	if err := e.store.CreateNotification(ctx, &n); err != nil {
		e.logger.Warn("failed to store notification",
			zap.String("recipientID", recipientID),
			zap.String("kind", kind),
			zap.Error(err))
		return
	}

	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, n); err != nil {
		e.logger.Warn("failed to publish notification",
			zap.String("notificationID", n.ID),
			zap.String("kind", kind),
			zap.Error(err))
	}
}
