// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/shopmesh/shopmesh/pkg/messaging"
)

// Order lifecycle states. Orders start pending and are confirmed or
// cancelled by the saga outcome.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// Order is the orders service persistence model.
type Order struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	UserID     string    `json:"user_id" gorm:"index;not null"`
	Status     string    `json:"status" gorm:"default:'pending'"`
	TotalCents int64     `json:"total_cents"`
	ItemsJSON  string    `json:"-" gorm:"type:text"`
	SagaID     string    `json:"saga_id" gorm:"index"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName returns the table name for the Order model.
func (Order) TableName() string {
	return "orders"
}

// Items decodes the stored item list.
func (o *Order) Items() ([]messaging.OrderItem, error) {
	if o.ItemsJSON == "" {
		return nil, nil
	}
	var items []messaging.OrderItem
	if err := json.Unmarshal([]byte(o.ItemsJSON), &items); err != nil {
		return nil, err
	}
	return items, nil
}

// SetItems encodes the item list for storage.
func (o *Order) SetItems(items []messaging.OrderItem) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	o.ItemsJSON = string(raw)
	return nil
}

// OrderItemRequest is one requested line item.
type OrderItemRequest struct {
	SKU            string `json:"sku" binding:"required"`
	Quantity       int    `json:"quantity" binding:"required,min=1"`
	UnitPriceCents int64  `json:"unit_price_cents" binding:"min=0"`
}

// CreateOrderRequest is the POST /orders payload.
type CreateOrderRequest struct {
	Items []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

// OrderResponse is the API representation of an order.
type OrderResponse struct {
	ID         string                `json:"id"`
	UserID     string                `json:"user_id"`
	Status     string                `json:"status"`
	TotalCents int64                 `json:"total_cents"`
	Items      []messaging.OrderItem `json:"items"`
	SagaID     string                `json:"saga_id"`
	CreatedAt  time.Time             `json:"created_at"`
}

// ToResponse converts the order for API output. Undecodable stored items
// degrade to an empty list rather than failing the read.
func (o *Order) ToResponse() OrderResponse {
	items, err := o.Items()
	if err != nil {
		items = nil
	}
	return OrderResponse{
		ID:         o.ID.String(),
		UserID:     o.UserID,
		Status:     o.Status,
		TotalCents: o.TotalCents,
		Items:      items,
		SagaID:     o.SagaID,
		CreatedAt:  o.CreatedAt,
	}
}
