package models

// Product prices are integer cents. Count is the authoritative stock level
// and is only mutated through the ledger's conditional updates.
type Product struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"  json:"id"`
	Name        string `gorm:"not null"                  json:"name"`
	Description string `gorm:"not null"                  json:"description"`
	Price       int64  `gorm:"not null"                  json:"price"`
	Count       uint   `json:"count"`
}

type CartItem struct {
	ID        uint `gorm:"primaryKey"                  json:"id"`
	UserID    uint `gorm:"index;not null"              json:"user_id"`
	ProductID uint `gorm:"not null"                    json:"product_id"`
	Quantity  uint `gorm:"default:1;check:quantity>0"  json:"quantity"`
}

type Order struct {
	ID         uint        `gorm:"primaryKey"           json:"id"`
	UserID     uint        `gorm:"index;not null"       json:"user_id"`
	CheckoutID string      `gorm:"uniqueIndex;not null" json:"checkout_id"`
	Total      int64       `gorm:"not null"             json:"total"`
	Status     string      `gorm:"not null"             json:"status"`
	CreatedAt  int64       `gorm:"not null"             json:"created_at"`
	Items      []OrderItem `gorm:"foreignKey:OrderID"   json:"items"`
}

// OrderItem carries the unit price captured at commit time. It is never
// recomputed from the live catalog.
type OrderItem struct {
	ID        uint  `gorm:"primaryKey"                  json:"id"`
	OrderID   uint  `gorm:"index;not null"              json:"order_id"`
	ProductID uint  `gorm:"not null"                    json:"product_id"`
	Quantity  uint  `gorm:"check:quantity>0"            json:"quantity"`
	UnitPrice int64 `gorm:"not null"                    json:"unit_price"`
}

// Reservation is a provisional, already-decremented claim on stock.
// Reservations of one checkout attempt share a CheckoutID so the
// reconciliation sweep can match them against a committed order.
type Reservation struct {
	ID         string `gorm:"primaryKey"     json:"id"`
	CheckoutID string `gorm:"index;not null" json:"checkout_id"`
	ProductID  uint   `gorm:"index;not null" json:"product_id"`
	Quantity   uint   `gorm:"not null"       json:"quantity"`
	Status     string `gorm:"not null"       json:"status"`
	CreatedAt  int64  `gorm:"not null"       json:"created_at"`
}
