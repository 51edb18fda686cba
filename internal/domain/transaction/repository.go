package transaction

import (
	"context"

	"gorm.io/gorm"

	"github.com/crjyouth/libris/internal/database"
)

// Repository handles ticket persistence.
type Repository interface {
	Create(ctx context.Context, t *Transaction) error
	FindByTicketID(ctx context.Context, ticketID int) (*Transaction, error)
	ListByCustomer(ctx context.Context, customerID int) ([]Transaction, error)
	ListByStatus(ctx context.Context, status string) ([]Transaction, error)
	Update(ctx context.Context, t *Transaction) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, t *Transaction) error {
	db := database.GetTxFromContext(ctx, r.db)
	return database.WrapStorage("transaction.create", db.Create(t).Error)
}

func (r *repository) FindByTicketID(ctx context.Context, ticketID int) (*Transaction, error) {
	db := database.GetTxFromContext(ctx, r.db)
	var t Transaction
	if err := db.First(&t, "ticket_id = ?", ticketID).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *repository) ListByCustomer(ctx context.Context, customerID int) ([]Transaction, error) {
	db := database.GetTxFromContext(ctx, r.db)
	var out []Transaction
	err := db.Where("customer_id = ?", customerID).Order("created_at DESC").Find(&out).Error
	if err != nil {
		return nil, database.WrapStorage("transaction.list_by_customer", err)
	}
	return out, nil
}

func (r *repository) ListByStatus(ctx context.Context, status string) ([]Transaction, error) {
	db := database.GetTxFromContext(ctx, r.db)
	var out []Transaction
	err := db.Where("status = ?", status).Order("created_at ASC").Find(&out).Error
	if err != nil {
		return nil, database.WrapStorage("transaction.list_by_status", err)
	}
	return out, nil
}

func (r *repository) Update(ctx context.Context, t *Transaction) error {
	db := database.GetTxFromContext(ctx, r.db)
	return database.WrapStorage("transaction.update", db.Save(t).Error)
}
