package book

import (
	"context"

	"gorm.io/gorm"

	"github.com/crjyouth/libris/internal/database"
)

// Repository handles book and copy persistence.
type Repository interface {
	CreateBook(ctx context.Context, b *Book) error
	FindBookByID(ctx context.Context, bookID string) (*Book, error)
	FindBookByISBN(ctx context.Context, isbn int64) (*Book, error)
	ListBooks(ctx context.Context) ([]Book, error)
	UpdateBook(ctx context.Context, b *Book) error
	DeleteBook(ctx context.Context, bookID string) error
	MaxBookNumber(ctx context.Context, code string) (int, error)

	CreateCopy(ctx context.Context, c *BookCopy) error
	FindCopyByID(ctx context.Context, copyID string) (*BookCopy, error)
	ListCopies(ctx context.Context, bookID string) ([]BookCopy, error)
	MaxCopyNumber(ctx context.Context, bookID string) (int, error)
	SetCopyAvailability(ctx context.Context, copyID string, available bool) (bool, error)
	DeleteCopy(ctx context.Context, copyID string) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateBook(ctx context.Context, b *Book) error {
	db := database.GetTxFromContext(ctx, r.db)
	return database.WrapStorage("book.create", db.Create(b).Error)
}

func (r *repository) FindBookByID(ctx context.Context, bookID string) (*Book, error) {
	db := database.GetTxFromContext(ctx, r.db)
	var b Book
	if err := db.First(&b, "book_id = ?", bookID).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *repository) FindBookByISBN(ctx context.Context, isbn int64) (*Book, error) {
	db := database.GetTxFromContext(ctx, r.db)
	var b Book
	if err := db.First(&b, "isbn = ?", isbn).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *repository) ListBooks(ctx context.Context) ([]Book, error) {
	db := database.GetTxFromContext(ctx, r.db)
	var books []Book
	if err := db.Order("book_id ASC").Find(&books).Error; err != nil {
		return nil, database.WrapStorage("book.list", err)
	}
	return books, nil
}

func (r *repository) UpdateBook(ctx context.Context, b *Book) error {
	db := database.GetTxFromContext(ctx, r.db)
	return database.WrapStorage("book.update", db.Save(b).Error)
}

func (r *repository) DeleteBook(ctx context.Context, bookID string) error {
	db := database.GetTxFromContext(ctx, r.db)
	return database.WrapStorage("book.delete", db.Where("book_id = ?", bookID).Delete(&Book{}).Error)
}

func (r *repository) MaxBookNumber(ctx context.Context, code string) (int, error) {
	db := database.GetTxFromContext(ctx, r.db)
	var max *int
	err := db.Model(&Book{}).
		Where("author_code = ? OR publisher_code = ?", code, code).
		Select("MAX(book_number)").
		Scan(&max).Error
	if err != nil {
		return 0, database.WrapStorage("book.max_number", err)
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

func (r *repository) CreateCopy(ctx context.Context, c *BookCopy) error {
	db := database.GetTxFromContext(ctx, r.db)
	return database.WrapStorage("copy.create", db.Create(c).Error)
}

func (r *repository) FindCopyByID(ctx context.Context, copyID string) (*BookCopy, error) {
	db := database.GetTxFromContext(ctx, r.db)
	var c BookCopy
	if err := db.First(&c, "copy_id = ?", copyID).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repository) ListCopies(ctx context.Context, bookID string) ([]BookCopy, error) {
	db := database.GetTxFromContext(ctx, r.db)
	var copies []BookCopy
	if err := db.Where("book_id = ?", bookID).Order("copy_number ASC").Find(&copies).Error; err != nil {
		return nil, database.WrapStorage("copy.list", err)
	}
	return copies, nil
}

func (r *repository) MaxCopyNumber(ctx context.Context, bookID string) (int, error) {
	db := database.GetTxFromContext(ctx, r.db)
	var max *int
	err := db.Model(&BookCopy{}).
		Where("book_id = ?", bookID).
		Select("MAX(copy_number)").
		Scan(&max).Error
	if err != nil {
		return 0, database.WrapStorage("copy.max_number", err)
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

// SetCopyAvailability flips availability in a guarded UPDATE so a copy
// cannot be borrowed twice.
func (r *repository) SetCopyAvailability(ctx context.Context, copyID string, available bool) (bool, error) {
	db := database.GetTxFromContext(ctx, r.db)
	res := db.Model(&BookCopy{}).
		Where("copy_id = ? AND is_available = ?", copyID, !available).
		Update("is_available", available)
	if res.Error != nil {
		return false, database.WrapStorage("copy.set_availability", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) DeleteCopy(ctx context.Context, copyID string) error {
	db := database.GetTxFromContext(ctx, r.db)
	return database.WrapStorage("copy.delete", db.Where("copy_id = ?", copyID).Delete(&BookCopy{}).Error)
}
