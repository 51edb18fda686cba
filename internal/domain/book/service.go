package book

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
)

var (
	ErrBookNotFound  = errors.New("book not found")
	ErrCopyNotFound  = errors.New("book copy not found")
	ErrISBNExists    = errors.New("a book with this ISBN already exists")
	ErrCopyBorrowed  = errors.New("book copy is already borrowed")
	ErrTitleRequired = errors.New("book title is required")
	ErrCodeRequired  = errors.New("an author or publisher code is required")
)

// CreateBookInput carries the fields for a new catalogue entry.
type CreateBookInput struct {
	ISBN                 int64
	Title                string
	AuthorCode           string
	PublisherCode        string
	Type                 string
	Language             string
	FirstPublicationYear int
	IsRestricted         bool
}

// Service handles catalogue business logic.
type Service interface {
	CreateBook(ctx context.Context, in CreateBookInput) (*Book, error)
	GetBook(ctx context.Context, bookID string) (*Book, error)
	ListBooks(ctx context.Context) ([]Book, error)
	UpdateBook(ctx context.Context, bookID string, updates map[string]any) (*Book, error)
	DeleteBook(ctx context.Context, bookID string) error

	AddCopy(ctx context.Context, bookID string, branchCode int) (*BookCopy, error)
	GetCopy(ctx context.Context, copyID string) (*BookCopy, error)
	ListCopies(ctx context.Context, bookID string) ([]BookCopy, error)
	MarkBorrowed(ctx context.Context, copyID string) error
	MarkReturned(ctx context.Context, copyID string) error
	DeleteCopy(ctx context.Context, copyID string) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) CreateBook(ctx context.Context, in CreateBookInput) (*Book, error) {
	if in.Title == "" {
		return nil, ErrTitleRequired
	}
	code := in.AuthorCode
	if code == "" {
		code = in.PublisherCode
	}
	if code == "" {
		return nil, ErrCodeRequired
	}

	if _, err := s.repo.FindBookByISBN(ctx, in.ISBN); err == nil {
		return nil, ErrISBNExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check isbn: %w", err)
	}

	maxNumber, err := s.repo.MaxBookNumber(ctx, code)
	if err != nil {
		return nil, err
	}

	year := in.FirstPublicationYear
	if year == 0 {
		year = time.Now().UTC().Year()
	}

	b := &Book{
		BookID:               fmt.Sprintf("%s-%03d", code, maxNumber+1),
		BookNumber:           maxNumber + 1,
		ISBN:                 in.ISBN,
		Title:                in.Title,
		AuthorCode:           in.AuthorCode,
		PublisherCode:        in.PublisherCode,
		Type:                 NormalizeType(in.Type),
		Language:             NormalizeLanguage(in.Language),
		FirstPublicationYear: year,
		IsRestricted:         in.IsRestricted,
	}

	if err := s.repo.CreateBook(ctx, b); err != nil {
		return nil, err
	}

	slog.Info("book created", "book_id", b.BookID, "title", b.Title)
	return b, nil
}

func (s *service) GetBook(ctx context.Context, bookID string) (*Book, error) {
	b, err := s.repo.FindBookByID(ctx, bookID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up book: %w", err)
	}
	return b, nil
}

func (s *service) ListBooks(ctx context.Context) ([]Book, error) {
	return s.repo.ListBooks(ctx)
}

func (s *service) UpdateBook(ctx context.Context, bookID string, updates map[string]any) (*Book, error) {
	b, err := s.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	for key, value := range updates {
		switch key {
		case "title":
			if v, ok := value.(string); ok {
				b.Title = v
			}
		case "type":
			if v, ok := value.(string); ok {
				b.Type = NormalizeType(v)
			}
		case "language":
			if v, ok := value.(string); ok {
				b.Language = NormalizeLanguage(v)
			}
		case "is_restricted":
			if v, ok := value.(bool); ok {
				b.IsRestricted = v
			}
		}
	}

	if err := s.repo.UpdateBook(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *service) DeleteBook(ctx context.Context, bookID string) error {
	if _, err := s.GetBook(ctx, bookID); err != nil {
		return err
	}
	return s.repo.DeleteBook(ctx, bookID)
}

func (s *service) AddCopy(ctx context.Context, bookID string, branchCode int) (*BookCopy, error) {
	if _, err := s.GetBook(ctx, bookID); err != nil {
		return nil, err
	}

	maxNumber, err := s.repo.MaxCopyNumber(ctx, bookID)
	if err != nil {
		return nil, err
	}
	copyNumber := maxNumber + 1

	c := &BookCopy{
		CopyID:      fmt.Sprintf("%02d%s%03d", branchCode, bookID, copyNumber),
		BookID:      bookID,
		BranchCode:  branchCode,
		CopyNumber:  copyNumber,
		IsAvailable: true,
	}

	if err := s.repo.CreateCopy(ctx, c); err != nil {
		return nil, err
	}

	slog.Info("book copy added", "copy_id", c.CopyID, "book_id", bookID)
	return c, nil
}

func (s *service) GetCopy(ctx context.Context, copyID string) (*BookCopy, error) {
	c, err := s.repo.FindCopyByID(ctx, copyID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCopyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up copy: %w", err)
	}
	return c, nil
}

func (s *service) ListCopies(ctx context.Context, bookID string) ([]BookCopy, error) {
	return s.repo.ListCopies(ctx, bookID)
}

func (s *service) MarkBorrowed(ctx context.Context, copyID string) error {
	if _, err := s.GetCopy(ctx, copyID); err != nil {
		return err
	}
	ok, err := s.repo.SetCopyAvailability(ctx, copyID, false)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCopyBorrowed
	}
	return nil
}

func (s *service) MarkReturned(ctx context.Context, copyID string) error {
	if _, err := s.GetCopy(ctx, copyID); err != nil {
		return err
	}
	// returning an already available copy is harmless
	_, err := s.repo.SetCopyAvailability(ctx, copyID, true)
	return err
}

func (s *service) DeleteCopy(ctx context.Context, copyID string) error {
	if _, err := s.GetCopy(ctx, copyID); err != nil {
		return err
	}
	return s.repo.DeleteCopy(ctx, copyID)
}
