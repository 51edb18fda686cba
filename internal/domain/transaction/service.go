package transaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"gorm.io/gorm"

	"github.com/crjyouth/libris/internal/database"
	"github.com/crjyouth/libris/internal/domain/book"
	"github.com/crjyouth/libris/internal/domain/user"
)

var (
	ErrTicketNotFound    = errors.New("ticket not found")
	ErrInvalidTransition = errors.New("invalid ticket status transition")
	ErrCopyRequired      = errors.New("a copy id is required")
)

const (
	borrowDays     = 14
	extensionDays  = 7
	extensionFee   = 30.0
	finePerDayLate = 5.0
)

// Service handles the ticket lifecycle.
type Service interface {
	Create(ctx context.Context, customerID int, copyID, particulars string) (*Transaction, error)
	Get(ctx context.Context, ticketID int) (*Transaction, error)
	ListByCustomer(ctx context.Context, customerID int) ([]Transaction, error)
	ListByStatus(ctx context.Context, status string) ([]Transaction, error)
	Approve(ctx context.Context, ticketID, librarianID int, remarks string) (*Transaction, error)
	Reject(ctx context.Context, ticketID, librarianID int, remarks string) (*Transaction, error)
	Open(ctx context.Context, ticketID int) (*Transaction, error)
	Close(ctx context.Context, ticketID int, remarks string) (*Transaction, error)
	Extend(ctx context.Context, ticketID int) (*Transaction, error)
	MarkOverdue(ctx context.Context, ticketID int) (*Transaction, error)
}

type service struct {
	repo  Repository
	books book.Service
	users user.Service
	tx    *database.TransactionManager
}

func NewService(repo Repository, books book.Service, users user.Service, tx *database.TransactionManager) Service {
	return &service{repo: repo, books: books, users: users, tx: tx}
}

// Create opens a PENDING ticket with a fresh 6-digit ticket number.
func (s *service) Create(ctx context.Context, customerID int, copyID, particulars string) (*Transaction, error) {
	if copyID == "" {
		return nil, ErrCopyRequired
	}

	customer, err := s.users.GetByUserID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if _, err := s.books.GetCopy(ctx, copyID); err != nil {
		return nil, err
	}

	t := &Transaction{
		CustomerID:   customer.UserID,
		CustomerName: customer.FullName(),
		CopyID:       copyID,
		Status:       StatusPending,
		Particulars:  particulars,
	}

	// 6-digit ticket numbers; retry on the rare collision
	for attempt := 0; attempt < 5; attempt++ {
		t.TicketID = 100000 + rand.Intn(900000)
		if _, err := s.repo.FindByTicketID(ctx, t.TicketID); errors.Is(err, gorm.ErrRecordNotFound) {
			break
		} else if err != nil {
			return nil, fmt.Errorf("failed to check ticket id: %w", err)
		}
		t.TicketID = 0
	}
	if t.TicketID == 0 {
		return nil, errors.New("failed to allocate a unique ticket id")
	}

	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}

	slog.Info("ticket created", "ticket_id", t.TicketID, "customer_id", customerID, "copy_id", copyID)
	return t, nil
}

func (s *service) Get(ctx context.Context, ticketID int) (*Transaction, error) {
	t, err := s.repo.FindByTicketID(ctx, ticketID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up ticket: %w", err)
	}
	return t, nil
}

func (s *service) ListByCustomer(ctx context.Context, customerID int) ([]Transaction, error) {
	return s.repo.ListByCustomer(ctx, customerID)
}

func (s *service) ListByStatus(ctx context.Context, status string) ([]Transaction, error) {
	return s.repo.ListByStatus(ctx, status)
}

// Approve moves a PENDING ticket to APPROVED under the claiming librarian.
func (s *service) Approve(ctx context.Context, ticketID, librarianID int, remarks string) (*Transaction, error) {
	return s.transition(ctx, ticketID, StatusApproved, func(t *Transaction) {
		t.LibrarianID = &librarianID
		appendRemark(t, remarks)
	})
}

// Reject declines a ticket. Terminal.
func (s *service) Reject(ctx context.Context, ticketID, librarianID int, remarks string) (*Transaction, error) {
	return s.transition(ctx, ticketID, StatusRejected, func(t *Transaction) {
		t.LibrarianID = &librarianID
		appendRemark(t, remarks)
	})
}

// Open hands the book over: the copy is marked borrowed and the due date
// starts counting. Runs in one transaction so the copy flip and the
// status change cannot diverge.
func (s *service) Open(ctx context.Context, ticketID int) (*Transaction, error) {
	var result *Transaction
	err := s.tx.RunInTransaction(ctx, func(txCtx context.Context) error {
		t, err := s.transition(txCtx, ticketID, StatusOpen, func(t *Transaction) {
			now := time.Now().UTC()
			due := now.AddDate(0, 0, borrowDays)
			t.BorrowDate = &now
			t.DueDate = &due
		})
		if err != nil {
			return err
		}
		if err := s.books.MarkBorrowed(txCtx, t.CopyID); err != nil {
			return err
		}
		result = t
		return nil
	})
	return result, err
}

// Close takes the book back, computes any late fine and frees the copy.
func (s *service) Close(ctx context.Context, ticketID int, remarks string) (*Transaction, error) {
	var result *Transaction
	err := s.tx.RunInTransaction(ctx, func(txCtx context.Context) error {
		t, err := s.transition(txCtx, ticketID, StatusClosed, func(t *Transaction) {
			now := time.Now().UTC()
			t.ReturnDate = &now
			if t.DueDate != nil && now.After(*t.DueDate) {
				daysLate := int(now.Sub(*t.DueDate).Hours()/24) + 1
				t.FineIncurred += float64(daysLate) * finePerDayLate
			}
			appendRemark(t, remarks)
		})
		if err != nil {
			return err
		}
		if t.CopyID != "" {
			if err := s.books.MarkReturned(txCtx, t.CopyID); err != nil {
				return err
			}
		}
		result = t
		return nil
	})
	return result, err
}

// Extend pushes the due date out by a week for a flat fee. Only OPEN
// tickets can be extended.
func (s *service) Extend(ctx context.Context, ticketID int) (*Transaction, error) {
	t, err := s.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if t.Status != StatusOpen || t.DueDate == nil {
		return nil, fmt.Errorf("%w: %s -> extension", ErrInvalidTransition, t.Status)
	}

	due := t.DueDate.AddDate(0, 0, extensionDays)
	t.DueDate = &due
	t.FineIncurred += extensionFee

	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}
	slog.Info("ticket extended", "ticket_id", t.TicketID, "due_date", due)
	return t, nil
}

// MarkOverdue flags an OPEN ticket past its due date.
func (s *service) MarkOverdue(ctx context.Context, ticketID int) (*Transaction, error) {
	return s.transition(ctx, ticketID, StatusOverdue, nil)
}

func (s *service) transition(ctx context.Context, ticketID int, to string, mutate func(t *Transaction)) (*Transaction, error) {
	t, err := s.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	if !CanTransition(t.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, to)
	}

	from := t.Status
	t.Status = to
	if mutate != nil {
		mutate(t)
	}

	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}

	slog.Info("ticket transitioned", "ticket_id", t.TicketID, "from", from, "to", to)
	return t, nil
}

func appendRemark(t *Transaction, remark string) {
	if remark == "" {
		return
	}
	if t.Remarks == "" {
		t.Remarks = remark
		return
	}
	t.Remarks += "; " + remark
}
