package transaction

import (
	"time"

	"github.com/crjyouth/libris/internal/database"
)

// Ticket statuses.
const (
	StatusPending   = "PENDING"
	StatusApproved  = "APPROVED"
	StatusRejected  = "REJECTED"
	StatusOpen      = "OPEN"
	StatusOverdue   = "OVERDUE"
	StatusClosed    = "CLOSED"
	StatusEscalated = "ESCALATED"
)

// validTransitions is the ticket state machine. REJECTED is terminal.
var validTransitions = map[string][]string{
	StatusPending:   {StatusApproved, StatusRejected},
	StatusApproved:  {StatusOpen, StatusRejected},
	StatusOpen:      {StatusClosed, StatusOverdue},
	StatusOverdue:   {StatusClosed, StatusEscalated},
	StatusClosed:    {StatusEscalated},
	StatusEscalated: {StatusClosed},
}

// CanTransition reports whether a ticket may move between two statuses.
func CanTransition(from, to string) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transaction is one borrow/return ticket.
type Transaction struct {
	database.BaseModel
	TicketID     int        `gorm:"uniqueIndex;not null" json:"ticket_id"`
	CustomerID   int        `gorm:"not null" json:"customer_id"`
	LibrarianID  *int       `json:"librarian_id"`
	CustomerName string     `gorm:"size:100;not null" json:"customer_name"`
	CopyID       string     `gorm:"size:30" json:"copy_id"`
	Status       string     `gorm:"size:20;index;not null" json:"status"`
	Particulars  string     `gorm:"size:255;not null" json:"particulars"`
	Remarks      string     `json:"remarks"`
	BorrowDate   *time.Time `json:"borrow_date"`
	DueDate      *time.Time `json:"due_date"`
	ReturnDate   *time.Time `json:"return_date"`
	FineIncurred float64    `gorm:"default:0" json:"fine_incurred"`
}

func (Transaction) TableName() string {
	return "transactions"
}
