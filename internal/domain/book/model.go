package book

import "github.com/crjyouth/libris/internal/database"

// Recognized catalogue values. Anything else normalizes to the fallback.
var (
	BookTypes = []string{"Fiction", "Non-Fiction", "Reference", "Periodical", "Devotional"}
	Languages = []string{"English", "Tagalog", "Cebuano", "Ilocano", "Spanish"}
)

const (
	FallbackType     = "Other"
	FallbackLanguage = "Unknown"
)

// Book is a catalogue entry; physical stock lives in BookCopy.
type Book struct {
	database.BaseModel
	BookID               string `gorm:"size:20;uniqueIndex;not null" json:"book_id"`
	BookNumber           int    `gorm:"not null" json:"book_number"`
	ISBN                 int64  `gorm:"uniqueIndex;not null" json:"isbn"`
	Title                string `gorm:"size:100;not null" json:"title"`
	AuthorCode           string `gorm:"size:10" json:"author_code"`
	PublisherCode        string `gorm:"size:10;not null" json:"publisher_code"`
	Type                 string `gorm:"size:50;not null" json:"type"`
	Language             string `gorm:"size:30;not null" json:"language"`
	FirstPublicationYear int    `gorm:"not null" json:"first_publication_year"`
	IsRestricted         bool   `gorm:"default:false" json:"is_restricted"`
}

func (Book) TableName() string {
	return "books"
}

// BookCopy is one physical copy of a book at a branch.
type BookCopy struct {
	database.BaseModel
	CopyID      string `gorm:"size:30;uniqueIndex;not null" json:"copy_id"`
	BookID      string `gorm:"size:20;index;not null" json:"book_id"`
	BranchCode  int    `gorm:"not null" json:"branch_code"`
	CopyNumber  int    `gorm:"not null" json:"copy_number"`
	IsAvailable bool   `gorm:"default:true" json:"is_available"`
}

func (BookCopy) TableName() string {
	return "book_copies"
}

// NormalizeType maps unrecognized book types to the fallback.
func NormalizeType(t string) string {
	for _, known := range BookTypes {
		if t == known {
			return t
		}
	}
	return FallbackType
}

// NormalizeLanguage maps unrecognized languages to the fallback.
func NormalizeLanguage(lang string) string {
	for _, known := range Languages {
		if lang == known {
			return lang
		}
	}
	return FallbackLanguage
}
