package book

import (
	"context"
	"errors"
	"testing"

	"github.com/crjyouth/libris/internal/utils"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	db := utils.SetupTestDB(t, &Book{}, &BookCopy{})
	return NewService(NewRepository(db))
}

func TestCreateBookGeneratesSequentialIDs(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.CreateBook(ctx, CreateBookInput{
		ISBN: 9780141439518, Title: "Pride and Prejudice", AuthorCode: "AUS",
		PublisherCode: "PNG", Type: "Fiction", Language: "English",
	})
	if err != nil {
		t.Fatalf("CreateBook: %v", err)
	}
	if first.BookID != "AUS-001" {
		t.Errorf("BookID = %s, want AUS-001", first.BookID)
	}

	second, err := svc.CreateBook(ctx, CreateBookInput{
		ISBN: 9780141439600, Title: "Emma", AuthorCode: "AUS",
		PublisherCode: "PNG", Type: "Fiction", Language: "English",
	})
	if err != nil {
		t.Fatalf("CreateBook: %v", err)
	}
	if second.BookID != "AUS-002" {
		t.Errorf("BookID = %s, want AUS-002", second.BookID)
	}
}

func TestCreateBookNormalizesValues(t *testing.T) {
	svc := newTestService(t)

	b, err := svc.CreateBook(context.Background(), CreateBookInput{
		ISBN: 1234567890, Title: "Odd One", PublisherCode: "PUB",
		Type: "Weird", Language: "Klingon",
	})
	if err != nil {
		t.Fatalf("CreateBook: %v", err)
	}
	if b.Type != FallbackType {
		t.Errorf("Type = %s, want %s", b.Type, FallbackType)
	}
	if b.Language != FallbackLanguage {
		t.Errorf("Language = %s, want %s", b.Language, FallbackLanguage)
	}
}

func TestCreateBookDuplicateISBN(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	in := CreateBookInput{ISBN: 555, Title: "One", PublisherCode: "PUB"}
	if _, err := svc.CreateBook(ctx, in); err != nil {
		t.Fatalf("CreateBook: %v", err)
	}
	in.Title = "Two"
	if _, err := svc.CreateBook(ctx, in); !errors.Is(err, ErrISBNExists) {
		t.Errorf("err = %v, want ErrISBNExists", err)
	}
}

func TestCreateBookValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateBook(ctx, CreateBookInput{ISBN: 1, PublisherCode: "PUB"}); !errors.Is(err, ErrTitleRequired) {
		t.Errorf("missing title: err = %v, want ErrTitleRequired", err)
	}
	if _, err := svc.CreateBook(ctx, CreateBookInput{ISBN: 1, Title: "T"}); !errors.Is(err, ErrCodeRequired) {
		t.Errorf("missing code: err = %v, want ErrCodeRequired", err)
	}
}

func TestCopyLifecycle(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	b, err := svc.CreateBook(ctx, CreateBookInput{
		ISBN: 99, Title: "Copied", PublisherCode: "PUB",
	})
	if err != nil {
		t.Fatalf("CreateBook: %v", err)
	}

	copy1, err := svc.AddCopy(ctx, b.BookID, 2)
	if err != nil {
		t.Fatalf("AddCopy: %v", err)
	}
	if copy1.CopyID != "02"+b.BookID+"001" {
		t.Errorf("CopyID = %s, want 02%s001", copy1.CopyID, b.BookID)
	}

	copy2, err := svc.AddCopy(ctx, b.BookID, 2)
	if err != nil {
		t.Fatalf("AddCopy: %v", err)
	}
	if copy2.CopyNumber != 2 {
		t.Errorf("CopyNumber = %d, want 2", copy2.CopyNumber)
	}

	if err := svc.MarkBorrowed(ctx, copy1.CopyID); err != nil {
		t.Fatalf("MarkBorrowed: %v", err)
	}
	if err := svc.MarkBorrowed(ctx, copy1.CopyID); !errors.Is(err, ErrCopyBorrowed) {
		t.Errorf("double borrow: err = %v, want ErrCopyBorrowed", err)
	}

	if err := svc.MarkReturned(ctx, copy1.CopyID); err != nil {
		t.Fatalf("MarkReturned: %v", err)
	}
	got, err := svc.GetCopy(ctx, copy1.CopyID)
	if err != nil {
		t.Fatalf("GetCopy: %v", err)
	}
	if !got.IsAvailable {
		t.Error("copy should be available after return")
	}
}

func TestAddCopyUnknownBook(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.AddCopy(context.Background(), "NOPE-001", 1); !errors.Is(err, ErrBookNotFound) {
		t.Errorf("err = %v, want ErrBookNotFound", err)
	}
}
