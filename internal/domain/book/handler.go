package book

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/crjyouth/libris/internal/utils"
)

// Handler exposes the catalogue endpoints.
type Handler struct {
	books Service
}

func NewHandler(books Service) *Handler {
	return &Handler{books: books}
}

type createBookRequest struct {
	ISBN                 int64  `json:"isbn"`
	Title                string `json:"title"`
	AuthorCode           string `json:"author_code"`
	PublisherCode        string `json:"publisher_code"`
	Type                 string `json:"type"`
	Language             string `json:"language"`
	FirstPublicationYear int    `json:"first_publication_year"`
	IsRestricted         bool   `json:"is_restricted"`
}

type addCopyRequest struct {
	BranchCode int `json:"branch_code"`
}

// Create adds a book to the catalogue.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createBookRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.NewAPIError("INVALID_BODY", "invalid request body", fiber.StatusBadRequest)
	}

	b, err := h.books.CreateBook(c.UserContext(), CreateBookInput{
		ISBN:                 req.ISBN,
		Title:                req.Title,
		AuthorCode:           req.AuthorCode,
		PublisherCode:        req.PublisherCode,
		Type:                 req.Type,
		Language:             req.Language,
		FirstPublicationYear: req.FirstPublicationYear,
		IsRestricted:         req.IsRestricted,
	})
	switch {
	case errors.Is(err, ErrTitleRequired), errors.Is(err, ErrCodeRequired):
		return utils.NewAPIError("MISSING_FIELDS", err.Error(), fiber.StatusBadRequest)
	case errors.Is(err, ErrISBNExists):
		return utils.NewAPIError("ISBN_EXISTS", err.Error(), fiber.StatusConflict)
	case err != nil:
		slog.Error("book creation failed", "error", err)
		return utils.NewAPIError("CREATE_FAILED", "could not create book", fiber.StatusInternalServerError)
	}

	return utils.SuccessResponse(c, fiber.StatusCreated, "book created", b)
}

// Get returns one book.
func (h *Handler) Get(c *fiber.Ctx) error {
	b, err := h.books.GetBook(c.UserContext(), c.Params("bookID"))
	if errors.Is(err, ErrBookNotFound) {
		return utils.NewAPIError("NOT_FOUND", "book not found", fiber.StatusNotFound)
	}
	if err != nil {
		return utils.NewAPIError("LOOKUP_FAILED", "could not look up book", fiber.StatusInternalServerError)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "", b)
}

// List returns the catalogue.
func (h *Handler) List(c *fiber.Ctx) error {
	books, err := h.books.ListBooks(c.UserContext())
	if err != nil {
		return utils.NewAPIError("LIST_FAILED", "could not list books", fiber.StatusInternalServerError)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "", fiber.Map{"books": books})
}

// Update edits book fields.
func (h *Handler) Update(c *fiber.Ctx) error {
	var updates map[string]any
	if err := c.BodyParser(&updates); err != nil {
		return utils.NewAPIError("INVALID_BODY", "invalid request body", fiber.StatusBadRequest)
	}

	b, err := h.books.UpdateBook(c.UserContext(), c.Params("bookID"), updates)
	if errors.Is(err, ErrBookNotFound) {
		return utils.NewAPIError("NOT_FOUND", "book not found", fiber.StatusNotFound)
	}
	if err != nil {
		return utils.NewAPIError("UPDATE_FAILED", "could not update book", fiber.StatusInternalServerError)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "book updated", b)
}

// Delete removes a book.
func (h *Handler) Delete(c *fiber.Ctx) error {
	err := h.books.DeleteBook(c.UserContext(), c.Params("bookID"))
	if errors.Is(err, ErrBookNotFound) {
		return utils.NewAPIError("NOT_FOUND", "book not found", fiber.StatusNotFound)
	}
	if err != nil {
		return utils.NewAPIError("DELETE_FAILED", "could not delete book", fiber.StatusInternalServerError)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "book deleted", nil)
}

// AddCopy registers a new physical copy.
func (h *Handler) AddCopy(c *fiber.Ctx) error {
	var req addCopyRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.NewAPIError("INVALID_BODY", "invalid request body", fiber.StatusBadRequest)
	}

	copy, err := h.books.AddCopy(c.UserContext(), c.Params("bookID"), req.BranchCode)
	if errors.Is(err, ErrBookNotFound) {
		return utils.NewAPIError("NOT_FOUND", "book not found", fiber.StatusNotFound)
	}
	if err != nil {
		slog.Error("copy creation failed", "error", err)
		return utils.NewAPIError("CREATE_FAILED", "could not add copy", fiber.StatusInternalServerError)
	}
	return utils.SuccessResponse(c, fiber.StatusCreated, "copy added", copy)
}

// ListCopies returns the copies of a book.
func (h *Handler) ListCopies(c *fiber.Ctx) error {
	copies, err := h.books.ListCopies(c.UserContext(), c.Params("bookID"))
	if err != nil {
		return utils.NewAPIError("LIST_FAILED", "could not list copies", fiber.StatusInternalServerError)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "", fiber.Map{"copies": copies})
}
