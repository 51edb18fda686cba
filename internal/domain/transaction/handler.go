package transaction

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/crjyouth/libris/internal/domain/auth"
	"github.com/crjyouth/libris/internal/domain/book"
	"github.com/crjyouth/libris/internal/domain/user"
	"github.com/crjyouth/libris/internal/utils"
)

// Handler exposes the ticket endpoints.
type Handler struct {
	tickets Service
}

func NewHandler(tickets Service) *Handler {
	return &Handler{tickets: tickets}
}

type createTicketRequest struct {
	CopyID      string `json:"copy_id"`
	Particulars string `json:"particulars"`
}

type reviewRequest struct {
	Remarks string `json:"remarks"`
}

// Create opens a ticket for the authenticated customer.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.NewAPIError("INVALID_BODY", "invalid request body", fiber.StatusBadRequest)
	}

	identity := auth.GetIdentity(c)
	t, err := h.tickets.Create(c.UserContext(), identity.User.UserID, req.CopyID, req.Particulars)
	switch {
	case errors.Is(err, ErrCopyRequired):
		return utils.NewAPIError("MISSING_FIELDS", err.Error(), fiber.StatusBadRequest)
	case errors.Is(err, book.ErrCopyNotFound):
		return utils.NewAPIError("NOT_FOUND", "book copy not found", fiber.StatusNotFound)
	case errors.Is(err, user.ErrUserNotFound):
		return utils.NewAPIError("NOT_FOUND", "customer not found", fiber.StatusNotFound)
	case err != nil:
		slog.Error("ticket creation failed", "error", err)
		return utils.NewAPIError("CREATE_FAILED", "could not create ticket", fiber.StatusInternalServerError)
	}

	return utils.SuccessResponse(c, fiber.StatusCreated, "ticket created", t)
}

// Get returns one ticket.
func (h *Handler) Get(c *fiber.Ctx) error {
	ticketID, err := ticketParam(c)
	if err != nil {
		return err
	}

	t, err := h.tickets.Get(c.UserContext(), ticketID)
	if errors.Is(err, ErrTicketNotFound) {
		return utils.NewAPIError("NOT_FOUND", "ticket not found", fiber.StatusNotFound)
	}
	if err != nil {
		return utils.NewAPIError("LOOKUP_FAILED", "could not look up ticket", fiber.StatusInternalServerError)
	}

	// customers only see their own tickets
	identity := auth.GetIdentity(c)
	if !identity.User.IsAdmin && t.CustomerID != identity.User.UserID {
		return utils.NewAPIError("FORBIDDEN", "not your ticket", fiber.StatusForbidden)
	}

	return utils.SuccessResponse(c, fiber.StatusOK, "", t)
}

// ListMine returns the caller's tickets.
func (h *Handler) ListMine(c *fiber.Ctx) error {
	identity := auth.GetIdentity(c)
	tickets, err := h.tickets.ListByCustomer(c.UserContext(), identity.User.UserID)
	if err != nil {
		return utils.NewAPIError("LIST_FAILED", "could not list tickets", fiber.StatusInternalServerError)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "", fiber.Map{"tickets": tickets})
}

// ListPending returns tickets awaiting review. Admin only.
func (h *Handler) ListPending(c *fiber.Ctx) error {
	tickets, err := h.tickets.ListByStatus(c.UserContext(), StatusPending)
	if err != nil {
		return utils.NewAPIError("LIST_FAILED", "could not list tickets", fiber.StatusInternalServerError)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "", fiber.Map{"tickets": tickets})
}

// Approve claims and approves a pending ticket. Admin only.
func (h *Handler) Approve(c *fiber.Ctx) error {
	return h.review(c, "ticket approved", h.tickets.Approve)
}

// Reject declines a pending ticket. Admin only.
func (h *Handler) Reject(c *fiber.Ctx) error {
	return h.review(c, "ticket rejected", h.tickets.Reject)
}

// Open hands the book over on an approved ticket. Admin only.
func (h *Handler) Open(c *fiber.Ctx) error {
	return h.mutate(c, "ticket opened", h.tickets.Open)
}

// Close takes the book back and settles fines. Admin only.
func (h *Handler) Close(c *fiber.Ctx) error {
	ticketID, err := ticketParam(c)
	if err != nil {
		return err
	}

	var req reviewRequest
	_ = c.BodyParser(&req)

	t, err := h.tickets.Close(c.UserContext(), ticketID, req.Remarks)
	if err != nil {
		return mapTicketError(err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "ticket closed", t)
}

// Extend pushes the due date out by a week.
func (h *Handler) Extend(c *fiber.Ctx) error {
	return h.mutate(c, "ticket extended", h.tickets.Extend)
}

func (h *Handler) review(c *fiber.Ctx, message string, fn func(ctx context.Context, ticketID, librarianID int, remarks string) (*Transaction, error)) error {
	ticketID, err := ticketParam(c)
	if err != nil {
		return err
	}

	var req reviewRequest
	_ = c.BodyParser(&req)

	identity := auth.GetIdentity(c)
	t, err := fn(c.UserContext(), ticketID, identity.User.UserID, req.Remarks)
	if err != nil {
		return mapTicketError(err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, message, t)
}

func (h *Handler) mutate(c *fiber.Ctx, message string, fn func(ctx context.Context, ticketID int) (*Transaction, error)) error {
	ticketID, err := ticketParam(c)
	if err != nil {
		return err
	}

	t, err := fn(c.UserContext(), ticketID)
	if err != nil {
		return mapTicketError(err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, message, t)
}

func ticketParam(c *fiber.Ctx) (int, error) {
	ticketID, err := strconv.Atoi(c.Params("ticketID"))
	if err != nil {
		return 0, utils.NewAPIError("INVALID_TICKET", "ticket id must be a number", fiber.StatusBadRequest)
	}
	return ticketID, nil
}

func mapTicketError(err error) error {
	switch {
	case errors.Is(err, ErrTicketNotFound):
		return utils.NewAPIError("NOT_FOUND", "ticket not found", fiber.StatusNotFound)
	case errors.Is(err, ErrInvalidTransition):
		return utils.NewAPIError("INVALID_TRANSITION", err.Error(), fiber.StatusConflict)
	case errors.Is(err, book.ErrCopyBorrowed):
		return utils.NewAPIError("COPY_UNAVAILABLE", "book copy is already borrowed", fiber.StatusConflict)
	default:
		slog.Error("ticket operation failed", "error", err)
		return utils.NewAPIError("TICKET_FAILED", "could not update ticket", fiber.StatusInternalServerError)
	}
}
