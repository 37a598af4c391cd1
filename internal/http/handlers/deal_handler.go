package handlers

import (
	"errors"
	"strconv"

	"github.com/adplace/backend/internal/http/dto"
	"github.com/adplace/backend/internal/middleware"
	"github.com/adplace/backend/internal/repositories"
	"github.com/adplace/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type DealHandler struct {
	dealService *services.DealService
	log         *zap.Logger
}

func NewDealHandler(dealService *services.DealService, log *zap.Logger) *DealHandler {
	return &DealHandler{dealService: dealService, log: log}
}

func (h *DealHandler) CreateDeal(c *fiber.Ctx) error {
	var req dto.CreateDealRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	channelID, err := uuid.Parse(req.ChannelID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid channel_id"})
	}

	in := services.CreateDealInput{
		ChannelID:           channelID,
		CampaignType:        req.CampaignType,
		Brief:               req.Brief,
		PostsCount:          req.PostsCount,
		PricePerPostTON:     req.PricePerPostTON,
		DurationHours:       req.DurationHours,
		ScheduledAt:         req.ScheduledAt,
		RefundWalletAddress: req.RefundWalletAddress,
	}
	if req.Content != nil {
		in.Content = &services.ContentInput{
			Text:         req.Content.Text,
			MediaFileIDs: req.Content.MediaFileIDs,
			MediaType:    req.Content.MediaType,
			ButtonText:   req.Content.ButtonText,
			ButtonURL:    req.Content.ButtonURL,
		}
	}

	deal, err := h.dealService.CreateDeal(c.Context(), middleware.GetUserID(c), in)
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: deal})
}

func (h *DealHandler) GetDeal(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid deal id"})
	}
	deal, err := h.dealService.GetDeal(c.Context(), id)
	if err != nil {
		return h.serviceError(c, err)
	}
	ok, err := h.dealService.CanAccess(c.Context(), &deal.Deal, middleware.GetUserID(c))
	if err != nil {
		return h.serviceError(c, err)
	}
	if !ok {
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: "not a party to this deal"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: deal})
}

func (h *DealHandler) ListDeals(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	filter := repositories.DealFilter{Limit: 20}

	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			filter.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			filter.Offset = n
		}
	}
	if v := c.Query("status"); v != "" {
		filter.Status = &v
	}

	// "side=channel" lists deals where the caller is on the channel
	// team; the default is the caller's own orders.
	if c.Query("side") == "channel" {
		filter.MemberUserID = &userID
	} else {
		filter.AdvertiserUserID = &userID
	}

	deals, err := h.dealService.ListDeals(c.Context(), filter)
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: deals})
}

func (h *DealHandler) GetPaymentInfo(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid deal id"})
	}
	deal, err := h.dealService.GetDeal(c.Context(), id)
	if err != nil {
		return h.serviceError(c, err)
	}
	if deal.AdvertiserUserID != middleware.GetUserID(c) {
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: "only the advertiser sees payment details"})
	}
	return c.JSON(dto.PaymentInfoResponse{
		DealID:        deal.ID.String(),
		EscrowAddress: deal.EscrowAddress,
		AmountTON:     deal.TotalPriceTON,
		ExpiresAt:     deal.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
		Status:        deal.Status,
	})
}

func (h *DealHandler) ListDrafts(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid deal id"})
	}
	deal, err := h.dealService.GetDeal(c.Context(), id)
	if err != nil {
		return h.serviceError(c, err)
	}
	ok, err := h.dealService.CanAccess(c.Context(), &deal.Deal, middleware.GetUserID(c))
	if err != nil {
		return h.serviceError(c, err)
	}
	if !ok {
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: "not a party to this deal"})
	}
	drafts, err := h.dealService.ListDrafts(c.Context(), id)
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: drafts})
}

func (h *DealHandler) SubmitDrafts(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid deal id"})
	}
	var req dto.SubmitDraftsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	drafts := make([]services.DraftInput, 0, len(req.Drafts))
	for _, d := range req.Drafts {
		drafts = append(drafts, services.DraftInput{
			Text:         d.Text,
			MediaFileIDs: d.MediaFileIDs,
			MediaType:    d.MediaType,
		})
	}
	if err := h.dealService.SubmitDrafts(c.Context(), id, middleware.GetUserID(c), drafts); err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *DealHandler) ReviewDrafts(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid deal id"})
	}
	var req dto.ReviewDraftsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	switch req.Action {
	case "approve":
		err = h.dealService.ReviewDrafts(c.Context(), id, middleware.GetUserID(c), true, "")
	case "request_revision":
		err = h.dealService.ReviewDrafts(c.Context(), id, middleware.GetUserID(c), false, req.Comment)
	default:
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "action must be approve or request_revision"})
	}
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

// ForceComplete settles the deal early. Admin only.
func (h *DealHandler) ForceComplete(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid deal id"})
	}
	if err := h.dealService.ForceComplete(c.Context(), id, middleware.GetUserID(c)); err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

// ForceCancel refunds and cancels the deal. Admin only.
func (h *DealHandler) ForceCancel(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid deal id"})
	}
	if err := h.dealService.ForceCancel(c.Context(), id, middleware.GetUserID(c)); err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *DealHandler) serviceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "not found"})
	case errors.Is(err, services.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, services.ErrStateConflict):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: err.Error()})
	default:
		h.log.Error("deal operation failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}
}
