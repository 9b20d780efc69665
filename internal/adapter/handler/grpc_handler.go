package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/core/service"
)

type GRPCHandler struct {
	orderService *service.OrderService
	logger       *zap.Logger
}

var _ OrderServiceServer = (*GRPCHandler)(nil)

func NewGRPCHandler(orderService *service.OrderService, logger *zap.Logger) *GRPCHandler {
	return &GRPCHandler{orderService: orderService, logger: logger.With(zap.String("component", "grpc"))}
}

// actorFromMetadata reads the gateway identity from x-user-id and
// x-user-role. It fails with Unauthenticated when either is missing or the
// role is unknown.
func actorFromMetadata(ctx context.Context) (domain.Actor, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return domain.Actor{}, status.Error(codes.Unauthenticated, "missing caller identity")
	}
	var actor domain.Actor
	if v := md.Get(strings.ToLower(HeaderUserID)); len(v) > 0 {
		actor.ID = strings.TrimSpace(v[0])
	}
	if r := md.Get(strings.ToLower(HeaderUserRole)); len(r) > 0 {
		actor.Role = domain.Role(strings.ToLower(strings.TrimSpace(r[0])))
	}
	if actor.ID == "" || !actor.Role.Valid() {
		return domain.Actor{}, status.Error(codes.Unauthenticated, "missing caller identity")
	}
	return actor, nil
}

func (h *GRPCHandler) Checkout(ctx context.Context, req *CheckoutRequest) (*CheckoutResponse, error) {
	actor, err := actorFromMetadata(ctx)
	if err != nil {
		return nil, err
	}
	if req.UserID != "" && req.UserID != actor.ID {
		return nil, status.Error(codes.PermissionDenied, "user_id does not match caller identity")
	}
	order, err := h.orderService.Checkout(ctx, service.CheckoutRequest{
		RequestID:     req.RequestID,
		BuyerID:       actor.ID,
		ProductID:     req.ProductID,
		Quantity:      int(req.Quantity),
		NegotiationID: req.NegotiationID,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrDuplicateRequest):
			return &CheckoutResponse{Success: false, Message: "duplicate request"}, nil
		case errors.Is(err, domain.ErrInsufficientStock):
			return &CheckoutResponse{Success: false, Message: "sold out"}, nil
		case errorStatus(err) == http.StatusInternalServerError:
			h.logger.Error("checkout failed", zap.String("request_id", req.RequestID), zap.Error(err))
			return &CheckoutResponse{Success: false, Message: "internal error"}, nil
		}
		return &CheckoutResponse{Success: false, Message: err.Error()}, nil
	}

	return &CheckoutResponse{
		Success: true,
		Message: "order placed successfully",
		OrderID: order.ID,
	}, nil
}

func (h *GRPCHandler) GetOrder(ctx context.Context, req *GetOrderRequest) (*GetOrderResponse, error) {
	actor, err := actorFromMetadata(ctx)
	if err != nil {
		return nil, err
	}
	o, err := h.orderService.GetOrder(ctx, actor, req.OrderID)
	if err != nil {
		return nil, grpcError(err)
	}
	return &GetOrderResponse{Order: OrderMessage{
		ID:              o.ID,
		RequestID:       o.RequestID,
		BuyerID:         o.BuyerID,
		SellerID:        o.SellerID,
		ProductID:       o.ProductID,
		Quantity:        int32(o.Quantity),
		UnitPriceCents:  o.UnitPriceCents,
		TotalCents:      o.TotalCents,
		CommissionCents: o.CommissionCents,
		Status:          string(o.Status),
		EscrowStatus:    string(o.EscrowStatus),
		Version:         int64(o.Version),
		CreatedAt:       o.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:       o.UpdatedAt.Format(time.RFC3339Nano),
	}}, nil
}

func grpcError(err error) error {
	switch errorStatus(err) {
	case http.StatusNotFound:
		return status.Error(codes.NotFound, err.Error())
	case http.StatusForbidden:
		return status.Error(codes.PermissionDenied, err.Error())
	case http.StatusBadRequest:
		return status.Error(codes.InvalidArgument, err.Error())
	case http.StatusConflict:
		return status.Error(codes.FailedPrecondition, err.Error())
	}
	return status.Error(codes.Internal, "internal error")
}
