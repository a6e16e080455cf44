package handler

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rl1809/inventory-ledger/internal/core/domain"
)

type claimsContextKey struct{}

type GRPCHandler struct {
	inventory InventoryService
	logger    *zap.Logger
}

func NewGRPCHandler(inventory InventoryService, logger *zap.Logger) *GRPCHandler {
	return &GRPCHandler{inventory: inventory, logger: logger.Named("grpc")}
}

func (h *GRPCHandler) ApplyStockDelta(ctx context.Context, req *ApplyStockDeltaRequest) (*ApplyStockDeltaResponse, error) {
	claims, _ := ctx.Value(claimsContextKey{}).(*Claims)
	if claims == nil {
		return nil, status.Error(codes.Unauthenticated, ErrMissingToken.Error())
	}

	change, err := h.inventory.ApplyStockDelta(ctx, req.ItemID, req.Delta, claims.Subject)
	if err != nil {
		return nil, h.toStatus(err)
	}
	return &ApplyStockDeltaResponse{ItemID: change.ItemID, NewStock: change.NewStock}, nil
}

func (h *GRPCHandler) GetItem(ctx context.Context, req *GetItemRequest) (*ItemResponse, error) {
	item, err := h.inventory.GetItem(ctx, req.ItemID)
	if err != nil {
		return nil, h.toStatus(err)
	}
	resp := toItemResponse(*item)
	return &resp, nil
}

func (h *GRPCHandler) ListCritical(ctx context.Context, _ *ListCriticalRequest) (*ListCriticalResponse, error) {
	items, err := h.inventory.ListCritical(ctx)
	if err != nil {
		return nil, h.toStatus(err)
	}
	return &ListCriticalResponse{Items: toItemResponses(items)}, nil
}

func (h *GRPCHandler) toStatus(err error) error {
	switch {
	case errors.Is(err, domain.ErrItemNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrInsufficientStock):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		h.logger.Error("rpc failed", zap.Error(err))
		return status.Error(codes.Internal, "internal error")
	}
}

// AuthInterceptor authenticates every call from its "authorization"
// metadata. Mutations and critical-stock reads need the admin role.
func AuthInterceptor(auth *Authenticator) grpc.UnaryServerInterceptor {
	adminOnly := map[string]bool{
		applyStockDeltaFullMethod: true,
		listCriticalFullMethod:    true,
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !strings.HasPrefix(info.FullMethod, "/"+inventoryServiceName+"/") {
			return handler(ctx, req)
		}

		md, _ := metadata.FromIncomingContext(ctx)
		var header string
		if values := md.Get("authorization"); len(values) > 0 {
			header = values[0]
		}

		claims, err := auth.ParseAuthorization(header)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}
		if adminOnly[info.FullMethod] && !auth.IsAdmin(claims) {
			return nil, status.Error(codes.PermissionDenied, ErrForbidden.Error())
		}
		return handler(context.WithValue(ctx, claimsContextKey{}, claims), req)
	}
}
