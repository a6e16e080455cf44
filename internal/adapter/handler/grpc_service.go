package handler

import (
	"context"

	"google.golang.org/grpc"
)

const (
	inventoryServiceName      = "inventory.v1.InventoryService"
	applyStockDeltaFullMethod = "/" + inventoryServiceName + "/ApplyStockDelta"
	getItemFullMethod         = "/" + inventoryServiceName + "/GetItem"
	listCriticalFullMethod    = "/" + inventoryServiceName + "/ListCritical"
)

type ApplyStockDeltaRequest struct {
	ItemID int64 `json:"item_id"`
	Delta  int   `json:"delta"`
}

type ApplyStockDeltaResponse struct {
	ItemID   int64 `json:"item_id"`
	NewStock int   `json:"new_stock"`
}

type GetItemRequest struct {
	ItemID int64 `json:"item_id"`
}

type ListCriticalRequest struct{}

type ListCriticalResponse struct {
	Items []ItemResponse `json:"items"`
}

// InventoryServiceServer is the server API for inventory.v1.InventoryService.
type InventoryServiceServer interface {
	ApplyStockDelta(context.Context, *ApplyStockDeltaRequest) (*ApplyStockDeltaResponse, error)
	GetItem(context.Context, *GetItemRequest) (*ItemResponse, error)
	ListCritical(context.Context, *ListCriticalRequest) (*ListCriticalResponse, error)
}

func RegisterInventoryServiceServer(s grpc.ServiceRegistrar, srv InventoryServiceServer) {
	s.RegisterService(&inventoryServiceDesc, srv)
}

var inventoryServiceDesc = grpc.ServiceDesc{
	ServiceName: inventoryServiceName,
	HandlerType: (*InventoryServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ApplyStockDelta", Handler: applyStockDeltaHandler},
		{MethodName: "GetItem", Handler: getItemHandler},
		{MethodName: "ListCritical", Handler: listCriticalHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "inventory/v1/inventory.json",
}

func applyStockDeltaHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ApplyStockDeltaRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InventoryServiceServer).ApplyStockDelta(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: applyStockDeltaFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(InventoryServiceServer).ApplyStockDelta(ctx, req.(*ApplyStockDeltaRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getItemHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetItemRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InventoryServiceServer).GetItem(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getItemFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(InventoryServiceServer).GetItem(ctx, req.(*GetItemRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func listCriticalHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListCriticalRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InventoryServiceServer).ListCritical(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: listCriticalFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(InventoryServiceServer).ListCritical(ctx, req.(*ListCriticalRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// InventoryServiceClient calls inventory.v1.InventoryService using the JSON
// codec.
type InventoryServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewInventoryServiceClient(cc grpc.ClientConnInterface) *InventoryServiceClient {
	return &InventoryServiceClient{cc: cc}
}

func (c *InventoryServiceClient) ApplyStockDelta(ctx context.Context, in *ApplyStockDeltaRequest, opts ...grpc.CallOption) (*ApplyStockDeltaResponse, error) {
	out := new(ApplyStockDeltaResponse)
	if err := c.cc.Invoke(ctx, applyStockDeltaFullMethod, in, out, withJSON(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *InventoryServiceClient) GetItem(ctx context.Context, in *GetItemRequest, opts ...grpc.CallOption) (*ItemResponse, error) {
	out := new(ItemResponse)
	if err := c.cc.Invoke(ctx, getItemFullMethod, in, out, withJSON(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *InventoryServiceClient) ListCritical(ctx context.Context, in *ListCriticalRequest, opts ...grpc.CallOption) (*ListCriticalResponse, error) {
	out := new(ListCriticalResponse)
	if err := c.cc.Invoke(ctx, listCriticalFullMethod, in, out, withJSON(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func withJSON(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(JSONCodecName)}, opts...)
}
