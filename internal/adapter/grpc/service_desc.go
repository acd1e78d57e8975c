package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "capitalflow.v1.CapitalService"

// Method names of the CapitalService
const (
	MethodAddCapitalSource        = "AddCapitalSource"
	MethodUpdateCapitalAmount     = "UpdateCapitalAmount"
	MethodUpdateCapitalRate       = "UpdateCapitalRate"
	MethodRemoveCapitalSource     = "RemoveCapitalSource"
	MethodGetCapitalHistory       = "GetCapitalHistory"
	MethodGetHistoryForSource     = "GetHistoryForSource"
	MethodGetHistoryInDateRange   = "GetHistoryInDateRange"
	MethodGetActiveCapitalSources = "GetActiveCapitalSources"
	MethodCalculateWACCAtDate     = "CalculateWACCAtDate"
	MethodCalculatePeriodWACC     = "CalculatePeriodWACC"
	MethodGetWACCTrendData        = "GetWACCTrendData"
)

// CapitalServiceServer is the server API for the CapitalService.
// Every request and response is a google.protobuf.Struct.
type CapitalServiceServer interface {
	AddCapitalSource(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateCapitalAmount(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateCapitalRate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveCapitalSource(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetCapitalHistory(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetHistoryForSource(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetHistoryInDateRange(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetActiveCapitalSources(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CalculateWACCAtDate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CalculatePeriodWACC(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetWACCTrendData(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(CapitalServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// unaryHandler adapts a server method to a grpc.MethodHandler, running it through the interceptor chain
func unaryHandler(name string, call unaryMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(CapitalServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: FullMethod(name),
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(CapitalServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// CapitalServiceDesc is the grpc.ServiceDesc for the CapitalService
var CapitalServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CapitalServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler(MethodAddCapitalSource, CapitalServiceServer.AddCapitalSource),
		unaryHandler(MethodUpdateCapitalAmount, CapitalServiceServer.UpdateCapitalAmount),
		unaryHandler(MethodUpdateCapitalRate, CapitalServiceServer.UpdateCapitalRate),
		unaryHandler(MethodRemoveCapitalSource, CapitalServiceServer.RemoveCapitalSource),
		unaryHandler(MethodGetCapitalHistory, CapitalServiceServer.GetCapitalHistory),
		unaryHandler(MethodGetHistoryForSource, CapitalServiceServer.GetHistoryForSource),
		unaryHandler(MethodGetHistoryInDateRange, CapitalServiceServer.GetHistoryInDateRange),
		unaryHandler(MethodGetActiveCapitalSources, CapitalServiceServer.GetActiveCapitalSources),
		unaryHandler(MethodCalculateWACCAtDate, CapitalServiceServer.CalculateWACCAtDate),
		unaryHandler(MethodCalculatePeriodWACC, CapitalServiceServer.CalculatePeriodWACC),
		unaryHandler(MethodGetWACCTrendData, CapitalServiceServer.GetWACCTrendData),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "capitalflow/v1/capital.proto",
}

// RegisterCapitalServiceServer registers srv on the gRPC server
func RegisterCapitalServiceServer(s grpc.ServiceRegistrar, srv CapitalServiceServer) {
	s.RegisterService(&CapitalServiceDesc, srv)
}

// FullMethod returns the "/service/method" path of a CapitalService method
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// Client calls the CapitalService over an existing connection
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient creates a new CapitalService client
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call invokes method with req and returns the response struct
func (c *Client) Call(ctx context.Context, method string, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if req == nil {
		req = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
