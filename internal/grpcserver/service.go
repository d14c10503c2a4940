package grpcserver

import (
	"context"

	"google.golang.org/grpc"
)

const (
	summaryMethod    = "/" + ServiceName + "/Summary"
	topSectorsMethod = "/" + ServiceName + "/TopSectors"
	topRegionsMethod = "/" + ServiceName + "/TopRegions"
)

type unaryFn func(InsightsServer, context.Context, *WindowRequest) (any, error)

func unaryHandler(fullMethod string, call unaryFn) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(WindowRequest)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(InsightsServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(InsightsServer), ctx, req.(*WindowRequest))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ServiceDesc describes dealflow.Insights for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*InsightsServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Summary",
			Handler: unaryHandler(summaryMethod, func(s InsightsServer, ctx context.Context, in *WindowRequest) (any, error) {
				return s.Summary(ctx, in)
			}),
		},
		{
			MethodName: "TopSectors",
			Handler: unaryHandler(topSectorsMethod, func(s InsightsServer, ctx context.Context, in *WindowRequest) (any, error) {
				return s.TopSectors(ctx, in)
			}),
		},
		{
			MethodName: "TopRegions",
			Handler: unaryHandler(topRegionsMethod, func(s InsightsServer, ctx context.Context, in *WindowRequest) (any, error) {
				return s.TopRegions(ctx, in)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "dealflow/insights",
}

func RegisterInsightsServer(s grpc.ServiceRegistrar, srv InsightsServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client calls dealflow.Insights over an existing connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in *WindowRequest, out any, opts ...grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}

func (c *Client) Summary(ctx context.Context, in *WindowRequest, opts ...grpc.CallOption) (*SummaryResponse, error) {
	out := new(SummaryResponse)
	if err := c.invoke(ctx, summaryMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) TopSectors(ctx context.Context, in *WindowRequest, opts ...grpc.CallOption) (*RankedResponse, error) {
	out := new(RankedResponse)
	if err := c.invoke(ctx, topSectorsMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) TopRegions(ctx context.Context, in *WindowRequest, opts ...grpc.CallOption) (*RankedResponse, error) {
	out := new(RankedResponse)
	if err := c.invoke(ctx, topRegionsMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
