package rpc

import (
	"context"

	"google.golang.org/grpc"

	"tuplespace/internal/command"
)

const (
	SpaceService_ProcessCommand_FullMethodName = "/tuplespace.SpaceService/ProcessCommand"
	SpaceService_Out_FullMethodName            = "/tuplespace.SpaceService/Out"
	SpaceService_In_FullMethodName             = "/tuplespace.SpaceService/In"
	SpaceService_Rd_FullMethodName             = "/tuplespace.SpaceService/Rd"
)

// SpaceServiceClient is the client API for the tuple space data plane.
// ProcessCommand is the single-attempt node-to-node path used for leader
// forwarding; Out, In and Rd are the client-facing operations, with In
// and Rd blocking server-side until a match or context cancellation.
type SpaceServiceClient interface {
	ProcessCommand(ctx context.Context, in *command.Request, opts ...grpc.CallOption) (*command.Response, error)
	Out(ctx context.Context, in *OutRequest, opts ...grpc.CallOption) (*OpResponse, error)
	In(ctx context.Context, in *MatchRequest, opts ...grpc.CallOption) (*TupleReply, error)
	Rd(ctx context.Context, in *MatchRequest, opts ...grpc.CallOption) (*TupleReply, error)
}

type spaceServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewSpaceServiceClient(cc grpc.ClientConnInterface) SpaceServiceClient {
	return &spaceServiceClient{cc}
}

func (c *spaceServiceClient) ProcessCommand(ctx context.Context, in *command.Request, opts ...grpc.CallOption) (*command.Response, error) {
	out := new(command.Response)
	err := c.cc.Invoke(ctx, SpaceService_ProcessCommand_FullMethodName, in, out, callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *spaceServiceClient) Out(ctx context.Context, in *OutRequest, opts ...grpc.CallOption) (*OpResponse, error) {
	out := new(OpResponse)
	err := c.cc.Invoke(ctx, SpaceService_Out_FullMethodName, in, out, callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *spaceServiceClient) In(ctx context.Context, in *MatchRequest, opts ...grpc.CallOption) (*TupleReply, error) {
	out := new(TupleReply)
	err := c.cc.Invoke(ctx, SpaceService_In_FullMethodName, in, out, callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *spaceServiceClient) Rd(ctx context.Context, in *MatchRequest, opts ...grpc.CallOption) (*TupleReply, error) {
	out := new(TupleReply)
	err := c.cc.Invoke(ctx, SpaceService_Rd_FullMethodName, in, out, callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SpaceServiceServer is the server API for the tuple space data plane.
type SpaceServiceServer interface {
	ProcessCommand(ctx context.Context, req *command.Request) (*command.Response, error)
	Out(ctx context.Context, req *OutRequest) (*OpResponse, error)
	In(ctx context.Context, req *MatchRequest) (*TupleReply, error)
	Rd(ctx context.Context, req *MatchRequest) (*TupleReply, error)
}

func RegisterSpaceServiceServer(s grpc.ServiceRegistrar, srv SpaceServiceServer) {
	s.RegisterService(&SpaceService_ServiceDesc, srv)
}

func _SpaceService_ProcessCommand_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(command.Request)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SpaceServiceServer).ProcessCommand(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: SpaceService_ProcessCommand_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SpaceServiceServer).ProcessCommand(ctx, req.(*command.Request))
	}
	return interceptor(ctx, in, info, handler)
}

func _SpaceService_Out_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(OutRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SpaceServiceServer).Out(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: SpaceService_Out_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SpaceServiceServer).Out(ctx, req.(*OutRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _SpaceService_In_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(MatchRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SpaceServiceServer).In(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: SpaceService_In_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SpaceServiceServer).In(ctx, req.(*MatchRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _SpaceService_Rd_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(MatchRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SpaceServiceServer).Rd(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: SpaceService_Rd_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SpaceServiceServer).Rd(ctx, req.(*MatchRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var SpaceService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "tuplespace.SpaceService",
	HandlerType: (*SpaceServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ProcessCommand",
			Handler:    _SpaceService_ProcessCommand_Handler,
		},
		{
			MethodName: "Out",
			Handler:    _SpaceService_Out_Handler,
		},
		{
			MethodName: "In",
			Handler:    _SpaceService_In_Handler,
		},
		{
			MethodName: "Rd",
			Handler:    _SpaceService_Rd_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tuplespace/space.json",
}
