package rpc

import (
	"context"

	"google.golang.org/grpc"
)

const (
	RaftTransportService_SendRaftMessage_FullMethodName = "/tuplespace.RaftTransportService/SendRaftMessage"
	RaftTransportService_GetReadIndex_FullMethodName    = "/tuplespace.RaftTransportService/GetReadIndex"
	RaftTransportService_RequestJoin_FullMethodName     = "/tuplespace.RaftTransportService/RequestJoin"
	RaftTransportService_RequestLeave_FullMethodName    = "/tuplespace.RaftTransportService/RequestLeave"
)

// RaftTransportServiceClient is the client API for peer-to-peer raft
// traffic and membership changes.
type RaftTransportServiceClient interface {
	SendRaftMessage(ctx context.Context, in *RaftMessage, opts ...grpc.CallOption) (*RaftMessageAck, error)
	GetReadIndex(ctx context.Context, in *GetReadIndexRequest, opts ...grpc.CallOption) (*GetReadIndexResponse, error)
	RequestJoin(ctx context.Context, in *JoinRequest, opts ...grpc.CallOption) (*JoinResponse, error)
	RequestLeave(ctx context.Context, in *LeaveRequest, opts ...grpc.CallOption) (*LeaveResponse, error)
}

type raftTransportServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewRaftTransportServiceClient(cc grpc.ClientConnInterface) RaftTransportServiceClient {
	return &raftTransportServiceClient{cc}
}

func (c *raftTransportServiceClient) SendRaftMessage(ctx context.Context, in *RaftMessage, opts ...grpc.CallOption) (*RaftMessageAck, error) {
	out := new(RaftMessageAck)
	err := c.cc.Invoke(ctx, RaftTransportService_SendRaftMessage_FullMethodName, in, out, callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *raftTransportServiceClient) GetReadIndex(ctx context.Context, in *GetReadIndexRequest, opts ...grpc.CallOption) (*GetReadIndexResponse, error) {
	out := new(GetReadIndexResponse)
	err := c.cc.Invoke(ctx, RaftTransportService_GetReadIndex_FullMethodName, in, out, callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *raftTransportServiceClient) RequestJoin(ctx context.Context, in *JoinRequest, opts ...grpc.CallOption) (*JoinResponse, error) {
	out := new(JoinResponse)
	err := c.cc.Invoke(ctx, RaftTransportService_RequestJoin_FullMethodName, in, out, callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *raftTransportServiceClient) RequestLeave(ctx context.Context, in *LeaveRequest, opts ...grpc.CallOption) (*LeaveResponse, error) {
	out := new(LeaveResponse)
	err := c.cc.Invoke(ctx, RaftTransportService_RequestLeave_FullMethodName, in, out, callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RaftTransportServiceServer is the server API for peer-to-peer raft traffic.
type RaftTransportServiceServer interface {
	SendRaftMessage(ctx context.Context, req *RaftMessage) (*RaftMessageAck, error)
	GetReadIndex(ctx context.Context, req *GetReadIndexRequest) (*GetReadIndexResponse, error)
	RequestJoin(ctx context.Context, req *JoinRequest) (*JoinResponse, error)
	RequestLeave(ctx context.Context, req *LeaveRequest) (*LeaveResponse, error)
}

func RegisterRaftTransportServiceServer(s grpc.ServiceRegistrar, srv RaftTransportServiceServer) {
	s.RegisterService(&RaftTransportService_ServiceDesc, srv)
}

func _RaftTransportService_SendRaftMessage_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(RaftMessage)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RaftTransportServiceServer).SendRaftMessage(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: RaftTransportService_SendRaftMessage_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RaftTransportServiceServer).SendRaftMessage(ctx, req.(*RaftMessage))
	}
	return interceptor(ctx, in, info, handler)
}

func _RaftTransportService_GetReadIndex_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetReadIndexRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RaftTransportServiceServer).GetReadIndex(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: RaftTransportService_GetReadIndex_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RaftTransportServiceServer).GetReadIndex(ctx, req.(*GetReadIndexRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _RaftTransportService_RequestJoin_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(JoinRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RaftTransportServiceServer).RequestJoin(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: RaftTransportService_RequestJoin_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RaftTransportServiceServer).RequestJoin(ctx, req.(*JoinRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _RaftTransportService_RequestLeave_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(LeaveRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RaftTransportServiceServer).RequestLeave(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: RaftTransportService_RequestLeave_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RaftTransportServiceServer).RequestLeave(ctx, req.(*LeaveRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var RaftTransportService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "tuplespace.RaftTransportService",
	HandlerType: (*RaftTransportServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "SendRaftMessage",
			Handler:    _RaftTransportService_SendRaftMessage_Handler,
		},
		{
			MethodName: "GetReadIndex",
			Handler:    _RaftTransportService_GetReadIndex_Handler,
		},
		{
			MethodName: "RequestJoin",
			Handler:    _RaftTransportService_RequestJoin_Handler,
		},
		{
			MethodName: "RequestLeave",
			Handler:    _RaftTransportService_RequestLeave_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tuplespace/raft.json",
}
