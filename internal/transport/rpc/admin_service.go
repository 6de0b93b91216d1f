package rpc

import (
	"context"

	"google.golang.org/grpc"
)

const (
	AdminService_Create_FullMethodName = "/tuplespace.AdminService/Create"
	AdminService_Join_FullMethodName   = "/tuplespace.AdminService/Join"
	AdminService_Leave_FullMethodName  = "/tuplespace.AdminService/Leave"
	AdminService_Nodes_FullMethodName  = "/tuplespace.AdminService/Nodes"
)

// AdminServiceClient drives a node's membership coordinator: founding a
// space, joining an existing one, leaving, and listing the member set.
type AdminServiceClient interface {
	Create(ctx context.Context, in *CreateRequest, opts ...grpc.CallOption) (*AdminResponse, error)
	Join(ctx context.Context, in *JoinClusterRequest, opts ...grpc.CallOption) (*AdminResponse, error)
	Leave(ctx context.Context, in *LeaveClusterRequest, opts ...grpc.CallOption) (*AdminResponse, error)
	Nodes(ctx context.Context, in *ListNodesRequest, opts ...grpc.CallOption) (*ListNodesResponse, error)
}

type adminServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewAdminServiceClient(cc grpc.ClientConnInterface) AdminServiceClient {
	return &adminServiceClient{cc}
}

func (c *adminServiceClient) Create(ctx context.Context, in *CreateRequest, opts ...grpc.CallOption) (*AdminResponse, error) {
	out := new(AdminResponse)
	err := c.cc.Invoke(ctx, AdminService_Create_FullMethodName, in, out, callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *adminServiceClient) Join(ctx context.Context, in *JoinClusterRequest, opts ...grpc.CallOption) (*AdminResponse, error) {
	out := new(AdminResponse)
	err := c.cc.Invoke(ctx, AdminService_Join_FullMethodName, in, out, callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *adminServiceClient) Leave(ctx context.Context, in *LeaveClusterRequest, opts ...grpc.CallOption) (*AdminResponse, error) {
	out := new(AdminResponse)
	err := c.cc.Invoke(ctx, AdminService_Leave_FullMethodName, in, out, callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *adminServiceClient) Nodes(ctx context.Context, in *ListNodesRequest, opts ...grpc.CallOption) (*ListNodesResponse, error) {
	out := new(ListNodesResponse)
	err := c.cc.Invoke(ctx, AdminService_Nodes_FullMethodName, in, out, callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AdminServiceServer is the server API for membership administration.
type AdminServiceServer interface {
	Create(ctx context.Context, req *CreateRequest) (*AdminResponse, error)
	Join(ctx context.Context, req *JoinClusterRequest) (*AdminResponse, error)
	Leave(ctx context.Context, req *LeaveClusterRequest) (*AdminResponse, error)
	Nodes(ctx context.Context, req *ListNodesRequest) (*ListNodesResponse, error)
}

func RegisterAdminServiceServer(s grpc.ServiceRegistrar, srv AdminServiceServer) {
	s.RegisterService(&AdminService_ServiceDesc, srv)
}

func _AdminService_Create_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(CreateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServiceServer).Create(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: AdminService_Create_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AdminServiceServer).Create(ctx, req.(*CreateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _AdminService_Join_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(JoinClusterRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServiceServer).Join(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: AdminService_Join_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AdminServiceServer).Join(ctx, req.(*JoinClusterRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _AdminService_Leave_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(LeaveClusterRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServiceServer).Leave(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: AdminService_Leave_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AdminServiceServer).Leave(ctx, req.(*LeaveClusterRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _AdminService_Nodes_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ListNodesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServiceServer).Nodes(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: AdminService_Nodes_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AdminServiceServer).Nodes(ctx, req.(*ListNodesRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var AdminService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "tuplespace.AdminService",
	HandlerType: (*AdminServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Create",
			Handler:    _AdminService_Create_Handler,
		},
		{
			MethodName: "Join",
			Handler:    _AdminService_Join_Handler,
		},
		{
			MethodName: "Leave",
			Handler:    _AdminService_Leave_Handler,
		},
		{
			MethodName: "Nodes",
			Handler:    _AdminService_Nodes_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tuplespace/admin.json",
}
