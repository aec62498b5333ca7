package transport

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// AdminHandler is what the admin surfaces (gRPC and HTTP) expose of a servent.
type AdminHandler interface {
	NodeID() string
	Stats() map[string]int64
	Lookup(key string) (string, bool)
	Keys() []string
}

const (
	adminServiceName = "servent.v1.ServentAdmin"
	statsMethod      = "/" + adminServiceName + "/Stats"
	lookupMethod     = "/" + adminServiceName + "/Lookup"
)

// adminServiceServer is the server side of ServentAdmin. Messages are protobuf
// well-known types so no generated code is needed:
//
//	rpc Stats(google.protobuf.Empty) returns (google.protobuf.Struct);
//	rpc Lookup(google.protobuf.StringValue) returns (google.protobuf.StringValue);
type adminServiceServer interface {
	Stats(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Lookup(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
}

var adminServiceDesc = grpc.ServiceDesc{
	ServiceName: adminServiceName,
	HandlerType: (*adminServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Stats", Handler: statsHandler},
		{MethodName: "Lookup", Handler: lookupHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "servent/v1/admin.proto",
}

func statsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(adminServiceServer).Stats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: statsMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(adminServiceServer).Stats(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func lookupHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(adminServiceServer).Lookup(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: lookupMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(adminServiceServer).Lookup(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// adminServer implements the gRPC ServentAdmin service
type adminServer struct {
	handler AdminHandler
}

func (s *adminServer) Stats(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	fields := map[string]interface{}{"node_id": s.handler.NodeID()}
	for k, v := range s.handler.Stats() {
		fields[k] = v
	}
	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode stats: %v", err)
	}
	return st, nil
}

func (s *adminServer) Lookup(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	value, ok := s.handler.Lookup(req.GetValue())
	if !ok {
		return nil, status.Errorf(codes.NotFound, "key %q not in database", req.GetValue())
	}
	return wrapperspb.String(value), nil
}

// GRPC serves the admin service for one servent.
type GRPC struct {
	addr    string
	srv     *grpc.Server
	lis     net.Listener
	handler AdminHandler
	done    chan struct{}
	once    sync.Once
}

func NewGRPC(addr string, handler AdminHandler) (*GRPC, error) {
	if addr == "" || !strings.Contains(addr, ":") {
		return nil, fmt.Errorf("invalid address: %s", addr)
	}
	if handler == nil {
		return nil, fmt.Errorf("handler must be provided")
	}

	return &GRPC{
		addr:    addr,
		srv:     grpc.NewServer(),
		handler: handler,
		done:    make(chan struct{}),
	}, nil
}

// Start binds synchronously, so a busy port is reported to the caller, then
// serves in a background goroutine.
func (g *GRPC) Start() error {
	lis, err := net.Listen("tcp", g.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	g.lis = lis

	g.srv.RegisterService(&adminServiceDesc, &adminServer{handler: g.handler})

	// grpcurl and friends can list the service; describing it needs the .proto
	reflection.Register(g.srv)

	go func() {
		defer close(g.done)
		_ = g.srv.Serve(lis)
	}()
	return nil
}

// Addr returns the bound address, useful when listening on port 0.
func (g *GRPC) Addr() string {
	if g.lis == nil {
		return g.addr
	}
	return g.lis.Addr().String()
}

func (g *GRPC) Stop() error {
	g.once.Do(func() {
		g.srv.GracefulStop()
		if g.lis != nil {
			<-g.done
		}
	})
	return nil
}

// AdminClient talks to a servent's ServentAdmin service.
type AdminClient struct {
	conn *grpc.ClientConn
}

func DialAdmin(addr string) (*AdminClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to admin server: %w", err)
	}
	return &AdminClient{conn: conn}, nil
}

// Stats returns the servent's counters keyed by name. Numbers come back as
// float64, the JSON number type protobuf Struct uses.
func (c *AdminClient) Stats(ctx context.Context) (map[string]interface{}, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, statsMethod, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

// Lookup queries the servent's local database only; it does not flood.
func (c *AdminClient) Lookup(ctx context.Context, key string) (string, bool, error) {
	out := new(wrapperspb.StringValue)
	err := c.conn.Invoke(ctx, lookupMethod, wrapperspb.String(key), out)
	if status.Code(err) == codes.NotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return out.GetValue(), true, nil
}

func (c *AdminClient) Close() error {
	return c.conn.Close()
}
