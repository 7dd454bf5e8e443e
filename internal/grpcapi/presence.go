package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/busroll/internal/apperr"
)

// PresenceQuerier answers on-board lookups.
type PresenceQuerier interface {
	IsOnBoard(ctx context.Context, subjectID string) (bool, error)
}

// presenceServer exposes read-only presence queries.  Messages are
// google.protobuf.Struct values shaped like the HTTP JSON bodies.
type presenceServer struct {
	presence PresenceQuerier
}

// OnBoard takes {"subject_id": ...} and returns {"subject_id", "on_board"}.
func (p *presenceServer) OnBoard(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	subjectID := req.GetFields()["subject_id"].GetStringValue()
	if subjectID == "" {
		return nil, apperr.New(apperr.CodeInvalidInput, "subject_id is required")
	}
	onBoard, err := p.presence.IsOnBoard(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(map[string]any{
		"subject_id": subjectID,
		"on_board":   onBoard,
	})
}

func onBoardHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*presenceServer).OnBoard(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServicePresence + "/OnBoard"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*presenceServer).OnBoard(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var presenceServiceDesc = grpc.ServiceDesc{
	ServiceName: ServicePresence,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "OnBoard", Handler: onBoardHandler},
	},
	Metadata: "busroll/v1/presence.proto",
}
