package botvac

import (
	"context"
	"errors"
	"net/http"

	"github.com/joshp123/gobotvac/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "gobotvac.botvac.v1.BotvacService"

type service struct {
	manager *Manager
}

type robotRequest struct {
	Robot string `json:"robot"`
	MapID string `json:"map_id,omitempty"`
}

func RegisterBotvacService(server *grpc.Server, manager *Manager) error {
	s := &service{manager: manager}
	return rpc.Register(server, rpc.Service{
		Name: ServiceName,
		Methods: []rpc.Method{
			{Name: "ListRobots", Handler: s.ListRobots},
			{Name: "GetState", Handler: s.GetState},
			{Name: "Command", Handler: s.Command},
			{Name: "GetSchedule", Handler: s.GetSchedule},
			{Name: "GetPersistentMaps", Handler: s.GetPersistentMaps},
			{Name: "GetMapBoundaries", Handler: s.GetMapBoundaries},
		},
	})
}

func (s *service) ListRobots(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if s.manager == nil {
		return nil, status.Error(codes.FailedPrecondition, "botvac client not configured")
	}
	views := []RobotView{}
	for _, robot := range s.manager.Robots() {
		views = append(views, ViewOf(robot))
	}
	return respond(map[string]any{"robots": views})
}

// GetState fetches fresh state from the robot, unlike ListRobots which
// reports the mirrored snapshots.
func (s *service) GetState(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	robot, _, err := s.requireRobot(in)
	if err != nil {
		return nil, err
	}
	if _, err := robot.GetState(ctx); err != nil {
		return nil, mapClientError("get state", err)
	}
	return respond(ViewOf(robot))
}

func (s *service) Command(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req CommandRequest
	if err := rpc.FromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	robot, err := s.robot(req.Robot)
	if err != nil {
		return nil, err
	}
	if err := Execute(ctx, robot, req); err != nil {
		return nil, mapClientError(req.Command, err)
	}
	return respond(ViewOf(robot))
}

func (s *service) GetSchedule(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	robot, _, err := s.requireRobot(in)
	if err != nil {
		return nil, err
	}
	schedule, err := scheduleOf(ctx, robot)
	if err != nil {
		return nil, mapClientError("get schedule", err)
	}
	return respond(schedule)
}

func (s *service) GetPersistentMaps(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	robot, _, err := s.requireRobot(in)
	if err != nil {
		return nil, err
	}
	maps, err := robot.GetPersistentMaps(ctx)
	if err != nil {
		return nil, mapClientError("get persistent maps", err)
	}
	if maps == nil {
		maps = []PersistentMap{}
	}
	return respond(map[string]any{"maps": maps})
}

func (s *service) GetMapBoundaries(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	robot, req, err := s.requireRobot(in)
	if err != nil {
		return nil, err
	}
	boundaries, err := robot.GetMapBoundaries(ctx, req.MapID)
	if err != nil {
		return nil, mapClientError("get map boundaries", err)
	}
	return respond(boundaries)
}

func (s *service) requireRobot(in *structpb.Struct) (*Robot, robotRequest, error) {
	var req robotRequest
	if err := rpc.FromStruct(in, &req); err != nil {
		return nil, req, status.Error(codes.InvalidArgument, err.Error())
	}
	robot, err := s.robot(req.Robot)
	return robot, req, err
}

func (s *service) robot(key string) (*Robot, error) {
	if s.manager == nil {
		return nil, status.Error(codes.FailedPrecondition, "botvac client not configured")
	}
	if key == "" {
		return nil, status.Error(codes.InvalidArgument, "robot is required")
	}
	robot, err := s.manager.Robot(key)
	if err != nil {
		return nil, mapClientError("find robot", err)
	}
	return robot, nil
}

func respond(v any) (*structpb.Struct, error) {
	out, err := rpc.ToStruct(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func mapClientError(action string, err error) error {
	var (
		missing   *MissingParameterError
		authErr   *AuthenticationError
		remoteErr *RemoteError
		transport *TransportError
	)
	switch {
	case errors.As(err, &missing), errors.Is(err, ErrUnknownCommand):
		return status.Errorf(codes.InvalidArgument, "%s: %v", action, err)
	case errors.Is(err, ErrRobotNotFound):
		return status.Errorf(codes.NotFound, "%s: %v", action, err)
	case errors.Is(err, ErrNotAuthorized), errors.As(err, &authErr):
		return status.Errorf(codes.Unauthenticated, "%s: %v", action, err)
	case errors.Is(err, ErrUnconfiguredDevice), errors.As(err, &remoteErr):
		return status.Errorf(codes.FailedPrecondition, "%s: %v", action, err)
	case errors.Is(err, context.DeadlineExceeded):
		return status.Errorf(codes.DeadlineExceeded, "%s: %v", action, err)
	case errors.Is(err, context.Canceled):
		return status.Errorf(codes.Canceled, "%s: %v", action, err)
	case errors.As(err, &transport):
		switch transport.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return status.Errorf(codes.PermissionDenied, "%s: %v", action, err)
		case http.StatusNotFound:
			return status.Errorf(codes.NotFound, "%s: %v", action, err)
		}
		return status.Errorf(codes.Unavailable, "%s: %v", action, err)
	case IsTransient(err):
		return status.Errorf(codes.Unavailable, "%s: %v", action, err)
	}
	return status.Errorf(codes.Internal, "%s: %v", action, err)
}
