package users

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/mcdev12/focusflow/go/internal/identity"
	"github.com/mcdev12/focusflow/go/internal/models"
	"github.com/mcdev12/focusflow/go/internal/rpc"
)

// UserServiceName is the connect service the users procedures are served under
const UserServiceName = "focusflow.user.v1.UserService"

// UsersApp defines what the service layer needs from the users application
type UsersApp interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	CreateAnonymousUser(ctx context.Context) (*models.User, error)
	FindOrCreate(ctx context.Context, id identity.Identity) (*models.User, error)
}

// UserResponse wraps a user in connect responses
type UserResponse struct {
	User *models.User `json:"user"`
}

// Service implements the UserService connect interface
type Service struct {
	app UsersApp
}

// NewService creates a new users connect service
func NewService(app UsersApp) *Service {
	return &Service{
		app: app,
	}
}

// Handler returns the mount path and handler for the service
func (s *Service) Handler() (string, http.Handler) {
	opts := rpc.HandlerOptions()
	mux := http.NewServeMux()
	mux.Handle(rpc.Procedure(UserServiceName, "GetUser"), connect.NewUnaryHandler(
		rpc.Procedure(UserServiceName, "GetUser"), s.GetUser, opts...))
	mux.Handle(rpc.Procedure(UserServiceName, "CreateAnonymousUser"), connect.NewUnaryHandler(
		rpc.Procedure(UserServiceName, "CreateAnonymousUser"), s.CreateAnonymousUser, opts...))
	return "/" + UserServiceName + "/", mux
}

// GetUser retrieves a user by ID
func (s *Service) GetUser(ctx context.Context, req *connect.Request[GetUserRequest]) (*connect.Response[UserResponse], error) {
	id, err := uuid.Parse(req.Msg.ID)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	user, err := s.app.GetUser(ctx, id)
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&UserResponse{User: user}), nil
}

// CreateAnonymousUser creates a user with a generated username
func (s *Service) CreateAnonymousUser(ctx context.Context, req *connect.Request[CreateAnonymousUserRequest]) (*connect.Response[UserResponse], error) {
	user, err := s.app.CreateAnonymousUser(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&UserResponse{User: user}), nil
}

func toConnectError(err error) *connect.Error {
	code := rpc.CodeFor(err,
		rpc.ErrorCode{Err: ErrNotFound, Code: connect.CodeNotFound},
		rpc.ErrorCode{Err: ErrAlreadyExists, Code: connect.CodeAlreadyExists},
	)
	if code == connect.CodeInternal {
		return connect.NewError(code, errInternal)
	}
	return connect.NewError(code, err)
}
