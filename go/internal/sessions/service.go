package sessions

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/mcdev12/focusflow/go/internal/models"
	"github.com/mcdev12/focusflow/go/internal/rpc"
)

// SessionServiceName is the connect service the session procedures are served under
const SessionServiceName = "focusflow.session.v1.SessionService"

// SessionRef identifies a session by ID
type SessionRef struct {
	ID string `json:"id"`
}

// CodeRef identifies a session by share code
type CodeRef struct {
	Code string `json:"code"`
}

// HistoryRequest asks for the caller's sessions
type HistoryRequest struct{}

// SetStatusRPC carries a status change for one session
type SetStatusRPC struct {
	ID string `json:"id"`
	SetStatusRequest
}

// AdvanceCycleRPC carries a cycle change for one session
type AdvanceCycleRPC struct {
	ID string `json:"id"`
	AdvanceCycleRequest
}

// UpdateTimerStateRPC carries a timer update for one session
type UpdateTimerStateRPC struct {
	ID string `json:"id"`
	UpdateTimerStateRequest
}

// JoinRPC carries a join for one session
type JoinRPC struct {
	ID string `json:"id"`
	JoinSessionRequest
}

// SessionResponse wraps a session snapshot in connect responses
type SessionResponse struct {
	Session *models.Session `json:"session"`
}

// HistoryResponse lists sessions newest first
type HistoryResponse struct {
	Sessions []*models.Session `json:"sessions"`
}

// Service implements the SessionService connect interface
type Service struct {
	facade *Facade
}

// NewService creates a new sessions connect service
func NewService(facade *Facade) *Service {
	return &Service{
		facade: facade,
	}
}

// Handler returns the mount path and handler for the service
func (s *Service) Handler() (string, http.Handler) {
	opts := rpc.HandlerOptions()
	mux := http.NewServeMux()
	handle := func(method string, h http.Handler) {
		mux.Handle(rpc.Procedure(SessionServiceName, method), h)
	}
	p := func(method string) string { return rpc.Procedure(SessionServiceName, method) }

	handle("CreateSession", connect.NewUnaryHandler(p("CreateSession"), s.CreateSession, opts...))
	handle("GetSession", connect.NewUnaryHandler(p("GetSession"), s.GetSession, opts...))
	handle("GetSessionByCode", connect.NewUnaryHandler(p("GetSessionByCode"), s.GetSessionByCode, opts...))
	handle("History", connect.NewUnaryHandler(p("History"), s.History, opts...))
	handle("SetStatus", connect.NewUnaryHandler(p("SetStatus"), s.SetStatus, opts...))
	handle("AdvanceCycle", connect.NewUnaryHandler(p("AdvanceCycle"), s.AdvanceCycle, opts...))
	handle("CheckCompletion", connect.NewUnaryHandler(p("CheckCompletion"), s.CheckCompletion, opts...))
	handle("UpdateTimerState", connect.NewUnaryHandler(p("UpdateTimerState"), s.UpdateTimerState, opts...))
	handle("Join", connect.NewUnaryHandler(p("Join"), s.Join, opts...))
	return "/" + SessionServiceName + "/", mux
}

// CreateSession creates a session owned by the caller
func (s *Service) CreateSession(ctx context.Context, req *connect.Request[CreateSessionRequest]) (*connect.Response[SessionResponse], error) {
	return reply(s.facade.CreateSession(ctx, *req.Msg))
}

// GetSession retrieves a session by ID
func (s *Service) GetSession(ctx context.Context, req *connect.Request[SessionRef]) (*connect.Response[SessionResponse], error) {
	id, err := parseID(req.Msg.ID)
	if err != nil {
		return nil, err
	}
	return reply(s.facade.GetSession(ctx, id))
}

// GetSessionByCode retrieves a session by share code
func (s *Service) GetSessionByCode(ctx context.Context, req *connect.Request[CodeRef]) (*connect.Response[SessionResponse], error) {
	return reply(s.facade.GetSessionByCode(ctx, req.Msg.Code))
}

// History lists the caller's sessions
func (s *Service) History(ctx context.Context, req *connect.Request[HistoryRequest]) (*connect.Response[HistoryResponse], error) {
	sessions, err := s.facade.History(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&HistoryResponse{Sessions: sessions}), nil
}

// SetStatus changes the lifecycle status of a session
func (s *Service) SetStatus(ctx context.Context, req *connect.Request[SetStatusRPC]) (*connect.Response[SessionResponse], error) {
	id, err := parseID(req.Msg.ID)
	if err != nil {
		return nil, err
	}
	return reply(s.facade.SetStatus(ctx, id, req.Msg.SetStatusRequest))
}

// AdvanceCycle records the cycle a session is on
func (s *Service) AdvanceCycle(ctx context.Context, req *connect.Request[AdvanceCycleRPC]) (*connect.Response[SessionResponse], error) {
	id, err := parseID(req.Msg.ID)
	if err != nil {
		return nil, err
	}
	return reply(s.facade.AdvanceCycle(ctx, id, req.Msg.AdvanceCycleRequest))
}

// CheckCompletion completes a session that reached its last cycle
func (s *Service) CheckCompletion(ctx context.Context, req *connect.Request[SessionRef]) (*connect.Response[SessionResponse], error) {
	id, err := parseID(req.Msg.ID)
	if err != nil {
		return nil, err
	}
	return reply(s.facade.CheckCompletion(ctx, id))
}

// UpdateTimerState overwrites the shared timer fields
func (s *Service) UpdateTimerState(ctx context.Context, req *connect.Request[UpdateTimerStateRPC]) (*connect.Response[SessionResponse], error) {
	id, err := parseID(req.Msg.ID)
	if err != nil {
		return nil, err
	}
	return reply(s.facade.UpdateTimerState(ctx, id, req.Msg.UpdateTimerStateRequest))
}

// Join announces a user to the session's watchers
func (s *Service) Join(ctx context.Context, req *connect.Request[JoinRPC]) (*connect.Response[SessionResponse], error) {
	id, err := parseID(req.Msg.ID)
	if err != nil {
		return nil, err
	}
	return reply(s.facade.Join(ctx, id, req.Msg.JoinSessionRequest))
}

func reply(session *models.Session, err error) (*connect.Response[SessionResponse], error) {
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&SessionResponse{Session: session}), nil
}

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	return id, nil
}

func toConnectError(err error) *connect.Error {
	code := rpc.CodeFor(err,
		rpc.ErrorCode{Err: ErrNotFound, Code: connect.CodeNotFound},
		rpc.ErrorCode{Err: ErrValidation, Code: connect.CodeInvalidArgument},
		rpc.ErrorCode{Err: ErrConflict, Code: connect.CodeFailedPrecondition},
	)
	if code == connect.CodeInternal {
		return connect.NewError(code, errInternal)
	}
	return connect.NewError(code, err)
}
