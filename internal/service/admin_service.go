// Package service implements the Connect admin RPC service.
//
// Messages use protobuf well-known types (Empty and Struct), so the service needs
// no generated code and is reachable over the Connect, gRPC and gRPC-Web protocols.
package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mpa-academy/schooladmin/internal/auth"
	"github.com/mpa-academy/schooladmin/internal/connection"
	"github.com/mpa-academy/schooladmin/internal/middleware"
	"github.com/mpa-academy/schooladmin/internal/rollover"
	"github.com/mpa-academy/schooladmin/internal/storage"
)

const (
	// AdminServiceName is the fully-qualified name of the admin service.
	AdminServiceName = "school.v1.AdminService"

	LoginProcedure             = "/" + AdminServiceName + "/Login"
	StartAcademicYearProcedure = "/" + AdminServiceName + "/StartAcademicYear"
	GetStatusProcedure         = "/" + AdminServiceName + "/GetStatus"
)

var errLoginDisabled = errors.New("admin login is not configured")

// StoreProvider hands out the current store connection.
type StoreProvider interface {
	Store() (storage.Store, bool)
	State() connection.State
}

// AdminService implements the admin RPCs.
type AdminService struct {
	stores        StoreProvider
	rollover      *rollover.Service
	authenticator auth.Authenticator
	jwtManager    *auth.JWTManager
	logger        *slog.Logger
}

// NewAdminService creates the admin service. With a nil authenticator, Login is
// disabled and StartAcademicYear is open, matching the unauthenticated HTTP API.
func NewAdminService(stores StoreProvider, ro *rollover.Service, authenticator auth.Authenticator, jwtManager *auth.JWTManager, logger *slog.Logger) *AdminService {
	return &AdminService{
		stores:        stores,
		rollover:      ro,
		authenticator: authenticator,
		jwtManager:    jwtManager,
		logger:        logger,
	}
}

// AuthEnabled reports whether StartAcademicYear requires a token.
func (s *AdminService) AuthEnabled() bool {
	return s.authenticator != nil && s.jwtManager != nil
}

// Login authenticates the admin and returns a JWT token.
// Request fields: email, password. Response fields: token, expiresAt (RFC 3339).
func (s *AdminService) Login(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	if !s.AuthEnabled() {
		return nil, connect.NewError(connect.CodeFailedPrecondition, errLoginDisabled)
	}

	fields := req.Msg.GetFields()
	email := fields["email"].GetStringValue()
	password := fields["password"].GetStringValue()
	s.logger.Info("Login request", "email", email)

	if email == "" || password == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, auth.ErrInvalidCredentials)
	}
	if err := s.authenticator.Authenticate(ctx, email, password); err != nil {
		s.logger.Warn("Login failed", "email", email)
		return nil, connect.NewError(connect.CodeUnauthenticated, err)
	}

	token, expires, err := s.jwtManager.Generate(email)
	if err != nil {
		s.logger.Error("Failed to generate token", "email", email, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	resp, err := structpb.NewStruct(map[string]any{
		"token":     token,
		"expiresAt": expires.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	s.logger.Info("Admin logged in", "email", email)
	return connect.NewResponse(resp), nil
}

// StartAcademicYear runs the academic year rollover.
func (s *AdminService) StartAcademicYear(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[structpb.Struct], error) {
	s.logger.Info("StartAcademicYear request", "admin", middleware.GetEmail(ctx))

	store, ok := s.stores.Store()
	if !ok {
		return nil, connect.NewError(connect.CodeUnavailable, connection.ErrNotReady)
	}

	result, err := s.rollover.Run(ctx, store)
	if err != nil {
		switch {
		case errors.Is(err, rollover.ErrNoTermSettings):
			return nil, connect.NewError(connect.CodeFailedPrecondition, err)
		case errors.Is(err, rollover.ErrAlreadyArchived):
			return nil, connect.NewError(connect.CodeAlreadyExists, err)
		case errors.Is(err, rollover.ErrInProgress):
			return nil, connect.NewError(connect.CodeAborted, err)
		default:
			return nil, connect.NewError(connect.CodeInternal, err)
		}
	}

	resp, err := structpb.NewStruct(map[string]any{
		"archivedYear": result.ArchivedYear,
		"archived":     result.Archived,
		"advanced":     result.Advanced,
		"graduated":    result.Graduated,
		"skipped":      result.Skipped,
		"newYear":      result.NewYear,
		"newTerm":      result.NewTerm,
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(resp), nil
}

// GetStatus reports the connection state, current term and archived years.
func (s *AdminService) GetStatus(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[structpb.Struct], error) {
	status := map[string]any{
		"state":          string(s.stores.State()),
		"storeConnected": false,
	}

	if store, ok := s.stores.Store(); ok {
		status["storeConnected"] = true

		ts, err := store.TermSettings(ctx)
		switch {
		case err == nil:
			status["currentTerm"] = ts.CurrentTerm
			status["currentYear"] = ts.CurrentYear
		case !errors.Is(err, storage.ErrNotFound):
			s.logger.Error("Failed to fetch term settings", "error", err)
			return nil, connect.NewError(connect.CodeInternal, err)
		}

		years, err := store.ArchiveYears(ctx)
		if err != nil {
			s.logger.Error("Failed to fetch archived years", "error", err)
			return nil, connect.NewError(connect.CodeInternal, err)
		}
		archived := make([]any, len(years))
		for i, y := range years {
			archived[i] = y
		}
		status["archivedYears"] = archived
	}

	resp, err := structpb.NewStruct(status)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(resp), nil
}

// NewAdminServiceHandler builds an HTTP handler serving the admin procedures.
// It returns the path to mount the handler on. When auth is enabled,
// StartAcademicYear additionally requires a bearer token.
func NewAdminServiceHandler(svc *AdminService, opts ...connect.HandlerOption) (string, http.Handler) {
	startOpts := opts
	if svc.AuthEnabled() {
		startOpts = append(append([]connect.HandlerOption{}, opts...),
			connect.WithInterceptors(middleware.RequireAuth(svc.jwtManager)))
	}

	mux := http.NewServeMux()
	mux.Handle(LoginProcedure, connect.NewUnaryHandler(LoginProcedure, svc.Login, opts...))
	mux.Handle(StartAcademicYearProcedure, connect.NewUnaryHandler(StartAcademicYearProcedure, svc.StartAcademicYear, startOpts...))
	mux.Handle(GetStatusProcedure, connect.NewUnaryHandler(GetStatusProcedure, svc.GetStatus, opts...))
	return "/" + AdminServiceName + "/", mux
}
