package service

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mpa-academy/schooladmin/internal/auth"
	"github.com/mpa-academy/schooladmin/internal/connection"
	"github.com/mpa-academy/schooladmin/internal/middleware"
	"github.com/mpa-academy/schooladmin/internal/models"
	"github.com/mpa-academy/schooladmin/internal/rollover"
	"github.com/mpa-academy/schooladmin/internal/storage"
	"github.com/mpa-academy/schooladmin/internal/storage/sqlstore"
)

const (
	testEmail    = "admin@school.example"
	testPassword = "s3cret-password"
)

type readyProvider struct {
	store storage.Store
}

func (p readyProvider) Store() (storage.Store, bool) { return p.store, p.store != nil }

func (p readyProvider) State() connection.State {
	if p.store == nil {
		return connection.StateDegraded
	}
	return connection.StateReady
}

type testClients struct {
	login  *connect.Client[structpb.Struct, structpb.Struct]
	start  *connect.Client[emptypb.Empty, structpb.Struct]
	status *connect.Client[emptypb.Empty, structpb.Struct]
	store  *sqlstore.Store
}

// setupTestServer creates a test server with a temp SQLite database.
func setupTestServer(t *testing.T, withAuth bool) *testClients {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpFile.Close()

	store, err := sqlstore.Open(context.Background(), sqlstore.DriverSQLite, tmpFile.Name())
	if err != nil {
		os.Remove(tmpFile.Name())
		t.Fatalf("failed to create store: %v", err)
	}

	var authenticator auth.Authenticator
	var jwtManager *auth.JWTManager
	if withAuth {
		hash, err := auth.HashPassword(testPassword)
		if err != nil {
			t.Fatalf("failed to hash password: %v", err)
		}
		authenticator = auth.NewAdminAuthenticator(testEmail, hash)
		jwtManager = auth.NewJWTManager("test-secret", time.Hour)
	}

	svc := NewAdminService(readyProvider{store: store}, rollover.NewService(), authenticator, jwtManager, slog.Default())
	path, handler := NewAdminServiceHandler(svc, connect.WithInterceptors(middleware.LoggingInterceptor()))

	mux := http.NewServeMux()
	mux.Handle(path, handler)
	server := httptest.NewServer(mux)

	t.Cleanup(func() {
		server.Close()
		store.Close()
		os.Remove(tmpFile.Name())
	})

	return &testClients{
		login:  connect.NewClient[structpb.Struct, structpb.Struct](http.DefaultClient, server.URL+LoginProcedure),
		start:  connect.NewClient[emptypb.Empty, structpb.Struct](http.DefaultClient, server.URL+StartAcademicYearProcedure),
		status: connect.NewClient[emptypb.Empty, structpb.Struct](http.DefaultClient, server.URL+GetStatusProcedure),
		store:  store,
	}
}

func seedRoster(t *testing.T, store storage.Store) {
	t.Helper()
	ctx := context.Background()
	if err := store.SaveTermSettings(ctx, &models.TermSettings{CurrentTerm: models.Term3, CurrentYear: 2024}); err != nil {
		t.Fatalf("SaveTermSettings failed: %v", err)
	}
	learner := &models.Learner{
		AdmissionNo: "MPA-001",
		FullName:    "Wanjiku Kamau",
		Gender:      "Female",
		DOB:         "2013-07-07",
		Grade:       models.Grade6,
		ParentName:  "Peter Kamau",
		ParentPhone: "0744000000",
		ParentEmail: "peter@example.com",
	}
	if err := store.Learners().Create(ctx, learner); err != nil {
		t.Fatalf("Create learner failed: %v", err)
	}
}

func login(t *testing.T, c *testClients, password string) (string, error) {
	t.Helper()
	msg, err := structpb.NewStruct(map[string]any{"email": testEmail, "password": password})
	if err != nil {
		t.Fatalf("NewStruct failed: %v", err)
	}
	resp, err := c.login.CallUnary(context.Background(), connect.NewRequest(msg))
	if err != nil {
		return "", err
	}
	return resp.Msg.GetFields()["token"].GetStringValue(), nil
}

func TestStartAcademicYearWithoutAuth(t *testing.T) {
	c := setupTestServer(t, false)
	seedRoster(t, c.store)

	resp, err := c.start.CallUnary(context.Background(), connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		t.Fatalf("StartAcademicYear failed: %v", err)
	}

	fields := resp.Msg.GetFields()
	if got := fields["newYear"].GetNumberValue(); got != 2025 {
		t.Errorf("newYear mismatch: got %v, want 2025", got)
	}
	if got := fields["advanced"].GetNumberValue(); got != 1 {
		t.Errorf("advanced mismatch: got %v, want 1", got)
	}

	t.Run("second run for the same year is rejected", func(t *testing.T) {
		if err := c.store.SaveTermSettings(context.Background(), &models.TermSettings{CurrentTerm: models.Term1, CurrentYear: 2024}); err != nil {
			t.Fatalf("SaveTermSettings failed: %v", err)
		}
		_, err := c.start.CallUnary(context.Background(), connect.NewRequest(&emptypb.Empty{}))
		if connect.CodeOf(err) != connect.CodeAlreadyExists {
			t.Errorf("Expected AlreadyExists, got %v", err)
		}
	})

	t.Run("login is disabled", func(t *testing.T) {
		_, err := login(t, c, testPassword)
		if connect.CodeOf(err) != connect.CodeFailedPrecondition {
			t.Errorf("Expected FailedPrecondition, got %v", err)
		}
	})
}

func TestStartAcademicYearRequiresToken(t *testing.T) {
	c := setupTestServer(t, true)
	seedRoster(t, c.store)
	ctx := context.Background()

	t.Run("no token", func(t *testing.T) {
		_, err := c.start.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{}))
		if connect.CodeOf(err) != connect.CodeUnauthenticated {
			t.Errorf("Expected Unauthenticated, got %v", err)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := login(t, c, "not-the-password")
		if connect.CodeOf(err) != connect.CodeUnauthenticated {
			t.Errorf("Expected Unauthenticated, got %v", err)
		}
	})

	t.Run("valid token", func(t *testing.T) {
		token, err := login(t, c, testPassword)
		if err != nil {
			t.Fatalf("Login failed: %v", err)
		}

		req := connect.NewRequest(&emptypb.Empty{})
		req.Header().Set("Authorization", "Bearer "+token)
		resp, err := c.start.CallUnary(ctx, req)
		if err != nil {
			t.Fatalf("StartAcademicYear failed: %v", err)
		}
		if got := resp.Msg.GetFields()["archivedYear"].GetNumberValue(); got != 2024 {
			t.Errorf("archivedYear mismatch: got %v, want 2024", got)
		}
	})
}

func TestStartAcademicYearWithoutTermSettings(t *testing.T) {
	c := setupTestServer(t, false)

	_, err := c.start.CallUnary(context.Background(), connect.NewRequest(&emptypb.Empty{}))
	if connect.CodeOf(err) != connect.CodeFailedPrecondition {
		t.Errorf("Expected FailedPrecondition, got %v", err)
	}
}

func TestGetStatus(t *testing.T) {
	c := setupTestServer(t, false)
	seedRoster(t, c.store)

	resp, err := c.status.CallUnary(context.Background(), connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		t.Fatalf("GetStatus failed: %v", err)
	}

	fields := resp.Msg.GetFields()
	if got := fields["state"].GetStringValue(); got != string(connection.StateReady) {
		t.Errorf("state mismatch: got %q", got)
	}
	if !fields["storeConnected"].GetBoolValue() {
		t.Error("Expected storeConnected to be true")
	}
	if got := fields["currentTerm"].GetStringValue(); got != models.Term3 {
		t.Errorf("currentTerm mismatch: got %q", got)
	}
	if got := len(fields["archivedYears"].GetListValue().GetValues()); got != 0 {
		t.Errorf("Expected no archived years, got %d", got)
	}
}
