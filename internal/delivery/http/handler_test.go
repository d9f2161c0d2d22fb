package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ezlevup/supportdesk/internal/models"
	"github.com/ezlevup/supportdesk/internal/service"
	"github.com/ezlevup/supportdesk/pkg/logger"
)

type stubDesk struct {
	processOut *service.ProcessNextOutput
	processErr error
}

func (d *stubDesk) OpenSession(ctx context.Context, in service.OpenSessionInput) (*service.OpenSessionOutput, error) {
	return nil, nil
}

func (d *stubDesk) GetSession(ctx context.Context, ssID string) (*service.SessionDetailOutput, error) {
	return nil, nil
}

func (d *stubDesk) AssignOperator(ctx context.Context, ssID, operator string) (*models.Session, error) {
	return nil, nil
}

func (d *stubDesk) ProcessNextWaiting(ctx context.Context) (*service.ProcessNextOutput, error) {
	return d.processOut, d.processErr
}

func (d *stubDesk) EndSession(ctx context.Context, ssID string) (*models.Session, error) {
	return nil, nil
}

func (d *stubDesk) ListWaiting(ctx context.Context) (*service.WaitingListOutput, error) {
	return nil, nil
}

func (d *stubDesk) ListOperatorSessions(ctx context.Context, operator string) ([]*models.Session, error) {
	return nil, nil
}

func (d *stubDesk) PostMessage(ctx context.Context, in service.PostMessageInput) (*models.Message, error) {
	return nil, nil
}

func (d *stubDesk) ListMessages(ctx context.Context, ssID string) ([]*models.Message, error) {
	return nil, nil
}

func (d *stubDesk) ReaperStatus() service.ReaperStatus {
	return service.ReaperStatus{}
}

type stubUsers struct{}

func (u *stubUsers) RegisterCustomer(ctx context.Context, nickname string) (*models.User, error) {
	return nil, nil
}

func (u *stubUsers) RegisterOperator(ctx context.Context, username, nickname string) (*models.User, error) {
	return nil, nil
}

func (u *stubUsers) Get(ctx context.Context, username string) (*models.User, error) {
	return nil, nil
}

func (u *stubUsers) SetStatus(ctx context.Context, username string, status models.UserStatus) (*models.User, error) {
	return nil, nil
}

func (u *stubUsers) FindAvailableOperators(ctx context.Context) ([]*models.User, error) {
	return nil, nil
}

func (u *stubUsers) GenerateToken(ctx context.Context, user *models.User) (string, error) {
	return "", nil
}

func (u *stubUsers) ValidateToken(ctx context.Context, token string) (*models.User, error) {
	return nil, nil
}

func TestProcessNextStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"no operator available", service.ErrNoOperatorAvailable, http.StatusServiceUnavailable},
		{"concurrent assignment", service.ErrStateConflict, http.StatusConflict},
		{"missing session", service.ErrSessionNotFound, http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHTTPHandler(&stubDesk{processErr: tc.err}, &stubUsers{}, logger.InitializeTestZapLogger())

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/admin/api/process-next", nil)
			h.ProcessNext(rec, req)

			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestProcessNextEmptyQueueIsOK(t *testing.T) {
	h := NewHTTPHandler(&stubDesk{
		processOut: &service.ProcessNextOutput{Processed: false},
	}, &stubUsers{}, logger.InitializeTestZapLogger())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/api/process-next", nil)
	h.ProcessNext(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
