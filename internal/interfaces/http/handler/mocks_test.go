package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	shipmentapp "github.com/mgastron/mvgtms-sub000/internal/application/shipment"
	"github.com/mgastron/mvgtms-sub000/internal/domain/integration"
	"github.com/mgastron/mvgtms-sub000/internal/domain/shipment"
	"github.com/mgastron/mvgtms-sub000/internal/interfaces/http/dto"
	"github.com/mgastron/mvgtms-sub000/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

// MockShipmentService implements ShipmentService for testing
type MockShipmentService struct {
	mock.Mock
}

func (m *MockShipmentService) CreateManual(ctx context.Context, req shipmentapp.CreateManualShipmentRequest) (*shipment.Shipment, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shipment.Shipment), args.Error(1)
}

func (m *MockShipmentService) IngestScanned(ctx context.Context, req shipmentapp.ScanShipmentRequest) (*shipmentapp.IngestResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shipmentapp.IngestResult), args.Error(1)
}

func (m *MockShipmentService) Transition(ctx context.Context, id uuid.UUID, req shipmentapp.TransitionShipmentRequest) (*shipment.Shipment, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shipment.Shipment), args.Error(1)
}

func (m *MockShipmentService) AssignDriver(ctx context.Context, id uuid.UUID, req shipmentapp.AssignDriverRequest) (*shipment.Shipment, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shipment.Shipment), args.Error(1)
}

func (m *MockShipmentService) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockShipmentService) Get(ctx context.Context, id uuid.UUID) (*shipment.Shipment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shipment.Shipment), args.Error(1)
}

func (m *MockShipmentService) GetHistory(ctx context.Context, id uuid.UUID) ([]shipment.HistoryEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]shipment.HistoryEntry), args.Error(1)
}

func (m *MockShipmentService) List(ctx context.Context, f shipmentapp.ListShipmentsFilter) ([]*shipment.Shipment, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*shipment.Shipment), args.Get(1).(int64), args.Error(2)
}

func (m *MockShipmentService) Track(ctx context.Context, token string) (*shipmentapp.TrackingView, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shipmentapp.TrackingView), args.Error(1)
}

// MockOAuthService implements OAuthService for testing
type MockOAuthService struct {
	mock.Mock
}

func (m *MockOAuthService) AuthorizeURL(ctx context.Context, provider shipment.Provider, clientID uuid.UUID, shop string) (string, error) {
	args := m.Called(ctx, provider, clientID, shop)
	return args.String(0), args.Error(1)
}

func (m *MockOAuthService) HandleCallback(ctx context.Context, provider shipment.Provider, query url.Values) (*integration.ProviderLink, error) {
	args := m.Called(ctx, provider, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.ProviderLink), args.Error(1)
}

type registrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

func newTestEngine(handlers ...registrar) *gin.Engine {
	engine := gin.New()
	engine.Use(middleware.RequestID())
	api := engine.Group("/api/v1")
	for _, h := range handlers {
		h.RegisterRoutes(api)
	}
	return engine
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.True(t, envelope.Success, w.Body.String())
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}
