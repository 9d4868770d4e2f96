package handler

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	shipmentapp "github.com/mgastron/mvgtms-sub000/internal/application/shipment"
	"github.com/mgastron/mvgtms-sub000/internal/domain/integration"
	"github.com/mgastron/mvgtms-sub000/internal/domain/shared"
	"github.com/mgastron/mvgtms-sub000/internal/domain/shipment"
	"github.com/mgastron/mvgtms-sub000/internal/interfaces/http/dto"
)

func sampleShipment() *shipment.Shipment {
	s := &shipment.Shipment{
		Source:            shipment.ProviderTiendanube,
		ExternalReference: "1001",
		ClientID:          uuid.MustParse("2b7d6a6e-4bd3-4c7e-9f0e-6a0c5d1e2f30"),
		ClientRef:         "C1 - Acme",
		Recipient: shipment.Recipient{
			Name:       "Jane Doe",
			Address:    "Av. Corrientes 1234",
			Locality:   "CABA",
			PostalCode: "1005",
		},
		DeclaredValue: decimal.NewFromInt(15000),
		Status:        shipment.StatusAwaitingPickup,
		TrackingToken: "0123456789abcdef0123456789abcdef",
		SearchCode:    "AB12CD",
		SaleAt:        time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC),
	}
	s.ID = uuid.MustParse("9a0b4c3e-8f1d-4e2a-b6c7-d8e9f0a1b2c3")
	return s
}

func TestShipmentHandler_Create(t *testing.T) {
	clientID := uuid.MustParse("2b7d6a6e-4bd3-4c7e-9f0e-6a0c5d1e2f30")
	body := map[string]any{
		"client_id":          clientID.String(),
		"external_reference": "DESK-7",
		"recipient": map[string]any{
			"name":    "Jane Doe",
			"address": "Av. Corrientes 1234",
		},
		"declared_value": "15000",
	}

	t.Run("created with actor from header", func(t *testing.T) {
		svc := new(MockShipmentService)
		svc.On("CreateManual", mock.Anything, mock.MatchedBy(func(req shipmentapp.CreateManualShipmentRequest) bool {
			return req.ClientID == clientID && req.Actor == "maria" && req.Recipient.Name == "Jane Doe" &&
				req.DeclaredValue.Equal(decimal.NewFromInt(15000))
		})).Return(sampleShipment(), nil)
		engine := newTestEngine(NewShipmentHandler(svc))

		w := doJSON(t, engine, http.MethodPost, "/api/v1/shipments", body, ActorHeader, "maria")

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var got shipmentapp.ShipmentResponse
		decodeData(t, w, &got)
		assert.Equal(t, "AB12CD", got.SearchCode)
		assert.Equal(t, "AWAITING_PICKUP", got.Status)
		svc.AssertExpectations(t)
	})

	t.Run("missing recipient address is rejected before the service", func(t *testing.T) {
		svc := new(MockShipmentService)
		engine := newTestEngine(NewShipmentHandler(svc))

		w := doJSON(t, engine, http.MethodPost, "/api/v1/shipments", map[string]any{
			"client_id":          clientID.String(),
			"external_reference": "DESK-7",
			"recipient":          map[string]any{"name": "Jane Doe"},
		})

		require.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeResponse(t, w)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		require.NotEmpty(t, resp.Error.Details)
		assert.Equal(t, "address", resp.Error.Details[0].Field)
		svc.AssertNotCalled(t, "CreateManual", mock.Anything, mock.Anything)
	})

	t.Run("unknown client maps to 404", func(t *testing.T) {
		svc := new(MockShipmentService)
		svc.On("CreateManual", mock.Anything, mock.Anything).Return(nil, integration.ErrClientNotFound)
		engine := newTestEngine(NewShipmentHandler(svc))

		w := doJSON(t, engine, http.MethodPost, "/api/v1/shipments", body)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, dto.ErrCodeNotFound, decodeResponse(t, w).Error.Code)
	})
}

func TestShipmentHandler_Transition(t *testing.T) {
	id := sampleShipment().ID
	path := "/api/v1/shipments/" + id.String() + "/transitions"

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"ok", nil, http.StatusOK, ""},
		{"live tracked shipment", shipment.ErrManualTransitionForbidden, http.StatusForbidden, dto.ErrCodeForbidden},
		{"invalid transition", shipment.ErrInvalidTransition, http.StatusUnprocessableEntity, dto.ErrCodeInvalidState},
		{"unknown status", shipment.ErrInvalidStatus, http.StatusBadRequest, dto.ErrCodeValidation},
		{"stale write", shipment.ErrStaleShipment, http.StatusConflict, dto.ErrCodeConcurrencyConflict},
		{"lease held", shared.ErrLeaseHeld, http.StatusConflict, dto.ErrCodeBusy},
		{"unexpected", errors.New("disk on fire"), http.StatusInternalServerError, dto.ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockShipmentService)
			if tt.err != nil {
				svc.On("Transition", mock.Anything, id, mock.Anything).Return(nil, tt.err)
			} else {
				delivered := sampleShipment()
				delivered.Status = shipment.StatusDelivered
				svc.On("Transition", mock.Anything, id, mock.MatchedBy(func(req shipmentapp.TransitionShipmentRequest) bool {
					return req.Status == "DELIVERED" && req.ReceiverName == "John"
				})).Return(delivered, nil)
			}
			engine := newTestEngine(NewShipmentHandler(svc))

			w := doJSON(t, engine, http.MethodPost, path, map[string]any{
				"status":        "DELIVERED",
				"receiver_name": "John",
			})

			require.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.code != "" {
				resp := decodeResponse(t, w)
				assert.Equal(t, tt.code, resp.Error.Code)
				assert.NotEmpty(t, resp.Error.RequestID)
			}
		})
	}

	t.Run("unexpected error message is not leaked", func(t *testing.T) {
		svc := new(MockShipmentService)
		svc.On("Transition", mock.Anything, id, mock.Anything).Return(nil, errors.New("pq: password authentication failed"))
		engine := newTestEngine(NewShipmentHandler(svc))

		w := doJSON(t, engine, http.MethodPost, path, map[string]any{"status": "DELIVERED"})
		assert.NotContains(t, w.Body.String(), "password")
	})

	t.Run("bad id", func(t *testing.T) {
		engine := newTestEngine(NewShipmentHandler(new(MockShipmentService)))
		w := doJSON(t, engine, http.MethodPost, "/api/v1/shipments/not-a-uuid/transitions", map[string]any{"status": "DELIVERED"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestShipmentHandler_AssignDriver(t *testing.T) {
	s := sampleShipment()
	s.AssignedDriver = "driver-7"
	s.Status = shipment.StatusEnRouteToRecipient
	svc := new(MockShipmentService)
	svc.On("AssignDriver", mock.Anything, s.ID, shipmentapp.AssignDriverRequest{Driver: "driver-7", Actor: "desk"}).Return(s, nil)
	engine := newTestEngine(NewShipmentHandler(svc))

	w := doJSON(t, engine, http.MethodPost, "/api/v1/shipments/"+s.ID.String()+"/driver", map[string]any{"driver": "driver-7"}, ActorHeader, "desk")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got shipmentapp.ShipmentResponse
	decodeData(t, w, &got)
	assert.Equal(t, "driver-7", got.AssignedDriver)
	assert.Equal(t, "EN_ROUTE_TO_RECIPIENT", got.Status)
}

func TestShipmentHandler_Scan(t *testing.T) {
	clientID := uuid.New()
	req := map[string]any{"client_id": clientID.String(), "shipment_id": "41234567890"}

	t.Run("first scan creates", func(t *testing.T) {
		s := sampleShipment()
		s.Status = shipment.StatusCollected
		svc := new(MockShipmentService)
		svc.On("IngestScanned", mock.Anything, shipmentapp.ScanShipmentRequest{ClientID: clientID, ShipmentID: "41234567890"}).
			Return(&shipmentapp.IngestResult{Shipment: s, Created: true}, nil)
		engine := newTestEngine(NewShipmentHandler(svc))

		w := doJSON(t, engine, http.MethodPost, "/api/v1/shipments/scan", req)

		require.Equal(t, http.StatusCreated, w.Code)
		var got shipmentapp.IngestResponse
		decodeData(t, w, &got)
		assert.True(t, got.Created)
		assert.Equal(t, "COLLECTED", got.Shipment.Status)
	})

	t.Run("rescan returns existing", func(t *testing.T) {
		svc := new(MockShipmentService)
		svc.On("IngestScanned", mock.Anything, mock.Anything).Return(&shipmentapp.IngestResult{Shipment: sampleShipment()}, nil)
		engine := newTestEngine(NewShipmentHandler(svc))

		w := doJSON(t, engine, http.MethodPost, "/api/v1/shipments/scan", req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("cancelled upstream", func(t *testing.T) {
		svc := new(MockShipmentService)
		svc.On("IngestScanned", mock.Anything, mock.Anything).Return(&shipmentapp.IngestResult{Skipped: true}, nil)
		engine := newTestEngine(NewShipmentHandler(svc))

		w := doJSON(t, engine, http.MethodPost, "/api/v1/shipments/scan", req)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("provider failure is a bad gateway without body", func(t *testing.T) {
		svc := new(MockShipmentService)
		svc.On("IngestScanned", mock.Anything, mock.Anything).Return(nil, &integration.ExternalAPIError{
			Provider:   shipment.ProviderMercadoLibre,
			StatusCode: http.StatusInternalServerError,
			Body:       `{"access_token":"leaked"}`,
		})
		engine := newTestEngine(NewShipmentHandler(svc))

		w := doJSON(t, engine, http.MethodPost, "/api/v1/shipments/scan", req)
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.NotContains(t, w.Body.String(), "leaked")
	})

	t.Run("expired credential is 401", func(t *testing.T) {
		svc := new(MockShipmentService)
		svc.On("IngestScanned", mock.Anything, mock.Anything).Return(nil, integration.ErrNoCredential)
		engine := newTestEngine(NewShipmentHandler(svc))

		w := doJSON(t, engine, http.MethodPost, "/api/v1/shipments/scan", req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, dto.ErrCodeCredential, decodeResponse(t, w).Error.Code)
	})
}

func TestShipmentHandler_ReadAndDelete(t *testing.T) {
	s := sampleShipment()
	at := time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC)
	svc := new(MockShipmentService)
	svc.On("Get", mock.Anything, s.ID).Return(s, nil)
	svc.On("GetHistory", mock.Anything, s.ID).Return([]shipment.HistoryEntry{
		{Status: shipment.StatusAwaitingPickup, Timestamp: at, Actor: "system sync", Origin: shipment.OriginIngestion},
	}, nil)
	svc.On("SoftDelete", mock.Anything, s.ID).Return(nil)
	engine := newTestEngine(NewShipmentHandler(svc))
	base := "/api/v1/shipments/" + s.ID.String()

	w := doJSON(t, engine, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got shipmentapp.ShipmentResponse
	decodeData(t, w, &got)
	assert.Equal(t, "Jane Doe", got.Recipient.Name)
	assert.Equal(t, "C1 - Acme", got.ClientRef)

	w = doJSON(t, engine, http.MethodGet, base+"/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history []shipmentapp.HistoryEntryResponse
	decodeData(t, w, &history)
	require.Len(t, history, 1)
	assert.Equal(t, "ingestion", history[0].Origin)

	w = doJSON(t, engine, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	svc.AssertExpectations(t)
}

func TestShipmentHandler_List(t *testing.T) {
	clientID := uuid.MustParse("2b7d6a6e-4bd3-4c7e-9f0e-6a0c5d1e2f30")
	svc := new(MockShipmentService)
	svc.On("List", mock.Anything, mock.MatchedBy(func(f shipmentapp.ListShipmentsFilter) bool {
		return f.ClientID != nil && *f.ClientID == clientID && f.Status == "delivered" && f.Page == 2
	})).Return([]*shipment.Shipment{sampleShipment()}, int64(21), nil)
	engine := newTestEngine(NewShipmentHandler(svc))

	w := doJSON(t, engine, http.MethodGet, "/api/v1/shipments?client_id="+clientID.String()+"&status=delivered&page=2", nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(21), resp.Meta.Total)
	assert.Equal(t, 2, resp.Meta.Page)
	assert.Equal(t, shared.DefaultPageSize, resp.Meta.PageSize)

	w = doJSON(t, engine, http.MethodGet, "/api/v1/shipments?client_id=nope", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, engine, http.MethodGet, "/api/v1/shipments?status=lost", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	resp = decodeResponse(t, w)
	require.NotEmpty(t, resp.Error.Details)
	assert.Equal(t, "status", resp.Error.Details[0].Field)
	assert.Equal(t, "Unknown shipment status", resp.Error.Details[0].Message)
	svc.AssertNumberOfCalls(t, "List", 1)
}
