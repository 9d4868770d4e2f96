package ecommerce

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mgastron/mvgtms-sub000/internal/domain/integration"
	"github.com/mgastron/mvgtms-sub000/internal/domain/shipment"
	"github.com/mgastron/mvgtms-sub000/internal/infrastructure/config"
)

var mercadoLibreStatuses = statusTable{
	"pending":       shipment.StatusAwaitingPickup,
	"handling":      shipment.StatusAwaitingPickup,
	"ready_to_ship": shipment.StatusAwaitingPickup,
	"shipped":       shipment.StatusEnRouteToRecipient,
	"delivered":     shipment.StatusDelivered,
	"not_delivered": shipment.StatusRejectedByRecipient,
	"cancelled":     shipment.StatusCancelled,
}

// mercadoLibreStatus maps status and substatus. Substatus refines a few
// states: a picked up ready_to_ship is collected, and any return leg means
// the parcel goes back to the client.
func mercadoLibreStatus(status, substatus string) shipment.Status {
	switch strings.ToLower(strings.TrimSpace(substatus)) {
	case "returning_to_sender", "returned_to_sender", "returned":
		return shipment.StatusReturnedToClient
	case "picked_up":
		if strings.EqualFold(status, "ready_to_ship") {
			return shipment.StatusCollected
		}
	}
	return mercadoLibreStatuses.resolve(status)
}

var mlPostalCode = []func(*mlShipment) string{
	func(p *mlShipment) string {
		if p.ReceiverAddress == nil {
			return ""
		}
		return p.ReceiverAddress.ZipCode
	},
	func(p *mlShipment) string {
		if p.ReceiverAddress == nil {
			return ""
		}
		return p.ReceiverAddress.Zip
	},
	func(p *mlShipment) string {
		if p.Destination == nil || p.Destination.ShippingAddress == nil {
			return ""
		}
		return p.Destination.ShippingAddress.ZipCode
	},
}

var mlAddressLine = []func(*mlShipment) string{
	func(p *mlShipment) string {
		if p.ReceiverAddress == nil {
			return ""
		}
		return firstNonEmpty(p.ReceiverAddress.AddressLine,
			joinNonEmpty(" ", p.ReceiverAddress.StreetName, p.ReceiverAddress.StreetNumber))
	},
	func(p *mlShipment) string {
		if p.Destination == nil || p.Destination.ShippingAddress == nil {
			return ""
		}
		a := p.Destination.ShippingAddress
		return firstNonEmpty(a.AddressLine, joinNonEmpty(" ", a.StreetName, a.StreetNumber))
	},
}

var mlReceiverName = []func(*mlShipment) string{
	func(p *mlShipment) string {
		if p.ReceiverAddress == nil {
			return ""
		}
		return p.ReceiverAddress.ReceiverName
	},
	func(p *mlShipment) string {
		if p.Destination == nil {
			return ""
		}
		return p.Destination.ReceiverName
	},
}

var mlReceiverPhone = []func(*mlShipment) string{
	func(p *mlShipment) string {
		if p.ReceiverAddress == nil {
			return ""
		}
		return p.ReceiverAddress.ReceiverPhone
	},
	func(p *mlShipment) string {
		if p.Destination == nil {
			return ""
		}
		return p.Destination.ReceiverPhone
	},
}

var mlLocality = []func(*mlShipment) string{
	func(p *mlShipment) string {
		if p.ReceiverAddress == nil || p.ReceiverAddress.City == nil {
			return ""
		}
		return p.ReceiverAddress.City.Name
	},
	func(p *mlShipment) string {
		if p.ReceiverAddress == nil || p.ReceiverAddress.Neighborhood == nil {
			return ""
		}
		return p.ReceiverAddress.Neighborhood.Name
	},
	func(p *mlShipment) string {
		if p.Destination == nil || p.Destination.ShippingAddress == nil || p.Destination.ShippingAddress.City == nil {
			return ""
		}
		return p.Destination.ShippingAddress.City.Name
	},
}

// MercadoLibreAdapter is the live-tracked marketplace. Shipments enter by QR
// scan and their status is polled by shipment id.
type MercadoLibreAdapter struct {
	oauthApp
	api *apiClient
}

// NewMercadoLibreAdapter creates a new MercadoLibre adapter
func NewMercadoLibreAdapter(cfg config.ProviderConfig, logger *zap.Logger) *MercadoLibreAdapter {
	return &MercadoLibreAdapter{
		oauthApp: oauthApp{cfg: cfg},
		api:      newAPIClient(shipment.ProviderMercadoLibre, cfg, logger),
	}
}

// Provider returns the provider this adapter handles
func (a *MercadoLibreAdapter) Provider() shipment.Provider {
	return shipment.ProviderMercadoLibre
}

// Normalize turns a shipment payload into a live-tracked draft
func (a *MercadoLibreAdapter) Normalize(raw integration.RawOrder, client *integration.Client) (*shipment.Draft, error) {
	var p mlShipment
	if err := json.Unmarshal(raw.Payload, &p); err != nil {
		return nil, fmt.Errorf("%w: mercadolibre: %v", integration.ErrMalformedPayload, err)
	}
	shipmentID := firstNonEmpty(p.ID.String(), raw.ID)
	orderID := p.OrderID.String()
	reference := firstNonEmpty(orderID, shipmentID)
	if reference == "" {
		return nil, integration.ErrMissingExternalReference
	}

	shippingMethod := ""
	if p.ShippingOption != nil {
		shippingMethod = p.ShippingOption.Name
	}
	weight := decimal.Zero
	if p.Dimensions != nil {
		weight = parseDecimal(p.Dimensions.Weight.String()).Div(decimal.NewFromInt(1000))
	}

	return &shipment.Draft{
		Kind:              shipment.DraftKindLiveTracked,
		Provider:          shipment.ProviderMercadoLibre,
		ClientID:          client.ID,
		ClientRef:         client.Reference(),
		ExternalReference: reference,
		OrderNumber:       shipment.OrPending(orderID),
		Recipient: shipment.Recipient{
			Name:       shipment.OrPending(firstOf(&p, mlReceiverName...)),
			Address:    shipment.OrPending(firstOf(&p, mlAddressLine...)),
			Locality:   shipment.OrPending(firstOf(&p, mlLocality...)),
			PostalCode: shipment.OrPending(firstOf(&p, mlPostalCode...)),
			Phone:      shipment.OrPending(firstOf(&p, mlReceiverPhone...)),
			Email:      shipment.PendingPlaceholder,
		},
		DeclaredValue:     parseDecimal(p.DeclaredValue.String()),
		WeightKg:          weight,
		ShippingMethod:    shipment.OrPending(shippingMethod),
		ProvisionalStatus: mercadoLibreStatus(p.Status, p.Substatus),
		SaleAt:            parseTime(p.DateCreated),
		Live: &shipment.LiveDetails{
			ShipmentID: shipmentID,
			OrderID:    orderID,
			SellerID:   firstNonEmpty(p.SenderID.String()),
			RawStatus:  joinNonEmpty("/", p.Status, p.Substatus),
		},
	}, nil
}

func hasAddress(p *mlShipment) bool {
	return firstOf(p, mlPostalCode...) != "" || firstOf(p, mlAddressLine...) != ""
}

type mlHop struct {
	name string
	path func(shipmentID, orderID, sellerID string) string
}

// mlHops is the lookup chain for a shipment: the detail call, then the
// order's shipment, then the seller's view of it.
var mlHops = []mlHop{
	{name: "shipment", path: func(id, _, _ string) string {
		return "/shipments/" + url.PathEscape(id)
	}},
	{name: "order", path: func(_, orderID, _ string) string {
		if orderID == "" {
			return ""
		}
		return "/orders/" + url.PathEscape(orderID) + "/shipments"
	}},
	{name: "seller", path: func(id, _, sellerID string) string {
		if sellerID == "" {
			return ""
		}
		return "/users/" + url.PathEscape(sellerID) + "/shipments/" + url.PathEscape(id)
	}},
}

// FetchShipment walks the lookup chain until a payload carries an address.
// When none does, the thinnest successful payload is returned and normalizes
// with placeholders.
func (a *MercadoLibreAdapter) FetchShipment(ctx context.Context, link *integration.ProviderLink, token, shipmentID string) (integration.RawOrder, error) {
	log := a.api.logger.With(zap.String("shipment_id", shipmentID))
	sellerID := ""
	if link != nil {
		sellerID = link.ExternalAccountID
	}

	var (
		thin    []byte
		orderID string
		lastErr error
	)
	for i, hop := range mlHops {
		path := hop.path(shipmentID, orderID, sellerID)
		if path == "" {
			log.Debug("lookup hop skipped", zap.Int("hop", i+1), zap.String("via", hop.name))
			continue
		}
		body, err := a.get(ctx, token, path)
		if err != nil {
			if integration.IsUnauthorized(err) {
				return integration.RawOrder{}, err
			}
			log.Warn("lookup hop failed", zap.Int("hop", i+1), zap.String("via", hop.name), zap.Error(err))
			lastErr = err
			continue
		}

		var p mlShipment
		if err := json.Unmarshal(body, &p); err != nil {
			log.Warn("lookup hop returned malformed payload", zap.Int("hop", i+1), zap.String("via", hop.name), zap.Error(err))
			lastErr = fmt.Errorf("%w: mercadolibre: %v", integration.ErrMalformedPayload, err)
			continue
		}
		if orderID == "" {
			orderID = p.OrderID.String()
		}
		if hasAddress(&p) {
			log.Info("shipment resolved", zap.Int("hop", i+1), zap.String("via", hop.name))
			return integration.RawOrder{Provider: shipment.ProviderMercadoLibre, ID: shipmentID, Payload: body}, nil
		}
		log.Info("lookup hop returned no address", zap.Int("hop", i+1), zap.String("via", hop.name))
		if thin == nil {
			thin = body
		}
	}

	if thin != nil {
		log.Warn("no lookup returned an address, using placeholders")
		return integration.RawOrder{Provider: shipment.ProviderMercadoLibre, ID: shipmentID, Payload: thin}, nil
	}
	if lastErr == nil {
		lastErr = &integration.ExternalAPIError{Provider: shipment.ProviderMercadoLibre, StatusCode: http.StatusNotFound}
	}
	return integration.RawOrder{}, lastErr
}

// FetchStatus returns the canonical status of a shipment
func (a *MercadoLibreAdapter) FetchStatus(ctx context.Context, _ *integration.ProviderLink, token, shipmentID string) (shipment.Status, error) {
	body, err := a.get(ctx, token, "/shipments/"+url.PathEscape(shipmentID))
	if err != nil {
		return "", err
	}
	var p mlShipment
	if err := json.Unmarshal(body, &p); err != nil {
		return "", fmt.Errorf("%w: mercadolibre: %v", integration.ErrMalformedPayload, err)
	}
	return mercadoLibreStatus(p.Status, p.Substatus), nil
}

func (a *MercadoLibreAdapter) get(ctx context.Context, token, path string) ([]byte, error) {
	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+token)
	headers.Set("X-Format-New", "true")
	return a.api.getRaw(ctx, strings.TrimRight(a.cfg.APIBaseURL, "/")+path, headers)
}

// AuthorizeURL builds the consent URL. Scopes are set on the application,
// not per request.
func (a *MercadoLibreAdapter) AuthorizeURL(req integration.AuthorizeRequest) (string, error) {
	return a.authorizeURL(a.cfg.AuthURL, req.State, "", nil)
}

// ExchangeCode trades an authorization code for tokens
func (a *MercadoLibreAdapter) ExchangeCode(ctx context.Context, code, _ string) (*integration.TokenSet, error) {
	if err := a.configured(); err != nil {
		return nil, err
	}
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", a.cfg.ClientID)
	form.Set("client_secret", a.cfg.ClientSecret)
	form.Set("code", code)
	form.Set("redirect_uri", a.cfg.RedirectURI)

	var resp tokenResponse
	if err := a.api.postForm(ctx, a.cfg.TokenURL, form, &resp); err != nil {
		return nil, err
	}
	return resp.tokenSet()
}

// Refresh exchanges the link's refresh token
func (a *MercadoLibreAdapter) Refresh(ctx context.Context, link *integration.ProviderLink) (*integration.TokenSet, error) {
	if err := a.configured(); err != nil {
		return nil, err
	}
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", a.cfg.ClientID)
	form.Set("client_secret", a.cfg.ClientSecret)
	form.Set("refresh_token", link.Credential.RefreshToken)

	var resp tokenResponse
	if err := a.api.postForm(ctx, a.cfg.TokenURL, form, &resp); err != nil {
		return nil, err
	}
	return resp.tokenSet()
}

var (
	_ integration.LiveTracker   = (*MercadoLibreAdapter)(nil)
	_ integration.OAuthProvider = (*MercadoLibreAdapter)(nil)
)
