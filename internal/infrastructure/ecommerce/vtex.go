package ecommerce

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mgastron/mvgtms-sub000/internal/domain/integration"
	"github.com/mgastron/mvgtms-sub000/internal/domain/shipment"
	"github.com/mgastron/mvgtms-sub000/internal/infrastructure/config"
)

const (
	vtexPageSize = 100
	vtexMaxPages = 30
)

var vtexStatuses = statusTable{
	"canceled":  shipment.StatusCancelled,
	"cancelled": shipment.StatusCancelled,
}

// vtexAddresses lists the order's addresses in priority order: the
// shipping address, the selected delivery addresses, then the invoice one.
func vtexAddresses(o *vtexOrder) []*vtexAddress {
	var out []*vtexAddress
	if sd := o.ShippingData; sd != nil {
		if sd.Address != nil {
			out = append(out, sd.Address)
		}
		for i := range sd.SelectedAddresses {
			out = append(out, &sd.SelectedAddresses[i])
		}
	}
	if o.InvoiceData != nil && o.InvoiceData.Address != nil {
		out = append(out, o.InvoiceData.Address)
	}
	return out
}

// vtexAddressField reads pick from the first address that has it.
func vtexAddressField(pick func(*vtexAddress) string) func(*vtexOrder) string {
	return func(o *vtexOrder) string {
		for _, a := range vtexAddresses(o) {
			if v := strings.TrimSpace(pick(a)); v != "" {
				return v
			}
		}
		return ""
	}
}

var vtexPostalCode = []func(*vtexOrder) string{
	vtexAddressField(func(a *vtexAddress) string { return a.PostalCode }),
}

var vtexAddressLine = []func(*vtexOrder) string{
	vtexAddressField(func(a *vtexAddress) string { return joinNonEmpty(" ", a.Street, a.Number, a.Complement) }),
}

var vtexLocality = []func(*vtexOrder) string{
	vtexAddressField(func(a *vtexAddress) string { return firstNonEmpty(a.Neighborhood, a.City) }),
}

var vtexName = []func(*vtexOrder) string{
	vtexAddressField(func(a *vtexAddress) string { return a.ReceiverName }),
	func(o *vtexOrder) string {
		if p := o.ClientProfileData; p != nil {
			return joinNonEmpty(" ", p.FirstName, p.LastName)
		}
		return ""
	},
}

var vtexPhone = []func(*vtexOrder) string{
	func(o *vtexOrder) string {
		if p := o.ClientProfileData; p != nil {
			return p.Phone
		}
		return ""
	},
}

var vtexEmail = []func(*vtexOrder) string{
	func(o *vtexOrder) string {
		if p := o.ClientProfileData; p != nil {
			return p.Email
		}
		return ""
	},
}

// VTEXAdapter ingests orders from VTEX accounts. VTEX has no OAuth: a link
// stores the account in ShopDomain, the app key in ExternalAccountID and the
// app token as its access token.
type VTEXAdapter struct {
	cfg config.ProviderConfig
	api *apiClient
}

// NewVTEXAdapter creates a new VTEX adapter
func NewVTEXAdapter(cfg config.ProviderConfig, logger *zap.Logger) *VTEXAdapter {
	return &VTEXAdapter{
		cfg: cfg,
		api: newAPIClient(shipment.ProviderVTEX, cfg, logger),
	}
}

// Provider returns the provider this adapter handles
func (a *VTEXAdapter) Provider() shipment.Provider {
	return shipment.ProviderVTEX
}

// Normalize turns an order detail into a snapshot draft
func (a *VTEXAdapter) Normalize(raw integration.RawOrder, client *integration.Client) (*shipment.Draft, error) {
	var o vtexOrder
	if err := json.Unmarshal(raw.Payload, &o); err != nil {
		return nil, fmt.Errorf("%w: vtex: %v", integration.ErrMalformedPayload, err)
	}
	reference := firstNonEmpty(o.OrderID, raw.ID)
	if reference == "" {
		return nil, integration.ErrMissingExternalReference
	}

	account := ""
	if link := client.Link(shipment.ProviderVTEX); link != nil {
		account = link.ShopDomain
	}

	return &shipment.Draft{
		Kind:              shipment.DraftKindSnapshot,
		Provider:          shipment.ProviderVTEX,
		ClientID:          client.ID,
		ClientRef:         client.Reference(),
		ExternalReference: reference,
		OrderNumber:       shipment.OrPending(firstNonEmpty(o.Sequence.String(), o.OrderID)),
		Recipient: shipment.Recipient{
			Name:       shipment.OrPending(firstOf(&o, vtexName...)),
			Address:    shipment.OrPending(firstOf(&o, vtexAddressLine...)),
			Locality:   shipment.OrPending(firstOf(&o, vtexLocality...)),
			PostalCode: shipment.OrPending(firstOf(&o, vtexPostalCode...)),
			Phone:      shipment.OrPending(firstOf(&o, vtexPhone...)),
			Email:      shipment.OrPending(firstOf(&o, vtexEmail...)),
		},
		DeclaredValue:     decimal.New(o.Value, -2),
		WeightKg:          vtexWeight(&o),
		ShippingMethod:    shipment.OrPending(vtexShippingMethod(&o)),
		ProvisionalStatus: vtexStatuses.resolve(o.Status),
		SaleAt:            parseTime(o.CreationDate),
		Snapshot: &shipment.SnapshotDetails{
			StoreID:   account,
			RawStatus: o.Status,
		},
	}, nil
}

func vtexWeight(o *vtexOrder) decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		if item.AdditionalInfo == nil || item.AdditionalInfo.Dimension == nil {
			continue
		}
		qty := item.Quantity
		if qty < 1 {
			qty = 1
		}
		total = total.Add(decimal.NewFromFloat(item.AdditionalInfo.Dimension.Weight).Mul(decimal.NewFromInt(int64(qty))))
	}
	return total.Shift(-3)
}

func vtexShippingMethod(o *vtexOrder) string {
	if o.ShippingData == nil {
		return ""
	}
	for _, info := range o.ShippingData.LogisticsInfo {
		if v := firstNonEmpty(info.SelectedSla, info.DeliveryCompany); v != "" {
			return v
		}
	}
	return ""
}

// ShippingMethod extracts the selected SLA of an order
func (a *VTEXAdapter) ShippingMethod(raw integration.RawOrder) string {
	var o vtexOrder
	if err := json.Unmarshal(raw.Payload, &o); err != nil {
		return ""
	}
	return vtexShippingMethod(&o)
}

func (a *VTEXAdapter) baseURL(link *integration.ProviderLink) (string, error) {
	account := strings.TrimSpace(strings.ToLower(link.ShopDomain))
	if account == "" || strings.ContainsAny(account, "/:") {
		return "", fmt.Errorf("%w: vtex link has no valid account name", integration.ErrNoCredential)
	}
	return strings.TrimRight(strings.ReplaceAll(a.cfg.APIBaseURL, "{account}", account), "/"), nil
}

func vtexHeaders(link *integration.ProviderLink, token string) http.Header {
	h := http.Header{}
	h.Set("X-VTEX-API-AppKey", link.ExternalAccountID)
	h.Set("X-VTEX-API-AppToken", token)
	return h
}

// FetchOrders lists orders created since the given time and loads each
// detail, since the list view carries no address.
func (a *VTEXAdapter) FetchOrders(ctx context.Context, link *integration.ProviderLink, token string, since time.Time) ([]integration.RawOrder, error) {
	base, err := a.baseURL(link)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(link.ExternalAccountID) == "" {
		return nil, fmt.Errorf("%w: vtex link has no app key", integration.ErrNoCredential)
	}
	headers := vtexHeaders(link, token)
	window := fmt.Sprintf("creationDate:[%s TO %s]",
		since.UTC().Format(time.RFC3339), time.Now().UTC().Format(time.RFC3339))

	var ids []string
	for page := 1; page <= vtexMaxPages; page++ {
		q := url.Values{}
		q.Set("f_creationDate", window)
		q.Set("page", itoa(int64(page)))
		q.Set("per_page", itoa(vtexPageSize))

		var list vtexOrderList
		if _, err := a.api.getJSON(ctx, base+"/api/oms/pvt/orders?"+q.Encode(), headers, &list); err != nil {
			return nil, err
		}
		for _, item := range list.List {
			if item.OrderID != "" {
				ids = append(ids, item.OrderID)
			}
		}
		if page >= list.Paging.Pages || len(list.List) == 0 {
			break
		}
	}

	out := make([]integration.RawOrder, 0, len(ids))
	for _, id := range ids {
		body, err := a.api.getRaw(ctx, base+"/api/oms/pvt/orders/"+url.PathEscape(id), headers)
		if err != nil {
			if integration.IsUnauthorized(err) {
				return out, err
			}
			a.api.logger.Warn("order detail failed, skipping", zap.String("order_id", id), zap.Error(err))
			continue
		}
		out = append(out, integration.RawOrder{Provider: shipment.ProviderVTEX, ID: id, Payload: body})
	}
	return out, nil
}

var _ integration.OrderSource = (*VTEXAdapter)(nil)
