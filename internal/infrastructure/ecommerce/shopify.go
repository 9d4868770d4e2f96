package ecommerce

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mgastron/mvgtms-sub000/internal/domain/integration"
	"github.com/mgastron/mvgtms-sub000/internal/domain/shipment"
	"github.com/mgastron/mvgtms-sub000/internal/infrastructure/config"
)

const (
	shopifyDomainSuffix = ".myshopify.com"
	shopifyPageSize     = 250
	shopifyMaxPages     = 40
)

// NormalizeShopDomain reduces a shop given as a name, host or URL to its
// myshopify.com host.
func NormalizeShopDomain(value string) (string, error) {
	trimmed := strings.TrimSpace(strings.ToLower(value))
	if trimmed == "" {
		return "", fmt.Errorf("%w: shop domain is required", integration.ErrMalformedPayload)
	}
	if strings.Contains(trimmed, "://") {
		parsed, err := url.Parse(trimmed)
		if err != nil {
			return "", fmt.Errorf("%w: shop domain: %v", integration.ErrMalformedPayload, err)
		}
		trimmed = strings.TrimSpace(strings.ToLower(parsed.Hostname()))
	}
	trimmed = strings.TrimSuffix(trimmed, "/")
	if trimmed == "" || strings.Contains(trimmed, "/") {
		return "", fmt.Errorf("%w: invalid shop domain", integration.ErrMalformedPayload)
	}
	if !strings.Contains(trimmed, ".") {
		trimmed += shopifyDomainSuffix
	}
	if !strings.HasSuffix(trimmed, shopifyDomainSuffix) {
		return "", fmt.Errorf("%w: shop domain must end with %q", integration.ErrMalformedPayload, shopifyDomainSuffix)
	}
	return trimmed, nil
}

// shAddressField reads one field from the shipping address, then the
// billing address, then the customer's default address.
func shAddressField(pick func(*shAddress) string) []func(*shOrder) string {
	from := func(addr func(*shOrder) *shAddress) func(*shOrder) string {
		return func(o *shOrder) string {
			if a := addr(o); a != nil {
				return pick(a)
			}
			return ""
		}
	}
	return []func(*shOrder) string{
		from(func(o *shOrder) *shAddress { return o.ShippingAddress }),
		from(func(o *shOrder) *shAddress { return o.BillingAddress }),
		from(func(o *shOrder) *shAddress {
			if o.Customer == nil {
				return nil
			}
			return o.Customer.DefaultAddress
		}),
	}
}

var (
	shPostalCode  = shAddressField(func(a *shAddress) string { return a.Zip })
	shAddressLine = shAddressField(func(a *shAddress) string { return joinNonEmpty(" ", a.Address1, a.Address2) })
	shLocality    = shAddressField(func(a *shAddress) string { return firstNonEmpty(a.City, a.Province) })
)

var shName = []func(*shOrder) string{
	func(o *shOrder) string {
		if o.ShippingAddress == nil {
			return ""
		}
		return firstNonEmpty(o.ShippingAddress.Name,
			joinNonEmpty(" ", o.ShippingAddress.FirstName, o.ShippingAddress.LastName))
	},
	func(o *shOrder) string {
		if o.Customer == nil {
			return ""
		}
		return joinNonEmpty(" ", o.Customer.FirstName, o.Customer.LastName)
	},
}

var shPhone = []func(*shOrder) string{
	func(o *shOrder) string {
		if o.ShippingAddress == nil {
			return ""
		}
		return o.ShippingAddress.Phone
	},
	func(o *shOrder) string { return o.Phone },
	func(o *shOrder) string {
		if o.Customer == nil {
			return ""
		}
		return o.Customer.Phone
	},
}

var shEmail = []func(*shOrder) string{
	func(o *shOrder) string { return o.Email },
	func(o *shOrder) string {
		if o.Customer == nil {
			return ""
		}
		return o.Customer.Email
	},
}

// ShopifyAdapter ingests orders from Shopify shops. Offline access tokens
// do not expire.
type ShopifyAdapter struct {
	oauthApp
	api *apiClient
}

// NewShopifyAdapter creates a new Shopify adapter
func NewShopifyAdapter(cfg config.ProviderConfig, logger *zap.Logger) *ShopifyAdapter {
	return &ShopifyAdapter{
		oauthApp: oauthApp{cfg: cfg},
		api:      newAPIClient(shipment.ProviderShopify, cfg, logger),
	}
}

// Provider returns the provider this adapter handles
func (a *ShopifyAdapter) Provider() shipment.Provider {
	return shipment.ProviderShopify
}

func shopifyStatus(o *shOrder) shipment.Status {
	if o.CancelledAt != nil && strings.TrimSpace(*o.CancelledAt) != "" {
		return shipment.StatusCancelled
	}
	if o.FulfillmentStatus != nil && strings.EqualFold(*o.FulfillmentStatus, "restocked") {
		return shipment.StatusCancelled
	}
	for _, r := range o.Refunds {
		if r.Restock {
			return shipment.StatusCancelled
		}
	}
	return shipment.StatusAwaitingPickup
}

// Normalize turns an order payload into a snapshot draft
func (a *ShopifyAdapter) Normalize(raw integration.RawOrder, client *integration.Client) (*shipment.Draft, error) {
	var o shOrder
	if err := json.Unmarshal(raw.Payload, &o); err != nil {
		return nil, fmt.Errorf("%w: shopify: %v", integration.ErrMalformedPayload, err)
	}
	reference := firstNonEmpty(o.ID.String(), raw.ID)
	if reference == "" {
		return nil, integration.ErrMissingExternalReference
	}

	fulfillment := ""
	if o.FulfillmentStatus != nil {
		fulfillment = *o.FulfillmentStatus
	}
	storeID := ""
	if link := client.Link(shipment.ProviderShopify); link != nil {
		storeID = link.ShopDomain
	}

	return &shipment.Draft{
		Kind:              shipment.DraftKindSnapshot,
		Provider:          shipment.ProviderShopify,
		ClientID:          client.ID,
		ClientRef:         client.Reference(),
		ExternalReference: reference,
		OrderNumber:       shipment.OrPending(firstNonEmpty(o.OrderNumber.String(), strings.TrimPrefix(o.Name, "#"))),
		Recipient: shipment.Recipient{
			Name:       shipment.OrPending(firstOf(&o, shName...)),
			Address:    shipment.OrPending(firstOf(&o, shAddressLine...)),
			Locality:   shipment.OrPending(firstOf(&o, shLocality...)),
			PostalCode: shipment.OrPending(firstOf(&o, shPostalCode...)),
			Phone:      shipment.OrPending(firstOf(&o, shPhone...)),
			Email:      shipment.OrPending(firstOf(&o, shEmail...)),
		},
		DeclaredValue:     parseDecimal(o.TotalPrice.String()),
		WeightKg:          parseDecimal(o.TotalWeight.String()).Shift(-3),
		ShippingMethod:    shipment.OrPending(shShippingMethod(&o)),
		ProvisionalStatus: shopifyStatus(&o),
		SaleAt:            parseTime(o.CreatedAt),
		Snapshot: &shipment.SnapshotDetails{
			StoreID:   storeID,
			RawStatus: joinNonEmpty("/", o.FinancialStatus, fulfillment),
		},
	}, nil
}

func shShippingMethod(o *shOrder) string {
	for _, line := range o.ShippingLines {
		if v := firstNonEmpty(line.Title, line.Code); v != "" {
			return v
		}
	}
	return ""
}

// ShippingMethod extracts the first shipping line title of an order
func (a *ShopifyAdapter) ShippingMethod(raw integration.RawOrder) string {
	var o shOrder
	if err := json.Unmarshal(raw.Payload, &o); err != nil {
		return ""
	}
	return shShippingMethod(&o)
}

func (a *ShopifyAdapter) shopURL(template, shop string) (string, error) {
	domain, err := NormalizeShopDomain(shop)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(template, "{shop}", domain), nil
}

// FetchOrders follows cursor pagination through the Link header.
func (a *ShopifyAdapter) FetchOrders(ctx context.Context, link *integration.ProviderLink, token string, since time.Time) ([]integration.RawOrder, error) {
	base, err := a.shopURL(a.cfg.APIBaseURL, link.ShopDomain)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("status", "any")
	q.Set("created_at_min", since.UTC().Format(time.RFC3339))
	q.Set("limit", itoa(shopifyPageSize))
	next := strings.TrimRight(base, "/") + "/" + a.cfg.APIVersion + "/orders.json?" + q.Encode()

	headers := http.Header{}
	headers.Set("X-Shopify-Access-Token", token)

	var out []integration.RawOrder
	for page := 0; next != "" && page < shopifyMaxPages; page++ {
		var list shOrderList
		respHeaders, err := a.api.getJSON(ctx, next, headers, &list)
		if err != nil {
			return out, err
		}
		for _, item := range list.Orders {
			var head struct {
				ID flexString `json:"id"`
			}
			_ = json.Unmarshal(item, &head)
			out = append(out, integration.RawOrder{
				Provider: shipment.ProviderShopify,
				ID:       head.ID.String(),
				Payload:  item,
			})
		}
		next = nextLink(respHeaders.Get("Link"))
	}
	return out, nil
}

// nextLink returns the rel="next" target of an RFC 8288 Link header.
func nextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		segments := strings.Split(part, ";")
		if len(segments) < 2 {
			continue
		}
		target := strings.TrimSpace(segments[0])
		if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
			continue
		}
		for _, param := range segments[1:] {
			key, value, ok := strings.Cut(strings.TrimSpace(param), "=")
			if ok && strings.EqualFold(key, "rel") && strings.Trim(value, `"`) == "next" {
				return strings.Trim(target, "<>")
			}
		}
	}
	return ""
}

// AuthorizeURL builds the per-shop consent URL.
func (a *ShopifyAdapter) AuthorizeURL(req integration.AuthorizeRequest) (string, error) {
	base, err := a.shopURL(a.cfg.AuthURL, req.Shop)
	if err != nil {
		return "", err
	}
	return a.authorizeURL(base, req.State, ",", nil)
}

// ExchangeCode trades an authorization code at the shop's token endpoint.
// The shop domain becomes the link's account id.
func (a *ShopifyAdapter) ExchangeCode(ctx context.Context, code, shop string) (*integration.TokenSet, error) {
	if err := a.configured(); err != nil {
		return nil, err
	}
	domain, err := NormalizeShopDomain(shop)
	if err != nil {
		return nil, err
	}
	tokenURL := strings.ReplaceAll(a.cfg.TokenURL, "{shop}", domain)

	var resp tokenResponse
	err = a.api.postJSON(ctx, tokenURL, shTokenRequest{
		ClientID:     a.cfg.ClientID,
		ClientSecret: a.cfg.ClientSecret,
		Code:         code,
	}, &resp)
	if err != nil {
		return nil, err
	}
	set, err := resp.tokenSet()
	if err != nil {
		return nil, err
	}
	set.ExternalAccountID = domain
	return set, nil
}

// Refresh is not offered for offline tokens.
func (a *ShopifyAdapter) Refresh(_ context.Context, _ *integration.ProviderLink) (*integration.TokenSet, error) {
	return nil, fmt.Errorf("shopify: %w", errNoRefreshGrant)
}

// VerifyCallback checks the hmac parameter Shopify signs every callback
// query with, using the app secret.
func (a *ShopifyAdapter) VerifyCallback(query url.Values) error {
	if err := a.configured(); err != nil {
		return err
	}
	signature := query.Get("hmac")
	if signature == "" {
		return integration.ErrInvalidSignature
	}
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return integration.ErrInvalidSignature
	}
	if !hmac.Equal(SignShopifyQuery(query, a.cfg.ClientSecret), expected) {
		return integration.ErrInvalidSignature
	}
	return nil
}

// SignShopifyQuery computes the HMAC-SHA256 of the query without its hmac
// and signature parameters, keys sorted.
func SignShopifyQuery(query url.Values, secret string) []byte {
	rest := url.Values{}
	for k, v := range query {
		if k == "hmac" || k == "signature" {
			continue
		}
		rest[k] = v
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(rest.Encode()))
	return mac.Sum(nil)
}

var (
	_ integration.OrderSource      = (*ShopifyAdapter)(nil)
	_ integration.OAuthProvider    = (*ShopifyAdapter)(nil)
	_ integration.CallbackVerifier = (*ShopifyAdapter)(nil)
)
