package ecommerce

import "encoding/json"

// shOrder is the subset of a Shopify Admin order the adapter reads.
type shOrder struct {
	ID                flexString   `json:"id"`
	Name              string       `json:"name"`
	OrderNumber       flexString   `json:"order_number"`
	CreatedAt         string       `json:"created_at"`
	CancelledAt       *string      `json:"cancelled_at"`
	FinancialStatus   string       `json:"financial_status"`
	FulfillmentStatus *string      `json:"fulfillment_status"`
	TotalPrice        flexString   `json:"total_price"`
	TotalWeight       flexString   `json:"total_weight"` // grams
	Email             string       `json:"email"`
	Phone             string       `json:"phone"`
	ShippingAddress   *shAddress   `json:"shipping_address"`
	BillingAddress    *shAddress   `json:"billing_address"`
	ShippingLines     []shShipLine `json:"shipping_lines"`
	Customer          *shCustomer  `json:"customer"`
	LineItems         []shLineItem `json:"line_items"`
	Refunds           []shRefund   `json:"refunds"`
}

type shAddress struct {
	Name      string `json:"name"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Address1  string `json:"address1"`
	Address2  string `json:"address2"`
	City      string `json:"city"`
	Province  string `json:"province"`
	Zip       string `json:"zip"`
	Phone     string `json:"phone"`
}

type shShipLine struct {
	Title string `json:"title"`
	Code  string `json:"code"`
}

type shCustomer struct {
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	Email          string     `json:"email"`
	Phone          string     `json:"phone"`
	DefaultAddress *shAddress `json:"default_address"`
}

type shLineItem struct {
	Quantity int `json:"quantity"`
}

type shRefund struct {
	Restock bool `json:"restock"`
}

type shOrderList struct {
	Orders []json.RawMessage `json:"orders"`
}

// shTokenRequest is the body of the per-shop code exchange.
type shTokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Code         string `json:"code"`
}
