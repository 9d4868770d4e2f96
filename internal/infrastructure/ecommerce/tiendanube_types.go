package ecommerce

import "encoding/json"

// tnOrder is the subset of a Tiendanube order the adapter reads.
type tnOrder struct {
	ID              flexString  `json:"id"`
	Number          flexString  `json:"number"`
	StoreID         flexString  `json:"store_id"`
	Status          string      `json:"status"`
	ShippingStatus  string      `json:"shipping_status"`
	CreatedAt       string      `json:"created_at"`
	CancelledAt     *string     `json:"cancelled_at"`
	Total           flexString  `json:"total"`
	Weight          flexString  `json:"weight"`
	ShippingOption  tnShipping  `json:"shipping_option"`
	Shipping        string      `json:"shipping"`
	ShippingAddress *tnAddress  `json:"shipping_address"`
	Customer        *tnCustomer `json:"customer"`
	ContactName     string      `json:"contact_name"`
	ContactPhone    string      `json:"contact_phone"`
	ContactEmail    string      `json:"contact_email"`
	BillingAddress  string      `json:"billing_address"`
	BillingNumber   string      `json:"billing_number"`
	BillingFloor    string      `json:"billing_floor"`
	BillingLocality string      `json:"billing_locality"`
	BillingCity     string      `json:"billing_city"`
	BillingZipcode  string      `json:"billing_zipcode"`
}

type tnAddress struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	Number   string `json:"number"`
	Floor    string `json:"floor"`
	Locality string `json:"locality"`
	City     string `json:"city"`
	Province string `json:"province"`
	Zipcode  string `json:"zipcode"`
	Phone    string `json:"phone"`
}

type tnCustomer struct {
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	Phone          string     `json:"phone"`
	DefaultAddress *tnAddress `json:"default_address"`
}

// tnShipping is the shipping option, sent either as a bare name or as an
// object depending on the store's app version.
type tnShipping struct {
	Name string
}

func (s *tnShipping) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var name string
	if err := json.Unmarshal(b, &name); err == nil {
		s.Name = name
		return nil
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	s.Name = obj.Name
	return nil
}

// tnTokenRequest is the body of the authorization code exchange.
type tnTokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	GrantType    string `json:"grant_type"`
	Code         string `json:"code"`
}
