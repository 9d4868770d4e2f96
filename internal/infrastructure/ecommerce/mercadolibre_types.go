package ecommerce

// mlShipment is the subset of GET /shipments/{id} the adapter reads.
type mlShipment struct {
	ID              flexString       `json:"id"`
	OrderID         flexString       `json:"order_id"`
	SenderID        flexString       `json:"sender_id"`
	Status          string           `json:"status"`
	Substatus       string           `json:"substatus"`
	DateCreated     string           `json:"date_created"`
	TrackingNumber  string           `json:"tracking_number"`
	DeclaredValue   flexString       `json:"declared_value"`
	ReceiverAddress *mlAddress       `json:"receiver_address"`
	Destination     *mlDestination   `json:"destination"`
	ShippingOption  *mlShippingOpt   `json:"shipping_option"`
	Dimensions      *mlDimensions    `json:"dimensions"`
	ShippingItems   []mlShippingItem `json:"shipping_items"`
}

type mlDestination struct {
	ReceiverName    string     `json:"receiver_name"`
	ReceiverPhone   string     `json:"receiver_phone"`
	ShippingAddress *mlAddress `json:"shipping_address"`
}

type mlAddress struct {
	AddressLine   string   `json:"address_line"`
	StreetName    string   `json:"street_name"`
	StreetNumber  string   `json:"street_number"`
	ZipCode       string   `json:"zip_code"`
	Zip           string   `json:"zip"`
	City          *mlNamed `json:"city"`
	Neighborhood  *mlNamed `json:"neighborhood"`
	ReceiverName  string   `json:"receiver_name"`
	ReceiverPhone string   `json:"receiver_phone"`
}

type mlNamed struct {
	Name string `json:"name"`
}

type mlShippingOpt struct {
	Name string `json:"name"`
}

type mlDimensions struct {
	Weight flexString `json:"weight"` // grams
}

type mlShippingItem struct {
	Quantity int `json:"quantity"`
}
