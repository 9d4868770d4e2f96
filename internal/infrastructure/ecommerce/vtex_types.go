package ecommerce

// vtexOrderList is one page of the OMS order list.
type vtexOrderList struct {
	List []struct {
		OrderID string `json:"orderId"`
	} `json:"list"`
	Paging struct {
		Pages       int `json:"pages"`
		CurrentPage int `json:"currentPage"`
	} `json:"paging"`
}

// vtexOrder is the subset of the OMS order detail the adapter reads.
type vtexOrder struct {
	OrderID           string            `json:"orderId"`
	Sequence          flexString        `json:"sequence"`
	Status            string            `json:"status"`
	CreationDate      string            `json:"creationDate"`
	Value             int64             `json:"value"` // cents
	ClientProfileData *vtexProfile      `json:"clientProfileData"`
	ShippingData      *vtexShippingData `json:"shippingData"`
	InvoiceData       *vtexInvoiceData  `json:"invoiceData"`
	Items             []vtexItem        `json:"items"`
}

type vtexProfile struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

type vtexShippingData struct {
	Address           *vtexAddress       `json:"address"`
	SelectedAddresses []vtexAddress      `json:"selectedAddresses"`
	LogisticsInfo     []vtexLogisticInfo `json:"logisticsInfo"`
}

type vtexInvoiceData struct {
	Address *vtexAddress `json:"address"`
}

type vtexAddress struct {
	ReceiverName string `json:"receiverName"`
	Street       string `json:"street"`
	Number       string `json:"number"`
	Complement   string `json:"complement"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postalCode"`
}

type vtexLogisticInfo struct {
	SelectedSla     string `json:"selectedSla"`
	DeliveryCompany string `json:"deliveryCompany"`
}

type vtexItem struct {
	Quantity       int `json:"quantity"`
	AdditionalInfo *struct {
		Dimension *struct {
			Weight float64 `json:"weight"` // grams
		} `json:"dimension"`
	} `json:"additionalInfo"`
}
