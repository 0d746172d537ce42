package types

// ShippingAddress is the delivery destination snapshotted onto a payment
// record. Stored as jsonb via the gorm json serializer.
type ShippingAddress struct {
	FullName string `json:"full_name" validate:"required"`
	Address  string `json:"address" validate:"required"`
	City     string `json:"city" validate:"required"`
	State    string `json:"state,omitempty"`
	ZipCode  string `json:"zip_code,omitempty"`
	Country  string `json:"country" validate:"required"`
	Phone    string `json:"phone,omitempty"`
}
