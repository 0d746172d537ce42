package enums

import "fmt"

// OrderType distinguishes whole-cart checkouts from single-product buys.
type OrderType string

const (
	OrderTypeCart          OrderType = "cart"
	OrderTypeSingleProduct OrderType = "single_product"
)

var validOrderTypes = []OrderType{
	OrderTypeCart,
	OrderTypeSingleProduct,
}

// String implements fmt.Stringer.
func (o OrderType) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderType.
func (o OrderType) IsValid() bool {
	for _, candidate := range validOrderTypes {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOrderType converts the raw string to OrderType.
func ParseOrderType(value string) (OrderType, error) {
	for _, candidate := range validOrderTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order type %q", value)
}
