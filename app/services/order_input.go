package services

import (
	"encoding/json"
	"strings"

	"github.com/shashiranjanraj/foodie/app/models"
	"github.com/shopspring/decimal"
)

// FlexNumber accepts a JSON number, a numeric string or anything else.
// Values that are not numbers decode as zero instead of failing the request.
type FlexNumber struct {
	Value decimal.Decimal
	Valid bool
}

func (n *FlexNumber) UnmarshalJSON(b []byte) error {
	*n = FlexNumber{}

	s := strings.TrimSpace(string(b))
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return nil
		}
		s = strings.TrimSpace(str)
	}
	if s == "" || s == "null" {
		return nil
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	n.Value, n.Valid = d, true
	return nil
}

func (n FlexNumber) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return []byte(n.Value.String()), nil
}

// Num builds a valid FlexNumber, mostly for tests and internal callers.
func Num(v float64) FlexNumber {
	return FlexNumber{Value: decimal.NewFromFloat(v), Valid: true}
}

// ShippingInfo is the contact block sent with a new order.
type ShippingInfo struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	Address   string `json:"address"`
	City      string `json:"city"`
	ZipCode   string `json:"zipCode"`
}

// LineInput is one line as the storefront sends it. Clients send either
// flat fields or a nested copy of the catalog item, so both are accepted.
type LineInput struct {
	ItemID   string       `json:"itemId"`
	Name     string       `json:"name"`
	Price    FlexNumber   `json:"price"`
	ImageURL string       `json:"imageUrl"`
	Quantity FlexNumber   `json:"quantity"`
	Item     *LineItemRef `json:"item"`
}

type LineItemRef struct {
	MongoID  string      `json:"_id"`
	ID       string      `json:"id"`
	ItemID   string      `json:"itemId"`
	Name     string      `json:"name"`
	Price    *FlexNumber `json:"price"`
	ImageURL string      `json:"imageUrl"`
}

// CreateOrderInput is the checkout request.
type CreateOrderInput struct {
	Shipping      ShippingInfo `json:"shippingInfo"`
	PaymentMethod string       `json:"paymentMethod"`
	Items         []LineInput  `json:"items"`
}

// normalizeLine turns a client line into the frozen order snapshot. It never
// fails; missing or malformed values fall back to empty ones.
func normalizeLine(in LineInput) models.OrderLine {
	ref := in.Item
	if ref == nil {
		ref = &LineItemRef{}
	}

	line := models.OrderLine{
		Name:     firstNonEmpty(ref.Name, in.Name, "Unknown"),
		ImageURL: firstNonEmpty(ref.ImageURL, in.ImageURL),
	}

	price := in.Price
	if ref.Price != nil {
		price = *ref.Price
	}
	if price.Valid && !price.Value.IsNegative() {
		line.Price = price.Value.Round(2)
	}

	if id := firstNonEmpty(in.ItemID, ref.MongoID, ref.ID, ref.ItemID); id != "" {
		line.ItemID = &id
	}

	if in.Quantity.Valid {
		if q := in.Quantity.Value.IntPart(); q > 0 {
			line.Quantity = int(q)
		}
	}
	return line
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// ContactPatch lists the contact and shipping fields an order update may
// change. Nil fields are left alone.
type ContactPatch struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Phone     *string `json:"phone"`
	Address   *string `json:"address"`
	City      *string `json:"city"`
	ZipCode   *string `json:"zipCode"`
}

func (p ContactPatch) columns() map[string]interface{} {
	cols := map[string]interface{}{}
	set := func(col string, v *string) {
		if v != nil {
			cols[col] = strings.TrimSpace(*v)
		}
	}
	set("first_name", p.FirstName)
	set("last_name", p.LastName)
	set("phone", p.Phone)
	set("address", p.Address)
	set("city", p.City)
	set("zip_code", p.ZipCode)
	return cols
}

// OrderPatch is the customer's order update. Email must match the order
// when present.
type OrderPatch struct {
	ContactPatch
	Email *string `json:"email"`
}

// AdminOrderPatch is the admin order update.
type AdminOrderPatch struct {
	ContactPatch
	Email  *string `json:"email"`
	Status *string `json:"status"`
}
