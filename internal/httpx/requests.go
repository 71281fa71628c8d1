package httpx

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/vladislavdragonenkov/vstore/internal/domain"
	"github.com/vladislavdragonenkov/vstore/internal/service/checkout"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

const maxBodyBytes = 1 << 20

// decodeAndValidate читает JSON-тело и прогоняет его через validator-теги.
func decodeAndValidate(r *http.Request, dst any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	defer func() { _, _ = io.Copy(io.Discard, body) }()

	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return fmt.Errorf("invalid json body")
	}
	if err := validate.Struct(dst); err != nil {
		var fields []string
		var verrs validator.ValidationErrors
		if ok := asValidationErrors(err, &verrs); ok {
			for _, fe := range verrs {
				fields = append(fields, fe.Field())
			}
			return fmt.Errorf("invalid fields: %s", strings.Join(fields, ", "))
		}
		return err
	}
	return nil
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if ok {
		*target = verrs
	}
	return ok
}

type cartItemPayload struct {
	ProductID string `json:"productId" validate:"required"`
	Qty       int32  `json:"requestedQuantity" validate:"required,gt=0"`
}

type customerPayload struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"required"`
}

type shippingPayload struct {
	Area        string `json:"area" validate:"required"`
	Landmark    string `json:"landmark"`
	City        string `json:"city" validate:"required"`
	State       string `json:"state" validate:"required"`
	Pincode     string `json:"pincode" validate:"required,len=6"`
	AddressType string `json:"addressType" validate:"omitempty,oneof=home work other"`
}

type placeOrderPayload struct {
	Items         []cartItemPayload `json:"items" validate:"required,min=1,dive"`
	Customer      customerPayload   `json:"customerInfo" validate:"required"`
	Shipping      shippingPayload   `json:"shippingAddress" validate:"required"`
	PaymentMethod string            `json:"paymentMethod" validate:"required,oneof=cod online"`
	Notes         string            `json:"notes" validate:"max=500"`
}

func (p placeOrderPayload) toPlacement() checkout.PlacementRequest {
	items := make([]checkout.PlacementItem, 0, len(p.Items))
	for _, item := range p.Items {
		items = append(items, checkout.PlacementItem{ProductID: item.ProductID, Qty: item.Qty})
	}
	addrType := domain.AddressType(p.Shipping.AddressType)
	if addrType == "" {
		addrType = domain.AddressTypeHome
	}
	return checkout.PlacementRequest{
		Items: items,
		Customer: domain.CustomerInfo{
			Name:  p.Customer.Name,
			Email: p.Customer.Email,
			Phone: p.Customer.Phone,
		},
		Shipping: domain.ShippingAddress{
			Area:        p.Shipping.Area,
			Landmark:    p.Shipping.Landmark,
			City:        p.Shipping.City,
			State:       p.Shipping.State,
			Pincode:     p.Shipping.Pincode,
			AddressType: addrType,
		},
		PaymentMethod: domain.PaymentMethod(p.PaymentMethod),
		Notes:         p.Notes,
	}
}

type updateStatusPayload struct {
	Status         string `json:"status" validate:"required"`
	TrackingNumber string `json:"trackingNumber"`
	Reason         string `json:"reason"`
}

type productPayload struct {
	Name               string   `json:"name" validate:"required"`
	Description        string   `json:"description"`
	PriceMinor         int64    `json:"priceMinor" validate:"gte=0"`
	OriginalPriceMinor int64    `json:"originalPriceMinor" validate:"gte=0"`
	Category           string   `json:"category"`
	Images             []string `json:"images" validate:"dive,url"`
	Stock              int32    `json:"stock" validate:"gte=0"`
	Featured           bool     `json:"featured"`
	Status             string   `json:"status" validate:"omitempty,oneof=active inactive"`
}

func (p productPayload) toProduct(id string) domain.Product {
	images := make([]domain.ImageRef, 0, len(p.Images))
	for _, url := range p.Images {
		images = append(images, domain.ImageRef{URL: url})
	}
	return domain.Product{
		ID:                 id,
		Name:               p.Name,
		Description:        p.Description,
		PriceMinor:         p.PriceMinor,
		OriginalPriceMinor: p.OriginalPriceMinor,
		Category:           p.Category,
		Images:             images,
		Stock:              p.Stock,
		Featured:           p.Featured,
		Status:             domain.ProductStatus(p.Status),
	}
}

type setStockPayload struct {
	Stock int32 `json:"stock" validate:"gte=0"`
}

type createGatewayOrderPayload struct {
	AmountMinor int64  `json:"amountMinor" validate:"required,gt=0"`
	Currency    string `json:"currency" validate:"omitempty,len=3"`
}

type verifyPaymentPayload struct {
	GatewayOrderID   string            `json:"gatewayOrderId" validate:"required"`
	GatewayPaymentID string            `json:"gatewayPaymentId" validate:"required"`
	Signature        string            `json:"signature" validate:"required"`
	Order            placeOrderPayload `json:"order" validate:"required"`
}

type paymentWebhookPayload struct {
	OrderID          string `json:"orderId" validate:"required"`
	GatewayOrderID   string `json:"gatewayOrderId" validate:"required"`
	GatewayPaymentID string `json:"gatewayPaymentId" validate:"required"`
	Signature        string `json:"signature" validate:"required"`
	Outcome          string `json:"outcome" validate:"required,oneof=success failure"`
}

type sendOTPPayload struct {
	Email string `json:"email" validate:"required,email"`
}

type verifyOTPPayload struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6"`
}
