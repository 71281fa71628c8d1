package httpx

import (
	"time"

	"github.com/vladislavdragonenkov/vstore/internal/domain"
)

type orderItemView struct {
	ProductID  string `json:"productId"`
	Name       string `json:"name"`
	PriceMinor int64  `json:"priceMinor"`
	Qty        int32  `json:"quantity"`
	Image      string `json:"image,omitempty"`
}

type orderView struct {
	ID             string           `json:"id"`
	OrderNumber    string           `json:"orderNumber"`
	Items          []orderItemView  `json:"items"`
	CustomerInfo   customerPayload  `json:"customerInfo"`
	Shipping       shippingPayload  `json:"shippingAddress"`
	TotalMinor     int64            `json:"totalMinor"`
	PaymentMethod  string           `json:"paymentMethod"`
	PaymentStatus  string           `json:"paymentStatus"`
	PaymentRef     string           `json:"paymentRef,omitempty"`
	Status         string           `json:"status"`
	TrackingNumber string           `json:"trackingNumber,omitempty"`
	Notes          string           `json:"notes,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

func toOrderView(order domain.Order) orderView {
	items := make([]orderItemView, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemView{
			ProductID:  item.ProductID,
			Name:       item.Name,
			PriceMinor: item.PriceMinor,
			Qty:        item.Qty,
			Image:      item.Image,
		})
	}
	return orderView{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		Items:       items,
		CustomerInfo: customerPayload{
			Name:  order.CustomerInfo.Name,
			Email: order.CustomerInfo.Email,
			Phone: order.CustomerInfo.Phone,
		},
		Shipping: shippingPayload{
			Area:        order.ShippingAddress.Area,
			Landmark:    order.ShippingAddress.Landmark,
			City:        order.ShippingAddress.City,
			State:       order.ShippingAddress.State,
			Pincode:     order.ShippingAddress.Pincode,
			AddressType: string(order.ShippingAddress.AddressType),
		},
		TotalMinor:     order.TotalMinor,
		PaymentMethod:  string(order.PaymentMethod),
		PaymentStatus:  string(order.PaymentStatus),
		PaymentRef:     order.PaymentRef,
		Status:         string(order.Status),
		TrackingNumber: order.TrackingNumber,
		Notes:          order.Notes,
		CreatedAt:      order.CreatedAt,
		UpdatedAt:      order.UpdatedAt,
	}
}

func toOrderViews(orders []domain.Order) []orderView {
	views := make([]orderView, 0, len(orders))
	for _, order := range orders {
		views = append(views, toOrderView(order))
	}
	return views
}

type productView struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Description        string    `json:"description,omitempty"`
	PriceMinor         int64     `json:"priceMinor"`
	OriginalPriceMinor int64     `json:"originalPriceMinor,omitempty"`
	Category           string    `json:"category,omitempty"`
	Images             []string  `json:"images"`
	Stock              int32     `json:"stock"`
	Featured           bool      `json:"featured"`
	Status             string    `json:"status"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func toProductView(product domain.Product) productView {
	images := make([]string, 0, len(product.Images))
	for _, image := range product.Images {
		images = append(images, image.URL)
	}
	return productView{
		ID:                 product.ID,
		Name:               product.Name,
		Description:        product.Description,
		PriceMinor:         product.PriceMinor,
		OriginalPriceMinor: product.OriginalPriceMinor,
		Category:           product.Category,
		Images:             images,
		Stock:              product.Stock,
		Featured:           product.Featured,
		Status:             string(product.Status),
		CreatedAt:          product.CreatedAt,
		UpdatedAt:          product.UpdatedAt,
	}
}

func toProductViews(products []domain.Product) []productView {
	views := make([]productView, 0, len(products))
	for _, product := range products {
		views = append(views, toProductView(product))
	}
	return views
}

type timelineEventView struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurredAt"`
}

func toTimelineViews(events []domain.TimelineEvent) []timelineEventView {
	views := make([]timelineEventView, 0, len(events))
	for _, event := range events {
		views = append(views, timelineEventView{
			Type:     event.Type,
			Reason:   event.Reason,
			Occurred: event.Occurred,
		})
	}
	return views
}
