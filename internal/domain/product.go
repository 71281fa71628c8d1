package domain

import "time"

// ProductStatus определяет видимость товара в каталоге.
type ProductStatus string

const (
	// ProductStatusActive — товар доступен для покупки.
	ProductStatusActive ProductStatus = "active"
	// ProductStatusInactive — товар скрыт из каталога.
	ProductStatusInactive ProductStatus = "inactive"
)

// ImageRef ссылается на изображение товара в внешнем хранилище.
type ImageRef struct {
	URL      string
	PublicID string
}

// Product представляет товар каталога с мутабельным остатком.
//
// Инвариант: Stock >= 0 в любой момент. Остаток уменьшается только через
// ProductRepository.ConditionalDecrement и восстанавливается только через
// Increment (откат резервирования); прямой записи поля нет.
type Product struct {
	ID                 string
	Name               string
	Description        string
	PriceMinor         int64
	OriginalPriceMinor int64
	Category           string
	Images             []ImageRef
	Stock              int32
	Featured           bool
	Status             ProductStatus
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ValidateInvariants проверяет базовые инварианты товара.
func (p *Product) ValidateInvariants() []error {
	var errs []error

	if p.Name == "" {
		errs = append(errs, ErrProductNameRequired)
	}
	if p.PriceMinor < 0 {
		errs = append(errs, ErrProductPriceInvalid)
	}
	if p.Stock < 0 {
		errs = append(errs, ErrProductStockInvalid)
	}

	return errs
}

// PrimaryImage возвращает URL первого изображения или пустую строку.
func (p *Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0].URL
}
