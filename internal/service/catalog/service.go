package catalog

import (
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/vstore/internal/domain"
)

// Service — операции каталога: публичная выборка и админское управление
// товарами. Остаток меняется только через SetStock (пополнение); резервирование
// при оформлении заказа идёт отдельным путём через ConditionalDecrement.
type Service interface {
	Get(id string) (domain.Product, error)
	List(filter domain.ProductFilter) ([]domain.Product, error)
	Create(product domain.Product) (domain.Product, error)
	Update(product domain.Product) (domain.Product, error)
	SetStock(id string, stock int32) (domain.Product, error)
	Delete(id string) error
}

type service struct {
	products domain.ProductRepository
	logger   *log.Entry
}

// NewService создаёт сервис каталога.
func NewService(products domain.ProductRepository, logger *log.Entry) Service {
	if logger == nil {
		logger = log.New().WithField("component", "catalog")
	}
	return &service{
		products: products,
		logger:   logger,
	}
}

var _ Service = (*service)(nil)

func (s *service) Get(id string) (domain.Product, error) {
	return s.products.Get(id)
}

func (s *service) List(filter domain.ProductFilter) ([]domain.Product, error) {
	return s.products.List(filter)
}

func (s *service) Create(product domain.Product) (domain.Product, error) {
	if errs := product.ValidateInvariants(); len(errs) > 0 {
		return domain.Product{}, &domain.ValidationError{Errs: errs}
	}

	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	if product.Status == "" {
		product.Status = domain.ProductStatusActive
	}
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now

	if err := s.products.Create(product); err != nil {
		return domain.Product{}, err
	}

	s.logger.WithFields(log.Fields{
		"product_id": product.ID,
		"name":       product.Name,
	}).Info("product created")

	return product, nil
}

func (s *service) Update(product domain.Product) (domain.Product, error) {
	if errs := product.ValidateInvariants(); len(errs) > 0 {
		return domain.Product{}, &domain.ValidationError{Errs: errs}
	}

	current, err := s.products.Get(product.ID)
	if err != nil {
		return domain.Product{}, err
	}

	product.Stock = current.Stock
	product.CreatedAt = current.CreatedAt
	product.UpdatedAt = time.Now().UTC()

	if err := s.products.Update(product); err != nil {
		return domain.Product{}, err
	}

	return s.products.Get(product.ID)
}

func (s *service) SetStock(id string, stock int32) (domain.Product, error) {
	if stock < 0 {
		return domain.Product{}, &domain.ValidationError{Errs: []error{domain.ErrProductStockInvalid}}
	}

	if err := s.products.SetStock(id, stock); err != nil {
		return domain.Product{}, err
	}

	product, err := s.products.Get(id)
	if err != nil {
		return domain.Product{}, err
	}

	s.logger.WithFields(log.Fields{
		"product_id": id,
		"stock":      stock,
	}).Info("stock set")

	return product, nil
}

func (s *service) Delete(id string) error {
	if err := s.products.Delete(id); err != nil {
		return err
	}

	s.logger.WithField("product_id", id).Info("product deleted")
	return nil
}

// IsNotFound сообщает, относится ли ошибка к отсутствию товара.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrProductNotFound)
}
