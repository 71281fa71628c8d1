package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/vstore/internal/domain"
)

// productRepositoryInMemory — in-memory реализация ProductRepository.
// Атомарность ConditionalDecrement обеспечивается общим мьютексом:
// проверка остатка и списание происходят под одной блокировкой.
type productRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Product
}

// NewProductRepository возвращает in-memory каталог для локальной разработки и тестов.
func NewProductRepository() domain.ProductRepository {
	return &productRepositoryInMemory{
		items: make(map[string]domain.Product),
	}
}

// Create сохраняет новый товар, если ID ещё не занят.
func (r *productRepositoryInMemory) Create(product domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[product.ID]; exists {
		return domain.ErrProductExists
	}
	// Сохраняем копию, чтобы избежать непредсказуемых мутаций извне.
	r.items[product.ID] = cloneProduct(product)
	return nil
}

// Get возвращает товар или ErrProductNotFound, если его нет.
func (r *productRepositoryInMemory) Get(id string) (domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.items[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return cloneProduct(product), nil
}

// List возвращает товары каталога с учётом фильтра, отсортированные по дате создания.
func (r *productRepositoryInMemory) List(filter domain.ProductFilter) ([]domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Product, 0, len(r.items))
	for _, product := range r.items {
		if filter.Category != "" && !strings.EqualFold(product.Category, filter.Category) {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(product.Name), strings.ToLower(filter.Search)) {
			continue
		}
		if filter.Featured != nil && product.Featured != *filter.Featured {
			continue
		}
		result = append(result, cloneProduct(product))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []domain.Product{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}

	return result, nil
}

// Update перезаписывает атрибуты товара, сохраняя текущий остаток.
func (r *productRepositoryInMemory) Update(product domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[product.ID]
	if !ok {
		return domain.ErrProductNotFound
	}
	// Остаток меняется только через ConditionalDecrement/Increment/SetStock.
	product.Stock = current.Stock
	product.UpdatedAt = time.Now().UTC()
	r.items[product.ID] = cloneProduct(product)
	return nil
}

// SetStock выставляет остаток напрямую (админское пополнение).
func (r *productRepositoryInMemory) SetStock(id string, stock int32) error {
	if stock < 0 {
		return domain.ErrProductStockInvalid
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.items[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	product.Stock = stock
	product.UpdatedAt = time.Now().UTC()
	r.items[id] = product
	return nil
}

// Delete убирает товар из каталога.
func (r *productRepositoryInMemory) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return domain.ErrProductNotFound
	}
	delete(r.items, id)
	return nil
}

// ConditionalDecrement атомарно списывает qty, если остатка хватает.
// Проверка и запись выполняются под одной блокировкой — конкурирующие
// вызовы наблюдают операцию как неделимую.
func (r *productRepositoryInMemory) ConditionalDecrement(id string, qty int32) (bool, error) {
	if qty <= 0 {
		return false, domain.ErrItemQtyInvalid
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.items[id]
	if !ok {
		return false, domain.ErrProductNotFound
	}
	if product.Stock < qty {
		return false, nil
	}
	product.Stock -= qty
	product.UpdatedAt = time.Now().UTC()
	r.items[id] = product
	return true, nil
}

// Increment возвращает qty единиц в остаток (откат резервирования).
func (r *productRepositoryInMemory) Increment(id string, qty int32) error {
	if qty <= 0 {
		return domain.ErrItemQtyInvalid
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.items[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	product.Stock += qty
	product.UpdatedAt = time.Now().UTC()
	r.items[id] = product
	return nil
}

func cloneProduct(src domain.Product) domain.Product {
	dst := src
	dst.Images = append([]domain.ImageRef(nil), src.Images...)
	return dst
}

var _ domain.ProductRepository = (*productRepositoryInMemory)(nil)
