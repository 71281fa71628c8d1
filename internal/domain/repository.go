package domain

// ProductFilter ограничивает выборку каталога.
type ProductFilter struct {
	Category string
	Search   string
	Featured *bool
	Limit    int
	Offset   int
}

// ProductRepository описывает требования к хранилищу каталога.
//
// ConditionalDecrement — единственный разрешённый путь уменьшения остатка:
// одна атомарная операция "уменьшить на qty, если остаток >= qty".
// Increment существует только для отката резервирования.
type ProductRepository interface {
	// Create сохраняет новый товар. Возвращает ErrProductExists при занятом ID.
	Create(product Product) error
	// Get возвращает товар по идентификатору или ErrProductNotFound.
	Get(id string) (Product, error)
	// List возвращает товары с учётом фильтра.
	List(filter ProductFilter) ([]Product, error)
	// Update перезаписывает атрибуты товара, кроме остатка.
	Update(product Product) error
	// SetStock выставляет остаток напрямую (админская операция пополнения).
	SetStock(id string, stock int32) error
	// Delete удаляет товар из каталога или возвращает ErrProductNotFound.
	Delete(id string) error
	// ConditionalDecrement атомарно уменьшает остаток на qty, если его хватает.
	// Возвращает false без ошибки, когда остатка недостаточно.
	ConditionalDecrement(id string, qty int32) (bool, error)
	// Increment возвращает qty единиц в остаток (откат резервирования).
	Increment(id string, qty int32) error
}

// OrderFilter ограничивает выборку заказов в админке.
type OrderFilter struct {
	Status OrderStatus
	Search string
	Limit  int
	Offset int
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ. Возвращает ошибку, если запись с таким ID уже существует.
	Create(order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(id string) (Order, error)
	// GetByNumber возвращает заказ по человекочитаемому номеру.
	GetByNumber(orderNumber string) (Order, error)
	// List возвращает заказы с учётом фильтра, новые первыми.
	List(filter OrderFilter) ([]Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking.
	Save(order Order) error
}
