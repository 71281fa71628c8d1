package httpx

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/vstore/internal/domain"
	"github.com/vladislavdragonenkov/vstore/internal/service/catalog"
)

// ProductsHandler обслуживает каталог: публичные выборки и админские мутации.
type ProductsHandler struct {
	catalog catalog.Service
	logger  *log.Entry
}

// NewProductsHandler создаёт обработчик каталога.
func NewProductsHandler(catalogSvc catalog.Service, logger *log.Entry) *ProductsHandler {
	if logger == nil {
		logger = log.New().WithField("component", "http-products")
	}
	return &ProductsHandler{catalog: catalogSvc, logger: logger}
}

func (h *ProductsHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	filter := domain.ProductFilter{
		Category: r.URL.Query().Get("category"),
		Search:   r.URL.Query().Get("search"),
	}
	if raw := r.URL.Query().Get("featured"); raw != "" {
		if featured, err := strconv.ParseBool(raw); err == nil {
			filter.Featured = &featured
		}
	}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && offset > 0 {
		filter.Offset = offset
	}

	products, err := h.catalog.List(filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "products": toProductViews(products)})
}

func (h *ProductsHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "product": toProductView(product)})
}

func (h *ProductsHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	var payload productPayload
	if err := decodeAndValidate(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	product, err := h.catalog.Create(payload.toProduct(""))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{"success": true, "message": "product created", "product": toProductView(product)})
}

func (h *ProductsHandler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var payload productPayload
	if err := decodeAndValidate(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	product, err := h.catalog.Update(payload.toProduct(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "message": "product updated", "product": toProductView(product)})
}

func (h *ProductsHandler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.catalog.Delete(id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "message": "product deleted"})
}

func (h *ProductsHandler) setStock(w http.ResponseWriter, r *http.Request) {
	var payload setStockPayload
	if err := decodeAndValidate(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	product, err := h.catalog.SetStock(chi.URLParam(r, "id"), payload.Stock)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "message": "stock updated", "product": toProductView(product)})
}
