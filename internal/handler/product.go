package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/plutoshop/shop-api/internal/domain/product"
)

type productResponse struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	ImageURL     string          `json:"image_url,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Stock        int             `json:"stock"`
	Unit         string          `json:"unit"`
	IsBestSeller bool            `json:"is_best_seller"`
	IsBestOffer  bool            `json:"is_best_offer"`
	IsActive     bool            `json:"is_active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func toProductResponse(p product.Product) productResponse {
	return productResponse{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		ImageURL:     p.ImageURL,
		Price:        p.Price,
		Stock:        p.Stock,
		Unit:         p.Unit,
		IsBestSeller: p.IsBestSeller,
		IsBestOffer:  p.IsBestOffer,
		IsActive:     p.IsActive,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]productResponse, len(products))
	for i, p := range products {
		out[i] = toProductResponse(p)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(*p))
}

type createProductRequest struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	ImageURL     string          `json:"image_url"`
	Price        decimal.Decimal `json:"price"`
	Stock        int             `json:"stock"`
	Unit         string          `json:"unit"`
	IsBestSeller bool            `json:"is_best_seller"`
	IsBestOffer  bool            `json:"is_best_offer"`
	IsActive     *bool           `json:"is_active"`
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if !decodeBody(w, r, &req) {
		return
	}
	switch {
	case req.Name == "":
		writeErrorMessage(w, http.StatusBadRequest, "name is required")
		return
	case req.Price.IsNegative():
		writeErrorMessage(w, http.StatusBadRequest, "price must not be negative")
		return
	case req.Stock < 0:
		writeErrorMessage(w, http.StatusBadRequest, "stock must not be negative")
		return
	case !product.ValidUnit(req.Unit):
		writeErrorMessage(w, http.StatusBadRequest, "unknown unit of measure")
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	p := &product.Product{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Description:  req.Description,
		ImageURL:     req.ImageURL,
		Price:        req.Price,
		Stock:        req.Stock,
		Unit:         req.Unit,
		IsBestSeller: req.IsBestSeller,
		IsBestOffer:  req.IsBestOffer,
		IsActive:     active,
	}
	if err := h.products.Create(r.Context(), p); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductResponse(*p))
}

// updateProductRequest holds catalog fields only. Stock is intentionally not
// accepted here: it moves through orders.
type updateProductRequest struct {
	Name         *string          `json:"name"`
	Description  *string          `json:"description"`
	ImageURL     *string          `json:"image_url"`
	Price        *decimal.Decimal `json:"price"`
	Unit         *string          `json:"unit"`
	IsBestSeller *bool            `json:"is_best_seller"`
	IsBestOffer  *bool            `json:"is_best_offer"`
	IsActive     *bool            `json:"is_active"`
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var req updateProductRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Price != nil && req.Price.IsNegative() {
		writeErrorMessage(w, http.StatusBadRequest, "price must not be negative")
		return
	}
	if req.Unit != nil && !product.ValidUnit(*req.Unit) {
		writeErrorMessage(w, http.StatusBadRequest, "unknown unit of measure")
		return
	}

	p, err := h.products.Update(r.Context(), chi.URLParam(r, "productID"), product.Update{
		Name:         req.Name,
		Description:  req.Description,
		ImageURL:     req.ImageURL,
		Price:        req.Price,
		Unit:         req.Unit,
		IsBestSeller: req.IsBestSeller,
		IsBestOffer:  req.IsBestOffer,
		IsActive:     req.IsActive,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(*p))
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.products.Delete(r.Context(), chi.URLParam(r, "productID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
