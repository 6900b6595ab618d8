package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/plutoshop/shop-api/internal/cache"
	"github.com/plutoshop/shop-api/internal/domain/order"
)

type orderItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type createOrderRequest struct {
	CustomerName  string             `json:"customer_name"`
	Email         string             `json:"email"`
	PhoneNumber   string             `json:"phone_number"`
	Address       string             `json:"address"`
	DeliveryDate  *time.Time         `json:"delivery_date"`
	Notes         string             `json:"notes"`
	PaymentMethod string             `json:"payment_method"`
	Items         []orderItemRequest `json:"items"`
}

type orderItemResponse struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type orderResponse struct {
	ID            string              `json:"id"`
	CustomerName  string              `json:"customer_name"`
	Email         string              `json:"email"`
	PhoneNumber   string              `json:"phone_number"`
	Address       string              `json:"address"`
	DeliveryDate  *time.Time          `json:"delivery_date,omitempty"`
	Notes         string              `json:"notes,omitempty"`
	Total         decimal.Decimal     `json:"total"`
	Status        order.Status        `json:"status"`
	PaymentMethod order.PaymentMethod `json:"payment_method"`
	PaymentStatus order.PaymentStatus `json:"payment_status"`
	Items         []orderItemResponse `json:"items"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

func toOrderResponse(o *order.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemResponse{
			ID:        it.ID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Price,
		}
	}
	return orderResponse{
		ID:            o.ID,
		CustomerName:  o.CustomerName,
		Email:         o.Email,
		PhoneNumber:   o.PhoneNumber,
		Address:       o.Address,
		DeliveryDate:  o.DeliveryDate,
		Notes:         o.Notes,
		Total:         o.Total,
		Status:        o.Status,
		PaymentMethod: o.PaymentMethod,
		PaymentStatus: o.PaymentStatus,
		Items:         items,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	items := make([]order.ItemInput, len(req.Items))
	for i, it := range req.Items {
		items[i] = order.ItemInput{ProductID: it.ProductID, Quantity: it.Quantity}
	}

	o, err := h.orders.PlaceOrder(r.Context(), order.PlaceOrderRequest{
		CustomerName:  req.CustomerName,
		Email:         req.Email,
		PhoneNumber:   req.PhoneNumber,
		Address:       req.Address,
		DeliveryDate:  req.DeliveryDate,
		Notes:         req.Notes,
		PaymentMethod: order.PaymentMethod(req.PaymentMethod),
		Items:         items,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]orderResponse, len(orders))
	for i := range orders {
		out[i] = toOrderResponse(&orders[i])
	}
	writeJSON(w, http.StatusOK, out)
}

type orderStatusResponse struct {
	Status        order.Status        `json:"status"`
	PaymentStatus order.PaymentStatus `json:"payment_status"`
}

// getOrderStatus is the polling endpoint clients hit while waiting for a
// payment to settle. It serves from the cache when possible and reads through
// on a miss.
func (h *Handler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	if h.cache != nil {
		if snap, ok := h.cache.OrderStatus(r.Context(), orderID); ok {
			writeJSON(w, http.StatusOK, orderStatusResponse{
				Status:        snap.Status,
				PaymentStatus: snap.PaymentStatus,
			})
			return
		}
	}
	o, err := h.orders.Get(r.Context(), orderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if h.cache != nil {
		h.cache.SetOrderStatus(r.Context(), orderID, cache.StatusSnapshot{
			Status:        o.Status,
			PaymentStatus: o.PaymentStatus,
		})
	}
	writeJSON(w, http.StatusOK, orderStatusResponse{
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
	})
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	var req updateStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	o, err := h.orders.UpdateStatus(r.Context(), orderID, order.Status(req.Status))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.invalidateStatus(r, orderID)
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) updateOrderItem(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	var req updateItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	o, err := h.orders.UpdateLineItem(r.Context(), orderID, chi.URLParam(r, "itemID"), req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) removeOrderItem(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	o, err := h.orders.RemoveLineItem(r.Context(), orderID, chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) invalidateStatus(r *http.Request, orderID string) {
	if h.cache != nil {
		h.cache.InvalidateOrderStatus(r.Context(), orderID)
	}
}
