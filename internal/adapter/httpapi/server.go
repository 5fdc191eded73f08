package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/example/storefront-commerce/internal/domain"
	"github.com/example/storefront-commerce/internal/store"
	"github.com/gorilla/mux"
)

type Server struct {
	Router   *mux.Router
	Cart     *store.Cart
	Currency *store.Currency
}

func NewServer(cart *store.Cart, currency *store.Currency) *Server {
	s := &Server{Router: mux.NewRouter(), Cart: cart, Currency: currency}
	s.Router.HandleFunc("/api/cart", s.handleGetCart).Methods(http.MethodGet)
	s.Router.HandleFunc("/api/cart", s.handleClearCart).Methods(http.MethodDelete)
	s.Router.HandleFunc("/api/cart/items", s.handleAddItem).Methods(http.MethodPost)
	s.Router.HandleFunc("/api/cart/items/{id}", s.handleUpdateQuantity).Methods(http.MethodPut)
	s.Router.HandleFunc("/api/cart/items/{id}", s.handleRemoveItem).Methods(http.MethodDelete)
	s.Router.HandleFunc("/api/currency", s.handleGetCurrency).Methods(http.MethodGet)
	s.Router.HandleFunc("/api/currency", s.handleChangeCurrency).Methods(http.MethodPut)
	s.Router.HandleFunc("/api/currency/detect", s.handleDetectCurrency).Methods(http.MethodPost)
	s.Router.HandleFunc("/api/price", s.handleFormatPrice).Methods(http.MethodGet)
	s.Router.PathPrefix("/").Handler(http.FileServer(http.Dir("web")))
	return s
}

type cartResponse struct {
	Items        []domain.CartItem           `json:"items"`
	Totals       domain.CartTotals           `json:"totals"`
	LastUpdated  time.Time                   `json:"lastUpdated"`
	IsEmpty      bool                        `json:"isEmpty"`
	IsUpdating   bool                        `json:"isUpdating"`
	FreeShipping domain.FreeShippingProgress `json:"freeShipping"`
}

type currencyResponse struct {
	Current   domain.CurrencyInfo   `json:"current"`
	Supported []domain.CurrencyInfo `json:"supported"`
	IsLoading bool                  `json:"isLoading"`
	LastError string                `json:"lastError,omitempty"`
}

func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	s.writeCart(w)
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Item     domain.CartItem `json:"item"`
		Quantity *int            `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// явный ноль — невалидное количество, пропущенное поле означает одну штуку
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	if err := s.Cart.AddItem(r.Context(), req.Item, quantity); err != nil {
		writeDomainError(w, err)
		return
	}
	s.writeCart(w)
}

func (s *Server) handleUpdateQuantity(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.Cart.UpdateQuantity(r.Context(), id, req.Quantity); err != nil {
		writeDomainError(w, err)
		return
	}
	s.writeCart(w)
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	if err := s.Cart.RemoveItem(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	s.writeCart(w)
}

func (s *Server) handleClearCart(w http.ResponseWriter, r *http.Request) {
	if err := s.Cart.Clear(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	s.writeCart(w)
}

func (s *Server) handleGetCurrency(w http.ResponseWriter, r *http.Request) {
	s.writeCurrency(w)
}

func (s *Server) handleChangeCurrency(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.Currency.Change(r.Context(), req.Code); err != nil {
		writeDomainError(w, err)
		return
	}
	s.writeCurrency(w)
}

func (s *Server) handleDetectCurrency(w http.ResponseWriter, r *http.Request) {
	if err := s.Currency.Detect(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	s.writeCurrency(w)
}

func (s *Server) handleFormatPrice(w http.ResponseWriter, r *http.Request) {
	amount, err := strconv.ParseFloat(r.URL.Query().Get("amount"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"converted": s.Currency.Convert(amount),
		"formatted": s.Currency.Format(amount),
	})
}

func (s *Server) writeCart(w http.ResponseWriter) {
	st := s.Cart.State()
	writeJSON(w, http.StatusOK, cartResponse{
		Items:        st.Items,
		Totals:       st.Totals,
		LastUpdated:  st.LastUpdated,
		IsEmpty:      len(st.Items) == 0,
		IsUpdating:   s.Cart.IsUpdating(),
		FreeShipping: domain.FreeShipping(st.Totals),
	})
}

func (s *Server) writeCurrency(w http.ResponseWriter) {
	resp := currencyResponse{
		Current:   s.Currency.Current(),
		Supported: s.Currency.Supported(),
		IsLoading: s.Currency.IsLoading(),
	}
	if err := s.Currency.LastError(); err != nil {
		resp.LastError = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrUnsupportedCurrency):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
