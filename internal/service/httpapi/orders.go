package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// flexString принимает JSON-строку или число: номер заказа приходит в обоих видах.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*f = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*f = flexString(n.String())
		return nil
	}
}

type createOrderRequest struct {
	CustomerName  string           `json:"customer_name"`
	OrderNumber   flexString       `json:"order_number"`
	PaymentMethod string           `json:"payment_method"`
	TotalAmount   *decimal.Decimal `json:"total_amount"`
	TotalPrice    *decimal.Decimal `json:"total_price"`
	Items         json.RawMessage  `json:"items"`
	OrderItems    json.RawMessage  `json:"order_items"`
	Status        string           `json:"status"`
}

func (r createOrderRequest) params() (domain.NewOrderParams, error) {
	if r.Status != "" {
		status, err := domain.ParseOrderStatus(r.Status)
		if err != nil {
			return domain.NewOrderParams{}, err
		}
		if status != domain.OrderStatusPending {
			return domain.NewOrderParams{}, domain.ErrInitialStatusInvalid
		}
	}

	total := r.TotalAmount
	if total == nil {
		total = r.TotalPrice
	}
	items := r.Items
	if isAbsentJSON(items) {
		items = r.OrderItems
	}

	return domain.NewOrderParams{
		CustomerName:  r.CustomerName,
		OrderNumber:   string(r.OrderNumber),
		PaymentMethod: r.PaymentMethod,
		TotalAmount:   total,
		Items:         items,
	}, nil
}

// isAbsentJSON — поле не передано или передано как null.
func isAbsentJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) listOrders(c *gin.Context) {
	filter, err := parseOrderFilter(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	orders, err := s.orders.ListOrders(c.Request.Context(), filter)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (s *Server) listPendingOrders(c *gin.Context) {
	orders, err := s.orders.ListOrders(c.Request.Context(), domain.OrderFilter{Status: domain.OrderStatusPending})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (s *Server) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, errInvalidJSON)
		return
	}
	params, err := req.params()
	if err != nil {
		s.writeError(c, err)
		return
	}

	order, err := s.orders.PlaceOrder(c.Request.Context(), params)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (s *Server) getOrderStatus(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	status, err := s.orders.GetStatus(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

func (s *Server) updateOrderStatus(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, errInvalidJSON)
		return
	}
	next, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		s.writeError(c, err)
		return
	}

	order, err := s.orders.TransitionStatus(c.Request.Context(), id, next)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (s *Server) getOrderTimeline(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	events, err := s.orders.Timeline(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

func (s *Server) deleteOrder(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	order, err := s.orders.DeleteOrder(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":      "order deleted successfully",
		"deletedOrder": order,
	})
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrOrderIDInvalid
	}
	return id, nil
}

func parseOrderFilter(c *gin.Context) (domain.OrderFilter, error) {
	var filter domain.OrderFilter
	if raw := c.Query("status"); raw != "" {
		status, err := domain.ParseOrderStatus(raw)
		if err != nil {
			return domain.OrderFilter{}, err
		}
		filter.Status = status
	}

	var err error
	if filter.Limit, err = queryInt(c, "limit"); err != nil {
		return domain.OrderFilter{}, err
	}
	if filter.Offset, err = queryInt(c, "offset"); err != nil {
		return domain.OrderFilter{}, err
	}
	return filter, nil
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, domain.ErrPaginationInvalid
	}
	return v, nil
}
