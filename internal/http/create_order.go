package http

import (
	"errors"
	"net/http"

	"github.com/example/order-gateway/internal/repository"
	orders "github.com/example/order-gateway/internal/service/orders"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

type createOrderReq struct {
	Name    string         `json:"name"`
	Address string         `json:"address"`
	Items   []orderItemReq `json:"items"`
}

type orderItemReq struct {
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

func createOrderHandler(svc *orders.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createOrderReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		in := orders.CreateOrderInput{
			Name:    req.Name,
			Address: req.Address,
		}
		for _, it := range req.Items {
			in.Items = append(in.Items, orders.ItemInput{
				Name:      it.Name,
				Quantity:  it.Quantity,
				UnitPrice: it.UnitPrice,
			})
		}

		// durably stored before we answer; publication happens behind the response
		order, err := svc.Create(c.Request().Context(), in)
		if err != nil {
			log.Errorf("create order failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		return c.JSON(http.StatusCreated, order)
	}
}

func getOrderHandler(svc *orders.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		order, err := svc.Get(c.Request().Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, repository.ErrOrderNotFound) {
				return c.JSON(http.StatusNotFound, map[string]string{"error": "not found"})
			}

			log.Errorf("get order failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		return c.JSON(http.StatusOK, order)
	}
}
