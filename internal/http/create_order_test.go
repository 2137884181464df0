package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/order-gateway/internal/model"
	"github.com/example/order-gateway/internal/repository"
	orders "github.com/example/order-gateway/internal/service/orders"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	inserted []model.Order
}

func (r *stubRepo) Insert(ctx context.Context, tx *sqlx.Tx, o *model.Order) error {
	r.inserted = append(r.inserted, *o)
	return nil
}

func (r *stubRepo) MarkPublished(ctx context.Context, tx *sqlx.Tx, id string, at time.Time) (bool, error) {
	return false, nil
}

func (r *stubRepo) FindPublishPending(ctx context.Context) ([]model.Order, error) {
	return nil, nil
}

func (r *stubRepo) GetByID(ctx context.Context, id string) (*model.Order, error) {
	for i := range r.inserted {
		if r.inserted[i].ID == id {
			cp := r.inserted[i]
			return &cp, nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (r *stubRepo) Transact(ctx context.Context, fn func(*sqlx.Tx) error) error {
	return fn(nil)
}

type stubDispatcher struct{ dispatched int }

func (d *stubDispatcher) Dispatch(model.Order) bool {
	d.dispatched++
	return true
}

func TestCreateOrderHandler(t *testing.T) {
	repo := &stubRepo{}
	disp := &stubDispatcher{}
	h := createOrderHandler(orders.New(repo, disp))

	body := `{
		"name": "Johannes",
		"address": "Germany",
		"items": [{"name": "The Wrong Trousers", "quantity": 1, "unit_price": 9.99}]
	}`
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	require.NoError(t, h(e.NewContext(req, rec)))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["id"])
	assert.Nil(t, resp["published_at"], "publication must not be confirmed at response time")

	require.Len(t, repo.inserted, 1)
	assert.Equal(t, 1, disp.dispatched)
}

func TestCreateOrderHandlerBadJSON(t *testing.T) {
	h := createOrderHandler(orders.New(&stubRepo{}, &stubDispatcher{}))

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader("{not json"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	require.NoError(t, h(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetOrderHandlerNotFound(t *testing.T) {
	h := getOrderHandler(orders.New(&stubRepo{}, &stubDispatcher{}))

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/orders/unknown", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("unknown")

	require.NoError(t, h(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
