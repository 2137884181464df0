package orders

import (
	"context"
	"fmt"

	"github.com/example/order-gateway/internal/logger"
	"github.com/example/order-gateway/internal/metrics"
	"github.com/example/order-gateway/internal/model"
	"github.com/example/order-gateway/internal/repository"
	"github.com/example/order-gateway/internal/util"
	"go.uber.org/zap"
)

// Dispatcher hands a freshly stored order to the async publish path.
type Dispatcher interface {
	Dispatch(order model.Order) bool
}

// Service is the order intake: persist first, announce later. The HTTP
// response only depends on the insert; publication runs behind it and is
// reconciled by the sweeper if the first attempt fails.
type Service struct {
	repo       repository.OrdersRepository
	dispatcher Dispatcher
}

func New(repo repository.OrdersRepository, dispatcher Dispatcher) *Service {
	return &Service{repo: repo, dispatcher: dispatcher}
}

type CreateOrderInput struct {
	Name    string
	Address string
	Items   []ItemInput
}

type ItemInput struct {
	Name      string
	Quantity  int
	UnitPrice float64
}

// Create assigns a ULID, durably stores the order with its items, and
// dispatches the first publication attempt. The returned order is always
// unpublished: publication is not confirmed at response time.
func (s *Service) Create(ctx context.Context, in CreateOrderInput) (*model.Order, error) {
	order := model.Order{
		ID:      util.New(),
		Name:    in.Name,
		Address: in.Address,
	}
	for _, it := range in.Items {
		order.Items = append(order.Items, model.Item{
			OrderID:   order.ID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}

	if err := s.repo.Insert(ctx, nil, &order); err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	metrics.OrdersCreatedTotal.Inc()
	logger.Log.Info("created order", zap.String("order_id", order.ID))

	// fire-and-forget; a drop just defers publication to the sweeper
	s.dispatcher.Dispatch(order)

	return &order, nil
}

// Get loads an order by id.
func (s *Service) Get(ctx context.Context, id string) (*model.Order, error) {
	return s.repo.GetByID(ctx, id)
}
