package model

// EventTypeOrderCreated is the value of the `_type` discriminator on the
// order_created payload. Consumers switch on it to pick a decoder.
const EventTypeOrderCreated = "OrderCreatedEvent"

// OrderCreatedEvent is the wire payload published to the order_created topic.
// Unit prices are internal and deliberately absent from the outward event.
type OrderCreatedEvent struct {
	Type    string      `json:"_type"`
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Address string      `json:"address"`
	Items   []EventItem `json:"items"`
}

type EventItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// ToEvent projects an Order onto its creation event. Pure; built fresh per
// publish attempt.
func ToEvent(o Order) OrderCreatedEvent {
	items := make([]EventItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, EventItem{
			Name:     it.Name,
			Quantity: it.Quantity,
		})
	}

	return OrderCreatedEvent{
		Type:    EventTypeOrderCreated,
		ID:      o.ID,
		Name:    o.Name,
		Address: o.Address,
		Items:   items,
	}
}
