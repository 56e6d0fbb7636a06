package events

import "time"

// DomainEvent is a fact emitted by an aggregate and relayed through the outbox.
type DomainEvent interface {
	EventName() string
	AggregateID() string
	OccurredAt() time.Time
}

type BaseEvent struct {
	Name      string    `json:"name"`
	Aggregate string    `json:"aggregate_id"`
	Time      time.Time `json:"occurred_at"`
}

func NewBase(name, aggregate string, at time.Time) BaseEvent {
	return BaseEvent{Name: name, Aggregate: aggregate, Time: at.UTC()}
}

func (e BaseEvent) EventName() string {
	return e.Name
}

func (e BaseEvent) AggregateID() string {
	return e.Aggregate
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.Time
}
