// Package events provides the in-process event bus through which the
// orchestrator reports formation, rollout, deployment and profile changes.
//
// Publishers never block: each subscriber has a buffered channel and events
// are dropped for a subscriber whose buffer is full. Subscriptions filter by
// event type, formation id and instance id.
//
//	events, cleanup := bus.Subscribe(ctx, events.Filter{
//		Types: []events.EventType{events.EventFormationHealthChanged},
//	}, 0)
//	defer cleanup()
//
//	for e := range events {
//		// handle e
//	}
package events
