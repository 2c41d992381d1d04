package deployment

import "context"

// ComponentStarter starts and stops the components of an instance.
// Start must return once the component has acknowledged the start.
type ComponentStarter interface {
	Start(ctx context.Context, inst Instance, componentID string) error
	Stop(ctx context.Context, inst Instance, componentID string) error
}

// NopStarter acknowledges every start and stop immediately. It is the default
// for in-process providers that have no process of their own.
type NopStarter struct{}

// Start implements ComponentStarter.
func (NopStarter) Start(context.Context, Instance, string) error { return nil }

// Stop implements ComponentStarter.
func (NopStarter) Stop(context.Context, Instance, string) error { return nil }
