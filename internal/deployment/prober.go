package deployment

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// DefaultProbeTimeout bounds a single probe.
const DefaultProbeTimeout = 5 * time.Second

// InstanceProber decides whether an instance is alive. Probe returns nil for
// a healthy instance and an error describing the failure otherwise.
type InstanceProber interface {
	Probe(ctx context.Context, inst Instance) error
}

// StatusProber reports an instance healthy iff its status is running. It does
// not contact the instance; use GRPCProber for a real liveness probe.
type StatusProber struct{}

// Probe implements InstanceProber.
func (StatusProber) Probe(_ context.Context, inst Instance) error {
	if inst.Status != StatusRunning {
		return fmt.Errorf("instance %s is %s", inst.ID.Short(), inst.Status)
	}
	return nil
}

// GRPCProber probes an instance's endpoint with the standard grpc.health.v1
// protocol. Instances that are not running fail without a network call.
type GRPCProber struct {
	timeout     time.Duration
	serviceName string
	dialOptions []grpc.DialOption
}

// GRPCProberOption configures a GRPCProber.
type GRPCProberOption func(*GRPCProber)

// WithProbeTimeout sets the per-probe timeout.
func WithProbeTimeout(d time.Duration) GRPCProberOption {
	return func(p *GRPCProber) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithServiceName sets the service checked. Empty checks the whole server.
func WithServiceName(name string) GRPCProberOption {
	return func(p *GRPCProber) {
		p.serviceName = name
	}
}

// WithDialOptions replaces the default insecure transport credentials.
func WithDialOptions(opts ...grpc.DialOption) GRPCProberOption {
	return func(p *GRPCProber) {
		p.dialOptions = opts
	}
}

// NewGRPCProber creates a GRPCProber.
func NewGRPCProber(opts ...GRPCProberOption) *GRPCProber {
	p := &GRPCProber{
		timeout:     DefaultProbeTimeout,
		dialOptions: []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe implements InstanceProber.
func (p *GRPCProber) Probe(ctx context.Context, inst Instance) error {
	if err := (StatusProber{}).Probe(ctx, inst); err != nil {
		return err
	}

	conn, err := grpc.NewClient(inst.Endpoint, p.dialOptions...)
	if err != nil {
		return fmt.Errorf("connect %s: %w", inst.Endpoint, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{
		Service: p.serviceName,
	})
	if err != nil {
		return fmt.Errorf("health check %s: %w", inst.Endpoint, err)
	}

	switch resp.GetStatus() {
	case grpc_health_v1.HealthCheckResponse_SERVING:
		return nil
	case grpc_health_v1.HealthCheckResponse_SERVICE_UNKNOWN:
		return fmt.Errorf("service %q not found at %s", p.serviceName, inst.Endpoint)
	default:
		return fmt.Errorf("%s reports %s", inst.Endpoint, resp.GetStatus())
	}
}

var (
	_ InstanceProber = StatusProber{}
	_ InstanceProber = (*GRPCProber)(nil)
)
