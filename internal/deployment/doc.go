// Package deployment turns named bundles of registered providers into
// deployable instances.
//
// A Manifest names the components (provider ids) of a bundle and the target
// environment. Deploying a manifest creates an Instance with a port from a
// monotonic allocator; ports are never reused, even after Stop. Component
// start and stop go through a ComponentStarter and liveness goes through an
// InstanceProber, so real process control and real probes can be plugged in
// without changing the lifecycle.
package deployment
