// Package formation groups scored providers into live formations.
//
// A build runs in two phases. The synchronous phase picks a density, selects
// and places members, wires the compatibility graph and plans the rollout; its
// result is returned to the caller straight away. The rollout itself then runs
// on its own goroutine, paced by the injected clock, and can be cancelled
// between any two paced steps by dissolving the formation.
package formation
