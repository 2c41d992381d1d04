// Package provider holds the registry of capability providers.
//
// A Provider is any registered unit that can serve work: an agent, a UI
// component, a tool. Each provider carries case-insensitive capability tags,
// a current load in [0,1], an ordinal tier and a Position in a six-dimension
// solution space computed once when it is registered.
//
// The Registry is an in-memory map guarded by a single RWMutex. Every read
// returns a copy, so callers never hold references into registry state;
// mutation goes through Register, UpdateLoad, SetLoad, SetFlag, Update and
// Deregister.
package provider
