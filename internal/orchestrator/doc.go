// Package orchestrator is the entry point to the situational capability
// orchestrator.
//
// An Orchestrator owns one instance of every component: the provider
// registry, the requirement analyzer, the profile adapter, the formation
// builder and store, the deployment manager, the reconciliation loop and the
// event bus. Nothing is shared between two Orchestrators.
//
// # Typical flow
//
//	orch, err := orchestrator.New(orchestrator.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer orch.Shutdown()
//
//	orch.RegisterProvider(provider.Provider{ID: "eng-1", Capabilities: []string{"technical"}, Tier: 3})
//
//	req, err := orch.AnalyzeSituation("build a billing api", map[string]any{"urgency": 6})
//	if err != nil {
//	    return err
//	}
//	f, err := orch.BuildFormation(ctx, req)
//
// Start launches the reconciliation loop; Shutdown stops it and aborts any
// rollout still in progress.
package orchestrator
