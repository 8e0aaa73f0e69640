// Package agent connects the planning loop to real LLM providers and runs sessions.
//
// Invariants:
// - Every provider failure reaches the planner as an error wrapping ErrCapability.
// - Each Run gets a fresh session ID and its own settings snapshot.
// - At most MaxConcurrentSessions sessions run at once; excess callers wait for a slot.
//
// Usage:
//
//	provider, _ := (&agent.ProviderFactory{}).NewProvider(agent.AuthProfile{Provider: "anthropic", APIKey: key})
//	runner, _ := agent.NewRunner(agent.RunnerConfig{
//		Generator: agent.NewGenerator(provider, agent.GeneratorConfig{Timeout: time.Minute}),
//		Provider:  provider.Provider(),
//		Settings:  planner.DefaultSettings(),
//	})
//	resp, _ := runner.Run(ctx, "What is quantum computing?")
//	_ = resp
package agent
