// Package planner drives the plan → execute → evaluate → finish loop that turns
// one query into a synthesized answer.
//
// Invariants:
// - Exactly one phase runs per transition, chosen by State.NextAction.
// - Phases receive a State value and return a new one; snapshots never alias.
// - Generation failures are absorbed by the phase that made the call.
// - Only ErrUnknownAction and ErrStateInvariant abort a run.
//
// Usage:
//
//	graph := planner.NewGraph(gen, planner.DefaultSettings())
//	final, err := graph.Execute(ctx, planner.NewState("What is quantum computing?"))
//	if err != nil {
//		return err
//	}
//	fmt.Println(final.Synthesis)
package planner
