// Package simulation drives a population of agents across a grid until
// every one of them has reached an exit.
//
// Two strategies share the same per-agent tick (agent.LookAndMove):
//
//   - RunSequential walks the agent list in order, one tick per agent per
//     round, on a single goroutine. Given the same seed it always produces
//     the same exit order.
//   - RunConcurrent starts one goroutine per agent. Workers wait on a
//     Barrier until the engine has finished setup, then loop
//     lock-tick-unlock on a grid.Shared until their agent escapes. Exit
//     order depends on the scheduler; the set of escaped agents does not.
//
// Usage:
//
//	g, agents, err := simulation.Initialize(8, 10, 5, 1)
//	if err != nil {
//	    return err
//	}
//	res, err := simulation.RunConcurrent(ctx, g, agents)
package simulation
