// Package combat defines the shared model of a pet combat hand: the phases, the
// actions an agent can take, the read-only state snapshot owned by the store, and
// the pure rules derived from it.
//
// # State ownership
//
// A single store owns the canonical State. Everything else reads snapshots through
// StateReader and mutates only by issuing Commands:
//
//	st := store.State()
//	perms := combat.ResolvePermissions(st, combat.SideHuman)
//	if perms.IsMyTurnToAct && perms.CanCall {
//	    _ = store.PerformAction(st.Human.AgentID, combat.Call, perms.CallAmount)
//	}
//
// Snapshots are values. A component that needs to act later must read a fresh
// snapshot at that time rather than hold on to an old one.
//
// # Betting with health
//
// HP is the betting currency. An agent's spendable HP is capped by stamina
// (one stamina point per ten HP), so AvailableHP can be lower than CurrentHealth.
package combat
