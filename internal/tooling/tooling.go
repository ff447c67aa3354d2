package tooling

import "lcod/internal/registry"

// Register wires every built-in tooling component onto reg: structured
// logging, scoped log tags, registry scoping with inline components, the
// compose/run_slot contract, and the embedded script bridge.
func Register(reg *registry.Registry) {
	RegisterLogging(reg)
	RegisterRegistryScope(reg)
	RegisterComposeContracts(reg)
	RegisterScript(reg)
}
