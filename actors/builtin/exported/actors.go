package exported

import (
	"github.com/DianaJonathan/timecapsule/actors/builtin/capsule"
	"github.com/DianaJonathan/timecapsule/actors/builtin/system"
	"github.com/DianaJonathan/timecapsule/actors/runtime"
)

// BuiltinActors returns every actor implementation a VM should install.
func BuiltinActors() []runtime.VMActor {
	return []runtime.VMActor{
		system.Actor{},
		capsule.Actor{},
	}
}
