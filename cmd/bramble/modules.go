package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kristofer/bramble/pkg/value"
	"github.com/kristofer/bramble/pkg/vm"
)

// knownModules names the host modules --modules accepts. Graphics,
// windowing, and I/O are explicit non-goals of this core (spec's own
// words: "stay external collaborators — the core only defines the
// function-call/registration ABI they plug into"), so registering one
// doesn't wire any actual behavior — it populates a global object a
// host embedding can later attach native methods to, the same way
// vm.RegisterNative adds any other callable.
var knownModules = map[string]bool{
	"graphics": true,
	"window":   true,
	"io":       true,
}

// registerModules populates machine's global environment with one
// placeholder object per requested module name, ahead of vm.Run.
func registerModules(machine *vm.VM, names []string) error {
	for _, name := range names {
		if !knownModules[name] {
			known := make([]string, 0, len(knownModules))
			for k := range knownModules {
				known = append(known, k)
			}
			sort.Strings(known)
			return fmt.Errorf("unknown module %q (known: %s)", name, strings.Join(known, ", "))
		}
		obj := value.NewObject()
		obj.Set("name", value.Str(name))
		obj.Set("available", value.Bool(false))
		machine.SetGlobal(name, value.Obj(obj))
	}
	return nil
}
