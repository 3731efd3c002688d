// Package cp provides constraint programming abstractions.
// This file defines IntVar, the decision variable of a Model.
package cp

import "fmt"

// IntVar is a finite-domain decision variable.
//
// IntVar stores the initial domain. During solving, the Solver tracks the
// current domain by ID inside SolverState, so a Model and its variables can
// be shared by parallel workers without copying.
type IntVar struct {
	id      int
	name    string
	domain  Domain
	boolean bool
}

// ID returns the index of the variable in its model.
func (v *IntVar) ID() int {
	return v.id
}

// Name returns the debugging name given at creation.
func (v *IntVar) Name() string {
	return v.name
}

// Domain returns the initial domain.
func (v *IntVar) Domain() Domain {
	return v.domain
}

// IsBool reports whether the variable was created with BoolVar.
func (v *IntVar) IsBool() bool {
	return v.boolean
}

// IsBound reports whether the initial domain is a singleton.
func (v *IntVar) IsBound() bool {
	return v.domain.IsSingleton()
}

func (v *IntVar) String() string {
	if v.name != "" {
		return fmt.Sprintf("%s%s", v.name, v.domain)
	}
	return fmt.Sprintf("v%d%s", v.id, v.domain)
}
