package hierarchy

import "fmt"

// Parameters describes one inheritor search. The zero value is invalid; use
// NewParameters.
type Parameters struct {
	root             *Class
	scope            Scope
	checkDeep        bool
	checkInheritance bool
}

// NewParameters builds an immutable search request.
//
// checkDeep follows inheritance transitively instead of stopping at direct
// inheritors. checkInheritance re-verifies every index candidate even for
// shallow searches.
func NewParameters(root *Class, scope Scope, checkDeep, checkInheritance bool) Parameters {
	return Parameters{
		root:             root,
		scope:            scope,
		checkDeep:        checkDeep,
		checkInheritance: checkInheritance,
	}
}

func (p Parameters) Root() *Class           { return p.root }
func (p Parameters) Scope() Scope           { return p.scope }
func (p Parameters) CheckDeep() bool        { return p.checkDeep }
func (p Parameters) CheckInheritance() bool { return p.checkInheritance }

// Validate reports a contract violation in p.
func (p Parameters) Validate() error {
	if p.root == nil {
		return fmt.Errorf("%w: nil root class", ErrInvalidParameters)
	}
	if p.scope == nil {
		return fmt.Errorf("%w: nil scope", ErrInvalidParameters)
	}
	return nil
}

func (p Parameters) String() string {
	scope := "<nil>"
	if p.scope != nil {
		scope = p.scope.String()
	}
	return fmt.Sprintf("inheritors(%s, %s, deep=%t, verify=%t)",
		p.root.DisplayName(), scope, p.checkDeep, p.checkInheritance)
}
