// Package dispatch selects among overloaded methods of the same arity by
// the cost of converting the actual argument types to each candidate's
// parameter types.
package dispatch

import (
	"math"

	"github.com/sdboyer/esbean/jtype"
)

// NoMatch is returned by Select when no candidate accepts the arguments.
const NoMatch = -1

// Infinite is the cost of a candidate that cannot accept the arguments.
const Infinite = math.MaxInt

// Per-parameter conversion costs.
const (
	CostExact      = 0
	CostAssignable = 10
	CostNull       = 50
	CostVoid       = 50
	CostPrimitive  = 100
)

// ParamCost is the cost of passing a value of type arg to a parameter of
// type param.
func ParamCost(param, arg jtype.Type) int {
	switch {
	case jtype.Identical(param, arg):
		return CostExact
	case arg.Kind() == jtype.Null:
		return CostNull
	case arg.Kind() == jtype.Void:
		return CostVoid
	case arg.AssignableTo(param):
		return CostAssignable
	case param.Kind().IsPrimitive() && arg.Kind().IsPrimitive():
		return CostPrimitive
	}
	return Infinite
}

// Cost sums the parameter costs of a candidate. Arguments missing from args
// count as void; extra arguments are ignored.
func Cost(params, args []jtype.Type) int {
	total := 0
	for i, p := range params {
		arg := jtype.VoidType
		if i < len(args) && args[i] != nil {
			arg = args[i]
		}
		c := ParamCost(p, arg)
		if c == Infinite {
			return Infinite
		}
		total += c
	}
	return total
}

// Select returns the index of the cheapest candidate, or NoMatch. Ties go
// to the earlier candidate.
func Select(cands [][]jtype.Type, args []jtype.Type) int {
	best, bestCost := NoMatch, Infinite
	for i, params := range cands {
		if c := Cost(params, args); c < bestCost {
			best, bestCost = i, c
		}
	}
	return best
}

// Dispatcher is a fixed candidate list, as embedded in a wrapper for one
// overload group. It is immutable and safe for concurrent use.
type Dispatcher struct {
	cands [][]jtype.Type
}

// New returns a Dispatcher over cands.
func New(cands [][]jtype.Type) *Dispatcher {
	cp := make([][]jtype.Type, len(cands))
	for i, c := range cands {
		cp[i] = append([]jtype.Type(nil), c...)
	}
	return &Dispatcher{cands: cp}
}

// Len is the number of candidates.
func (d *Dispatcher) Len() int { return len(d.cands) }

// Select returns the index of the cheapest candidate for args, or NoMatch.
func (d *Dispatcher) Select(args []jtype.Type) int {
	return Select(d.cands, args)
}
