// Package trinary implements three-valued (Kleene) logic used by the motion
// statechart's conditions.
//
// Unknown means "not yet decidable". It is absorbing under AND only when no
// operand is False, and under OR only when no operand is True:
//
//	AND | F U T      OR | F U T      NOT |
//	----+------      ---+------      ----+--
//	 F  | F F F       F | F U T       F  | T
//	 U  | F U U       U | U U T       U  | U
//	 T  | F U T       T | T T T       T  | F
package trinary

import "fmt"

// Value is a tri-valued truth value. The zero value is Unknown.
type Value int8

const (
	Unknown Value = iota
	False
	True
)

// FromBool converts a boolean to False or True.
func FromBool(b bool) Value {
	if b {
		return True
	}
	return False
}

// IsTrue reports whether v is exactly True.
func (v Value) IsTrue() bool { return v == True }

// IsFalse reports whether v is exactly False.
func (v Value) IsFalse() bool { return v == False }

// IsUnknown reports whether v is Unknown, including out-of-range values.
func (v Value) IsUnknown() bool { return v != True && v != False }

// Bool returns the boolean value and whether it was decidable.
func (v Value) Bool() (value, ok bool) {
	switch v {
	case True:
		return true, true
	case False:
		return false, true
	default:
		return false, false
	}
}

// Not returns the negation. Unknown stays Unknown.
func (v Value) Not() Value {
	switch v {
	case True:
		return False
	case False:
		return True
	default:
		return Unknown
	}
}

// And folds values with Kleene conjunction. The empty conjunction is True.
func And(values ...Value) Value {
	result := True
	for _, v := range values {
		switch {
		case v == False:
			return False
		case v.IsUnknown():
			result = Unknown
		}
	}
	return result
}

// Or folds values with Kleene disjunction. The empty disjunction is False.
func Or(values ...Value) Value {
	result := False
	for _, v := range values {
		switch {
		case v == True:
			return True
		case v.IsUnknown():
			result = Unknown
		}
	}
	return result
}

// Float returns the numeric encoding (0, 0.5, 1) under which AND is min,
// OR is max and NOT is 1-x.
func (v Value) Float() float64 {
	switch v {
	case True:
		return 1
	case False:
		return 0
	default:
		return 0.5
	}
}

// FromFloat maps the numeric encoding back, rounding to the nearest value.
func FromFloat(f float64) Value {
	switch {
	case f >= 0.75:
		return True
	case f <= 0.25:
		return False
	default:
		return Unknown
	}
}

func (v Value) String() string {
	switch v {
	case True:
		return "true"
	case False:
		return "false"
	case Unknown:
		return "unknown"
	default:
		return fmt.Sprintf("Value(%d)", int8(v))
	}
}
