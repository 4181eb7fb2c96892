package world

import (
	"errors"
	"fmt"
)

var (
	ErrVariableNotFound = errors.New("variable not found")
	ErrVariableType     = errors.New("variable has wrong type")
)

// Variable is a named user field replicated to clients by the host.
// Value holds a float64 or an int.
type Variable struct {
	Name  string
	Value any
}

func DoubleVar(name string, v float64) Variable { return Variable{Name: name, Value: v} }
func IntVar(name string, v int) Variable        { return Variable{Name: name, Value: v} }

// Double returns the value as float64. Integer variables are widened.
func (v Variable) Double() (float64, error) {
	switch n := v.Value.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("%w: %q is %T, want double", ErrVariableType, v.Name, v.Value)
	}
}

func (v Variable) Int() (int, error) {
	n, ok := v.Value.(int)
	if !ok {
		return 0, fmt.Errorf("%w: %q is %T, want int", ErrVariableType, v.Name, v.Value)
	}
	return n, nil
}

// VariableMap indexes a change list by name. Later entries win.
func VariableMap(vars []Variable) map[string]Variable {
	m := make(map[string]Variable, len(vars))
	for _, v := range vars {
		m[v.Name] = v
	}
	return m
}
