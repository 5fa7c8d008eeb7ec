package runtime

import "fmt"

// HandleCloner is implemented by handle resources that know how to produce
// an independent copy of themselves (a buffer allocates new storage and
// copies its bytes).
type HandleCloner interface {
	CloneHandle(HandleValue) (HandleValue, error)
}

// Duplicate makes the bit-for-bit copy used for copy-marked parameters and
// declarations. Struct instances and sequences get fresh cells all the way
// down so mutating the copy never reaches the original; handles and
// references copy the token, not the resource.
func Duplicate(val Value) Value {
	switch v := val.(type) {
	case *StructInstanceValue:
		fields := make(map[string]*Cell, len(v.Fields))
		for name, cell := range v.Fields {
			fields[name] = duplicateCell(cell)
		}
		return &StructInstanceValue{Definition: v.Definition, Fields: fields}
	case *ReferenceValue:
		return &ReferenceValue{Name: v.Name, Cell: v.Cell, Mutable: v.Mutable}
	case *SequenceValue:
		items := make([]*Cell, len(v.Items))
		for idx, item := range v.Items {
			items[idx] = duplicateCell(item)
		}
		readOnly := make([]bool, len(v.ReadOnly))
		copy(readOnly, v.ReadOnly)
		return &SequenceValue{Items: items, ReadOnly: readOnly}
	default:
		return val
	}
}

func duplicateCell(cell *Cell) *Cell {
	inner := cell.value
	switch inner.(type) {
	case *StructInstanceValue, *SequenceValue:
		inner = Duplicate(inner)
	}
	return &Cell{value: inner, released: cell.released}
}

// DeepCopy follows references and sequences and clones handle resources
// that support it. It backs the clone capability.
func DeepCopy(val Value) (Value, error) {
	switch v := val.(type) {
	case *StructInstanceValue:
		fields := make(map[string]*Cell, len(v.Fields))
		for name, cell := range v.Fields {
			inner, err := cell.Get()
			if err != nil {
				return nil, fmt.Errorf("clone field %s: %w", name, err)
			}
			copied, err := DeepCopy(inner)
			if err != nil {
				return nil, err
			}
			fields[name] = NewCell(copied)
		}
		return &StructInstanceValue{Definition: v.Definition, Fields: fields}, nil
	case *ReferenceValue:
		inner, err := v.Cell.Get()
		if err != nil {
			return nil, &DanglingReferenceError{Name: v.Name}
		}
		copied, err := DeepCopy(inner)
		if err != nil {
			return nil, err
		}
		return &ReferenceValue{Name: v.Name, Cell: NewCell(copied), Mutable: v.Mutable}, nil
	case *SequenceValue:
		items := make([]*Cell, 0, len(v.Items))
		for idx, item := range v.Items {
			inner, err := item.Get()
			if err != nil {
				return nil, fmt.Errorf("clone item %d: %w", idx, err)
			}
			copied, err := DeepCopy(inner)
			if err != nil {
				return nil, err
			}
			items = append(items, NewCell(copied))
		}
		return &SequenceValue{Items: items}, nil
	case HandleValue:
		if cloner, ok := v.Resource.(HandleCloner); ok {
			return cloner.CloneHandle(v)
		}
		return v, nil
	default:
		return val, nil
	}
}
