package runtime

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUndeclared    = errors.New("undeclared identifier")
	ErrOutOfBounds   = errors.New("index out of bounds")
	ErrUninitialized = errors.New("uninitialized array cell")
	ErrNotArray      = errors.New("identifier is not an array")
	ErrNotScalar     = errors.New("identifier is an array")
)

// CellID addresses a storage cell in the environment arena.
type CellID int32

const noCell CellID = -1

type array struct {
	kind  Kind
	slots []CellID
}

// Environment maps names to storage. Scalars and arrays live in disjoint
// namespaces; every cell is owned by the cells arena and names are never
// removed during a run.
type Environment struct {
	cells   []Value
	scalars map[string]CellID
	arrays  map[string]*array
}

// NewEnvironment creates an empty environment.
func NewEnvironment() *Environment {
	return &Environment{
		scalars: make(map[string]CellID),
		arrays:  make(map[string]*array),
	}
}

func (e *Environment) alloc(v Value) CellID {
	e.cells = append(e.cells, v)
	return CellID(len(e.cells) - 1)
}

// IsDeclared reports whether name exists in either namespace.
func (e *Environment) IsDeclared(name string) bool {
	if _, ok := e.scalars[name]; ok {
		return true
	}
	_, ok := e.arrays[name]
	return ok
}

// Declare creates a zero-valued scalar. Declaring an existing name is a
// no-op, so re-entering a block does not reset its variables.
func (e *Environment) Declare(name string, kind Kind) {
	if e.IsDeclared(name) {
		return
	}
	e.scalars[name] = e.alloc(Zero(kind))
}

// DeclareArray reserves size slots whose cells materialize on first write.
// Like Declare it is idempotent.
func (e *Environment) DeclareArray(name string, kind Kind, size int) {
	if e.IsDeclared(name) {
		return
	}
	slots := make([]CellID, size)
	for i := range slots {
		slots[i] = noCell
	}
	e.arrays[name] = &array{kind: kind, slots: slots}
}

// KindOf returns the declared element kind of name.
func (e *Environment) KindOf(name string) (Kind, error) {
	if id, ok := e.scalars[name]; ok {
		return e.cells[id].kind, nil
	}
	if arr, ok := e.arrays[name]; ok {
		return arr.kind, nil
	}
	return 0, fmt.Errorf("%w %s", ErrUndeclared, name)
}

func (e *Environment) scalar(name string) (CellID, error) {
	if id, ok := e.scalars[name]; ok {
		return id, nil
	}
	if _, ok := e.arrays[name]; ok {
		return noCell, fmt.Errorf("%w: %s", ErrNotScalar, name)
	}
	return noCell, fmt.Errorf("%w %s", ErrUndeclared, name)
}

// Read returns the current value of a scalar.
func (e *Environment) Read(name string) (Value, error) {
	id, err := e.scalar(name)
	if err != nil {
		return Value{}, err
	}
	return e.cells[id], nil
}

// Write copies v into the existing cell of a scalar. The caller has already
// checked that v has the declared kind.
func (e *Environment) Write(name string, v Value) error {
	id, err := e.scalar(name)
	if err != nil {
		return err
	}
	e.cells[id] = v
	return nil
}

func (e *Environment) slot(name string, index int64) (*array, int, error) {
	arr, ok := e.arrays[name]
	if !ok {
		if _, scalar := e.scalars[name]; scalar {
			return nil, 0, fmt.Errorf("%w: %s", ErrNotArray, name)
		}
		return nil, 0, fmt.Errorf("%w %s", ErrUndeclared, name)
	}
	if index < 0 || index >= int64(len(arr.slots)) {
		return nil, 0, fmt.Errorf("%w on %s array: index %d, size %d", ErrOutOfBounds, name, index, len(arr.slots))
	}
	return arr, int(index), nil
}

// ReadIndexed returns the value of one array cell.
func (e *Environment) ReadIndexed(name string, index int64) (Value, error) {
	arr, i, err := e.slot(name, index)
	if err != nil {
		return Value{}, err
	}
	id := arr.slots[i]
	if id == noCell {
		return Value{}, fmt.Errorf("%w: %s[%d]", ErrUninitialized, name, index)
	}
	return e.cells[id], nil
}

// WriteIndexed stores v into one array cell, materializing it if needed.
func (e *Environment) WriteIndexed(name string, index int64, v Value) error {
	arr, i, err := e.slot(name, index)
	if err != nil {
		return err
	}
	if arr.slots[i] == noCell {
		arr.slots[i] = e.alloc(Zero(arr.kind))
	}
	e.cells[arr.slots[i]] = v
	return nil
}

// Cells reports how many cells have been allocated.
func (e *Environment) Cells() int { return len(e.cells) }

// Binding is a read-only view of one declared name.
type Binding struct {
	Name  string
	Kind  Kind
	Size  int      // 0 for scalars
	Value Value    // scalars only
	Cells []*Value // arrays only; nil entries are unmaterialized
}

// Format renders b as a declaration with its contents, e.g. "int i = 2" or
// "boolean b[2] = [_ 1]" where _ marks a cell never written.
func (b Binding) Format(f BoolFormat) string {
	if b.Cells == nil {
		return fmt.Sprintf("%s %s = %s", b.Kind, b.Name, b.Value.Format(f))
	}
	cells := make([]string, len(b.Cells))
	for i, c := range b.Cells {
		if c == nil {
			cells[i] = "_"
		} else {
			cells[i] = c.Format(f)
		}
	}
	return fmt.Sprintf("%s %s[%d] = [%s]", b.Kind, b.Name, b.Size, strings.Join(cells, " "))
}

// Lookup returns the binding for name.
func (e *Environment) Lookup(name string) (Binding, bool) {
	for _, b := range e.Snapshot() {
		if b.Name == name {
			return b, true
		}
	}
	return Binding{}, false
}

// Snapshot returns every binding sorted by name (useful for determinism in
// tests and the REPL).
func (e *Environment) Snapshot() []Binding {
	out := make([]Binding, 0, len(e.scalars)+len(e.arrays))
	for name, id := range e.scalars {
		v := e.cells[id]
		out = append(out, Binding{Name: name, Kind: v.kind, Value: v})
	}
	for name, arr := range e.arrays {
		b := Binding{Name: name, Kind: arr.kind, Size: len(arr.slots), Cells: make([]*Value, len(arr.slots))}
		for i, id := range arr.slots {
			if id != noCell {
				v := e.cells[id]
				b.Cells[i] = &v
			}
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
