package classfile

// Label flags, ported from the teacher's asm/label.go bit layout.
const (
	flagDebugOnly = 1 << iota
	flagResolved
)

// Label is an opaque method-local identifier for a bytecode offset (spec
// §3.2). During reading, a Label carries the offset it was minted at;
// labels are shared across every reference to the same offset within one
// Code body (labelTable.getOrCreate interns by offset). During writing, a Label
// starts with no offset and the writer fills it in once the instruction
// stream's layout is fixed; comparing two labels by pointer identity is
// always well-defined, even before resolution.
type Label struct {
	flags  int
	offset int // valid only once flags&flagResolved != 0
}

// NewLabel returns a fresh, unresolved label for use when building a
// Code body to be written (the writer assigns offsets as it emits).
func NewLabel() *Label { return &Label{} }

// Offset returns the bytecode offset this label has been resolved to.
// The second return value is false if the label has not been resolved
// yet (only possible mid-write; a reader always resolves every label it
// mints before returning a tree).
func (l *Label) Offset() (int, bool) {
	if l.flags&flagResolved == 0 {
		return 0, false
	}
	return l.offset, true
}

func (l *Label) resolve(offset int) {
	l.offset = offset
	l.flags |= flagResolved
}

// debugOnly reports whether a label was minted only for a stack-map
// ITEM_UNINITIALIZED operand, with no branch, switch, exception-table,
// line-number or local-variable reference to the same offset. Nothing in
// this package consults it.
func (l *Label) debugOnly() bool { return l.flags&flagDebugOnly != 0 }

// labelTable interns labels by bytecode offset during reading, so every
// control-flow instruction, exception handler, local-variable range,
// line-number entry, and stack-map entry referencing the same offset
// shares one Label instance (spec §3.2).
type labelTable struct {
	byOffset map[int]*Label
}

func newLabelTable() *labelTable {
	return &labelTable{byOffset: make(map[int]*Label)}
}

// getOrCreate returns the shared label for offset, creating and
// resolving it if this is the first reference.
func (t *labelTable) getOrCreate(offset int) *Label {
	if l, ok := t.byOffset[offset]; ok {
		return l
	}
	l := &Label{}
	l.resolve(offset)
	t.byOffset[offset] = l
	return l
}

// markReal clears the debug-only flag on a label that turns out to also
// be a real branch target (a stack-map uninitialized operand and a goto
// can name the same offset; the label first minted for the operand
// should not stay marked debug-only).
func (t *labelTable) markReal(offset int) *Label {
	l := t.getOrCreate(offset)
	l.flags &^= flagDebugOnly
	return l
}

func (t *labelTable) markDebugOnly(offset int) {
	if _, ok := t.byOffset[offset]; !ok {
		l := &Label{flags: flagDebugOnly}
		l.resolve(offset)
		t.byOffset[offset] = l
	}
}
