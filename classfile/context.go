package classfile

// parseContext threads the state attribute parsing needs beyond the
// raw bytes: the class's constant pool, the caller's registered
// AttributePrototypes, the interest bitset of whichever visitor is
// about to receive the result, and (while inside a Code attribute) the
// label table used to resolve bytecode offsets into *Label values. This
// mirrors the teacher's asm/context.go Context struct, generalized to
// also own the prototype registry.
type parseContext struct {
	pool       *ConstantPool
	prototypes *prototypeRegistry
	interests  Interest

	// labels is non-nil only while reading a Code attribute's body.
	labels *labelTable

	majorVersion int
}

func (c *parseContext) wants(i Interest) bool {
	return c.interests.has(i)
}
