package classfile

// Attribute is an attribute this module has no specific model for: it
// is surfaced to ClassVisitor/FieldVisitor/MethodVisitor.VisitAttribute
// verbatim so a caller that only cares about well-known attributes
// (Code, ConstantValue, annotations, ...) never has to deal with it,
// while one that needs a vendor attribute still gets its bytes back
// (spec §4.4 "unknown attributes round-trip opaque").
type Attribute struct {
	Name string
	Data []byte
}

// AttributePrototype describes a decoder for an attribute this module
// does not know natively (supplemented feature: an opt-in extensibility
// hook, grounded in how real JVM tooling has to cope with
// vendor-specific class file attributes).
//
// Read receives the raw attribute_info body (the bytes after the
// 2-byte name index and 4-byte length) and the class's constant pool,
// and returns a structured value for it. Write is the inverse: given
// that value, produce the body bytes again.
//
// Neither ClassReader nor WriteClass calls a registered prototype: the
// reader delivers every non-standard attribute as a plain Attribute,
// and the writer emits an Attribute's Data as stored.
type AttributePrototype interface {
	AttributeName() string
	Read(pool *ConstantPool, body []byte) (interface{}, error)
	Write(pool *poolWriter, value interface{}) ([]byte, error)
}

// prototypeRegistry maps attribute names to a registered AttributePrototype.
type prototypeRegistry struct {
	byName map[string]AttributePrototype
}

func newPrototypeRegistry(prototypes []AttributePrototype) *prototypeRegistry {
	r := &prototypeRegistry{byName: make(map[string]AttributePrototype, len(prototypes))}
	for _, p := range prototypes {
		r.byName[p.AttributeName()] = p
	}
	return r
}

func (r *prototypeRegistry) lookup(name string) (AttributePrototype, bool) {
	if r == nil {
		return nil, false
	}
	p, ok := r.byName[name]
	return p, ok
}

// knownAttributeNames enumerates the attributes this module decodes
// natively rather than handing to the caller as an opaque Attribute or
// a registered AttributePrototype (spec §4.2 attribute catalogue).
var knownAttributeNames = map[string]bool{
	"ConstantValue":                        true,
	"Code":                                 true,
	"StackMapTable":                        true,
	"StackMap":                             true,
	"Exceptions":                           true,
	"InnerClasses":                         true,
	"EnclosingMethod":                      true,
	"Synthetic":                            true,
	"Signature":                            true,
	"SourceFile":                           true,
	"SourceDebugExtension":                 true,
	"LineNumberTable":                      true,
	"LocalVariableTable":                   true,
	"LocalVariableTypeTable":               true,
	"Deprecated":                           true,
	"RuntimeVisibleAnnotations":            true,
	"RuntimeInvisibleAnnotations":          true,
	"RuntimeVisibleParameterAnnotations":   true,
	"RuntimeInvisibleParameterAnnotations": true,
	"RuntimeVisibleTypeAnnotations":        true,
	"RuntimeInvisibleTypeAnnotations":      true,
	"AnnotationDefault":                    true,
	"BootstrapMethods":                     true,
	"MethodParameters":                     true,
	"Module":                               true,
	"ModulePackages":                       true,
	"ModuleMainClass":                      true,
	"NestHost":                             true,
	"NestMembers":                          true,
	"Record":                               true,
	"PermittedSubclasses":                  true,
}
