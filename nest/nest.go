// Package nest implements the nest resolver spec §4.11 describes:
// applying a "nests" description (inner/anonymous/local class
// relationships) to a jar's classes by rewriting their EnclosingMethod
// and InnerClasses attributes, with an optional pass that remaps the
// flat `C_xxx` simple names those relationships replace.
//
// No repo in the pack does this; built from spec §4.11. The optional
// class-name-remapping pass reuses mappings.ARemapper (DESIGN.md). The
// descriptor document format is decoded with gopkg.in/yaml.v3, mirroring
// viant-linager's own yaml config loading.
package nest

import (
	"io"
	"regexp"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/ludoforge/classkit/classfile"
	"github.com/ludoforge/classkit/mappings"
)

// ErrNest is the sentinel wrapped by every nest package failure.
var ErrNest = errors.New("nest: error")

// Kind discriminates the three nest relationships spec §4.11 names.
type Kind string

const (
	Anonymous Kind = "anonymous"
	Inner     Kind = "inner"
	Local     Kind = "local"
)

// Descriptor is one nest record: a target class and how it relates to
// its enclosing class (spec §4.11).
type Descriptor struct {
	Target              string `yaml:"target"`
	Enclosing           string `yaml:"enclosing"`
	EnclosingMethodName string `yaml:"enclosingMethodName,omitempty"`
	EnclosingMethodDesc string `yaml:"enclosingMethodDescriptor,omitempty"`
	InnerName           string `yaml:"innerName,omitempty"`
	Access              int    `yaml:"access"`
	Kind                Kind   `yaml:"kind"`
}

// LoadDescriptors decodes a YAML document listing nest descriptors.
func LoadDescriptors(r io.Reader) ([]Descriptor, error) {
	var out []Descriptor
	if err := yaml.NewDecoder(r).Decode(&out); err != nil {
		return nil, errors.Wrap(ErrNest, err.Error())
	}
	return out, nil
}

var leadingDigits = regexp.MustCompile(`^[0-9]+`)

// stripLeadingDigitPrefix removes the leading digit run javac prepends
// to a local class's simple name (e.g. "1Helper" -> "Helper"), per spec
// §4.11's explicit rule for local-class inner names.
func stripLeadingDigitPrefix(name string) string {
	return leadingDigits.ReplaceAllString(name, "")
}

func (d Descriptor) innerClassEntry() classfile.InnerClassEntry {
	e := classfile.InnerClassEntry{Name: d.Target, Access: d.Access}
	if d.Kind == Inner {
		e.OuterName = d.Enclosing
	}
	if d.Kind == Inner || d.Kind == Local {
		e.InnerName = stripLeadingDigitPrefix(d.InnerName)
	}
	return e
}

// Apply rewrites node (whose Name must equal d.Target) in place: sets
// EnclosingMethod for anonymous/local nests and appends an InnerClasses
// entry (spec §4.11 a/b).
func Apply(node *classfile.ClassNode, d Descriptor) error {
	if node.Name != d.Target {
		return errors.Wrapf(ErrNest, "descriptor targets %q, got class %q", d.Target, node.Name)
	}
	if d.Kind == Anonymous || d.Kind == Local {
		node.OuterClass.Owner = d.Enclosing
		node.OuterClass.Name = d.EnclosingMethodName
		node.OuterClass.Descriptor = d.EnclosingMethodDesc
		node.OuterClass.Present = true
	}
	node.InnerClasses = append(node.InnerClasses, d.innerClassEntry())
	return nil
}

// ApplyEnclosing appends the same InnerClasses entry to the enclosing
// class's own attribute, matching javac's convention of recording a
// nest relationship on both the inner and the referencing outer class.
func ApplyEnclosing(enclosing *classfile.ClassNode, d Descriptor) error {
	if enclosing.Name != d.Enclosing {
		return errors.Wrapf(ErrNest, "descriptor encloses %q, got class %q", d.Enclosing, enclosing.Name)
	}
	enclosing.InnerClasses = append(enclosing.InnerClasses, d.innerClassEntry())
	return nil
}

// ClassNameMap builds the flat-name -> "Outer$Inner" remapping table for
// every Inner/Local descriptor that carries an inner simple name, for
// use as the `classes` table of a mappings.ARemapper (spec §4.11 "also
// remaps class names so that Outer$Inner replaces the flat C_xxx simple
// name everywhere").
func ClassNameMap(descriptors []Descriptor) map[string]string {
	out := make(map[string]string)
	for _, d := range descriptors {
		if d.Kind != Inner && d.Kind != Local {
			continue
		}
		if d.InnerName == "" {
			continue
		}
		out[d.Target] = d.Enclosing + "$" + stripLeadingDigitPrefix(d.InnerName)
	}
	return out
}

// RemapClassNames returns a mappings.ARemapper derived from descriptors
// via ClassNameMap, ready to rewrite every reference to a resolved
// nest's flat name across a jar's classes.
func RemapClassNames(descriptors []Descriptor) *mappings.ARemapper {
	return mappings.NewARemapper(ClassNameMap(descriptors))
}
