package bridge

import (
	"github.com/pkg/errors"

	"github.com/ludoforge/classkit/mappings"
)

// Remap rewrites every MethodRef in p through a so the pairing speaks
// in a's target namespace instead of the namespace it was built in
// (spec §4.10 "These can be remapped through an A-remapper").
func (p *Pairing) Remap(a *mappings.ARemapper) (*Pairing, error) {
	out := &Pairing{
		BridgeToSpecialized: make(map[MethodRef]MethodRef, len(p.BridgeToSpecialized)),
		SpecializedToBridge: make(map[MethodRef]MethodRef, len(p.SpecializedToBridge)),
	}
	for s, t := range p.BridgeToSpecialized {
		rs, err := remapRef(a, s)
		if err != nil {
			return nil, err
		}
		rt, err := remapRef(a, t)
		if err != nil {
			return nil, err
		}
		out.BridgeToSpecialized[rs] = rt
		out.SpecializedToBridge[rt] = rs
	}
	return out, nil
}

func remapRef(a *mappings.ARemapper, ref MethodRef) (MethodRef, error) {
	desc, err := a.MapMethodDesc(ref.Descriptor)
	if err != nil {
		return MethodRef{}, errors.Wrapf(err, "remap method ref %s.%s%s", ref.Owner, ref.Name, ref.Descriptor)
	}
	return MethodRef{Owner: a.MapClass(ref.Owner), Name: ref.Name, Descriptor: desc}, nil
}

// RepairMappings is the consumer spec §4.10 describes: for every
// bridge->specialized pair, look up the bridge method's name in
// targetNamespace within m and, if found, write a mapping for the
// specialized method under that same name (with the specialized
// method's own descriptor), so a mapping inconsistency where only the
// bridge carries a meaningful name is repaired onto the method that
// actually survives erasure.
func RepairMappings(m *mappings.Mappings, targetNamespace string, pairing *Pairing) error {
	nsIdx, ok := m.NamespaceIndex(targetNamespace)
	if !ok {
		return errors.Wrapf(mappings.ErrMappingSemantic, "unknown namespace %q", targetNamespace)
	}

	for bridgeRef, specRef := range pairing.BridgeToSpecialized {
		classMapping, ok := m.Classes.Get(bridgeRef.Owner)
		if !ok {
			continue
		}
		bridgeMethod, ok := classMapping.Methods.Get(mappings.MethodKey{Descriptor: bridgeRef.Descriptor, Name: bridgeRef.Name})
		if !ok {
			continue
		}
		targetName, ok := bridgeMethod.Names.Name(nsIdx)
		if !ok {
			continue
		}

		specClass, err := m.AddClass(namesFor(m, specRef.Owner))
		if err != nil {
			return errors.Wrapf(err, "bridge repair: class %s", specRef.Owner)
		}
		key := mappings.MethodKey{Descriptor: specRef.Descriptor, Name: specRef.Name}
		if existing, ok := specClass.Methods.Get(key); ok {
			existing.Names.Values[nsIdx] = targetName
			continue
		}
		methodNames := namesFor(m, specRef.Name)
		methodNames.Values[nsIdx] = targetName
		if _, err := specClass.AddMethod(specRef.Descriptor, methodNames); err != nil {
			return errors.Wrapf(err, "bridge repair: method %s.%s%s", specRef.Owner, specRef.Name, specRef.Descriptor)
		}
	}
	return nil
}

func namesFor(m *mappings.Mappings, ns0 string) mappings.Names {
	names := mappings.NewNames(len(m.Namespaces))
	names.Values[0] = ns0
	return names
}
