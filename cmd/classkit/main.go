// Command classkit is a thin demonstration binary in the teacher's own
// style: plain os.Args dispatch, no flag/cobra framework (CLI parsing
// is an explicit non-goal, spec §1). It exercises the library end to
// end the way the teacher's own main.go exercised ClassReader.
package main

import (
	"fmt"
	"os"

	"github.com/ludoforge/classkit/classfile"
	"github.com/ludoforge/classkit/mappings"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "dump":
		err = dump(os.Args[2:])
	case "mapdiff":
		err = mapdiff(os.Args[2:])
	case "mapapply":
		err = mapapply(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: classkit dump <class-file>")
	fmt.Fprintln(os.Stderr, "       classkit mapdiff <a.tiny> <b.tiny>")
	fmt.Fprintln(os.Stderr, "       classkit mapapply <base.tiny> <diff.tiny>")
}

func dump(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("dump: missing class-file argument")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	r, err := classfile.NewClassReader(data)
	if err != nil {
		return err
	}
	node := classfile.NewClassNode()
	if err := r.Accept(node); err != nil {
		return err
	}

	fmt.Printf("class %s extends %s version %d\n", node.Name, node.SuperName, node.Version)
	for _, itf := range node.Interfaces {
		fmt.Printf("  implements %s\n", itf)
	}
	for _, f := range node.Fields {
		fmt.Printf("  field %s %s access=%#x\n", f.Name, f.Descriptor, f.Access)
	}
	for _, m := range node.Methods {
		insns := 0
		if m.Code != nil {
			insns = len(m.Code.Instructions)
		}
		fmt.Printf("  method %s%s access=%#x instructions=%d\n", m.Name, m.Descriptor, m.Access, insns)
	}
	return nil
}

func mapdiff(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("mapdiff: need <a.tiny> <b.tiny>")
	}
	a, err := readMappings(args[0])
	if err != nil {
		return err
	}
	b, err := readMappings(args[1])
	if err != nil {
		return err
	}
	d, err := mappings.Diff(a, b)
	if err != nil {
		return err
	}
	fmt.Print(mappings.EncodeDiff(d))
	return nil
}

func mapapply(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("mapapply: need <base.tiny> <diff.tiny>")
	}
	base, err := readMappings(args[0])
	if err != nil {
		return err
	}
	diffFile, err := os.Open(args[1])
	if err != nil {
		return err
	}
	defer diffFile.Close()
	d, err := mappings.DecodeDiff(diffFile)
	if err != nil {
		return err
	}
	out, err := mappings.Apply(d, base, base.Namespaces)
	if err != nil {
		return err
	}
	text, err := mappings.Encode(out)
	if err != nil {
		return err
	}
	fmt.Print(text)
	return nil
}

func readMappings(path string) (*mappings.Mappings, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return mappings.Decode(f)
}
