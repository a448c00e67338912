package jarfile

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/minio/highwayhash"
	"github.com/pkg/errors"
	"go.mozilla.org/pkcs7"

	"github.com/ludoforge/classkit/classfile"
	"github.com/ludoforge/classkit/classfile/descriptor"
)

// Side names the sided jar an entry or member came from (spec §4.9).
type Side string

const (
	Client Side = "CLIENT"
	Server Side = "SERVER"
)

// hashKey is an arbitrary fixed 32-byte HighwayHash key; the merger
// only needs collision resistance, not a shared secret, to fingerprint
// entry bytes for the "both sides have it and bytes are identical" fast
// path (spec §4.9, mirrors viant-linager's inspector/graph.Hash use of
// highwayhash.New64).
var hashKey = []byte("classkit-jar-merge-fingerprint32")

func fingerprint(data []byte) (uint64, error) {
	h, err := highwayhash.New64(hashKey)
	if err != nil {
		return 0, err
	}
	if _, err := h.Write(data); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}

// environmentDescriptor is the descriptor of @net/fabricmc/api/Environment,
// which environmentAnnotation pins to CLIENT or SERVER; no other
// loader's equivalent annotation is emitted.
const environmentDescriptor = "Lnet/fabricmc/api/Environment;"
const environmentInterfaceDescriptor = "Lnet/fabricmc/api/EnvironmentInterface;"
const environmentInterfacesDescriptor = "Lnet/fabricmc/api/EnvironmentInterfaces;"

func environmentAnnotation(side Side) classfile.Annotation {
	return classfile.Annotation{
		Descriptor: environmentDescriptor,
		Values: []classfile.ElementValue{
			{Name: "value", Value: &classfile.EnumValue{Descriptor: "Lnet/fabricmc/api/EnvType;", Value: string(side)}},
		},
	}
}

// isMinecraftClass reports whether a class name should receive the
// sided @Environment annotation when it appears on only one side (spec
// §4.9's "net/minecraft/ or archive root" heuristic).
func isMinecraftClass(internalName string) bool {
	return strings.HasPrefix(internalName, "net/minecraft/") || !strings.Contains(internalName, "/")
}

// Merge unions a client and a server jar into a single annotated jar
// written to w (spec §4.9). Entry order is client order, then any
// server-only entries in server order.
func Merge(ctx context.Context, client, server *Jar, w io.Writer) error {
	zw := zip.NewWriter(w)
	defer zw.Close()

	seen := make(map[string]bool, len(client.names)+len(server.names))
	order := append([]string(nil), client.names...)
	for _, n := range server.names {
		if _, ok := client.index[n]; !ok {
			order = append(order, n)
			seen[n] = true
		}
	}

	for _, name := range order {
		ce, cok := client.index[name]
		se, sok := server.index[name]

		switch {
		case cok && !sok:
			if err := emitOneSided(zw, client, ce, Client); err != nil {
				return err
			}
		case !cok && sok:
			if err := emitOneSided(zw, server, se, Server); err != nil {
				return err
			}
		default:
			if err := emitBoth(ctx, zw, client, server, ce, se); err != nil {
				return err
			}
		}
	}
	return nil
}

func emitOneSided(zw *zip.Writer, jar *Jar, e *Entry, side Side) error {
	if e.Kind != EntryClass || !isMinecraftClass(strings.TrimSuffix(e.Name, ".class")) {
		return copyEntry(zw, jar, e)
	}
	node, err := jar.ClassNode(e.Name)
	if err != nil {
		return err
	}
	node.VisibleAnnotations = append(node.VisibleAnnotations, environmentAnnotation(side))
	return writeClassEntry(zw, e.Name, node, e.ModTime)
}

func emitBoth(ctx context.Context, zw *zip.Writer, client, server *Jar, ce, se *Entry) error {
	switch strings.ToUpper(ce.Name) {
	case "META-INF/MANIFEST.MF":
		return writeRawEntry(zw, ce.Name, minimalManifest(), ce.ModTime)
	}
	if isSignatureFile(ce.Name) {
		if data, err := client.Bytes(ce.Name); err == nil {
			inspectSignature(ctx, ce.Name, data)
		}
		return nil // dropped (spec §4.9)
	}

	cb, err := client.Bytes(ce.Name)
	if err != nil {
		return err
	}
	sb, err := server.Bytes(se.Name)
	if err != nil {
		return err
	}

	identical, err := bytesIdentical(cb, sb)
	if err != nil {
		return err
	}
	if identical {
		return writeRawEntry(zw, ce.Name, cb, ce.ModTime)
	}

	if ce.Kind != EntryClass {
		// Non-class files differ: keep the client's copy (spec §4.9).
		return writeRawEntry(zw, ce.Name, cb, ce.ModTime)
	}

	cNode, err := client.ClassNode(ce.Name)
	if err != nil {
		return err
	}
	sNode, err := server.ClassNode(se.Name)
	if err != nil {
		return err
	}
	merged := mergeClass(cNode, sNode)
	return writeClassEntry(zw, ce.Name, merged, ce.ModTime)
}

// bytesIdentical fingerprints both sides with HighwayHash before
// falling back to a full comparison, so the common "both sides agree"
// case costs one hash each instead of a byte-for-byte memcmp (spec
// §4.9 "bytes are identical").
func bytesIdentical(a, b []byte) (bool, error) {
	if len(a) != len(b) {
		return false, nil
	}
	ha, err := fingerprint(a)
	if err != nil {
		return false, errors.Wrap(err, "jarfile: fingerprint")
	}
	hb, err := fingerprint(b)
	if err != nil {
		return false, errors.Wrap(err, "jarfile: fingerprint")
	}
	if ha != hb {
		return false, nil
	}
	return bytes.Equal(a, b), nil
}

func isSignatureFile(name string) bool {
	if !strings.HasPrefix(strings.ToUpper(name), "META-INF/") {
		return false
	}
	upper := strings.ToUpper(name)
	return strings.HasSuffix(upper, ".SF") || strings.HasSuffix(upper, ".RSA") || strings.HasSuffix(upper, ".DSA")
}

// inspectSignature parses a signature-block entry as a PKCS#7 SignedData
// structure purely to log its signer before the caller discards it
// (spec §4.9 "drop META-INF/*.{SF,RSA}"; DESIGN.md). Parse failures are
// logged and swallowed: the block is being dropped either way.
func inspectSignature(ctx context.Context, name string, data []byte) {
	p7, err := pkcs7.Parse(data)
	if err != nil {
		slog.DebugContext(ctx, "jarfile: unparsable signature block, dropping", "entry", name, "error", err)
		return
	}
	for _, cert := range p7.Certificates {
		slog.DebugContext(ctx, "jarfile: dropping signed entry", "entry", name, "signer", cert.Subject.CommonName)
	}
}

func minimalManifest() []byte {
	return []byte("Manifest-Version: 1.0\r\n\r\n")
}

func copyEntry(zw *zip.Writer, jar *Jar, e *Entry) error {
	data, err := jar.Bytes(e.Name)
	if err != nil {
		return err
	}
	return writeRawEntry(zw, e.Name, data, e.ModTime)
}

// writeRawEntry preserves the client entry's mtime when it carries one
// (spec §6.4 "the jar merger preserves mtime from the client entry when
// both sides carry one").
func writeRawEntry(zw *zip.Writer, name string, data []byte, modTime int64) error {
	hdr := &zip.FileHeader{Name: name, Method: zip.Deflate}
	if modTime > 0 {
		hdr.Modified = time.Unix(modTime, 0).UTC()
	}
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return errors.Wrapf(ErrJar, "create entry %q: %v", name, err)
	}
	_, err = w.Write(data)
	return err
}

func writeClassEntry(zw *zip.Writer, name string, node *classfile.ClassNode, modTime int64) error {
	data, err := classfile.WriteClass(node)
	if err != nil {
		return errors.Wrapf(err, "write merged class %q", name)
	}
	return writeRawEntry(zw, name, data, modTime)
}

// mergeClass structurally merges two class files that differ, per
// spec §4.9: interfaces union order-preservingly; fields and methods
// keyed by (name,descriptor) merge entry-by-entry with one-sided
// members annotated @Environment; one-sided interfaces are collected
// into a single @EnvironmentInterfaces annotation.
func mergeClass(client, server *classfile.ClassNode) *classfile.ClassNode {
	merged := *client

	ifaces, clientOnlyIfaces, serverOnlyIfaces := mergeOrdered(client.Interfaces, server.Interfaces)
	merged.Interfaces = ifaces

	merged.Fields = mergeFields(client.Fields, server.Fields)
	merged.Methods = mergeMethods(client.Methods, server.Methods)

	merged.VisibleAnnotations = append([]classfile.Annotation(nil), client.VisibleAnnotations...)
	if ann, ok := environmentInterfacesAnnotation(clientOnlyIfaces, serverOnlyIfaces); ok {
		merged.VisibleAnnotations = append(merged.VisibleAnnotations, ann)
	}
	return &merged
}

func environmentInterfacesAnnotation(clientOnly, serverOnly []string) (classfile.Annotation, bool) {
	if len(clientOnly) == 0 && len(serverOnly) == 0 {
		return classfile.Annotation{}, false
	}
	var entries []classfile.ElementValue
	for _, itf := range clientOnly {
		entries = append(entries, classfile.ElementValue{Value: &classfile.Annotation{
			Descriptor: environmentInterfaceDescriptor,
			Values: []classfile.ElementValue{
				{Name: "value", Value: &classfile.EnumValue{Descriptor: "Lnet/fabricmc/api/EnvType;", Value: string(Client)}},
				{Name: "itf", Value: descriptor.ClassName("L" + itf + ";")},
			},
		}})
	}
	for _, itf := range serverOnly {
		entries = append(entries, classfile.ElementValue{Value: &classfile.Annotation{
			Descriptor: environmentInterfaceDescriptor,
			Values: []classfile.ElementValue{
				{Name: "value", Value: &classfile.EnumValue{Descriptor: "Lnet/fabricmc/api/EnvType;", Value: string(Server)}},
				{Name: "itf", Value: descriptor.ClassName("L" + itf + ";")},
			},
		}})
	}
	return classfile.Annotation{
		Descriptor: environmentInterfacesDescriptor,
		Values:     []classfile.ElementValue{{Name: "value", Value: entries}},
	}, true
}

type memberIdent struct{ Name, Descriptor string }

func mergeFields(client, server []*classfile.FieldNode) []*classfile.FieldNode {
	clientIdx := make(map[memberIdent]*classfile.FieldNode, len(client))
	for _, f := range client {
		clientIdx[memberIdent{f.Name, f.Descriptor}] = f
	}
	serverIdx := make(map[memberIdent]*classfile.FieldNode, len(server))
	for _, f := range server {
		serverIdx[memberIdent{f.Name, f.Descriptor}] = f
	}

	var out []*classfile.FieldNode
	appended := make(map[memberIdent]bool)
	for _, f := range client {
		key := memberIdent{f.Name, f.Descriptor}
		if _, ok := serverIdx[key]; !ok {
			copyF := *f
			copyF.VisibleAnnotations = append(append([]classfile.Annotation(nil), f.VisibleAnnotations...), environmentAnnotation(Client))
			out = append(out, &copyF)
		} else {
			out = append(out, f)
		}
		appended[key] = true
	}
	for _, f := range server {
		key := memberIdent{f.Name, f.Descriptor}
		if appended[key] {
			continue
		}
		copyF := *f
		copyF.VisibleAnnotations = append(append([]classfile.Annotation(nil), f.VisibleAnnotations...), environmentAnnotation(Server))
		out = append(out, &copyF)
	}
	return out
}

func mergeMethods(client, server []*classfile.MethodNode) []*classfile.MethodNode {
	serverIdx := make(map[memberIdent]*classfile.MethodNode, len(server))
	for _, m := range server {
		serverIdx[memberIdent{m.Name, m.Descriptor}] = m
	}

	var out []*classfile.MethodNode
	appended := make(map[memberIdent]bool)
	for _, m := range client {
		key := memberIdent{m.Name, m.Descriptor}
		if _, ok := serverIdx[key]; !ok {
			copyM := *m
			copyM.VisibleAnnotations = append(append([]classfile.Annotation(nil), m.VisibleAnnotations...), environmentAnnotation(Client))
			out = append(out, &copyM)
		} else {
			out = append(out, m)
		}
		appended[key] = true
	}
	for _, m := range server {
		key := memberIdent{m.Name, m.Descriptor}
		if appended[key] {
			continue
		}
		copyM := *m
		copyM.VisibleAnnotations = append(append([]classfile.Annotation(nil), m.VisibleAnnotations...), environmentAnnotation(Server))
		out = append(out, &copyM)
	}
	return out
}

// mergeOrdered is the order-preserving union merge spec §4.9 describes
// for interface lists: items unique to one side are interleaved back
// into their original relative position against the common items,
// rather than bucketed to the front or back. It treats a[i]->a[i+1]
// and b[j]->b[j+1] as ordering constraints and topologically sorts
// their union (Kahn's algorithm), breaking ties by first occurrence in
// a then b so the result is deterministic. A cycle — client and server
// disagreeing on the relative order of two items both sides share — is
// tolerated per spec §8 scenario 4 (either order is legal): the
// constraint that would close the cycle is simply dropped in favor of
// the stable fallback order.
func mergeOrdered(a, b []string) (merged, onlyA, onlyB []string) {
	inA := make(map[string]bool, len(a))
	for _, x := range a {
		inA[x] = true
	}
	inB := make(map[string]bool, len(b))
	for _, x := range b {
		inB[x] = true
	}

	var nodes []string
	seen := make(map[string]bool)
	for _, x := range a {
		if !seen[x] {
			seen[x] = true
			nodes = append(nodes, x)
		}
	}
	for _, x := range b {
		if !seen[x] {
			seen[x] = true
			nodes = append(nodes, x)
		}
	}

	succ := make(map[string]map[string]bool)
	addEdge := func(u, v string) {
		if u == v {
			return
		}
		if succ[u] == nil {
			succ[u] = make(map[string]bool)
		}
		succ[u][v] = true
	}
	for i := 0; i+1 < len(a); i++ {
		addEdge(a[i], a[i+1])
	}
	for i := 0; i+1 < len(b); i++ {
		addEdge(b[i], b[i+1])
	}

	indegree := make(map[string]int, len(nodes))
	for _, u := range nodes {
		indegree[u] = 0
	}
	for _, outs := range succ {
		for v := range outs {
			indegree[v]++
		}
	}

	remaining := make(map[string]bool, len(nodes))
	for _, x := range nodes {
		remaining[x] = true
	}

	for len(remaining) > 0 {
		picked := ""
		for _, x := range nodes {
			if remaining[x] && indegree[x] == 0 {
				picked = x
				break
			}
		}
		if picked == "" {
			// Cycle: fall back to the earliest remaining node in the
			// stable order, tolerating the order disagreement.
			for _, x := range nodes {
				if remaining[x] {
					picked = x
					break
				}
			}
		}
		merged = append(merged, picked)
		delete(remaining, picked)
		for v := range succ[picked] {
			if remaining[v] {
				indegree[v]--
			}
		}
	}

	for _, x := range merged {
		switch {
		case inA[x] && !inB[x]:
			onlyA = append(onlyA, x)
		case inB[x] && !inA[x]:
			onlyB = append(onlyB, x)
		}
	}
	return merged, onlyA, onlyB
}
