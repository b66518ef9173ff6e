package xmltemplate

import (
	"fmt"
	"slices"

	"github.com/beevik/etree"
)

const declaration = `version="1.0" encoding="UTF-8" standalone="yes"`

// Build serializes n as an indented UTF-8 document with an XML declaration.
// Namespace prefixes are declared only where they are not already in scope.
func Build(n *Node) ([]byte, error) {
	if n == nil {
		return nil, fmt.Errorf("build: nil node")
	}
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", declaration)

	root, err := buildElement(n, map[string]string{"xml": xmlNamespace})
	if err != nil {
		return nil, err
	}
	doc.SetRoot(root)
	doc.Indent(2)
	return doc.WriteToBytes()
}

// buildElement renders n under a parent whose prefix bindings are scope.
func buildElement(n *Node, parentScope map[string]string) (*etree.Element, error) {
	scope := make(map[string]string, len(parentScope)+len(n.Namespaces))
	for p, uri := range parentScope {
		scope[p] = uri
	}

	type decl struct{ prefix, uri string }
	var decls []decl
	declare := func(prefix, uri string) {
		scope[prefix] = uri
		decls = append(decls, decl{prefix, uri})
	}

	prefixes := make([]string, 0, len(n.Namespaces))
	for p := range n.Namespaces {
		prefixes = append(prefixes, p)
	}
	slices.Sort(prefixes)
	for _, p := range prefixes {
		if cur, ok := parentScope[p]; !ok || cur != n.Namespaces[p] {
			declare(p, n.Namespaces[p])
		}
	}

	uri, local := splitClark(n.Tag)
	if local == "" {
		return nil, fmt.Errorf("build: empty tag")
	}
	qname := local
	switch {
	case uri == "":
		if scope[""] != "" {
			declare("", "")
		}
	case scope[""] != uri:
		p := prefixFor(uri, scope)
		if p == "" {
			p = freePrefix(scope)
			declare(p, uri)
		}
		qname = p + ":" + local
	}

	type attr struct{ key, value string }
	attrs := make([]attr, 0, len(n.Attrs))
	for _, a := range n.Attrs {
		auri, alocal := splitClark(a.Name)
		key := alocal
		if auri != "" {
			p := prefixFor(auri, scope)
			if p == "" {
				p = freePrefix(scope)
				declare(p, auri)
			}
			key = p + ":" + alocal
		}
		attrs = append(attrs, attr{key, a.Value})
	}

	el := etree.NewElement(qname)
	for _, d := range decls {
		if d.prefix == "" {
			el.CreateAttr("xmlns", d.uri)
		} else {
			el.CreateAttr("xmlns:"+d.prefix, d.uri)
		}
	}
	for _, a := range attrs {
		el.CreateAttr(a.key, a.value)
	}

	switch v := n.Value.(type) {
	case *Children:
		for _, tag := range v.order {
			child, err := buildElement(v.nodes[tag], scope)
			if err != nil {
				return nil, err
			}
			el.AddChild(child)
		}
	case Leaf:
		if !v.Null && v.Text != "" {
			el.SetText(v.Text)
		}
	}
	return el, nil
}

// prefixFor returns a non-default prefix bound to uri, preferring the
// lexically smallest for stable output.
func prefixFor(uri string, scope map[string]string) string {
	var found []string
	for p, u := range scope {
		if p != "" && u == uri {
			found = append(found, p)
		}
	}
	if len(found) == 0 {
		return ""
	}
	slices.Sort(found)
	return found[0]
}

func freePrefix(scope map[string]string) string {
	for i := 0; ; i++ {
		p := fmt.Sprintf("ns%d", i)
		if _, taken := scope[p]; !taken {
			return p
		}
	}
}
