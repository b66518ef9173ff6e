// Package xmltemplate loads a canonical XML skeleton, overlays data onto it
// and serializes the result back to namespaced XML.
//
// A skeleton carries everything the output document needs besides the data:
// element order, attributes, namespace declarations and default text. Tags
// are held in Clark notation ("{uri}local"); data keys match on the local
// part only. The same package also flattens arbitrary documents into a
// lookup tree for the decoding direction (see Flatten).
package xmltemplate

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/beevik/etree"

	"github.com/cptkit/cptconv/internal/errors"
)

// DefaultNamespace is declared as the default namespace on every skeleton root.
const DefaultNamespace = "http://www.broservices.nl/xsd/dscpt/1.1"

// xmlNamespace is bound to the "xml" prefix without a declaration.
const xmlNamespace = "http://www.w3.org/XML/1998/namespace"

// Attr is an attribute with its name in Clark notation.
type Attr struct {
	Name  string
	Value string
}

// Value is the content of a Node: either a Leaf or *Children.
type Value interface {
	isValue()
}

// Leaf is text content. Null marks a value explicitly cleared by Fill.
type Leaf struct {
	Text string
	Null bool
}

// Children is an ordered map from child tag to child node. Order is the
// skeleton's document order.
type Children struct {
	order []string
	nodes map[string]*Node
}

func (Leaf) isValue()      {}
func (*Children) isValue() {}

// newChildren returns an empty Children.
func newChildren() *Children {
	return &Children{nodes: make(map[string]*Node)}
}

// Set adds or replaces the child for tag. A replaced child keeps its position.
func (c *Children) Set(tag string, n *Node) {
	if _, ok := c.nodes[tag]; !ok {
		c.order = append(c.order, tag)
	}
	c.nodes[tag] = n
}

// Get returns the child for tag.
func (c *Children) Get(tag string) (*Node, bool) {
	n, ok := c.nodes[tag]
	return n, ok
}

// Tags returns child tags in document order.
func (c *Children) Tags() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Len returns the number of children.
func (c *Children) Len() int { return len(c.order) }

// Node is one element of a skeleton.
type Node struct {
	// Tag is the element name in Clark notation
	Tag string

	// Attrs are the element's attributes in document order, excluding namespace declarations
	Attrs []Attr

	// Namespaces maps prefix to URI for declarations new on this element.
	// The empty prefix is the default namespace.
	Namespaces map[string]string

	// DefaultText is the element's own text in the skeleton
	DefaultText string

	Value Value
}

// Local returns the tag without its namespace.
func (n *Node) Local() string {
	return localName(n.Tag)
}

// Child returns the child with the given local name.
func (n *Node) Child(local string) (*Node, bool) {
	c, ok := n.Value.(*Children)
	if !ok {
		return nil, false
	}
	for _, tag := range c.order {
		if localName(tag) == local {
			return c.nodes[tag], true
		}
	}
	return nil, false
}

// Text returns the node's leaf text, or "" for a node with children.
func (n *Node) Text() string {
	if l, ok := n.Value.(Leaf); ok {
		return l.Text
	}
	return ""
}

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	out := &Node{
		Tag:         n.Tag,
		DefaultText: n.DefaultText,
	}
	if n.Attrs != nil {
		out.Attrs = make([]Attr, len(n.Attrs))
		copy(out.Attrs, n.Attrs)
	}
	if n.Namespaces != nil {
		out.Namespaces = make(map[string]string, len(n.Namespaces))
		for k, v := range n.Namespaces {
			out.Namespaces[k] = v
		}
	}
	switch v := n.Value.(type) {
	case *Children:
		c := newChildren()
		for _, tag := range v.order {
			c.Set(tag, v.nodes[tag].Clone())
		}
		out.Value = c
	case Leaf:
		out.Value = v
	}
	return out
}

// LoadSkeletonFile reads and loads a skeleton from path.
func LoadSkeletonFile(path string) (*Node, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewTemplateLoad(err)
	}
	return LoadSkeleton(src)
}

// LoadSkeleton parses a canonical XML document into a Node tree.
func LoadSkeleton(src []byte) (*Node, error) {
	doc, err := readDocument(src)
	if err != nil {
		return nil, errors.NewTemplateLoad(err)
	}
	root, err := parseNode(doc.Root(), nil, true)
	if err != nil {
		return nil, errors.NewTemplateLoad(err)
	}
	return root, nil
}

// readDocument checks src is well-formed and parses it with etree.
func readDocument(src []byte) (*etree.Document, error) {
	if err := checkWellFormed(src); err != nil {
		return nil, err
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(src); err != nil {
		return nil, err
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("document has no root element")
	}
	return doc, nil
}

// checkWellFormed runs a strict token pass so unbalanced or truncated
// documents are rejected before tree construction.
func checkWellFormed(src []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(src))
	dec.Strict = true
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	sawRoot := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if _, ok := tok.(xml.StartElement); ok {
			sawRoot = true
		}
	}
	if !sawRoot {
		return fmt.Errorf("document has no root element")
	}
	return nil
}

// parseNode converts el into a Node. parentScope is the namespace scope
// in force at el's parent.
func parseNode(el *etree.Element, parentScope map[string]string, isRoot bool) (*Node, error) {
	decls := namespaceDecls(el)
	if isRoot {
		if _, ok := decls[""]; !ok {
			decls[""] = DefaultNamespace
		}
	}

	scope := make(map[string]string, len(parentScope)+len(decls))
	for p, uri := range parentScope {
		scope[p] = uri
	}
	delta := make(map[string]string)
	for p, uri := range decls {
		if cur, ok := parentScope[p]; !ok || cur != uri {
			delta[p] = uri
		}
		scope[p] = uri
	}

	tag, err := clarkName(el.Space, el.Tag, scope, true)
	if err != nil {
		return nil, err
	}

	n := &Node{
		Tag:        tag,
		Namespaces: delta,
	}
	for _, a := range el.Attr {
		if isNamespaceDecl(a) {
			continue
		}
		name, err := clarkName(a.Space, a.Key, scope, false)
		if err != nil {
			return nil, err
		}
		n.Attrs = append(n.Attrs, Attr{Name: name, Value: a.Value})
	}

	kids := el.ChildElements()
	if len(kids) == 0 {
		n.DefaultText = el.Text()
		n.Value = Leaf{Text: n.DefaultText}
		return n, nil
	}

	n.DefaultText = strings.TrimSpace(el.Text())
	children := newChildren()
	for _, k := range kids {
		child, err := parseNode(k, scope, false)
		if err != nil {
			return nil, err
		}
		children.Set(child.Tag, child)
	}
	n.Value = children
	return n, nil
}

// namespaceDecls returns the xmlns declarations made on el.
func namespaceDecls(el *etree.Element) map[string]string {
	decls := make(map[string]string)
	for _, a := range el.Attr {
		switch {
		case a.Space == "xmlns":
			decls[a.Key] = a.Value
		case a.Space == "" && a.Key == "xmlns":
			decls[""] = a.Value
		}
	}
	return decls
}

func isNamespaceDecl(a etree.Attr) bool {
	return a.Space == "xmlns" || (a.Space == "" && a.Key == "xmlns")
}

// clarkName resolves prefix:local against scope. Unprefixed elements take the
// default namespace; unprefixed attributes have none.
func clarkName(prefix, local string, scope map[string]string, element bool) (string, error) {
	if prefix == "" {
		if element && scope[""] != "" {
			return "{" + scope[""] + "}" + local, nil
		}
		return local, nil
	}
	if prefix == "xml" {
		return "{" + xmlNamespace + "}" + local, nil
	}
	uri, ok := scope[prefix]
	if !ok || uri == "" {
		return "", fmt.Errorf("unbound namespace prefix %q on %q", prefix, local)
	}
	return "{" + uri + "}" + local, nil
}

// splitClark splits "{uri}local" into its parts.
func splitClark(name string) (uri, local string) {
	if strings.HasPrefix(name, "{") {
		if i := strings.Index(name, "}"); i > 0 {
			return name[1:i], name[i+1:]
		}
	}
	return "", name
}

// localName strips any namespace from a Clark name.
func localName(name string) string {
	_, local := splitClark(name)
	return local
}
