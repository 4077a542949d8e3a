package loader

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/AndreyAkinshin/conform/internal/diag"
)

const xmlnsSpace = "xmlns"

// node is a generic element with its in-scope namespace declarations.
type node struct {
	name     xml.Name
	attrs    []xml.Attr
	children []*node
	text     strings.Builder
	ns       map[string]string
}

func parseXML(r io.Reader) (*node, error) {
	dec := xml.NewDecoder(r)
	var (
		root  *node
		stack []*node
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{name: t.Name, attrs: t.Attr, ns: map[string]string{}}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				for k, v := range parent.ns {
					n.ns[k] = v
				}
				parent.children = append(parent.children, n)
			} else {
				root = n
			}
			for _, a := range t.Attr {
				switch {
				case a.Name.Space == xmlnsSpace:
					n.ns[a.Name.Local] = a.Value
				case a.Name.Space == "" && a.Name.Local == xmlnsSpace:
					n.ns[""] = a.Value
				}
			}
			stack = append(stack, n)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}
	if root == nil {
		return nil, io.ErrUnexpectedEOF
	}
	return root, nil
}

// attr returns the value of an unqualified attribute.
func (n *node) attr(local string) string {
	return n.attrNS("", local)
}

func (n *node) attrNS(space, local string) string {
	for _, a := range n.attrs {
		if a.Name.Space == space && a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func (n *node) hasAttr(local string) bool {
	for _, a := range n.attrs {
		if a.Name.Space == "" && a.Name.Local == local {
			return true
		}
	}
	return false
}

// elements returns the direct children with the given local name. An empty
// name returns every child.
func (n *node) elements(local string) []*node {
	var out []*node
	for _, c := range n.children {
		if local == "" || c.name.Local == local {
			out = append(out, c)
		}
	}
	return out
}

// descendants returns all descendants with the given local name in
// document order.
func (n *node) descendants(local string) []*node {
	var out []*node
	for _, c := range n.children {
		if c.name.Local == local {
			out = append(out, c)
		}
		out = append(out, c.descendants(local)...)
	}
	return out
}

func (n *node) first(local string) *node {
	for _, c := range n.children {
		if c.name.Local == local {
			return c
		}
	}
	return nil
}

func (n *node) value() string {
	return strings.TrimSpace(n.text.String())
}

// resolve turns a prefixed name into a qualified name using the namespaces
// declared in scope of n. The second result is false when the name has no
// prefix or the prefix is not declared.
func (n *node) resolve(prefixed string) (diag.QName, bool) {
	prefix, local, ok := strings.Cut(prefixed, ":")
	if !ok || prefix == "" || local == "" {
		return diag.QName{}, false
	}
	ns, ok := n.ns[prefix]
	if !ok || ns == "" {
		return diag.QName{}, false
	}
	return diag.QName{Namespace: ns, Prefix: prefix, Local: local}, true
}
