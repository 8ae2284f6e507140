package oaixml

import gokoxml "github.com/moovweb/gokogiri/xml"

// FirstDescendantByLocalName walks the subtree rooted at node,
// depth-first, and returns the first element whose local name
// (ignoring any namespace prefix) matches name. OAI-PMH payloads
// reuse names like "identifier" and "header" at multiple nesting
// depths, so callers that want a specific level use
// ImmediateChildrenByTagName instead.
func FirstDescendantByLocalName(node gokoxml.Node, name string) gokoxml.Node {
	if node == nil {
		return nil
	}
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		if localName(child.Name()) == name {
			return child
		}
		if found := FirstDescendantByLocalName(child, name); found != nil {
			return found
		}
	}
	return nil
}

// ImmediateChildrenByTagName returns every direct child of node whose
// tag name equals name, without recursing into grandchildren. This is
// the safe way to read structural elements like <record> or
// <metadata> that OAI-PMH also nests deeper for unrelated purposes.
func ImmediateChildrenByTagName(node gokoxml.Node, name string) []gokoxml.Node {
	if node == nil {
		return nil
	}
	var out []gokoxml.Node
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		if child.Name() == name {
			out = append(out, child)
		}
	}
	return out
}

// FirstElementChild returns the first child of node that is an
// element (as opposed to text/comment/whitespace).
func FirstElementChild(node gokoxml.Node) gokoxml.Node {
	if node == nil {
		return nil
	}
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		if child.Name() != "text" && child.Name() != "comment" {
			return child
		}
	}
	return nil
}

func localName(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == ':' {
			return name[i+1:]
		}
	}
	return name
}
