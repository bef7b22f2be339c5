// Filename: javascript/syntax/lower.go
package syntax

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// lowerer converts tree-sitter nodes into Nodes. The produced tree only
// references src, never the tree-sitter tree, so the C tree can be released
// as soon as lowering finishes.
type lowerer struct {
	src []byte
}

// loweredChildren is the result of scanning the children of a tree-sitter node.
type loweredChildren struct {
	// nodes holds the lowered named children in source order, comments excluded.
	nodes []Node
	// fields maps a grammar field name to the first lowered child carrying it.
	fields map[string]Node
	// tokens maps a grammar field name to the type of an anonymous child
	// carrying it (e.g. the operator of a binary expression).
	tokens map[string]string
	// types holds the grammar type of each entry in nodes.
	types []string
}

func (l *lowerer) lower(n *sitter.Node) Node {
	kids := l.lowerChildren(n)
	b := base{src: l.src, span: spanOf(n), children: kids.nodes}

	switch n.Type() {
	case "program":
		return &Program{base: b}

	case "variable_declarator":
		return &Declarator{base: b, Binding: kids.fields["name"], Init: kids.fields["value"]}

	case "object_pattern", "array_pattern":
		p := &Pattern{base: b}
		for i, child := range kids.nodes {
			p.Names = append(p.Names, bindingNames(child)...)
			switch kids.types[i] {
			case "object_pattern", "array_pattern":
				// Nested pattern: its names are not bound by this element.
			default:
				p.Direct = append(p.Direct, elementName(child)...)
			}
		}
		return p

	case "pair_pattern":
		return elementPattern(b, kids.fields["value"])

	case "object_assignment_pattern", "assignment_pattern":
		return elementPattern(b, kids.fields["left"])

	case "rest_pattern":
		var target Node
		if len(kids.nodes) > 0 {
			target = kids.nodes[0]
		}
		return elementPattern(b, target)

	case "assignment_expression":
		return &Assignment{base: b, Target: kids.fields["left"], Value: kids.fields["right"]}

	case "call_expression":
		args := n.ChildByFieldName("arguments")
		if args == nil || args.Type() != "arguments" {
			// Tagged template: fn`...`.
			return &Other{base: b, Type: n.Type()}
		}
		call := &Call{base: b, Callee: kids.fields["function"]}
		if argList, ok := kids.fields["arguments"]; ok {
			call.Args = argList.Children()
		}
		return call

	case "identifier", "shorthand_property_identifier_pattern", "shorthand_property_identifier":
		return &Identifier{base: b, Name: n.Content(l.src)}

	case "member_expression":
		prop := n.ChildByFieldName("property")
		if prop == nil {
			return &Other{base: b, Type: n.Type()}
		}
		return &Member{base: b, Object: kids.fields["object"], Property: prop.Content(l.src)}

	case "binary_expression":
		return &Binary{
			base:     b,
			Operator: kids.tokens["operator"],
			Left:     kids.fields["left"],
			Right:    kids.fields["right"],
		}

	case "template_string":
		t := &Template{base: b}
		for i, child := range kids.nodes {
			if kids.types[i] != "template_substitution" {
				continue
			}
			if subs := child.Children(); len(subs) > 0 {
				t.Substitutions = append(t.Substitutions, subs[0])
			}
		}
		return t

	case "string", "number", "true", "false", "null", "undefined", "regex":
		return &Literal{base: b}

	case "parenthesized_expression":
		if len(kids.nodes) == 0 {
			return &Other{base: b, Type: n.Type()}
		}
		return &Paren{base: b, Expr: kids.nodes[0]}
	}

	return &Other{base: b, Type: n.Type()}
}

func (l *lowerer) lowerChildren(n *sitter.Node) loweredChildren {
	var out loweredChildren
	if n.ChildCount() == 0 {
		return out
	}

	cursor := sitter.NewTreeCursor(n)
	defer cursor.Close()

	if !cursor.GoToFirstChild() {
		return out
	}
	for {
		child := cursor.CurrentNode()
		field := cursor.CurrentFieldName()

		if child.IsNamed() {
			if child.Type() != "comment" {
				lowered := l.lower(child)
				out.nodes = append(out.nodes, lowered)
				out.types = append(out.types, child.Type())
				if field != "" {
					if out.fields == nil {
						out.fields = make(map[string]Node)
					}
					if _, seen := out.fields[field]; !seen {
						out.fields[field] = lowered
					}
				}
			}
		} else if field != "" {
			if out.tokens == nil {
				out.tokens = make(map[string]string)
			}
			out.tokens[field] = child.Type()
		}

		if !cursor.GoToNextSibling() {
			break
		}
	}
	return out
}

// bindingNames returns the identifiers bound by a binding target.
func bindingNames(n Node) []*Identifier {
	switch v := n.(type) {
	case *Identifier:
		return []*Identifier{v}
	case *Pattern:
		return v.Names
	default:
		return nil
	}
}

// elementPattern wraps a single pattern element whose binding target is
// target. Direct is set only when target is a plain identifier.
func elementPattern(b base, target Node) *Pattern {
	p := &Pattern{base: b, Names: bindingNames(target)}
	if id, ok := target.(*Identifier); ok {
		p.Direct = []*Identifier{id}
	}
	return p
}

// elementName returns the identifier an element of an object or array
// pattern binds directly, if any.
func elementName(n Node) []*Identifier {
	switch v := n.(type) {
	case *Identifier:
		return []*Identifier{v}
	case *Pattern:
		return v.Direct
	default:
		return nil
	}
}

func spanOf(n *sitter.Node) Span {
	start, end := n.StartPoint(), n.EndPoint()
	return Span{
		StartByte: int(n.StartByte()),
		EndByte:   int(n.EndByte()),
		Start:     Point{Row: int(start.Row), Column: int(start.Column)},
		End:       Point{Row: int(end.Row), Column: int(end.Column)},
	}
}
