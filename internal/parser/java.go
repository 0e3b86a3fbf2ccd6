package parser

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/codebase-inheritors/internal/fqn"
	"github.com/DeusData/codebase-inheritors/internal/pipeline"
)

// ExtractJava returns the class declarations of one Java compilation unit as
// a manifest file entry. Syntax errors are tolerated: whatever tree-sitter
// recovers is extracted.
func ExtractJava(relPath string, source []byte) (*pipeline.ManifestFile, error) {
	tree, err := Parse(source)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	x := &javaExtractor{source: source}
	root := tree.RootNode()
	f := &pipeline.ManifestFile{Path: relPath}
	for i := uint(0); i < root.NamedChildCount(); i++ {
		n := root.NamedChild(i)
		if n == nil {
			continue
		}
		switch n.Kind() {
		case "package_declaration":
			f.Package = x.qualifiedName(n)
		case "import_declaration":
			if imp := x.importName(n); imp != "" {
				f.Imports = append(f.Imports, imp)
			}
		default:
			if c, ok := x.typeDecl(n, ""); ok {
				f.Classes = append(f.Classes, c)
			}
		}
	}
	return f, nil
}

type javaExtractor struct {
	source []byte
}

func (x *javaExtractor) text(n *tree_sitter.Node) string {
	return NodeText(n, x.source)
}

// qualifiedName returns the dotted name of a package declaration.
func (x *javaExtractor) qualifiedName(n *tree_sitter.Node) string {
	for i := uint(0); i < n.NamedChildCount(); i++ {
		child := n.NamedChild(i)
		if child == nil {
			continue
		}
		if k := child.Kind(); k == "scoped_identifier" || k == "identifier" {
			return x.text(child)
		}
	}
	return ""
}

// importName returns the imported qualified name. Wildcard and static
// imports name no single class and yield "".
func (x *javaExtractor) importName(n *tree_sitter.Node) string {
	if findChildByKind(n, "asterisk") != nil || findChildByKind(n, "static") != nil {
		return ""
	}
	return x.qualifiedName(n)
}

// typeDecl converts a class, interface, enum or record declaration. outer is
// the dotted name of the enclosing type, empty for top-level types.
func (x *javaExtractor) typeDecl(n *tree_sitter.Node, outer string) (pipeline.ClassDecl, bool) {
	var c pipeline.ClassDecl
	switch n.Kind() {
	case "class_declaration":
		c.Final = x.hasModifier(n, "final")
	case "interface_declaration":
		c.Kind = "Interface"
	case "enum_declaration":
		c.Kind = "Enum"
	case "record_declaration":
		c.Final = true
	default:
		return c, false
	}
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return c, false
	}
	c.Name = x.text(nameNode)
	c.StartLine = int(n.StartPosition().Row) + 1
	c.EndLine = int(n.EndPosition().Row) + 1
	c.Supertypes = x.superTypes(n)

	body := n.ChildByFieldName("body")
	if body == nil {
		return c, true
	}
	dotted := fqn.Join(outer, c.Name)
	x.collect(body, &c, dotted)
	if c.Kind == "Enum" {
		// constants with a body subclass the enum
		c.Final = !x.hasConstantBodies(body)
	}
	return c, true
}

// superTypes lists the extends and implements clauses of a declaration.
func (x *javaExtractor) superTypes(n *tree_sitter.Node) []string {
	var out []string
	if sc := n.ChildByFieldName("superclass"); sc != nil {
		out = append(out, x.typeNames(sc)...)
	}
	if ifs := n.ChildByFieldName("interfaces"); ifs != nil {
		out = append(out, x.typeNames(ifs)...)
	}
	if ext := findChildByKind(n, "extends_interfaces"); ext != nil {
		out = append(out, x.typeNames(ext)...)
	}
	return out
}

// typeNames returns the text of each type under a superclass or
// super-interfaces clause.
func (x *javaExtractor) typeNames(clause *tree_sitter.Node) []string {
	var out []string
	for i := uint(0); i < clause.NamedChildCount(); i++ {
		child := clause.NamedChild(i)
		if child == nil {
			continue
		}
		if child.Kind() == "type_list" {
			out = append(out, x.typeNames(child)...)
			continue
		}
		if name := strings.TrimSpace(x.text(child)); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// collect adds the nested and anonymous classes found below n to c.
func (x *javaExtractor) collect(n *tree_sitter.Node, c *pipeline.ClassDecl, dotted string) {
	for i := uint(0); i < n.NamedChildCount(); i++ {
		child := n.NamedChild(i)
		if child == nil {
			continue
		}
		if nested, ok := x.typeDecl(child, dotted); ok {
			c.Nested = append(c.Nested, nested)
			continue
		}
		switch child.Kind() {
		case "object_creation_expression":
			if args := child.ChildByFieldName("arguments"); args != nil {
				x.collect(args, c, dotted)
			}
			body := findChildByKind(child, "class_body")
			typeNode := child.ChildByFieldName("type")
			if body == nil || typeNode == nil {
				continue
			}
			c.Anonymous = append(c.Anonymous, x.anonymous(child, body, x.text(typeNode), dotted))
			continue
		case "enum_constant":
			if body := child.ChildByFieldName("body"); body != nil {
				c.Anonymous = append(c.Anonymous, x.anonymous(child, body, dotted, dotted))
				continue
			}
		}
		x.collect(child, c, dotted)
	}
}

func (x *javaExtractor) anonymous(n, body *tree_sitter.Node, supertype, dotted string) pipeline.ClassDecl {
	anon := pipeline.ClassDecl{
		Supertypes: []string{supertype},
		StartLine:  int(n.StartPosition().Row) + 1,
		EndLine:    int(n.EndPosition().Row) + 1,
	}
	x.collect(body, &anon, dotted)
	return anon
}

func (x *javaExtractor) hasModifier(n *tree_sitter.Node, modifier string) bool {
	mods := findChildByKind(n, "modifiers")
	if mods == nil {
		return false
	}
	return findChildByKind(mods, modifier) != nil
}

func (x *javaExtractor) hasConstantBodies(enumBody *tree_sitter.Node) bool {
	for i := uint(0); i < enumBody.NamedChildCount(); i++ {
		child := enumBody.NamedChild(i)
		if child != nil && child.Kind() == "enum_constant" && child.ChildByFieldName("body") != nil {
			return true
		}
	}
	return false
}
