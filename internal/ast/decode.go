package ast

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrMalformedTree is wrapped by every error caused by a tree that does not
// respect the node model (as opposed to user code errors, which are
// diagnostics).
var ErrMalformedTree = errors.New("malformed tree")

// DecodeError locates a malformed node in a YAML tree file.
type DecodeError struct {
	Path string
	Pos  Pos
	Msg  string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s:%s: %s", e.Path, e.Pos, e.Msg)
}

func (e *DecodeError) Unwrap() error { return ErrMalformedTree }

// LoadFile reads and decodes a YAML tree file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tree %s: %w", path, err)
	}
	return DecodeFile(data, path)
}

// DecodeFile decodes a compilation unit from its YAML form. The path is used
// for error messages and as the unit path when the document has none.
// Nodes are numbered in document order and positioned at their YAML
// location.
//
// Elements are single-key mappings naming the node kind:
//
//	package: app
//	imports: [lib.f, "lib.*", {path: lib.C, alias: D}]
//	decls:
//	  - class: {name: C, params: [{name: x, type: Int}], members: [...]}
//	  - fun: {name: f, receiver: C, params: [...], result: Int, body: [...]}
//	  - val: {name: p, type: Int, by: {call: {name: lazy}}}
//
// Statements add loop, return, break, continue, assign, when, try and
// block; expressions are ref, call, lit, this, super, lambda, template and
// as.
func DecodeFile(data []byte, path string) (*File, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, &DecodeError{Path: path, Msg: "empty tree"}
	}
	d := &decoder{path: path}
	file, err := d.file(doc.Content[0])
	if err != nil {
		return nil, err
	}
	if file.Path == "" {
		file.Path = path
	}
	Number(file)
	return file, nil
}

type decoder struct {
	path string
}

func (d *decoder) errorf(n *yaml.Node, format string, args ...any) error {
	return &DecodeError{Path: d.path, Pos: pos(n), Msg: fmt.Sprintf(format, args...)}
}

func pos(n *yaml.Node) Pos {
	if n == nil {
		return Pos{}
	}
	return Pos{Line: n.Line, Column: n.Column}
}

// fields returns the key/value pairs of a mapping, rejecting unknown keys.
func (d *decoder) fields(n *yaml.Node, allowed ...string) (map[string]*yaml.Node, error) {
	if n == nil || isNull(n) {
		return map[string]*yaml.Node{}, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, d.errorf(n, "expected a mapping")
	}
	out := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		if !contains(allowed, key) {
			return nil, d.errorf(n.Content[i], "unknown field %q", key)
		}
		out[key] = n.Content[i+1]
	}
	return out, nil
}

// tagged splits a single-key mapping into its key and value. A bare scalar
// is returned as a key with no value.
func (d *decoder) tagged(n *yaml.Node) (string, *yaml.Node, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return n.Value, nil, nil
	case yaml.MappingNode:
		if len(n.Content) != 2 {
			return "", nil, d.errorf(n, "expected exactly one node kind, got %d keys", len(n.Content)/2)
		}
		return n.Content[0].Value, n.Content[1], nil
	default:
		return "", nil, d.errorf(n, "expected a node")
	}
}

func (d *decoder) str(n *yaml.Node) (string, error) {
	if n == nil || isNull(n) {
		return "", nil
	}
	if n.Kind != yaml.ScalarNode {
		return "", d.errorf(n, "expected a string")
	}
	return n.Value, nil
}

func (d *decoder) boolean(n *yaml.Node) (bool, error) {
	if n == nil {
		return false, nil
	}
	var b bool
	if err := n.Decode(&b); err != nil {
		return false, d.errorf(n, "expected a boolean")
	}
	return b, nil
}

func (d *decoder) seq(n *yaml.Node) ([]*yaml.Node, error) {
	if n == nil || isNull(n) {
		return nil, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, d.errorf(n, "expected a list")
	}
	return n.Content, nil
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.Tag == "!!null"
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func (d *decoder) file(n *yaml.Node) (*File, error) {
	f, err := d.fields(n, "path", "package", "imports", "decls")
	if err != nil {
		return nil, err
	}
	file := &File{Base: Base{Pos: pos(n)}}
	if file.Path, err = d.str(f["path"]); err != nil {
		return nil, err
	}
	if file.Package, err = d.str(f["package"]); err != nil {
		return nil, err
	}
	imports, err := d.seq(f["imports"])
	if err != nil {
		return nil, err
	}
	for _, in := range imports {
		imp, err := d.importDirective(in)
		if err != nil {
			return nil, err
		}
		file.Imports = append(file.Imports, imp)
	}
	decls, err := d.seq(f["decls"])
	if err != nil {
		return nil, err
	}
	for _, dn := range decls {
		stmt, err := d.stmt(dn)
		if err != nil {
			return nil, err
		}
		decl, ok := stmt.(Decl)
		if !ok {
			return nil, d.errorf(dn, "only declarations are allowed at top level")
		}
		file.Decls = append(file.Decls, decl)
	}
	return file, nil
}

func (d *decoder) importDirective(n *yaml.Node) (*Import, error) {
	imp := &Import{Base: Base{Pos: pos(n)}}
	if n.Kind == yaml.ScalarNode {
		imp.Path = n.Value
	} else {
		f, err := d.fields(n, "path", "alias", "all")
		if err != nil {
			return nil, err
		}
		if imp.Path, err = d.str(f["path"]); err != nil {
			return nil, err
		}
		if imp.Alias, err = d.str(f["alias"]); err != nil {
			return nil, err
		}
		if imp.All, err = d.boolean(f["all"]); err != nil {
			return nil, err
		}
	}
	if strings.HasSuffix(imp.Path, ".*") {
		imp.Path = strings.TrimSuffix(imp.Path, ".*")
		imp.All = true
	}
	if imp.Path == "" {
		return nil, d.errorf(n, "import without path")
	}
	return imp, nil
}

func (d *decoder) typeRef(n *yaml.Node) (*TypeRef, error) {
	if n == nil || isNull(n) {
		return nil, nil
	}
	name, err := d.str(n)
	if err != nil {
		return nil, err
	}
	ref := &TypeRef{Base: Base{Pos: pos(n)}, Name: name}
	if strings.HasSuffix(name, "?") {
		ref.Name = strings.TrimSuffix(name, "?")
		ref.Nullable = true
	}
	if ref.Name == "" {
		return nil, d.errorf(n, "empty type name")
	}
	return ref, nil
}

func (d *decoder) typeRefs(n *yaml.Node) ([]*TypeRef, error) {
	items, err := d.seq(n)
	if err != nil {
		return nil, err
	}
	var out []*TypeRef
	for _, item := range items {
		ref, err := d.typeRef(item)
		if err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, nil
}

func (d *decoder) param(n *yaml.Node) (*Param, error) {
	f, err := d.fields(n, "name", "type", "vararg", "default", "property", "mutable")
	if err != nil {
		return nil, err
	}
	p := &Param{Base: Base{Pos: pos(n)}}
	if p.Name, err = d.str(f["name"]); err != nil {
		return nil, err
	}
	if p.Type, err = d.typeRef(f["type"]); err != nil {
		return nil, err
	}
	if p.Vararg, err = d.boolean(f["vararg"]); err != nil {
		return nil, err
	}
	if p.Property, err = d.boolean(f["property"]); err != nil {
		return nil, err
	}
	if p.Mutable, err = d.boolean(f["mutable"]); err != nil {
		return nil, err
	}
	if dn := f["default"]; dn != nil {
		// `default: true` marks a default without modelling the expression
		if dn.Kind == yaml.ScalarNode {
			if p.HasDefault, err = d.boolean(dn); err != nil {
				return nil, err
			}
		} else {
			if p.Default, err = d.expr(dn); err != nil {
				return nil, err
			}
			p.HasDefault = true
		}
	}
	return p, nil
}

func (d *decoder) params(n *yaml.Node) ([]*Param, error) {
	items, err := d.seq(n)
	if err != nil {
		return nil, err
	}
	var out []*Param
	for _, item := range items {
		p, err := d.param(item)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (d *decoder) block(n *yaml.Node) (*Block, error) {
	if n == nil || isNull(n) {
		return nil, nil
	}
	items, err := d.seq(n)
	if err != nil {
		return nil, err
	}
	b := &Block{Base: Base{Pos: pos(n)}}
	for _, item := range items {
		s, err := d.stmt(item)
		if err != nil {
			return nil, err
		}
		b.Stmts = append(b.Stmts, s)
	}
	return b, nil
}

func (d *decoder) stmt(n *yaml.Node) (Stmt, error) {
	key, val, err := d.tagged(n)
	if err != nil {
		return nil, err
	}
	switch key {
	case "class", "interface", "object", "companion":
		return d.class(key, val, n)
	case "fun":
		return d.fun(val, n)
	case "val", "var":
		return d.property(key == "var", val, n)
	case "init":
		body, err := d.block(val)
		if err != nil {
			return nil, err
		}
		return &InitBlock{Base: Base{Pos: pos(n)}, Body: body}, nil
	case "loop", "for", "while":
		return d.loop(val, n)
	case "assign":
		f, err := d.fields(val, "target", "value")
		if err != nil {
			return nil, err
		}
		a := &Assign{Base: Base{Pos: pos(n)}}
		if a.Target, err = d.expr(f["target"]); err != nil {
			return nil, err
		}
		if a.Value, err = d.expr(f["value"]); err != nil {
			return nil, err
		}
		return a, nil
	case "block":
		b, err := d.block(val)
		if err != nil {
			return nil, err
		}
		if b == nil {
			b = &Block{Base: Base{Pos: pos(n)}}
		}
		return b, nil
	}
	return d.exprFrom(key, val, n)
}

func (d *decoder) expr(n *yaml.Node) (Expr, error) {
	if n == nil || isNull(n) {
		return nil, d.errorf(n, "missing expression")
	}
	key, val, err := d.tagged(n)
	if err != nil {
		return nil, err
	}
	return d.exprFrom(key, val, n)
}

func (d *decoder) optExpr(n *yaml.Node) (Expr, error) {
	if n == nil || isNull(n) {
		return nil, nil
	}
	return d.expr(n)
}

func (d *decoder) exprFrom(key string, val, n *yaml.Node) (Expr, error) {
	b := Base{Pos: pos(n)}
	switch key {
	case "ref":
		ref := &NameRef{Base: b}
		if val != nil && val.Kind == yaml.ScalarNode {
			ref.Name = val.Value
		} else {
			f, err := d.fields(val, "name", "receiver")
			if err != nil {
				return nil, err
			}
			if ref.Name, err = d.str(f["name"]); err != nil {
				return nil, err
			}
			if ref.Receiver, err = d.optExpr(f["receiver"]); err != nil {
				return nil, err
			}
		}
		if ref.Name == "" {
			return nil, d.errorf(n, "reference without name")
		}
		return ref, nil
	case "call":
		return d.call(val, n)
	case "lit":
		lit := &Literal{Base: b}
		if val != nil && val.Kind == yaml.ScalarNode {
			if isNull(val) || val.Value == "null" {
				lit.Null = true
				lit.Type = "Nothing"
			} else {
				lit.Type = val.Value
			}
			return lit, nil
		}
		f, err := d.fields(val, "type", "value")
		if err != nil {
			return nil, err
		}
		if lit.Type, err = d.str(f["type"]); err != nil {
			return nil, err
		}
		if lit.Value, err = d.str(f["value"]); err != nil {
			return nil, err
		}
		return lit, nil
	case "this":
		label, err := d.str(val)
		if err != nil {
			return nil, err
		}
		return &This{Base: b, Label: label}, nil
	case "super":
		s := &Super{Base: b}
		if val == nil || val.Kind == yaml.ScalarNode {
			label, err := d.str(val)
			if err != nil {
				return nil, err
			}
			s.Label = label
			return s, nil
		}
		f, err := d.fields(val, "label", "type")
		if err != nil {
			return nil, err
		}
		if s.Label, err = d.str(f["label"]); err != nil {
			return nil, err
		}
		if s.Type, err = d.typeRef(f["type"]); err != nil {
			return nil, err
		}
		return s, nil
	case "lambda":
		return d.lambda(val, n)
	case "template":
		items, err := d.seq(val)
		if err != nil {
			return nil, err
		}
		t := &StringTemplate{Base: b}
		for _, item := range items {
			part, err := d.expr(item)
			if err != nil {
				return nil, err
			}
			t.Parts = append(t.Parts, part)
		}
		return t, nil
	case "as":
		f, err := d.fields(val, "expr", "type")
		if err != nil {
			return nil, err
		}
		c := &Cast{Base: b}
		if c.Expr, err = d.expr(f["expr"]); err != nil {
			return nil, err
		}
		if c.Type, err = d.typeRef(f["type"]); err != nil {
			return nil, err
		}
		if c.Type == nil {
			return nil, d.errorf(n, "cast without type")
		}
		return c, nil
	case "return", "break", "continue":
		return d.jump(key, val, n)
	case "when":
		return d.when(val, n)
	case "try":
		return d.try(val, n)
	}
	return nil, d.errorf(n, "unknown node kind %q", key)
}

func (d *decoder) class(key string, val, n *yaml.Node) (*ClassDecl, error) {
	f, err := d.fields(val, "name", "inner", "private", "params", "supertypes", "members")
	if err != nil {
		return nil, err
	}
	c := &ClassDecl{Base: Base{Pos: pos(n)}}
	switch key {
	case "interface":
		c.Kind = ClassInterface
	case "object":
		c.Kind = ClassObject
	case "companion":
		c.Kind = ClassCompanion
	}
	if c.Name, err = d.str(f["name"]); err != nil {
		return nil, err
	}
	if c.Name == "" && c.Kind == ClassCompanion {
		c.Name = "Companion"
	}
	if c.Inner, err = d.boolean(f["inner"]); err != nil {
		return nil, err
	}
	if c.Private, err = d.boolean(f["private"]); err != nil {
		return nil, err
	}
	if c.Params, err = d.params(f["params"]); err != nil {
		return nil, err
	}
	if c.Supertypes, err = d.typeRefs(f["supertypes"]); err != nil {
		return nil, err
	}
	members, err := d.seq(f["members"])
	if err != nil {
		return nil, err
	}
	for _, mn := range members {
		s, err := d.stmt(mn)
		if err != nil {
			return nil, err
		}
		m, ok := s.(Decl)
		if !ok {
			return nil, d.errorf(mn, "only declarations are allowed in a class body")
		}
		c.Members = append(c.Members, m)
	}
	return c, nil
}

func (d *decoder) fun(val, n *yaml.Node) (*FunDecl, error) {
	f, err := d.fields(val, "name", "receiver", "params", "result", "body", "private")
	if err != nil {
		return nil, err
	}
	fn := &FunDecl{Base: Base{Pos: pos(n)}}
	if fn.Name, err = d.str(f["name"]); err != nil {
		return nil, err
	}
	if fn.Receiver, err = d.typeRef(f["receiver"]); err != nil {
		return nil, err
	}
	if fn.Params, err = d.params(f["params"]); err != nil {
		return nil, err
	}
	if fn.Result, err = d.typeRef(f["result"]); err != nil {
		return nil, err
	}
	if fn.Body, err = d.block(f["body"]); err != nil {
		return nil, err
	}
	if fn.Private, err = d.boolean(f["private"]); err != nil {
		return nil, err
	}
	return fn, nil
}

func (d *decoder) property(mutable bool, val, n *yaml.Node) (*PropertyDecl, error) {
	f, err := d.fields(val, "name", "type", "receiver", "init", "by", "get", "set", "private")
	if err != nil {
		return nil, err
	}
	p := &PropertyDecl{Base: Base{Pos: pos(n)}, Mutable: mutable}
	if p.Name, err = d.str(f["name"]); err != nil {
		return nil, err
	}
	if p.Type, err = d.typeRef(f["type"]); err != nil {
		return nil, err
	}
	if p.Receiver, err = d.typeRef(f["receiver"]); err != nil {
		return nil, err
	}
	if p.Init, err = d.optExpr(f["init"]); err != nil {
		return nil, err
	}
	if p.Delegate, err = d.optExpr(f["by"]); err != nil {
		return nil, err
	}
	if p.Getter, err = d.accessor(f["get"], ""); err != nil {
		return nil, err
	}
	if p.Setter, err = d.accessor(f["set"], "value"); err != nil {
		return nil, err
	}
	if p.Private, err = d.boolean(f["private"]); err != nil {
		return nil, err
	}
	return p, nil
}

func (d *decoder) accessor(n *yaml.Node, param string) (*Accessor, error) {
	if n == nil || isNull(n) {
		return nil, nil
	}
	a := &Accessor{Base: Base{Pos: pos(n)}, Param: param}
	var err error
	if n.Kind == yaml.SequenceNode {
		a.Body, err = d.block(n)
		return a, err
	}
	f, err := d.fields(n, "param", "body")
	if err != nil {
		return nil, err
	}
	if p, err := d.str(f["param"]); err != nil {
		return nil, err
	} else if p != "" {
		a.Param = p
	}
	if a.Body, err = d.block(f["body"]); err != nil {
		return nil, err
	}
	return a, nil
}

func (d *decoder) loop(val, n *yaml.Node) (*Loop, error) {
	f, err := d.fields(val, "label", "var", "in", "body")
	if err != nil {
		return nil, err
	}
	l := &Loop{Base: Base{Pos: pos(n)}}
	if l.Label, err = d.str(f["label"]); err != nil {
		return nil, err
	}
	if vn := f["var"]; vn != nil {
		if l.Var, err = d.param(vn); err != nil {
			return nil, err
		}
	}
	if l.Iterable, err = d.optExpr(f["in"]); err != nil {
		return nil, err
	}
	if l.Body, err = d.block(f["body"]); err != nil {
		return nil, err
	}
	return l, nil
}

func (d *decoder) jump(key string, val, n *yaml.Node) (*Jump, error) {
	j := &Jump{Base: Base{Pos: pos(n)}}
	switch key {
	case "break":
		j.Kind = JumpBreak
	case "continue":
		j.Kind = JumpContinue
	}
	if val == nil || val.Kind == yaml.ScalarNode {
		label, err := d.str(val)
		if err != nil {
			return nil, err
		}
		j.Label = label
		return j, nil
	}
	if val.Kind == yaml.MappingNode && len(val.Content) == 2 &&
		val.Content[0].Value != "label" && val.Content[0].Value != "value" {
		// `return: {call: ...}` shorthand
		v, err := d.expr(val)
		if err != nil {
			return nil, err
		}
		j.Value = v
		return j, nil
	}
	f, err := d.fields(val, "label", "value")
	if err != nil {
		return nil, err
	}
	if j.Label, err = d.str(f["label"]); err != nil {
		return nil, err
	}
	if j.Value, err = d.optExpr(f["value"]); err != nil {
		return nil, err
	}
	return j, nil
}

func (d *decoder) call(val, n *yaml.Node) (*Call, error) {
	c := &Call{Base: Base{Pos: pos(n)}}
	if val != nil && val.Kind == yaml.ScalarNode {
		c.Name = val.Value
	} else {
		f, err := d.fields(val, "name", "receiver", "args", "infix", "safe")
		if err != nil {
			return nil, err
		}
		if c.Name, err = d.str(f["name"]); err != nil {
			return nil, err
		}
		if c.Receiver, err = d.optExpr(f["receiver"]); err != nil {
			return nil, err
		}
		args, err := d.seq(f["args"])
		if err != nil {
			return nil, err
		}
		for _, an := range args {
			arg, err := d.expr(an)
			if err != nil {
				return nil, err
			}
			c.Args = append(c.Args, arg)
		}
		if c.Infix, err = d.boolean(f["infix"]); err != nil {
			return nil, err
		}
		if c.Safe, err = d.boolean(f["safe"]); err != nil {
			return nil, err
		}
	}
	if c.Name == "" {
		return nil, d.errorf(n, "call without name")
	}
	return c, nil
}

func (d *decoder) lambda(val, n *yaml.Node) (*Lambda, error) {
	l := &Lambda{Base: Base{Pos: pos(n)}}
	var err error
	if val == nil || val.Kind == yaml.SequenceNode {
		l.Body, err = d.block(val)
		return l, err
	}
	f, err := d.fields(val, "label", "receiver", "params", "body")
	if err != nil {
		return nil, err
	}
	if l.Label, err = d.str(f["label"]); err != nil {
		return nil, err
	}
	if l.Receiver, err = d.typeRef(f["receiver"]); err != nil {
		return nil, err
	}
	if l.Params, err = d.params(f["params"]); err != nil {
		return nil, err
	}
	if l.Body, err = d.block(f["body"]); err != nil {
		return nil, err
	}
	return l, nil
}

func (d *decoder) when(val, n *yaml.Node) (*When, error) {
	f, err := d.fields(val, "subject", "branches")
	if err != nil {
		return nil, err
	}
	w := &When{Base: Base{Pos: pos(n)}}
	if w.Subject, err = d.optExpr(f["subject"]); err != nil {
		return nil, err
	}
	branches, err := d.seq(f["branches"])
	if err != nil {
		return nil, err
	}
	for _, bn := range branches {
		bf, err := d.fields(bn, "conds", "body")
		if err != nil {
			return nil, err
		}
		br := &WhenBranch{Base: Base{Pos: pos(bn)}}
		conds, err := d.seq(bf["conds"])
		if err != nil {
			return nil, err
		}
		for _, cn := range conds {
			c, err := d.expr(cn)
			if err != nil {
				return nil, err
			}
			br.Conds = append(br.Conds, c)
		}
		if br.Body, err = d.block(bf["body"]); err != nil {
			return nil, err
		}
		w.Branches = append(w.Branches, br)
	}
	return w, nil
}

func (d *decoder) try(val, n *yaml.Node) (*Try, error) {
	f, err := d.fields(val, "body", "catches", "finally")
	if err != nil {
		return nil, err
	}
	t := &Try{Base: Base{Pos: pos(n)}}
	if t.Body, err = d.block(f["body"]); err != nil {
		return nil, err
	}
	catches, err := d.seq(f["catches"])
	if err != nil {
		return nil, err
	}
	for _, cn := range catches {
		cf, err := d.fields(cn, "param", "body")
		if err != nil {
			return nil, err
		}
		c := &Catch{Base: Base{Pos: pos(cn)}}
		if pn := cf["param"]; pn != nil {
			if c.Param, err = d.param(pn); err != nil {
				return nil, err
			}
		}
		if c.Body, err = d.block(cf["body"]); err != nil {
			return nil, err
		}
		t.Catches = append(t.Catches, c)
	}
	if t.Finally, err = d.block(f["finally"]); err != nil {
		return nil, err
	}
	return t, nil
}
