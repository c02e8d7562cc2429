// Package demo is a tiny arithmetic term language used by cmd/egraph to
// drive the kernel (package egraph) and a saturation.Strategy to a
// fixpoint: none of it is part of the spec's core API surface (spec.md §1
// leaves concrete term languages and rule sets to an external
// collaborator), it exists purely so the command-line tool has something
// concrete to saturate and extract from.
package demo

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/perf-analysis/internal/eclass"
	"github.com/perf-analysis/internal/egraph"
	"github.com/perf-analysis/internal/slot"
	apperrors "github.com/perf-analysis/pkg/errors"
	"github.com/perf-analysis/pkg/parallel"
)

// Op is the node-type tag for this language: "add", "mul", "num:<n>" or
// "var:<name>". It carries no binders, so every class in a demo e-graph
// has an empty slot set — RenameSlots/symmetry machinery in the kernel is
// exercised elsewhere (package eclass/egraph tests), not here.
type Op string

func (o Op) String() string { return string(o) }

const (
	AddOp Op = "add"
	MulOp Op = "mul"
)

// NumOp returns the tag for the integer literal n.
func NumOp(n int64) Op { return Op("num:" + strconv.FormatInt(n, 10)) }

// VarOp returns the tag for the variable named name.
func VarOp(name string) Op { return Op("var:" + name) }

// AsNum reports whether o names an integer literal, and its value.
func AsNum(o Op) (int64, bool) {
	s := string(o)
	if !strings.HasPrefix(s, "num:") {
		return 0, false
	}
	n, err := strconv.ParseInt(s[len("num:"):], 10, 64)
	return n, err == nil
}

func identityCall(ref eclass.Ref) eclass.EClassCall {
	return eclass.EClassCall{Ref: ref, Args: slot.Identity(slot.NewSlotSet())}
}

// Term is a parsed, not-yet-inserted arithmetic expression: the tiny AST
// Parse builds and Insert walks bottom-up into an e-graph.
type Term struct {
	Op   Op
	Args []*Term
}

func num(n int64) *Term           { return &Term{Op: NumOp(n)} }
func variable(name string) *Term  { return &Term{Op: VarOp(name)} }
func binary(op Op, a, b *Term) *Term { return &Term{Op: op, Args: []*Term{a, b}} }

// Add builds an addition term.
func Add(a, b *Term) *Term { return binary(AddOp, a, b) }

// Mul builds a multiplication term.
func Mul(a, b *Term) *Term { return binary(MulOp, a, b) }

// Num builds an integer literal term.
func Num(n int64) *Term { return num(n) }

// Var builds a variable reference term.
func Var(name string) *Term { return variable(name) }

func (t *Term) String() string {
	if len(t.Args) == 0 {
		s := string(t.Op)
		if strings.HasPrefix(s, "var:") {
			return strings.TrimPrefix(s, "var:")
		}
		if n, ok := AsNum(t.Op); ok {
			return strconv.FormatInt(n, 10)
		}
		return s
	}
	parts := make([]string, len(t.Args))
	for i, a := range t.Args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("(%s %s)", t.Op, strings.Join(parts, " "))
}

// Insert walks t bottom-up, adding every subterm to g and returning the
// class call for its root.
func Insert(ctx context.Context, g *egraph.EGraph[Op], t *Term, pm parallel.Map) (eclass.EClassCall, error) {
	args := make([]eclass.EClassCall, len(t.Args))
	for i, a := range t.Args {
		call, err := Insert(ctx, g, a, pm)
		if err != nil {
			return eclass.EClassCall{}, err
		}
		args[i] = call
	}
	res, err := g.TryAdd(ctx, eclass.ENode[Op]{NodeType: t.Op, Args: args})
	if err != nil {
		return eclass.EClassCall{}, err
	}
	return res.Call, nil
}

// Parse reads a tiny s-expression arithmetic language: `(+ a b)`, `(* a
// b)`, bare integers, and bare identifiers as variables. Whitespace
// separates tokens; parens must balance.
func Parse(src string) (*Term, error) {
	toks := tokenize(src)
	if len(toks) == 0 {
		return nil, apperrors.MalformedCall("empty expression")
	}
	t, rest, err := parseExpr(toks)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, apperrors.MalformedCall("trailing tokens after expression: " + strings.Join(rest, " "))
	}
	return t, nil
}

func tokenize(src string) []string {
	src = strings.ReplaceAll(src, "(", " ( ")
	src = strings.ReplaceAll(src, ")", " ) ")
	return strings.Fields(src)
}

func parseExpr(toks []string) (*Term, []string, error) {
	if len(toks) == 0 {
		return nil, nil, apperrors.MalformedCall("unexpected end of expression")
	}
	head, rest := toks[0], toks[1:]
	if head != "(" {
		return parseAtom(head), rest, nil
	}

	if len(rest) == 0 {
		return nil, nil, apperrors.MalformedCall("unterminated '('")
	}
	op, rest := rest[0], rest[1:]

	var args []*Term
	for {
		if len(rest) == 0 {
			return nil, nil, apperrors.MalformedCall("unterminated '('")
		}
		if rest[0] == ")" {
			rest = rest[1:]
			break
		}
		var arg *Term
		var err error
		arg, rest, err = parseExpr(rest)
		if err != nil {
			return nil, nil, err
		}
		args = append(args, arg)
	}

	var tag Op
	switch op {
	case "+":
		tag = AddOp
	case "*":
		tag = MulOp
	default:
		return nil, nil, apperrors.MalformedCall("unknown operator: " + op)
	}
	if len(args) != 2 {
		return nil, nil, apperrors.MalformedCall(fmt.Sprintf("%q takes exactly 2 arguments, got %d", op, len(args)))
	}
	return &Term{Op: tag, Args: args}, rest, nil
}

func parseAtom(tok string) *Term {
	if n, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return num(n)
	}
	return variable(tok)
}
