package resolve

import (
	"sort"

	"github.com/funvibe/resolvekit/internal/symbols"
	"github.com/funvibe/resolvekit/internal/types"
)

// Tier is where a candidate was found, nearest first.
type Tier uint8

const (
	TierLocal Tier = iota
	TierReceiver
	TierFile
	TierExplicitImport
	TierPackage
	TierStar
	TierDefault
)

func (t Tier) String() string {
	switch t {
	case TierLocal:
		return "local"
	case TierReceiver:
		return "receiver"
	case TierFile:
		return "file"
	case TierExplicitImport:
		return "import"
	case TierPackage:
		return "package"
	case TierStar:
		return "star"
	default:
		return "default"
	}
}

// Verdict is the applicability of a candidate. Inapplicable verdicts are
// ordered by how close the candidate came to applying: argument problems
// before receiver problems.
type Verdict uint8

const (
	Applicable Verdict = iota
	WrongArgumentType
	WrongArgumentCount
	WrongReceiverType
	MissingReceiver
	Invisible
	ErrorTypedReceiver
)

func (v Verdict) String() string {
	switch v {
	case Applicable:
		return "applicable"
	case WrongArgumentType:
		return "wrong argument type"
	case WrongArgumentCount:
		return "wrong argument count"
	case WrongReceiverType:
		return "wrong receiver type"
	case MissingReceiver:
		return "missing receiver"
	case Invisible:
		return "invisible"
	default:
		return "error-typed receiver"
	}
}

// Arity ranks how the arguments fit the parameters.
type Arity uint8

const (
	ArityExact Arity = iota
	ArityDefaults
	ArityVararg
)

// Key is the priority of a candidate. Keys compare lexicographically in
// field order; a smaller key wins.
type Key struct {
	Tier     Tier
	Distance int // scope distance for locals, slot distance for receivers
	// Extension is set for extensions bound to a receiver; members of the
	// same receiver win.
	Extension bool
	// Source ranks extensions by where they were declared: 0 for members,
	// then local, same file, imported.
	Source int
	// Depth is the scope distance of a local extension.
	Depth  int
	Invoke bool
	Arity  Arity
}

// Less reports whether k has strictly higher priority than o.
func (k Key) Less(o Key) bool {
	switch {
	case k.Tier != o.Tier:
		return k.Tier < o.Tier
	case k.Distance != o.Distance:
		return k.Distance < o.Distance
	case k.Extension != o.Extension:
		return !k.Extension
	case k.Source != o.Source:
		return k.Source < o.Source
	case k.Depth != o.Depth:
		return k.Depth < o.Depth
	case k.Invoke != o.Invoke:
		return !k.Invoke
	default:
		return k.Arity < o.Arity
	}
}

// Candidate is one symbol considered for a site.
type Candidate struct {
	Symbol   *symbols.Symbol
	Receiver *Receiver
	Invoke   *symbols.Symbol // value called through its invoke operator
	Verdict  Verdict
	Key      Key

	params []types.Type // qualified parameter types; unknown ones are the error type
	order  int
}

// outcome is the result of prioritizing the candidates of one site.
type outcome struct {
	winner     *Candidate
	tied       []*Candidate // ambiguous winners
	best       *Candidate   // best inapplicable candidate
	rejected   []*Candidate // inapplicable candidates, best first
	candidates []*Candidate
}

// prioritize selects the winner among cands. oracle is used by the
// most-specific filter.
func prioritize(cands []*Candidate, oracle types.Oracle) outcome {
	out := outcome{candidates: cands}
	var applicable, inapplicable []*Candidate
	for _, c := range cands {
		if c.Verdict == Applicable {
			applicable = append(applicable, c)
		} else {
			inapplicable = append(inapplicable, c)
		}
	}
	sortCandidates(applicable)
	sortCandidates(inapplicable)
	sort.SliceStable(inapplicable, func(i, j int) bool {
		return inapplicable[i].Verdict < inapplicable[j].Verdict
	})

	out.rejected = inapplicable
	if len(applicable) == 0 {
		if len(inapplicable) > 0 {
			out.best = inapplicable[0]
		}
		return out
	}

	top := applicable[:1]
	for _, c := range applicable[1:] {
		if c.Key != top[0].Key {
			break
		}
		top = append(top, c)
	}
	top = dedupe(top)
	if len(top) > 1 {
		top = mostSpecific(top, oracle)
	}
	if len(top) == 1 {
		out.winner = top[0]
		return out
	}
	out.tied = top
	return out
}

// sortCandidates orders candidates by key, then qualified name, then
// declaration position, then collection order.
func sortCandidates(cs []*Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if a.Key != b.Key {
			return a.Key.Less(b.Key)
		}
		if a.Symbol.QualifiedName != b.Symbol.QualifiedName {
			return a.Symbol.QualifiedName < b.Symbol.QualifiedName
		}
		pa, pb := position(a.Symbol), position(b.Symbol)
		if pa != pb {
			return pa.Before(pb)
		}
		return a.order < b.order
	})
}

// dedupe drops candidates reached twice through different paths, such as
// an extension visible both from the file and from a star import of its own
// package.
func dedupe(cs []*Candidate) []*Candidate {
	out := cs[:0:0]
	seen := make(map[*symbols.Symbol]bool)
	for _, c := range cs {
		if seen[c.Symbol] {
			continue
		}
		seen[c.Symbol] = true
		out = append(out, c)
	}
	return out
}

// mostSpecific keeps the candidates no other candidate is strictly more
// specific than.
func mostSpecific(cs []*Candidate, oracle types.Oracle) []*Candidate {
	var out []*Candidate
	for i, c := range cs {
		dominated := false
		for j, o := range cs {
			if i != j && atLeastAsSpecific(o, c, oracle) && !atLeastAsSpecific(c, o, oracle) {
				dominated = true
				break
			}
		}
		if !dominated {
			out = append(out, c)
		}
	}
	return out
}

// atLeastAsSpecific reports whether every parameter of a is a subtype of
// the matching parameter of b. Vararg element types are compared even when
// no argument was passed for them.
func atLeastAsSpecific(a, b *Candidate, oracle types.Oracle) bool {
	if a.Symbol.Kind != symbols.KindFunction || b.Symbol.Kind != symbols.KindFunction {
		return false
	}
	n := len(a.params)
	if len(b.params) < n {
		n = len(b.params)
	}
	for i := 0; i < n; i++ {
		if !oracle.IsSubtype(a.params[i], b.params[i]) {
			return false
		}
	}
	return true
}
