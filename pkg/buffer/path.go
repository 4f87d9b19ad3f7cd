package buffer

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ssargent/arenabuf/pkg/schema"
)

// Path addresses a value inside a buffer. Each step is interpreted by the
// schema node it is applied to: a column name for tables, a decimal position
// for lists and tuples, a key for maps. The empty path is the root.
type Path []string

// ParsePath splits a dotted path such as "tags.0" or "meta.color". A literal
// dot inside a map key is written as `\.`.
func ParsePath(s string) Path {
	if s == "" {
		return nil
	}
	var (
		out []string
		cur strings.Builder
	)
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '\\' && i+1 < len(s) && (s[i+1] == '.' || s[i+1] == '\\'):
			cur.WriteByte(s[i+1])
			i++
		case s[i] == '.':
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(s[i])
		}
	}
	return append(out, cur.String())
}

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, s := range p {
		s = strings.ReplaceAll(s, `\`, `\\`)
		parts[i] = strings.ReplaceAll(s, ".", `\.`)
	}
	return strings.Join(parts, ".")
}

type stepKind uint8

const (
	stepColumn stepKind = iota
	stepItem
	stepIndex
	stepKey
)

// step is one path element resolved against the schema.
type step struct {
	kind   stepKind
	pos    int // column, tuple or list position
	key    string
	parent *schema.Node
	node   *schema.Node
}

// resolve checks p against the schema before any byte is touched.
func resolve(root *schema.Node, p Path) ([]step, *schema.Node, error) {
	steps := make([]step, 0, len(p))
	cur := root
	for i, s := range p {
		fail := func(format string, args ...any) ([]step, *schema.Node, error) {
			return nil, nil, &PathError{Path: p.String(), Msg: fmt.Sprintf("step %d: ", i) + fmt.Sprintf(format, args...)}
		}
		switch cur.Kind {
		case schema.KindTable:
			pos, child, ok := cur.Column(s)
			if !ok {
				return nil, nil, &PathError{Path: p.String(), Msg: fmt.Sprintf("step %d: unknown column %q", i, s), unknownColumn: true}
			}
			steps = append(steps, step{kind: stepColumn, pos: pos, parent: cur, node: child})
			cur = child
		case schema.KindTuple:
			pos, err := strconv.Atoi(s)
			if err != nil || pos < 0 {
				return fail("tuple position %q is not a number", s)
			}
			if pos >= len(cur.Values) {
				return fail("tuple position %d out of range [0, %d)", pos, len(cur.Values))
			}
			steps = append(steps, step{kind: stepItem, pos: pos, parent: cur, node: cur.Values[pos]})
			cur = cur.Values[pos]
		case schema.KindList:
			pos, err := strconv.ParseUint(s, 10, 32)
			if err != nil {
				return fail("list index %q is not a number", s)
			}
			if pos >= math.MaxUint16 {
				return nil, nil, &CapacityError{What: fmt.Sprintf("list index %d", pos), Limit: math.MaxUint16 - 1}
			}
			steps = append(steps, step{kind: stepIndex, pos: int(pos), parent: cur, node: cur.Of})
			cur = cur.Of
		case schema.KindMap:
			if len(s) > math.MaxUint16 {
				return nil, nil, &CapacityError{What: "map key length", Limit: math.MaxUint16}
			}
			steps = append(steps, step{kind: stepKey, key: s, parent: cur, node: cur.Value})
			cur = cur.Value
		default:
			return fail("cannot descend into %s", cur.Kind)
		}
	}
	return steps, cur, nil
}
