package vm

import (
	"fmt"
	"strings"
)

// PrintValue renders a value as canonical S-expression text. Proper
// lists print in shorthand: (a b c) rather than (a . (b . (c . nil))).
func PrintValue(v *MutatorView, value TaggedScopedPtr) string {
	v.assertActive()

	switch value.TypeID() {
	case TypeNil:
		return "nil"

	case TypeInteger:
		return fmt.Sprintf("%d", value.Number())

	case TypeSymbol:
		return value.Symbol().AsStr(v)

	case TypeString:
		text := value.Text().AsStr(v)
		text = strings.ReplaceAll(text, `\`, `\\`)
		text = strings.ReplaceAll(text, `"`, `\"`)
		return `"` + text + `"`

	case TypePair:
		var sb strings.Builder
		sb.WriteByte('(')
		head := value
		for {
			pair := head.Pair()
			sb.WriteString(PrintValue(v, pair.First.Get(v)))
			rest := pair.Second.Get(v)
			switch {
			case rest.IsNil():
				sb.WriteByte(')')
				return sb.String()
			case rest.IsPair():
				sb.WriteByte(' ')
				head = rest
			default:
				sb.WriteString(" . ")
				sb.WriteString(PrintValue(v, rest))
				sb.WriteByte(')')
				return sb.String()
			}
		}

	case TypeFunction:
		return "#<function " + value.Function().Name(v) + ">"

	case TypePartial:
		p := value.Partial()
		return fmt.Sprintf("#<partial %s %d/%d>",
			p.Function(v).Get().Name(v), p.Used(), p.Used()+p.Arity())

	case TypeUpvalue:
		return "#<upvalue>"

	default:
		return "#<" + TypeName(value.TypeID()) + ">"
	}
}
