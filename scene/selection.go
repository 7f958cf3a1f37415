package scene

const (
	SelectNone = "NONE"
	SelectAll  = "ALL"
)

// Selection is the list of output fields a node pulls from the physics
// engine each step. It is recomputed only by Update.
type Selection struct {
	tokens  MFString
	indices []int
}

// Update recomputes the selection from requested field names. A lone
// "NONE" selects nothing; "ALL" anywhere selects every output field of the
// table in declaration order; otherwise names are resolved in the given
// order, names the table does not know are skipped and duplicates are
// kept. The backing storage is reused.
func (s *Selection) Update(tokens []string, t *Table) {
	s.tokens = append(s.tokens[:0], tokens...)
	s.indices = s.indices[:0]

	if len(tokens) == 1 && tokens[0] == SelectNone {
		return
	}
	for _, tok := range tokens {
		if tok == SelectAll {
			s.indices = append(s.indices, t.outputs...)
			return
		}
	}
	for _, tok := range tokens {
		i, ok := t.IndexOf(tok)
		if !ok {
			continue
		}
		s.indices = append(s.indices, i)
	}
}

// Indices returns the selected field indices. The slice must not be modified.
func (s *Selection) Indices() []int { return s.indices }

func (s *Selection) Len() int { return len(s.indices) }

// Tokens returns a copy of the names last passed to Update.
func (s *Selection) Tokens() MFString {
	out := make(MFString, len(s.tokens))
	copy(out, s.tokens)
	return out
}
