package assessment

import "sort"

// NormalizeAnswer converts a raw response payload into an Answer. raw may be
// nil, a string, []string or a JSON-decoded []any. It never fails.
func NormalizeAnswer(q Question, raw any) Answer {
	a := Answer{QuestionID: q.ID, SelectedOptionIDs: []string{}}
	if raw == nil {
		return a
	}
	if q.Kind == KindText {
		if s, ok := raw.(string); ok {
			a.TextResponse = s
		}
		return a
	}
	switch v := raw.(type) {
	case string:
		if v != "" {
			a.SelectedOptionIDs = []string{v}
		}
	case []string:
		a.SelectedOptionIDs = toSet(v)
	case []any:
		ids := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				ids = append(ids, s)
			}
		}
		a.SelectedOptionIDs = toSet(ids)
	}
	return a
}

// NormalizeAnswers builds one Answer per exam question, in exam order, from a
// questionID -> payload map. Questions missing from raw get empty answers.
// Unknown questions and selections outside a question's options fail.
func NormalizeAnswers(e Exam, raw map[string]any) ([]Answer, error) {
	for id := range raw {
		if _, ok := e.question(id); !ok {
			return nil, invalid("unknown question %q", id)
		}
	}
	out := make([]Answer, 0, len(e.Questions))
	for _, q := range e.Questions {
		a := NormalizeAnswer(q, raw[q.ID])
		if err := checkSelection(q, a.SelectedOptionIDs); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// toSet de-duplicates ids, drops empty ones and sorts the result so equal
// selections always serialize identically.
func toSet(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
