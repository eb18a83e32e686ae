package xbrl

// TagSet is the set of tag names present in one company's payload.
type TagSet map[string]struct{}

// NewTagSet builds a TagSet from a tag list.
func NewTagSet(tags []string) TagSet {
	s := make(TagSet, len(tags))
	for _, t := range tags {
		s[t] = struct{}{}
	}
	return s
}

// Has reports whether tag is present.
func (s TagSet) Has(tag string) bool {
	_, ok := s[tag]
	return ok
}

// Resolve picks the best available tag for concept: the primary tag if
// present, else the first present alternative in declared order.
// ok is false for unknown concepts and for concepts with no available tag.
func Resolve(tax *Taxonomy, available TagSet, concept string) (tag string, ok bool) {
	primary, alts, known := tax.Tags(concept)
	if !known {
		return "", false
	}
	if available.Has(primary) {
		return primary, true
	}
	for _, alt := range alts {
		if available.Has(alt) {
			return alt, true
		}
	}
	return "", false
}

// ResolveAll resolves every taxonomy concept against available.
// unresolved is in taxonomy declaration order.
func ResolveAll(tax *Taxonomy, available TagSet) (resolved map[string]string, unresolved []string) {
	resolved = make(map[string]string, tax.Len())
	for _, concept := range tax.Concepts() {
		if tag, ok := Resolve(tax, available, concept); ok {
			resolved[concept] = tag
		} else {
			unresolved = append(unresolved, concept)
		}
	}
	return resolved, unresolved
}
