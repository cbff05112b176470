package registry

// Predicate decides whether an entry participates in a dispatch.
type Predicate func(*Entry) bool

// And combines predicates; all must pass.
func And(preds ...Predicate) Predicate {
	return func(e *Entry) bool {
		for _, p := range preds {
			if !p(e) {
				return false
			}
		}
		return true
	}
}

// Or combines predicates; at least one must pass.
func Or(preds ...Predicate) Predicate {
	return func(e *Entry) bool {
		for _, p := range preds {
			if p(e) {
				return true
			}
		}
		return false
	}
}

// Not negates a predicate.
func Not(p Predicate) Predicate {
	return func(e *Entry) bool {
		return !p(e)
	}
}

// HasAnyTag matches entries carrying at least one of the given tags.
func HasAnyTag(tags ...string) Predicate {
	set := make(map[string]bool, len(tags))
	for _, t := range tags {
		set[t] = true
	}
	return func(e *Entry) bool {
		for _, t := range e.config.Tags {
			if set[t] {
				return true
			}
		}
		return false
	}
}

// InCategory matches entries in the given category.
func InCategory(category string) Predicate {
	return func(e *Entry) bool {
		return e.config.Category == category
	}
}

// InEnvironment matches entries in the given environment.
func InEnvironment(env string) Predicate {
	return func(e *Entry) bool {
		return e.config.Environment == env
	}
}

// HasID matches entries whose id is in the given set.
func HasID(ids ...string) Predicate {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return func(e *Entry) bool {
		return set[e.id]
	}
}

// Query describes dispatch-time handler filtering. All provided criteria
// are AND-composed; Custom is evaluated last.
type Query struct {
	// Tags matches entries carrying at least one of the given tags.
	Tags []string

	// Category matches entries in the category.
	Category string

	// Environment matches entries in the environment.
	Environment string

	// HandlerIDs restricts the dispatch to the given handler ids.
	HandlerIDs []string

	// ExcludeTags removes entries carrying any of the given tags.
	ExcludeTags []string

	// ExcludeHandlerIDs removes the given handler ids.
	ExcludeHandlerIDs []string

	// Custom is an arbitrary predicate over the entry config.
	Custom func(EntryConfig) bool
}

// Predicate compiles the query into a single AND-composed predicate.
func (q *Query) Predicate() Predicate {
	var preds []Predicate

	if len(q.Tags) > 0 {
		preds = append(preds, HasAnyTag(q.Tags...))
	}
	if q.Category != "" {
		preds = append(preds, InCategory(q.Category))
	}
	if q.Environment != "" {
		preds = append(preds, InEnvironment(q.Environment))
	}
	if len(q.HandlerIDs) > 0 {
		preds = append(preds, HasID(q.HandlerIDs...))
	}
	if len(q.ExcludeTags) > 0 {
		preds = append(preds, Not(HasAnyTag(q.ExcludeTags...)))
	}
	if len(q.ExcludeHandlerIDs) > 0 {
		preds = append(preds, Not(HasID(q.ExcludeHandlerIDs...)))
	}
	if q.Custom != nil {
		custom := q.Custom
		preds = append(preds, func(e *Entry) bool {
			return custom(e.config)
		})
	}

	if len(preds) == 0 {
		return func(*Entry) bool { return true }
	}
	return And(preds...)
}
