package pipeline

// Target is the concrete repository identity an alias resolves to.
type Target struct {
	Project    string
	Repository string
	Ref        string
}

// AliasScope resolves resource aliases for one definition file. A file
// sees the aliases it declares plus those inherited from the file that
// included it; re-declaring an alias shadows the inherited one, and
// declarations never leak back into the parent scope.
type AliasScope struct {
	parent  *AliasScope
	aliases map[string]Target
}

// NewAliasScope creates an empty root scope.
func NewAliasScope() *AliasScope {
	return &AliasScope{aliases: make(map[string]Target)}
}

// Child creates a scope that inherits from s.
func (s *AliasScope) Child() *AliasScope {
	return &AliasScope{parent: s, aliases: make(map[string]Target)}
}

// Register adds or overwrites an alias in this scope.
func (s *AliasScope) Register(alias string, target Target) {
	s.aliases[alias] = target
}

// Resolve looks up an alias in this scope and its ancestors.
func (s *AliasScope) Resolve(alias string) (Target, bool) {
	for scope := s; scope != nil; scope = scope.parent {
		if target, ok := scope.aliases[alias]; ok {
			return target, true
		}
	}
	return Target{}, false
}
