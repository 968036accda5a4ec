package testutil

// FixedCascadeGenerator hands out the same cascade token for every
// top-level dispatch, so every action a test produces correlates to one
// token. Stateless and safe for concurrent use.
type FixedCascadeGenerator struct {
	token string
}

// NewFixedCascadeGenerator returns a generator for token, or for
// "test-cascade" when token is empty.
func NewFixedCascadeGenerator(token string) *FixedCascadeGenerator {
	if token == "" {
		token = "test-cascade"
	}
	return &FixedCascadeGenerator{token: token}
}

// Generate implements engine.CascadeTokenGenerator.
func (g *FixedCascadeGenerator) Generate() string {
	return g.token
}
