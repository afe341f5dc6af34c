package testutil

// FixedRunID generates the same ingest run id every time.
//
// This keeps golden reports byte-identical between test runs.
type FixedRunID struct {
	id string
}

// NewFixedRunID creates a fixed run id generator. If id is empty, Generate
// returns "test-run".
func NewFixedRunID(id string) *FixedRunID {
	if id == "" {
		id = "test-run"
	}
	return &FixedRunID{id: id}
}

// Generate returns the fixed run id.
func (g *FixedRunID) Generate() string {
	return g.id
}
