package app

// Operation tracks a CLI command that may mutate the database. Operations
// start in memory with ID=0; only mutating commands persist them, which
// gives them an id from the operations table.
type Operation struct {
	ID         int64
	Name       string
	Parameters string
	ProjectID  string
	Status     string // "success" or "error"
}

// NewOperation creates an in-memory operation that succeeds unless marked
// otherwise.
func NewOperation(name, parameters, projectID string) *Operation {
	return &Operation{
		Name:       name,
		Parameters: parameters,
		ProjectID:  projectID,
		Status:     StatusSuccess,
	}
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Persisted reports whether the operation has been saved to the database.
func (op *Operation) Persisted() bool {
	return op.ID != 0
}
