package DS

import (
	"context"
	"strconv"
)

// VTabCursor defines the cursor interface for iterating over virtual table rows.
type VTabCursor interface {
	// Filter starts (or restarts) a scan. idxNum and idxStr are the values
	// BestIndex produced; args holds one value per constraint whose
	// ConstraintUsage.ArgvIndex is non-zero, ordered by ArgvIndex.
	Filter(ctx context.Context, idxNum int, idxStr string, args []Value) error
	Next(ctx context.Context) error
	Column(ctx context.Context, col int) (Value, error)
	RowID() (int64, error)
	Eof() bool
	Close() error
}

// VTab represents a virtual table instance.
type VTab interface {
	BestIndex(info *IndexInfo) error
	Open() (VTabCursor, error)
	Columns() []string
	Rename(newName string) error
	Disconnect() error
	Destroy() error
}

// VTabModule is the factory for creating/connecting to virtual tables.
// Create is used when a table is first declared, Connect when a table with
// a persisted definition is reattached.
type VTabModule interface {
	Create(ctx context.Context, eng Engine, args []string) (VTab, error)
	Connect(ctx context.Context, eng Engine, args []string) (VTab, error)
}

// ConstraintOp identifies the comparison of a WHERE constraint.
type ConstraintOp int

const (
	OpEQ ConstraintOp = iota + 1
	OpGT
	OpLE
	OpLT
	OpGE
	OpMatch
	OpLike
	OpGlob
	OpRegexp
	OpNE
	OpIsNot
	OpIsNotNull
	OpIsNull
	OpIs
	OpLimit
	OpOffset
	OpFunction
)

var opNames = map[ConstraintOp]string{
	OpEQ:        "EQ",
	OpGT:        "GT",
	OpLE:        "LE",
	OpLT:        "LT",
	OpGE:        "GE",
	OpMatch:     "MATCH",
	OpLike:      "LIKE",
	OpGlob:      "GLOB",
	OpRegexp:    "REGEXP",
	OpNE:        "NE",
	OpIsNot:     "ISNOT",
	OpIsNotNull: "ISNOTNULL",
	OpIsNull:    "ISNULL",
	OpIs:        "IS",
	OpLimit:     "LIMIT",
	OpOffset:    "OFFSET",
	OpFunction:  "FUNCTION",
}

func (op ConstraintOp) String() string {
	if s, ok := opNames[op]; ok {
		return s
	}
	return "OP(" + strconv.Itoa(int(op)) + ")"
}

// Unary reports whether the operator takes no right-hand value.
func (op ConstraintOp) Unary() bool {
	return op == OpIsNull || op == OpIsNotNull
}

// IndexInfo holds query plan information passed to BestIndex.
// Constraints and OrderBy are inputs; the remaining fields are outputs.
type IndexInfo struct {
	Constraints []IndexConstraint
	OrderBy     []IndexOrderBy

	ConstraintUsage []ConstraintUsage
	OrderByConsumed bool
	IdxNum          int
	IdxStr          string
	EstimatedRows   int64
	EstimatedCost   float64
}

// IndexConstraint describes a WHERE constraint.
type IndexConstraint struct {
	Column int
	Op     ConstraintOp
	Usable bool
}

// IndexOrderBy describes an ORDER BY term.
type IndexOrderBy struct {
	Column int
	Desc   bool
}

// ConstraintUsage reports how BestIndex consumed a constraint. ArgvIndex is
// the 1-based position of the constraint's value in the Filter args, or 0
// when no value is passed. Omit tells the caller it need not re-check the
// constraint.
type ConstraintUsage struct {
	ArgvIndex int
	Omit      bool
}

// NewIndexInfo allocates an IndexInfo with one ConstraintUsage slot per
// constraint.
func NewIndexInfo(constraints []IndexConstraint, orderBy []IndexOrderBy) *IndexInfo {
	return &IndexInfo{
		Constraints:     constraints,
		OrderBy:         orderBy,
		ConstraintUsage: make([]ConstraintUsage, len(constraints)),
	}
}
