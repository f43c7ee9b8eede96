package DS

// TableModule provides default (no-op) implementations for optional VTab methods.
// Embed this in your VTab implementation to avoid implementing every method.
type TableModule struct{}

// BestIndex provides a default full-scan plan.
func (m *TableModule) BestIndex(info *IndexInfo) error {
	if len(info.ConstraintUsage) != len(info.Constraints) {
		info.ConstraintUsage = make([]ConstraintUsage, len(info.Constraints))
	}
	return nil
}

// Rename accepts any new name; tables that keep no name-dependent state
// need nothing else.
func (m *TableModule) Rename(newName string) error { return nil }
