package views

import (
	"todoapp/internal/models"
	"todoapp/internal/taskstore"
)

// Selector memoizes the filtered list of a Store. The result is recomputed
// only when the task collection or the filter changes, so callers holding
// the previous slice can compare cheaply.
type Selector struct {
	valid   bool
	version uint64
	filter  models.Filter
	result  []models.Task
}

// FilteredTasks returns FilteredTasks(s.Tasks(), s.Filter()), reusing the
// previous result while its inputs are unchanged. The returned slice must
// not be modified.
func (sel *Selector) FilteredTasks(s *taskstore.Store) []models.Task {
	f := s.Filter()
	if sel.valid && sel.version == s.Version() && sel.filter.Equal(f) {
		return sel.result
	}
	sel.result = FilteredTasks(s.Tasks(), f)
	sel.version = s.Version()
	sel.filter = f
	sel.valid = true
	return sel.result
}
