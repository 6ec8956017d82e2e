package nested

import (
	"fmt"
)

// Default limits applied when the nested engine is configured with zero
// values.
const (
	DefaultMaxDepth    = 10
	DefaultMaxBulkSize = 100
)

// Session is the per-call state of one top-level mutation: the expansion
// depth, the chain of type names currently being expanded, the row
// identities already written, and the validation errors collected so far.
// A Session is created fresh for every top-level call and never shared
// across requests.
type Session struct {
	maxDepth int
	maxBulk  int

	depth     int
	path      []string
	onPath    map[string]struct{}
	processed map[string]struct{}
	errs      []error
}

// NewSession returns a fresh session with the given limits. Non-positive
// limits fall back to the package defaults.
func NewSession(maxDepth, maxBulk int) *Session {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if maxBulk <= 0 {
		maxBulk = DefaultMaxBulkSize
	}
	return &Session{
		maxDepth:  maxDepth,
		maxBulk:   maxBulk,
		onPath:    make(map[string]struct{}),
		processed: make(map[string]struct{}),
	}
}

// Enter pushes typeName onto the expansion chain. It fails with a
// DepthError when the new depth would exceed the configured maximum and
// with a CircularReferenceError when typeName is already being expanded on
// the current chain. Re-entering a type that was fully expanded and left
// earlier in the call is legal; only the live chain counts.
func (s *Session) Enter(typeName string) error {
	if err := CheckDepth(s.depth+1, s.maxDepth); err != nil {
		return err
	}
	if _, expanding := s.onPath[typeName]; expanding {
		path := make([]string, len(s.path), len(s.path)+1)
		copy(path, s.path)
		return &CircularReferenceError{TypeName: typeName, Path: append(path, typeName)}
	}
	s.depth++
	s.path = append(s.path, typeName)
	s.onPath[typeName] = struct{}{}
	return nil
}

// Leave pops the most recent Enter. Calling Leave without a matching Enter
// is a no-op.
func (s *Session) Leave() {
	if len(s.path) == 0 {
		return
	}
	last := s.path[len(s.path)-1]
	s.path = s.path[:len(s.path)-1]
	delete(s.onPath, last)
	s.depth--
}

// Depth reports the current expansion depth. The root object counts as
// depth one.
func (s *Session) Depth() int {
	return s.depth
}

// Path returns a copy of the current expansion chain.
func (s *Session) Path() []string {
	path := make([]string, len(s.path))
	copy(path, s.path)
	return path
}

// CheckBulkSize validates a list payload length against the session's bulk
// limit, naming the offending field in the failure.
func (s *Session) CheckBulkSize(field string, actual int) error {
	if s.maxBulk <= 0 || actual <= s.maxBulk {
		return nil
	}
	return &BulkSizeError{MaxSize: s.maxBulk, ActualSize: actual, Field: field}
}

// MarkProcessed records that the row identified by table and pk has been
// written during this call. It returns true the first time an identity is
// seen and false on repeats, letting callers skip duplicate writes to the
// same row inside one input tree.
func (s *Session) MarkProcessed(table string, pk interface{}) bool {
	key := fmt.Sprintf("%s:%v", table, pk)
	if _, seen := s.processed[key]; seen {
		return false
	}
	s.processed[key] = struct{}{}
	return true
}

// AddValidationErrors appends payload validation failures in order.
func (s *Session) AddValidationErrors(errs ...error) {
	for _, err := range errs {
		if err != nil {
			s.errs = append(s.errs, err)
		}
	}
}

// ValidationErrors returns the collected validation failures in the order
// they were recorded.
func (s *Session) ValidationErrors() []error {
	return s.errs
}

// FirstValidationError returns the earliest recorded failure, or nil.
func (s *Session) FirstValidationError() error {
	if len(s.errs) == 0 {
		return nil
	}
	return s.errs[0]
}
