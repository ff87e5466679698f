package poller

// SeenSet holds the ids already handed to the notifier. It only grows; it is
// owned by one Run call and never shared between goroutines.
type SeenSet map[int]struct{}

func NewSeenSet() SeenSet { return SeenSet{} }

func (s SeenSet) Has(id int) bool {
	_, ok := s[id]
	return ok
}

// Add records id and reports whether it was new.
func (s SeenSet) Add(id int) bool {
	if _, ok := s[id]; ok {
		return false
	}
	s[id] = struct{}{}
	return true
}

func (s SeenSet) Len() int { return len(s) }
