package inference

import "strings"

// Smoother re-chunks streamed text on word boundaries. Upstream providers
// emit deltas at arbitrary byte offsets; clients render more evenly when
// every chunk ends on whitespace. A partial trailing word is held back until
// the next delta completes it or Flush is called.
type Smoother struct {
	emit    func(string) error
	pending strings.Builder
}

func NewSmoother(emit func(string) error) *Smoother {
	return &Smoother{emit: emit}
}

// Write feeds a raw delta in. Complete words are emitted immediately.
func (s *Smoother) Write(text string) error {
	if text == "" {
		return nil
	}
	s.pending.WriteString(text)

	buffered := s.pending.String()
	cut := lastBoundary(buffered)
	if cut < 0 {
		return nil
	}

	ready, rest := buffered[:cut+1], buffered[cut+1:]
	s.pending.Reset()
	s.pending.WriteString(rest)
	return s.emit(ready)
}

// Flush emits whatever partial word remains. Call once at end of stream.
func (s *Smoother) Flush() error {
	if s.pending.Len() == 0 {
		return nil
	}
	rest := s.pending.String()
	s.pending.Reset()
	return s.emit(rest)
}

// lastBoundary returns the index of the last whitespace byte, or -1.
func lastBoundary(text string) int {
	return strings.LastIndexAny(text, " \t\n\r")
}
