package session

import (
	"iter"
	"strings"
)

// renderer consumes the lazy fragment sequence of a single provider request.
// It holds nothing but the running accumulator and the ID of the transcript
// entry it updates, and is discarded when the request ends. Fragments are
// applied strictly in arrival order, each one triggering a fresh write of the
// full accumulated text so partial output is visible as it arrives.
type renderer struct {
	c     *Controller
	msgID string
	acc   strings.Builder
}

func newRenderer(c *Controller, msgID string) *renderer {
	return &renderer{c: c, msgID: msgID}
}

// consume pulls fragments until the sequence ends, a fault is raised, or the
// session is torn down. The first fault stops consumption immediately and is
// returned; the partial accumulator is abandoned with it.
func (r *renderer) consume(seq iter.Seq2[string, error]) error {
	for fragment, err := range seq {
		if err != nil {
			return err
		}
		r.acc.WriteString(fragment)
		if !r.c.applyFragment(r.msgID, r.acc.String()) {
			return nil
		}
	}
	return nil
}
