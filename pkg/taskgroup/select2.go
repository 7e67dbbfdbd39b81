package taskgroup

// Either is a tagged variant with exactly two arms, produced by Select2.
// Exactly one of IsLeft/IsRight is true.
type Either[L, R any] struct {
	IsLeft bool
	Left   L
	Right  R
}

func left[L, R any](v L) Either[L, R]  { return Either[L, R]{IsLeft: true, Left: v} }
func right[L, R any](v R) Either[L, R] { return Either[L, R]{IsLeft: false, Right: v} }

// Select2 races two already-in-flight operations, each represented as a
// receive-only channel that its producer feeds exactly once it is ready,
// and returns as soon as one of them has a value. The loser is left
// untouched — neither channel is drained further by Select2, so whichever
// side didn't win keeps its value (or keeps running, for a producer that
// hasn't sent yet) for the next call.
//
// Tie-break: if both channels already have a value available at the time
// Select2 is called, Left wins. This is achieved with a non-blocking
// priority poll before falling back to a blocking select, and is exact
// (not probabilistic) whenever both values were produced before this call
// began — which is the shape every caller in this module uses it in: the
// writer polls a response queue and a notification channel that are fed by
// independent, already-running producers, and TaskHandler polls a stop
// signal and a future-completion channel that are both already registered
// before the race starts.
func Select2[A, B any](chA <-chan A, chB <-chan B) Either[A, B] {
	select {
	case v := <-chA:
		return left[A, B](v)
	default:
	}
	select {
	case v := <-chB:
		return right[A, B](v)
	default:
	}

	select {
	case v := <-chA:
		return left[A, B](v)
	case v := <-chB:
		return right[A, B](v)
	}
}
