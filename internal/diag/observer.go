package diag

// Observer receives engine events. Implementations must be safe for
// concurrent use; ReplyStored and ReplyDiscarded run on the transport
// goroutine.
type Observer interface {
	CollectionStarted()
	CollectionFailed()
	CollectionCompleted(nodes int)
	ReplyStored()
	ReplyDiscarded(reason string)
	StoreSwept(evicted, remaining int)
}

// Reasons passed to Observer.ReplyDiscarded.
const (
	DiscardErrorStatus = "error_status"
	DiscardMalformed   = "malformed"
)

type nopObserver struct{}

func (nopObserver) CollectionStarted()      {}
func (nopObserver) CollectionFailed()       {}
func (nopObserver) CollectionCompleted(int) {}
func (nopObserver) ReplyStored()            {}
func (nopObserver) ReplyDiscarded(string)   {}
func (nopObserver) StoreSwept(int, int)     {}
