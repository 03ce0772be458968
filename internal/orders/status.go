package orders

type Status string

const (
	StatusPending   Status = "pending"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusShipped: true, StatusCancelled: true},
	StatusShipped:   {StatusDelivered: true, StatusCancelled: true},
	StatusDelivered: {},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

// Rank orders statuses along the lifecycle; delivered and cancelled are both
// final. Unknown statuses rank 0.
func (s Status) Rank() int {
	switch s {
	case StatusPending:
		return 1
	case StatusShipped:
		return 2
	case StatusDelivered, StatusCancelled:
		return 3
	}
	return 0
}

// Supersedes reports whether s is later in the lifecycle than cur, so a cache
// fed by out-of-order events never moves an order backwards.
func (s Status) Supersedes(cur Status) bool {
	return s.Rank() > cur.Rank()
}
