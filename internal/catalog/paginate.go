package catalog

// Window sizes the upstream over-fetch for one endpoint. Grouping collapses
// rows, so asking for exactly limit rows would return fewer items.
type Window struct {
	Multiplier int
	Cap        int
}

var (
	ListWindow   = Window{Multiplier: 3, Cap: 100}
	SearchWindow = Window{Multiplier: 3, Cap: 100}
	RecentWindow = Window{Multiplier: 2, Cap: 50}
)

func (w Window) FetchSize(limit int) int {
	n := limit * w.Multiplier
	if n > w.Cap {
		return w.Cap
	}
	return n
}

// Paginate truncates items to limit. total is the grouped count before
// truncation, bounded by the fetch size rather than a global count.
func Paginate(items []Item, limit int) ([]Item, int) {
	total := len(items)
	if limit >= 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, total
}
