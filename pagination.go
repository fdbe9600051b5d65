package sopdoc

// PageCapacity is the number of step slots on one page (a 3x2 grid).
const PageCapacity = 6

// Slot is one grid cell of a page: either a step or an explicit empty marker.
type Slot struct {
	Step  Step
	Empty bool
}

// Page is a derived, read-only grouping of steps. It is never persisted.
type Page struct {
	Number int // 1-based
	Total  int
	Slots  [PageCapacity]Slot
}

// Steps returns the non-empty slots in order.
func (p Page) Steps() []Step {
	out := make([]Step, 0, PageCapacity)
	for _, s := range p.Slots {
		if !s.Empty {
			out = append(out, s.Step)
		}
	}
	return out
}

// DisplayNumber returns the global step number shown for a slot.
// Presentation only.
func DisplayNumber(pageNumber, slotIndex int) int {
	return (pageNumber-1)*PageCapacity + slotIndex + 1
}

// PageCount returns the number of pages needed for n steps (never zero).
func PageCount(n int) int {
	if n <= 0 {
		return 1
	}
	return (n + PageCapacity - 1) / PageCapacity
}

// Paginate partitions steps into consecutive pages of PageCapacity slots.
// The final page is padded with empty slots; an empty input yields
// exactly one fully empty page.
func Paginate(steps []Step) []Page {
	total := PageCount(len(steps))
	pages := make([]Page, total)
	for p := range pages {
		pages[p].Number = p + 1
		pages[p].Total = total
		for i := range PageCapacity {
			idx := p*PageCapacity + i
			if idx < len(steps) {
				pages[p].Slots[i] = Slot{Step: steps[idx]}
			} else {
				pages[p].Slots[i] = Slot{Empty: true}
			}
		}
	}
	return pages
}
