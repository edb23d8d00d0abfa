// Package progress carries pipeline progress from the converter to the host.
package progress

// Func receives one progress update. Percentage is 0 to 100; detail names
// the item being worked on and may be empty.
type Func func(step, total int, description string, percentage int, detail string)

// Event is the wire form of a progress update.
type Event struct {
	Step        int    `json:"step"`
	Total       int    `json:"total"`
	Description string `json:"description"`
	Percentage  int    `json:"percentage"`
	Detail      string `json:"detail,omitempty"`
}

// Report calls f with e. A nil Func discards updates.
func (f Func) Report(e Event) {
	if f == nil {
		return
	}
	f(e.Step, e.Total, e.Description, e.Percentage, e.Detail)
}

// Multi returns a Func calling every non-nil func in order.
func Multi(funcs ...Func) Func {
	var out []Func
	for _, f := range funcs {
		if f != nil {
			out = append(out, f)
		}
	}
	return func(step, total int, description string, percentage int, detail string) {
		for _, f := range out {
			f(step, total, description, percentage, detail)
		}
	}
}

// Percent returns done out of total as a percentage clamped to 0..100.
func Percent(done, total int) int {
	if total <= 0 {
		return 100
	}
	p := done * 100 / total
	return max(0, min(100, p))
}
