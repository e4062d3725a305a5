package dashboard

import "strings"

// ValidationError reports user input missing for an action. It is shown as a
// notice and never stored as the fetch error.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	if len(e.Missing) == 0 {
		return "Invalid input."
	}
	return "Please select both an Event and a Date. Missing: " + strings.Join(e.Missing, ", ") + "."
}
