package validation

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseSelection validates a numbered menu selection and returns it as a
// zero-based index into a list of the given size.
func ParseSelection(text string, size int) (int, error) {
	number, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, fmt.Errorf("invalid selection: must be a number")
	}

	if number < 1 || number > size {
		return 0, fmt.Errorf("invalid selection: must be between 1 and %d", size)
	}

	return number - 1, nil
}
