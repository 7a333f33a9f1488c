package commands

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"taskdesk/internal/viewmodel"
)

// ErrTaskRefRequired indicates no task reference was provided.
var ErrTaskRefRequired = viewmodel.ErrTaskRefRequired

// ParseTaskRef parses the task reference from args.
//
// Parsing rules:
//  1. No args or a blank first arg is an error: task reference required
//  2. All digits is a 1-based number in the task list; 0 is out of range
//  3. Anything else without whitespace is taken as a task id
func ParseTaskRef(args []string) (string, error) {
	if len(args) == 0 {
		return "", ErrTaskRefRequired
	}

	ref := strings.TrimSpace(args[0])
	if ref == "" {
		return "", ErrTaskRefRequired
	}

	if isAllDigits(ref) {
		num, err := strconv.Atoi(ref)
		if err != nil {
			return "", fmt.Errorf("invalid task reference: %s", ref)
		}
		if num < 1 {
			return "", fmt.Errorf("%w: %d", viewmodel.ErrOutOfRange, num)
		}
		return strconv.Itoa(num), nil
	}

	if strings.ContainsFunc(ref, unicode.IsSpace) {
		return "", fmt.Errorf("invalid task reference: %s", ref)
	}
	return ref, nil
}

// isAllDigits returns true if s consists only of ASCII digits and is non-empty.
func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
