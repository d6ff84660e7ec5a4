package family

import "fmt"

// ValidationError reports a list that cannot be parsed. Only the
// authoritative side produces one; the stored side accepts every line.
type ValidationError struct {
	Side    Side
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s list error: %s", e.Side, e.Message)
}
