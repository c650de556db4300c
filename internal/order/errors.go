package order

import "fmt"

type ErrorKind string

const (
	StructuralError         ErrorKind = "structural"
	BusinessRuleError       ErrorKind = "business_rule"
	LocationResolutionError ErrorKind = "location_resolution"
)

// ValidationError is one entry in the flat error log produced while validating a batch.
// Order and Item hold the offending payload as it was received so an operator can
// inspect it, even when it could not be decoded into an Order.
type ValidationError struct {
	Kind    ErrorKind `json:"kind"`
	OrderID string    `json:"orderId,omitempty"`
	Message string    `json:"error"`
	Order   any       `json:"order,omitempty"`
	Item    any       `json:"item,omitempty"`
}

func (e ValidationError) Error() string {
	if e.OrderID == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: order %s: %s", e.Kind, e.OrderID, e.Message)
}

// CountByKind summarizes an error log for logging and status output.
func CountByKind(errs []ValidationError) map[ErrorKind]int {
	counts := make(map[ErrorKind]int, 3)
	for _, e := range errs {
		counts[e.Kind]++
	}
	return counts
}
