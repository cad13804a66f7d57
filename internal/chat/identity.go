package chat

import (
	"strings"
)

// keySeparator joins the parts of a conversation key. User and product
// identifiers come from the auth provider and the catalog, neither of
// which emits colons.
const keySeparator = "::"

// Resolve derives the canonical conversation key for two participants and
// a product. The two participant identifiers are order-independent: they
// are sorted lexicographically before joining, so Resolve(a, b, p) and
// Resolve(b, a, p) always agree. Pure function, no I/O.
//
// Resolve("U1", "U2", "P7") == Resolve("U2", "U1", "P7") == "P7::U1::U2".
func Resolve(participantA, participantB, productID string) (string, error) {
	a := strings.TrimSpace(participantA)
	b := strings.TrimSpace(participantB)
	product := strings.TrimSpace(productID)

	if a == "" || b == "" {
		return "", ErrMissingParticipant
	}
	if product == "" {
		return "", ErrMissingProduct
	}

	lo, hi := a, b
	if hi < lo {
		lo, hi = hi, lo
	}
	return product + keySeparator + lo + keySeparator + hi, nil
}
