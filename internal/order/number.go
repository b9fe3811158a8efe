package order

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const numberAttempts = 10

// randInRange returns a cryptographic random in [lo, hi].
func randInRange(lo, hi int64) int64 {
	n, err := rand.Int(rand.Reader, big.NewInt(hi-lo+1))
	if err != nil {
		// fallback: time-based entropy
		return lo + time.Now().UnixNano()%(hi-lo+1)
	}
	return lo + n.Int64()
}

// GenerateNumber produces a human-legible order number of the form
// ORD-YYMMDD-NNNN. The exists probe is only a courtesy to keep collision
// attempts down; the unique index on orders.order_number is what actually
// guarantees uniqueness. Once the probe attempts run out it falls back to a
// timestamped form that is practically collision-free.
func GenerateNumber(exists func(number string) (bool, error)) (string, error) {
	datePart := time.Now().UTC().Format("060102")

	for attempt := 0; attempt < numberAttempts; attempt++ {
		proposed := fmt.Sprintf("ORD-%s-%04d", datePart, randInRange(1000, 9999))

		taken, err := exists(proposed)
		if err != nil {
			return "", err
		}
		if !taken {
			return proposed, nil
		}
	}

	return fmt.Sprintf(
		"ORD-TS-%d-%03d",
		time.Now().Unix(),
		randInRange(100, 999),
	), nil
}
