package reserves

import (
	"fmt"
	"math"
)

// maxAmount is the largest total the verifier reports. Amounts travel as
// int64 on the wire, so anything above it is not representable.
const maxAmount = uint64(math.MaxInt64)

// addAmount returns total+v or PROOF_ERR_OVERFLOW if the sum would leave the
// representable satoshi range.
func addAmount(total uint64, v int64) (uint64, error) {
	if v < 0 {
		return 0, prooferr(PROOF_ERR_MALFORMED, fmt.Sprintf("negative amount %d", v))
	}
	if uint64(v) > maxAmount-total {
		return 0, prooferr(PROOF_ERR_OVERFLOW, fmt.Sprintf("%d + %d exceeds %d", total, v, maxAmount))
	}
	return total + uint64(v), nil
}

// u32Index converts an outpoint index to an int if it addresses one of n
// outputs.
func u32Index(v uint32, n int) (int, bool) {
	if n <= 0 || uint64(v) >= uint64(n) {
		return 0, false
	}
	// #nosec G115 -- v is bounded to n via explicit uint32 comparison above.
	return int(v), true
}
