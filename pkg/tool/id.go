package tool

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

func GenerateUUIDV7() string {
	return uuid.Must(uuid.NewV7()).String()
}

const serviceNumberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateServiceNumber returns a human readable ticket number of the form
// PREFIX-YYMMDD-XXXXX. The random suffix makes collisions unlikely; callers
// still rely on the unique index to reject duplicates.
func GenerateServiceNumber(prefix string, now time.Time) string {
	suffix := make([]byte, 5)
	max := big.NewInt(int64(len(serviceNumberAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand does not fail on supported platforms; fall back to uuid entropy.
			n = big.NewInt(int64(uuid.New()[i]) % max.Int64())
		}
		suffix[i] = serviceNumberAlphabet[n.Int64()]
	}
	return fmt.Sprintf("%s-%s-%s", prefix, now.UTC().Format("060102"), suffix)
}
