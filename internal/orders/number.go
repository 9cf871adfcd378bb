package orders

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewOrderNumber builds the human-readable order number: a UTC timestamp
// prefix for rough ordering plus a random suffix for uniqueness. The unique
// index on orderNumber catches the unlikely collision.
func NewOrderNumber(now time.Time) string {
	id := uuid.New()
	suffix := strings.ToUpper(hex.EncodeToString(id[:3]))
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102150405"), suffix)
}
