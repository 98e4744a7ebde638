package cache

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// Key prefixes. Versioned so a format change invalidates old entries.
const (
	schemaKeyPrefix = "salesiq:v1:schema"
	reportKeyPrefix = "salesiq:v1:report"
)

// SchemaKey returns the cache key for a database's schema snapshot.
func SchemaKey(databaseURL string) string {
	return fmt.Sprintf("%s:%s", schemaKeyPrefix, hashKey(databaseURL))
}

// ReportKey returns the cache key for a completed report, derived from the
// normalized question text.
func ReportKey(question string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(question)), " ")
	return fmt.Sprintf("%s:%s", reportKeyPrefix, hashKey(normalized))
}

func hashKey(s string) string {
	sum := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", sum[:16])
}
