package cache

import (
	"crypto/md5"
	"encoding/hex"
	"time"
)

// KeyFor fingerprints a provider call. Keys roll over at UTC midnight so a
// query is asked at most once per day per model.
func KeyFor(query, model string, now time.Time) string {
	sum := md5.Sum([]byte(query + ":" + model + ":" + now.UTC().Format(time.DateOnly)))
	return hex.EncodeToString(sum[:])
}
