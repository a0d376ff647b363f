package context_store //nolint:revive // var-naming: using underscores for domain clarity

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/lewisedginton/contextmemory/pkg/prefixed_uuid"
)

const entryIDPrefix = "ctx"

// entryIDNamespace scopes derived entry ids.
var entryIDNamespace = uuid.MustParse("6f1d9a3e-5c2b-4f7a-9e08-2b7d4c1a8e55")

// deriveID builds the entry id from creation time and content. attempt is
// mixed in when an earlier attempt collided with a live entry.
func deriveID(createdAt time.Time, data Payload, attempt int) string {
	name := strconv.FormatInt(createdAt.UnixMilli(), 10) + "|" + string(data.Kind()) + "|" + data.String()
	if attempt > 0 {
		name += "|" + strconv.Itoa(attempt)
	}
	return prefixed_uuid.Derive(entryIDPrefix, entryIDNamespace, []byte(name)).String()
}
