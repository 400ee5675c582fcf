package storage

import (
	"errors"
	"fmt"
	"strings"
)

// DeletedPrefix groups archived documents removed from the database
const DeletedPrefix = "deleted/"

// ErrNotFound is returned when an archived name does not exist
var ErrNotFound = errors.New("archive entry not found")

// DeletedDocumentName names the archive entry for a document revision.
// Colons are replaced so the name is valid on every filesystem.
func DeletedDocumentName(id, rev string) string {
	safeID := strings.NewReplacer(":", "_", "/", "_").Replace(id)
	return fmt.Sprintf("%s%s/%s.json", DeletedPrefix, safeID, rev)
}
