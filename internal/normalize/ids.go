package normalize

import (
	"fmt"

	"github.com/google/uuid"
)

// IDGenerator derives deterministic UUIDv5 identifiers so reruns map to the same rows.
type IDGenerator struct {
	namespace uuid.UUID
}

// NewIDGenerator parses the configured namespace.
func NewIDGenerator(namespace string) (IDGenerator, error) {
	ns, err := uuid.Parse(namespace)
	if err != nil {
		return IDGenerator{}, fmt.Errorf("invalid uuid namespace %q: %w", namespace, err)
	}
	return IDGenerator{namespace: ns}, nil
}

// ID returns the UUIDv5 of key within the namespace.
func (g IDGenerator) ID(key string) string {
	return uuid.NewSHA1(g.namespace, []byte(key)).String()
}
