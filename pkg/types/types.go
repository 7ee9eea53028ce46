package types

// CacheStats represents cache performance statistics.
type CacheStats struct {
	Hits          uint64            `json:"hits"`
	Misses        uint64            `json:"misses"`
	Evictions     uint64            `json:"evictions"`
	Entries       int               `json:"entries"`
	Expired       int               `json:"expired"`
	HitRate       float64           `json:"hit_rate"`
	PrefixEntries map[string]int    `json:"prefix_entries,omitempty"`
	Strategy      string            `json:"strategy,omitempty"`
	Degraded      bool              `json:"degraded"`
	Details       map[string]string `json:"details,omitempty"`
}

// Entity is a warmup candidate row from the source-of-truth store.
// Payload is cached verbatim under the entity's prefix and ID.
type Entity struct {
	ID      string                 `json:"id"`
	Kind    string                 `json:"kind"`
	Payload map[string]interface{} `json:"payload"`
}

// HealthStatus is the condition of a component as seen by the health checker.
type HealthStatus string

// Health status values reported by the checker.
const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)
