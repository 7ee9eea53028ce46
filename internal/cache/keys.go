package cache

// Prefix is an enumerated namespace tag used to build composite cache keys.
// Keys always take the form "{prefix}:{id}", which is what makes bulk
// prefix-scoped clears possible on every backend.
type Prefix string

const (
	PrefixUser          Prefix = "user"
	PrefixProfile       Prefix = "profile"
	PrefixRecipe        Prefix = "recipe"
	PrefixRating        Prefix = "rating"
	PrefixToken         Prefix = "token"
	PrefixStats         Prefix = "stats"
	PrefixAIResponse    Prefix = "ai_response"
	PrefixSystemConfig  Prefix = "system_config"
	PrefixLoginAttempts Prefix = "login_attempts"
)

// BuildKey constructs the composite cache key for a prefix and id.
func BuildKey(prefix Prefix, key string) string {
	return string(prefix) + ":" + key
}
