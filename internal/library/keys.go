package library

// Cache keys for the collaborator resources.
const (
	KeyBooks = "books"
	KeyStats = "stats"
)

// Dependencies is the static invalidation map: statistics derive from the
// book collection.
func Dependencies() map[string][]string {
	return map[string][]string{
		KeyBooks: {KeyStats},
	}
}
