package db

import "strings"

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ContainsPattern lowers term and wraps it for a `LOWER(col) LIKE ? ESCAPE '\'`
// match. Wildcards inside term match literally.
func ContainsPattern(term string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(term))) + "%"
}
