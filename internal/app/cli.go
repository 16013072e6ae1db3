package app

import "github.com/spf13/pflag"

// RegisterFlags registers all CLI flags on the given FlagSet
func RegisterFlags(flags *pflag.FlagSet) {
	flags.StringP("transport", "t", "", "Transport type: stdio or sse")
	flags.StringP("host", "H", "", "Host for SSE transport")
	flags.IntP("port", "p", 0, "Port for SSE transport")
	flags.StringP("auth-type", "a", "", "Authentication type: none, basic, or apikey")
	flags.StringP("auth-basic-username", "u", "", "Basic auth username")
	flags.StringP("auth-basic-password", "P", "", "Basic auth password")
	flags.StringSliceP("auth-api-keys", "k", nil, "API keys (comma-separated)")

	flags.String("neo4j-uri", "", "Neo4j connection URI (bolt:// or neo4j://)")
	flags.String("neo4j-username", "", "Neo4j username")
	flags.String("neo4j-password", "", "Neo4j password")
	flags.String("neo4j-database", "", "Neo4j database name")

	flags.Int("query-max-results", 0, "Maximum nodes returned by a codebase query")
}
