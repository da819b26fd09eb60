// Command pgrelay copies a referentially-consistent subset of a PostgreSQL
// database into another PostgreSQL database, following foreign keys outward
// from an operator-declared set of seed rows.
package main

import "github.com/dbsmedya/pgrelay/cmd/pgrelay/cmd"

func main() {
	cmd.Execute()
}
