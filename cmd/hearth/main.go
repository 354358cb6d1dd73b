// Command hearth is the household record keeper and sync client.
package main

import "github.com/hearthkeep/hearth/internal/cli"

func main() {
	cli.Execute()
}
