// Package main provides the entry point for the sitecrawl CLI.
//
// sitecrawl crawls web sites breadth-first from one or more seed URLs and
// stores the title, description, icon and keyword set of every page in a
// SQLite database.
//
// Usage:
//
//	sitecrawl crawl <seed-url>...
//	sitecrawl search <keyword>
//	sitecrawl history
//
// See --help for all available options.
package main

// main is the entry point for sitecrawl.
func main() {
	Execute()
}
