// Package main provides the listings CLI.
//
// Usage:
//
//	listings crawl --pages 10 --concurrency 5
//	listings clean --input data/raw_data.csv --report report.md
//	listings run
//
// See --help for all available options.
package main

func main() {
	Execute()
}
