// Package main is the entry point for dbedit, the rAthena item and mob
// database editor.
package main

func main() {
	Execute()
}
