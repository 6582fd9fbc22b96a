// Package main provides the docsmoke CLI.
//
// Usage:
//
//	docsmoke run                 # run the suite once, exit 1 on any failure
//	docsmoke serve               # start the control API
//	docsmoke version
package main

func main() {
	Execute()
}
