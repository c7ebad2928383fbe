// Command c5t synchronizes the local c5t store through a git or jj
// repository.
package main

func main() {
	Execute()
}
