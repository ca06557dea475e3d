// Command sitepipe builds a static site's assets and serves them with
// live reload.
package main

func main() {
	Execute()
}
