// Command warranty-activator measures cumulative display-on time and submits
// a one-time warranty activation once the threshold is reached.
package main

func main() {
	Execute()
}
