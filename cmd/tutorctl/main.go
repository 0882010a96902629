// Command tutorctl is a terminal client for the tutoring platform API.
package main

import "github.com/ambiyansyah-risyal/tutorapi/internal/cli"

func main() {
	cli.Execute()
}
