package main

import "github.com/goliatone/go-auth-relay/cmd/authrelay/cmd"

func main() {
	cmd.Execute()
}
