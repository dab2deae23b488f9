package main

import "github.com/cineripr/releasepipeline/cmd/releasepipeline/cmd"

func main() {
	cmd.Execute()
}
