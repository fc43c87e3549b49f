package main

import "github.com/meysamhadeli/gitshape/cmd"

func main() {
	cmd.Execute()
}
