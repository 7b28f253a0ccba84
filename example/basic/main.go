/*
This program greets a user a configurable number of times to illustrate
the most basic usage of the typedargs package.

The --name flag is required; --count defaults to 1; --loud is an ordinary
boolean flag. -h or --help prints the generated usage message.
*/

package main

import (
	"fmt"
	"strings"

	"github.com/typedargs/typedargs"
)

type params struct {
	typedargs.ArgSet

	Name  string `help:"Name of the person to greet"`
	Count int    `default:"1" help:"How many times to greet"`
	Loud  bool   `help:"Shout the greeting"`
}

func main() {
	p := &params{}
	typedargs.MustParse(p)

	greeting := fmt.Sprintf("Hello, %s!", p.Name)
	if p.Loud {
		greeting = strings.ToUpper(greeting)
	}
	for i := 0; i < p.Count; i++ {
		fmt.Println(greeting)
	}
}
