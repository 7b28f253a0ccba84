/*
This program shows the two customization hooks: AddArguments for
overriding or extending the inferred argument specification, and
ProcessArgs for validation and modification of the parsed values.
*/

package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/typedargs/typedargs"
)

type params struct {
	typedargs.ArgSet

	Username string `help:"Login name"`
	Workers  int    `default:"4"`

	isAdmin bool
}

// AddArguments caps workers and registers an argument with no backing
// field; its value is read back via Get.
func (p *params) AddArguments(b *typedargs.Builder) {
	b.AddArgument("workers", typedargs.Choices(1, 2, 4, 8))
	b.AddArgument("region",
		typedargs.Default("eu-west-1"),
		typedargs.Help("Deployment region"),
	)
}

func (p *params) ProcessArgs() error {
	if strings.ContainsRune(p.Username, ' ') {
		return errors.New("username cannot contain whitespace")
	}
	if p.Username == "admin" {
		p.isAdmin = true
	}
	return nil
}

func main() {
	p := &params{}
	set := typedargs.MustParse(p)

	region, _ := set.Get("region")
	clause := "without admin privileges"
	if p.isAdmin {
		clause = "with admin privileges"
	}
	fmt.Printf("Running as %q in %v with %d workers, %s\n", p.Username, region, p.Workers, clause)
}
