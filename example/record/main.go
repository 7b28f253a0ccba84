/*
This program demonstrates composing argument structures through embedding
and saving the parsed state to a JSON record. The record carries every
argument value plus a reproducibility block (command line, timestamp and
git facts) and can be loaded back into a fresh instance.
*/

package main

import (
	"fmt"
	"log"

	"github.com/typedargs/typedargs"
)

type commonArgs struct {
	typedargs.ArgSet

	OutputDir string `default:"out" help:"Directory for results"`
	Seed      *int   `help:"Random seed"`
}

type experimentArgs struct {
	commonArgs

	Dataset string              `help:"Dataset name"`
	Splits  [3]float64          `default:"0.8,0.1,0.1" help:"Train/val/test fractions"`
	Tags    map[string]struct{} `default:"" help:"Free-form labels"`
}

func main() {
	args := &experimentArgs{}
	set := typedargs.MustParse(args)

	fmt.Printf("running on %s with splits %v\n", args.Dataset, args.Splits)

	if err := set.Save("args.json"); err != nil {
		log.Fatalf("saving arguments: %s", err)
	}

	restored := &experimentArgs{}
	set2, err := typedargs.New(restored)
	if err != nil {
		log.Fatal(err)
	}
	if err := set2.Load("args.json"); err != nil {
		log.Fatalf("loading arguments: %s", err)
	}
	fmt.Printf("restored: %s\n", set2.String())
}
