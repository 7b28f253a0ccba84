/*
Package typedargs is a typed command-line argument parser driven by struct
declarations. Field types carry the whole argument specification: the
flag name, value coercion, required/optional status, arity and choice set
are all inferred, so the struct is the single source of truth.

Example of an argument structure:

	type TrainArgs struct {
		typedargs.ArgSet

		LearningRate float64 `help:"Learning rate for the optimizer"`
		Epochs       int     `default:"10" help:"Number of training epochs"`
		Seed         *int    `help:"Random seed (omit for nondeterministic)"`
		Layers       []int   `help:"Hidden layer sizes"`
		Mode         string  `choices:"fast,slow"`
		Verbose      bool
	}

	args := &TrainArgs{}
	set, err := typedargs.New(args)
	if err != nil {
		log.Fatal(err)
	}
	set.Parse(nil) // nil parses os.Args[1:]

Shapes are inferred from the field type: plain primitives take exactly
one token; pointers are optional; slices and sets (maps with struct{} or
bool values) are variadic; arrays and plain structs of primitives are
fixed tuples consuming exactly as many tokens as they have elements; a
choices tag closes the value set. LearningRate above has no default and a
non-optional type, so it is required; Seed and Verbose are not.

Argument structures compose through embedding. Fields of embedded
structures that themselves embed ArgSet are merged breadth first, with
the outer declaration winning on a name clash.

Structures can override or extend the inferred specification by
implementing AddArguments, and validate or rewrite parsed values by
implementing ProcessArgs. Parsed state round-trips through AsMap/FromMap
and Save/Load; saved records carry a reproducibility block with the
invocation, a timestamp and git facts.

The flags -h and --help print the generated usage message and exit.
*/
package typedargs
