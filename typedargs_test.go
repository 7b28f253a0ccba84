package typedargs

import (
	"errors"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trainArgs struct {
	ArgSet

	LearningRate float64 `help:"Learning rate for the optimizer"`
	Epochs       int     `default:"10"`
	Seed         *int
	Layers       []int               `default:""`
	Tags         map[string]struct{} `default:""`
	Mode         string              `choices:"fast,slow" default:"fast"`
	Verbose      bool
	Timeout      time.Duration `default:"1m"`
}

func newTestSet(t *testing.T, target interface{}, opts ...Option) *ArgSet {
	t.Helper()
	opts = append([]Option{WithErrorHandling(ContinueOnError), WithLogger(logr.Discard())}, opts...)
	as, err := New(target, opts...)
	require.NoError(t, err)
	return as
}

func TestParse(t *testing.T) {
	args := &trainArgs{}
	as := newTestSet(t, args)

	err := as.Parse([]string{
		"--learning_rate", "0.01",
		"--epochs", "20",
		"--seed", "42",
		"--layers", "128", "64", "32",
		"--tags", "a", "b", "a",
		"--mode", "slow",
		"--verbose",
		"--timeout", "30s",
	})
	require.NoError(t, err)

	seed := 42
	assert.Equal(t, &trainArgs{
		LearningRate: 0.01,
		Epochs:       20,
		Seed:         &seed,
		Layers:       []int{128, 64, 32},
		Tags:         map[string]struct{}{"a": {}, "b": {}},
		Mode:         "slow",
		Verbose:      true,
		Timeout:      30 * time.Second,
	}, args)
}

func TestParseDefaults(t *testing.T) {
	args := &trainArgs{}
	as := newTestSet(t, args)

	err := as.Parse([]string{"--learning_rate", "0.1"})
	require.NoError(t, err)

	assert.Equal(t, 10, args.Epochs)
	assert.Nil(t, args.Seed) // optional without a default stays absent
	assert.Equal(t, []int{}, args.Layers)
	assert.Equal(t, "fast", args.Mode)
	assert.False(t, args.Verbose)
	assert.Equal(t, time.Minute, args.Timeout)
}

func TestParseSetCollapsesDuplicates(t *testing.T) {
	type setArgs struct {
		ArgSet
		Nums map[int]struct{} `default:""`
	}
	args := &setArgs{}
	as := newTestSet(t, args)
	require.NoError(t, as.Parse([]string{"--nums", "3", "1", "2", "1"}))
	assert.Equal(t, map[int]struct{}{1: {}, 2: {}, 3: {}}, args.Nums)
}

func TestParseTuples(t *testing.T) {
	type tupleArgs struct {
		ArgSet
		Size  [2]int `default:"1,1"`
		Point struct {
			N int
			S string
		} `default:"0,origin"`
		Coords struct {
			Values []float64
		} `default:""`
	}

	t.Run("fixed", func(t *testing.T) {
		args := &tupleArgs{}
		as := newTestSet(t, args)
		require.NoError(t, as.Parse([]string{"--size", "5", "7", "--point", "5", "x"}))
		assert.Equal(t, [2]int{5, 7}, args.Size)
		assert.Equal(t, 5, args.Point.N)
		assert.Equal(t, "x", args.Point.S)
	})

	t.Run("position aware coercion", func(t *testing.T) {
		args := &tupleArgs{}
		as := newTestSet(t, args)
		err := as.Parse([]string{"--point", "x", "5"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "value 1")
	})

	t.Run("arity mismatch", func(t *testing.T) {
		args := &tupleArgs{}
		as := newTestSet(t, args)
		err := as.Parse([]string{"--size", "5"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "requires 2 values")
	})

	t.Run("variadic cycles one element type", func(t *testing.T) {
		args := &tupleArgs{}
		as := newTestSet(t, args)
		require.NoError(t, as.Parse([]string{"--coords", "1.5", "2.5", "3.5"}))
		assert.Equal(t, []float64{1.5, 2.5, 3.5}, args.Coords.Values)
	})
}

func TestParseBooleans(t *testing.T) {
	type boolArgs struct {
		ArgSet
		Cache bool `default:"true"`
		Debug bool
	}

	t.Run("implicit toggles away from default", func(t *testing.T) {
		args := &boolArgs{}
		as := newTestSet(t, args)
		require.NoError(t, as.Parse([]string{"--cache", "--debug"}))
		assert.False(t, args.Cache)
		assert.True(t, args.Debug)
	})

	t.Run("implicit absent keeps default", func(t *testing.T) {
		args := &boolArgs{}
		as := newTestSet(t, args)
		require.NoError(t, as.Parse([]string{}))
		assert.True(t, args.Cache)
		assert.False(t, args.Debug)
	})

	t.Run("explicit takes a token", func(t *testing.T) {
		args := &boolArgs{}
		as := newTestSet(t, args, ExplicitBool())
		require.NoError(t, as.Parse([]string{"--cache", "false", "--debug", "True"}))
		assert.False(t, args.Cache)
		assert.True(t, args.Debug)
	})

	t.Run("explicit rejects non-canonical tokens", func(t *testing.T) {
		args := &boolArgs{}
		as := newTestSet(t, args, ExplicitBool())
		err := as.Parse([]string{"--debug", "1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid boolean value")
	})
}

func TestParseChoices(t *testing.T) {
	args := &trainArgs{}
	as := newTestSet(t, args)
	err := as.Parse([]string{"--learning_rate", "0.1", "--mode", "medium"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid choice")
	assert.Contains(t, err.Error(), "fast, slow")
}

func TestParseUnrecognized(t *testing.T) {
	t.Run("fatal by default", func(t *testing.T) {
		args := &trainArgs{}
		as := newTestSet(t, args)
		err := as.Parse([]string{"--learning_rate", "0.1", "--bogus"})
		var uaErr *UnrecognizedArgumentError
		require.ErrorAs(t, err, &uaErr)
		assert.Equal(t, []string{"--bogus"}, uaErr.Args)
	})

	t.Run("collected in known-only mode", func(t *testing.T) {
		args := &trainArgs{}
		as := newTestSet(t, args)
		require.NoError(t, as.ParseKnown([]string{"--learning_rate", "0.1", "--bogus", "x"}))
		assert.Equal(t, []string{"--bogus", "x"}, as.ExtraArgs())
		assert.Equal(t, 0.1, args.LearningRate)
	})
}

func TestParseMissingRequired(t *testing.T) {
	args := &trainArgs{}
	as := newTestSet(t, args)
	err := as.Parse([]string{})
	require.Error(t, err)
	assert.Equal(t, `missing required flag "--learning_rate" or its value`, err.Error())
}

func TestNotYetParsed(t *testing.T) {
	args := &trainArgs{}
	as := newTestSet(t, args)

	var nypErr *NotYetParsedError
	_, err := as.Get("epochs")
	require.ErrorAs(t, err, &nypErr)
	_, err = as.AsMap()
	require.ErrorAs(t, err, &nypErr)

	require.NoError(t, as.Parse([]string{"--learning_rate", "0.1"}))

	v, err := as.Get("epochs")
	require.NoError(t, err)
	assert.Equal(t, 10, v)
	_, err = as.AsMap()
	assert.NoError(t, err)
}

type hookArgs struct {
	ArgSet

	Workers int `default:"4"`

	hookRan bool
	hookErr error
}

func (h *hookArgs) ProcessArgs() error {
	h.hookRan = true
	if h.hookErr != nil {
		return h.hookErr
	}
	h.Workers *= 2
	return nil
}

func TestProcessArgsHook(t *testing.T) {
	t.Run("runs after binding", func(t *testing.T) {
		args := &hookArgs{}
		as := newTestSet(t, args)
		require.NoError(t, as.Parse([]string{"--workers", "3"}))
		assert.True(t, args.hookRan)
		assert.Equal(t, 6, args.Workers)
	})

	t.Run("error aborts the parse", func(t *testing.T) {
		args := &hookArgs{hookErr: errors.New("boom")}
		as := newTestSet(t, args)
		err := as.Parse([]string{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")

		var nypErr *NotYetParsedError
		_, err = as.Get("workers")
		assert.ErrorAs(t, err, &nypErr)
	})
}

func TestSharedDefaultNotAliased(t *testing.T) {
	type sliceArgs struct {
		ArgSet
		Layers []int
	}
	shared := []int{1, 2, 3}

	first := &sliceArgs{Layers: shared}
	second := &sliceArgs{Layers: shared}
	asFirst := newTestSet(t, first)
	asSecond := newTestSet(t, second)

	require.NoError(t, asFirst.Parse([]string{}))
	require.NoError(t, asSecond.Parse([]string{}))

	first.Layers[0] = 99
	assert.Equal(t, []int{1, 2, 3}, shared)
	assert.Equal(t, []int{1, 2, 3}, second.Layers)
}

func TestHierarchyParse(t *testing.T) {
	type commonArgs struct {
		ArgSet
		OutputDir string `default:"out"`
		Level     int    `default:"1"`
	}
	type leaf struct {
		commonArgs
		Level int `default:"5"` // shadows the embedded declaration
		Name  string
	}

	args := &leaf{}
	as := newTestSet(t, args)
	require.NoError(t, as.Parse([]string{"--name", "exp", "--output_dir", "results"}))

	assert.Equal(t, "results", args.OutputDir)
	assert.Equal(t, 5, args.Level)
	assert.Equal(t, 0, args.commonArgs.Level) // the shadowed field is untouched
	assert.Equal(t, "exp", args.Name)
}

func TestDashNamesParse(t *testing.T) {
	type dashArgs struct {
		ArgSet
		LearningRate float64
	}
	args := &dashArgs{}
	as := newTestSet(t, args, DashNames())
	require.NoError(t, as.Parse([]string{"--learning-rate", "0.3"}))
	assert.Equal(t, 0.3, args.LearningRate)

	v, err := as.Get("learning_rate")
	require.NoError(t, err)
	assert.Equal(t, 0.3, v)
}

type extraArgArgs struct {
	ArgSet
	Input string `default:"-"`
}

func (e *extraArgArgs) AddArguments(b *Builder) {
	b.AddArgument("retries", Type(func(s string) (interface{}, error) {
		d, err := time.ParseDuration(s)
		return d, err
	}), Default(time.Second))
}

func TestOverrideOnlyArgumentParse(t *testing.T) {
	args := &extraArgArgs{}
	as := newTestSet(t, args)
	require.NoError(t, as.Parse([]string{"--retries", "5s"}))

	v, err := as.Get("retries")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, v)

	m, err := as.AsMap()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, m["retries"])
}

func TestNewRejectsBadTargets(t *testing.T) {
	var ipErr *InvalidParamsError

	_, err := New(nil)
	require.ErrorAs(t, err, &ipErr)

	_, err = New(trainArgs{})
	require.ErrorAs(t, err, &ipErr)

	type noEmbed struct{ Name string }
	_, err = New(&noEmbed{})
	require.ErrorAs(t, err, &ipErr)
}

func TestHelpRequest(t *testing.T) {
	args := &trainArgs{}
	as := newTestSet(t, args)
	err := as.Parse([]string{"-h"})
	assert.Equal(t, ErrHelp, err)

	usage := as.Usage()
	assert.Contains(t, usage, "--learning_rate")
	assert.Contains(t, usage, "(float64, required) Learning rate for the optimizer")
	assert.Contains(t, usage, "--mode {fast|slow}")
}

func TestStringRendering(t *testing.T) {
	type tiny struct {
		ArgSet
		B int `default:"2"`
		A int `default:"1"`
	}
	args := &tiny{}
	as := newTestSet(t, args)
	assert.Equal(t, "typedargs.ArgSet(unparsed)", as.String())

	require.NoError(t, as.Parse([]string{}))
	assert.Equal(t, "{a=1 b=2}", as.String())
}
