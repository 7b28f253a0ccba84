package typedargs

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type baseLayer struct {
	ArgSet

	Shared string `default:"base"`
	Depth  int    `default:"1"`
}

type otherLayer struct {
	ArgSet

	Shared string `default:"other"`
	Width  int    `default:"2"`
}

type leafArgs struct {
	baseLayer
	otherLayer

	Shared  string `default:"leaf"`
	Verbose bool

	ignored   string
	Callback  func() `help:"never an argument"`
	SkipMe    string `flag:"-"`
	Unrelated plain
}

type plain struct {
	NotMerged string
}

func TestResolveSchema(t *testing.T) {
	specs, err := resolveSchema(reflect.TypeOf(leafArgs{}))
	require.NoError(t, err)

	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.name
	}
	// Leaf declarations come first; embedded layers follow breadth
	// first in declaration order.
	assert.Equal(t, []string{"shared", "verbose", "unrelated", "depth", "width"}, names)
}

func TestSchemaShadowing(t *testing.T) {
	specs, err := resolveSchema(reflect.TypeOf(leafArgs{}))
	require.NoError(t, err)

	var shared *fieldSpec
	for i := range specs {
		if specs[i].name == "shared" {
			shared = &specs[i]
		}
	}
	require.NotNil(t, shared)
	assert.Equal(t, "leaf", shared.defaultTag)
	assert.Equal(t, reflect.TypeOf(leafArgs{}), shared.owner)

	// The shadowed declarations resolve through the leaf's own field.
	v := leafArgs{Shared: "value"}
	assert.Equal(t, "value", reflect.ValueOf(v).FieldByIndex(shared.index).Interface())
}

func TestSchemaLayerMembership(t *testing.T) {
	assert.True(t, isSchemaLayer(reflect.TypeOf(baseLayer{})))
	assert.True(t, isSchemaLayer(reflect.TypeOf(leafArgs{})))
	assert.False(t, isSchemaLayer(reflect.TypeOf(plain{})))
}

func TestFindArgSet(t *testing.T) {
	t.Run("direct embed", func(t *testing.T) {
		v := &baseLayer{}
		as := findArgSet(reflect.ValueOf(v).Elem())
		require.NotNil(t, as)
		assert.Same(t, &v.ArgSet, as)
	})

	t.Run("through a layer", func(t *testing.T) {
		type inherited struct {
			baseLayer
			Extra string
		}
		v := &inherited{}
		as := findArgSet(reflect.ValueOf(v).Elem())
		require.NotNil(t, as)
		assert.Same(t, &v.baseLayer.ArgSet, as)
	})

	t.Run("absent", func(t *testing.T) {
		v := &plain{}
		assert.Nil(t, findArgSet(reflect.ValueOf(v).Elem()))
	})
}

func TestSnakeCase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Name", want: "name"},
		{in: "LearningRate", want: "learning_rate"},
		{in: "HTTPPort", want: "http_port"},
		{in: "ID", want: "id"},
		{in: "Epochs2", want: "epochs2"},
		{in: "A", want: "a"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, snakeCase(tt.in))
		})
	}
}
