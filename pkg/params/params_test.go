package params_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datatier/cachesim/pkg/params"
)

func TestParseSimple(t *testing.T) {
	t.Parallel()

	var (
		mode   string
		factor float64
		minD   int
		exact  bool
	)

	err := params.Parse(
		"mode=access_size, factor=1.5,min_d=3,exact=true",
		params.String("mode", &mode),
		params.Float("factor", &factor),
		params.Int("min_d", &minD),
		params.Bool("exact", &exact),
	)
	require.NoError(t, err)

	assert.Equal(t, "access_size", mode)
	assert.InDelta(t, 1.5, factor, 1e-12)
	assert.Equal(t, 3, minD)
	assert.True(t, exact)
}

func TestParseEmptyInput(t *testing.T) {
	t.Parallel()

	var mode string

	require.NoError(t, params.Parse("", params.String("mode", &mode)))
	assert.Empty(t, mode)
}

func TestParseQuotedAndEscaped(t *testing.T) {
	t.Parallel()

	var a, b, c string

	err := params.Parse(
		`a='hello, world', b="with \" quote", c=multi word value`,
		params.String("a", &a),
		params.String("b", &b),
		params.String("c", &c),
	)
	require.NoError(t, err)

	assert.Equal(t, "hello, world", a)
	assert.Equal(t, `with " quote`, b)
	assert.Equal(t, "multi word value", c)
}

func TestParsePunctuationValues(t *testing.T) {
	t.Parallel()

	var classifier string

	err := params.Parse(
		"classifier=access_size&dirname(top=1)",
		params.String("classifier", &classifier),
	)

	// '=' inside an unquoted value terminates the grammar; quoting is
	// required in that case.
	require.Error(t, err)

	err = params.Parse(
		`classifier='access_size&dirname(top=1)'`,
		params.String("classifier", &classifier),
	)
	require.NoError(t, err)
	assert.Equal(t, "access_size&dirname(top=1)", classifier)
}

func TestParseUnknownField(t *testing.T) {
	t.Parallel()

	var mode string

	err := params.Parse("bogus=1", params.String("mode", &mode))
	assert.ErrorIs(t, err, params.ErrUnknownField)
}

func TestParseMalformed(t *testing.T) {
	t.Parallel()

	var mode string

	for _, input := range []string{"mode", "=x", "mode=a=b", "mode='open"} {
		err := params.Parse(input, params.String("mode", &mode))
		assert.Error(t, err, "input %q", input)
	}
}
