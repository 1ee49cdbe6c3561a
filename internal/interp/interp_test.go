package interp_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skoll/internal/engine"
	"skoll/internal/interp"
)

func runScript(t *testing.T, script string) string {
	t.Helper()
	var out strings.Builder
	it := interp.New(engine.Config{}, &out)
	require.NoError(t, it.RunScript(strings.NewReader(script), &out))
	return out.String()
}

// TestRunScript_CrossAndQuery walks the canonical crossing scenario end
// to end and pins the rendered output.
func TestRunScript_CrossAndQuery(t *testing.T) {
	script := strings.Join([]string{
		"N,1,1,AB,L,B,104.53,100",
		"N,2,2,AB,L,S,105.53,100",
		"N,3,3,AB,L,B,104.53,90",
		"M,4",
		"N,4,5,AB,L,S,104.43,80",
		"M,6",
		"Q,7",
	}, "\n")

	want := strings.Join([]string{
		"1 - Accept",
		"2 - Accept",
		"3 - Accept",
		// M,4: 104.53 < 105.53, no cross, no output.
		"4 - Accept",
		// M,6: offer 4 crosses bid 1; bid 1 rested longest, its price.
		"AB|1,L,100,104.53|104.43,80,L,4",
		// Q,7: bid 1 is down to 20, offer 4 gone.
		"AB|1,L,20,104.53|105.53,100,L,2",
		"AB|3,L,90,104.53|",
		"",
	}, "\n")

	assert.Equal(t, want, runScript(t, script))
}

func TestRunScript_MultiSymbolQuerySorted(t *testing.T) {
	script := strings.Join([]string{
		"N,1,1,ALN,L,B,60.90,100",
		"N,11,2,ALB,L,S,60.90,100",
		"N,14,3,ALB,L,S,62.90,101",
		"Q",
	}, "\n")

	out := runScript(t, script)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 6)

	// ALB renders before ALN regardless of insertion order.
	assert.Equal(t, "ALB||60.90,100,L,11", lines[3])
	assert.Equal(t, "ALB||62.90,101,L,14", lines[4])
	assert.Equal(t, "ALN|1,L,100,60.90|", lines[5])
}

func TestRunScript_CountPrefixLimits(t *testing.T) {
	script := strings.Join([]string{
		"2",
		"N,1,1,AB,L,B,100.00,10",
		"N,2,2,AB,L,S,101.00,10",
		"N,3,3,AB,L,B,99.00,10", // beyond the count: ignored
	}, "\n")

	want := "1 - Accept\n2 - Accept\n"
	assert.Equal(t, want, runScript(t, script))
}

func TestRunScript_RejectLines(t *testing.T) {
	var out strings.Builder
	it := interp.New(engine.Config{}, &out)

	require.NoError(t, it.ExecuteLine("N,1,5,AB,L,B,100.00,10", &out))
	// Stale NEW.
	require.NoError(t, it.ExecuteLine("N,2,4,AB,L,B,100.00,10", &out))
	// Amend on the wrong side.
	require.NoError(t, it.ExecuteLine("A,1,6,AB,L,S,100.00,10", &out))
	// Stale amend.
	require.NoError(t, it.ExecuteLine("A,1,2,AB,L,B,100.00,10", &out))
	// Cancel of an unknown order.
	require.NoError(t, it.ExecuteLine("X,9,7", &out))

	want := strings.Join([]string{
		"1 - Accept",
		"2 - Reject - 303 - Invalid order details",
		"1 - AmendReject - 404 - Order does not exist",
		"1 - AmendReject - 101 - Invalid amendment details",
		"9 - CancelReject - 404 - Order does not exist",
		"",
	}, "\n")
	assert.Equal(t, want, out.String())
}

func TestRunScript_StopsOnMalformedLine(t *testing.T) {
	var out strings.Builder
	it := interp.New(engine.Config{}, &out)

	script := strings.Join([]string{
		"N,1,1,AB,L,B,100.00,10",
		"N,bogus",
		"N,2,2,AB,L,S,101.00,10", // never reached
	}, "\n")
	err := it.RunScript(strings.NewReader(script), &out)
	require.Error(t, err)

	want := strings.Join([]string{
		"1 - Accept",
		"0 - Reject - 303 - Invalid order details",
		"",
	}, "\n")
	assert.Equal(t, want, out.String())
}

func TestExecute_AmendThenMatchUsesNewPrice(t *testing.T) {
	var out strings.Builder
	it := interp.New(engine.Config{}, &out)

	require.NoError(t, it.ExecuteLine("N,1,1,AB,L,B,100.00,50", &out))
	require.NoError(t, it.ExecuteLine("N,2,2,AB,L,S,105.00,50", &out))
	require.NoError(t, it.ExecuteLine("A,2,3,AB,L,S,99.50,50", &out))
	out.Reset()

	require.NoError(t, it.ExecuteLine("M,4", &out))
	// Bid 1 rested longer, so the trade prints and prices off both
	// resting states: bid quantity/price first, then the offer's.
	assert.Equal(t, "AB|1,L,50,100.00|99.50,50,L,2\n", out.String())
}
