package steplog

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/limbwalk/internal/carry"
	"github.com/roach88/limbwalk/internal/engine"
	"github.com/roach88/limbwalk/internal/limbs"
)

// The golden files hold the first 24 lines of a fresh run, computed
// independently with arbitrary-precision integers.
func TestWriter_FreshRunGolden(t *testing.T) {
	for _, group := range []int{1, 2} {
		name := fmt.Sprintf("fresh_run_group%d", group)
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "steps.log")
			w, err := Open(path)
			require.NoError(t, err)

			a := engine.New(limbs.New(),
				engine.WithGroupLimbs(group),
				engine.WithRecorder(w),
				engine.WithScaler(carry.New(carry.WithWorkers(2))),
			)
			for i := 0; i < 24; i++ {
				halted, err := a.Step()
				require.NoError(t, err)
				require.False(t, halted)
			}
			require.NoError(t, w.Close())

			got, err := os.ReadFile(path)
			require.NoError(t, err)

			g := goldie.New(t,
				goldie.WithFixtureDir("testdata/golden"),
				goldie.WithNameSuffix(".golden"),
			)
			g.Assert(t, name, got)
		})
	}
}

func TestWriter_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "steps.log")

	w, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, w.Record(engine.StepRecord{Step: 0, Counter: 2, Previous: []uint64{0}, Current: []uint64{0}}))
	require.NoError(t, w.Close())

	w, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, w.Record(engine.StepRecord{Step: 1, Counter: 10, Previous: []uint64{7}, Current: []uint64{9}}))
	require.NoError(t, w.Sync())
	require.NoError(t, w.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "0 2 0 0\n1 10 7 9\n", string(got))
}

func TestWriter_FlushesEveryLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "steps.log")
	w, err := Open(path)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Record(engine.StepRecord{Step: 3, Counter: 4, Previous: []uint64{1}, Current: []uint64{2}}))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "3 4 1 2\n", string(got))
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open("")
	require.Error(t, err)

	_, err = Open(filepath.Join(t.TempDir(), "missing", "steps.log"))
	require.Error(t, err)
}

func TestAppendWord(t *testing.T) {
	cases := []struct {
		words []uint64
		want  string
	}{
		{nil, "0"},
		{[]uint64{0, 0}, "0"},
		{[]uint64{0, 42}, "42"},
		{[]uint64{^uint64(0)}, "18446744073709551615"},
		{[]uint64{1, 0}, "18446744073709551616"},
		{[]uint64{0x0202020202020202, 0x0202020202020202}, "2668881309183831085987251822994260482"},
	}
	var scratch big.Int
	for _, tc := range cases {
		assert.Equal(t, tc.want, string(AppendWord(nil, tc.words, &scratch)), "%v", tc.words)
		assert.Equal(t, tc.want, string(AppendWord(nil, tc.words, nil)), "%v", tc.words)
	}
}

func TestAppendLine(t *testing.T) {
	rec := engine.StepRecord{Step: 12, Counter: -1, Previous: []uint64{0, 5}, Current: []uint64{1, 1}}
	assert.Equal(t, "12 -1 5 18446744073709551617\n", string(AppendLine(nil, rec, nil)))
}
