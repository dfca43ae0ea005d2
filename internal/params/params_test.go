package params_test

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/CamberLoid/sealedbid/internal/bignum"
	"github.com/CamberLoid/sealedbid/internal/misc"
	"github.com/CamberLoid/sealedbid/internal/params"
	"github.com/pkg/errors"
)

func TestBitChain(t *testing.T) {
	cases := map[int]string{
		512: "[512 256 128 64 32 16]",
		18:  "[18 9]",
		100: "[100 50 25 12]",
		17:  "[17]",
	}
	for bits, want := range cases {
		if got := fmt.Sprint(params.BitChain(bits)); got != want {
			t.Errorf("BitChain(%d) = %s, want %s", bits, got, want)
		}
	}
}

func TestGenerateDomainParams(t *testing.T) {
	src := bignum.NewSeededEntropySource([]byte("params-test"))
	for _, bits := range []int{18, 64, 100, 128, 256} {
		if err := testGenerate(bits, src); err != nil {
			t.Errorf("bits %d: %v", bits, err)
		}
	}
}

func TestGenerate512(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping 512-bit generation in short mode")
	}
	if err := testGenerate(params.DefaultBits, bignum.NewEntropySource()); err != nil {
		t.Error(err)
	}
}

func BenchmarkGenerate512(b *testing.B) {
	src := bignum.NewEntropySource()
	for i := 0; i < b.N; i++ {
		if _, err := params.Generate(context.Background(), params.DefaultBits, src); err != nil {
			b.Fatal(err)
		}
	}
}

func TestGenerateRejectsSmallBits(t *testing.T) {
	src := bignum.NewSeededEntropySource([]byte("small"))
	for _, bits := range []int{0, 16, 17} {
		_, err := params.Generate(context.Background(), bits, src)
		if !errors.Is(err, misc.ErrInvalidParameter) {
			t.Errorf("bits %d: expected invalid parameter, got %v", bits, err)
		}
	}
}

func TestGeneratePQWithSeedIsDeterministic(t *testing.T) {
	seed := params.Seed{X0: 12345, C: 777}
	p1, q1, err := params.GeneratePQWithSeed(context.Background(), 128, seed, bignum.NewSeededEntropySource([]byte("det")))
	if err != nil {
		t.Fatal(err)
	}
	p2, q2, err := params.GeneratePQWithSeed(context.Background(), 128, seed, bignum.NewSeededEntropySource([]byte("det")))
	if err != nil {
		t.Fatal(err)
	}
	if p1.Cmp(p2) != 0 || q1.Cmp(q2) != 0 {
		t.Errorf("same seed produced different parameters")
	}

	_, _, err = params.GeneratePQWithSeed(context.Background(), 128, params.Seed{X0: 1, C: 2}, bignum.NewSeededEntropySource(nil))
	if !errors.Is(err, misc.ErrInvalidParameter) {
		t.Errorf("even increment accepted: %v", err)
	}
}

func TestGenerateHonoursContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err := params.Generate(ctx, 256, bignum.NewEntropySource())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	dp := &params.DomainParams{P: big.NewInt(23), Q: big.NewInt(11), A: big.NewInt(4)}
	if err := dp.Validate(); err != nil {
		t.Errorf("valid params rejected: %v", err)
	}

	bad := []*params.DomainParams{
		{P: big.NewInt(23), Q: big.NewInt(7), A: big.NewInt(4)},
		{P: big.NewInt(23), Q: big.NewInt(11), A: big.NewInt(1)},
		{P: big.NewInt(23), Q: big.NewInt(11), A: big.NewInt(5)},
		{P: big.NewInt(23), Q: big.NewInt(11)},
	}
	for _, dp := range bad {
		if err := dp.Validate(); !errors.Is(err, misc.ErrInvalidParameter) {
			t.Errorf("%+v accepted", dp)
		}
	}
}

func testGenerate(bits int, src *bignum.EntropySource) error {
	dp, err := params.Generate(context.Background(), bits, src)
	if err != nil {
		return err
	}
	if err = dp.Validate(); err != nil {
		return err
	}
	if !dp.P.ProbablyPrime(20) || !dp.Q.ProbablyPrime(20) {
		return fmt.Errorf("p or q is not prime: p=%s q=%s", dp.P, dp.Q)
	}
	if l := dp.P.BitLen(); l != bits && l != bits-1 {
		return fmt.Errorf("p has %d bits", l)
	}
	if l := dp.Q.BitLen(); l > bits/2+1 {
		return fmt.Errorf("q has %d bits", l)
	}
	return nil
}
