package order

import (
	"math/rand/v2"
	"strings"
	"time"
)

const (
	numberPrefix = "GCS-"
	base36Upper  = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	mixedFiller  = "@#$%!0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	mixedLength  = 16
)

// Rand is the randomness source for number generation; injectable so tests
// can pin the strategy choice and the generated characters.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

type systemRand struct{}

func (systemRand) IntN(n int) int   { return rand.IntN(n) }
func (systemRand) Float64() float64 { return rand.Float64() }

// NumberGenerator produces candidate order numbers. Candidates are
// collision-resistant, not unique; the write path owns the retry loop.
type NumberGenerator interface {
	Generate(now time.Time, username string) string
}

// NewNumberGenerator returns the dual-strategy generator. A nil source
// falls back to the process-wide one.
func NewNumberGenerator(rnd Rand) NumberGenerator {
	if rnd == nil {
		rnd = systemRand{}
	}
	return &dualGenerator{rnd: rnd}
}

// dualGenerator picks one of two forms with a uniform coin flip per call:
//
//	form A: GCS-<YYYYMMDD>-<6 random base-36 upper chars>
//	form B: GCS-<16-char shuffle of username and filler>-<YYYYMMDD>
type dualGenerator struct {
	rnd Rand
}

func (g *dualGenerator) Generate(now time.Time, username string) string {
	date := now.UTC().Format("20060102")
	if g.rnd.Float64() < 0.5 {
		return numberPrefix + g.mixUsername(username) + "-" + date
	}

	var b strings.Builder
	for i := 0; i < 6; i++ {
		b.WriteByte(base36Upper[g.rnd.IntN(len(base36Upper))])
	}
	return numberPrefix + date + "-" + b.String()
}

// mixUsername shuffles the username together with a slice of the filler
// charset plus four random filler characters, then keeps 16 characters.
func (g *dualGenerator) mixUsername(username string) string {
	padding := mixedFiller
	if len(padding) > 10 {
		padding = padding[:10]
	}
	pool := []byte(username + padding)
	for i := 0; i < 4; i++ {
		pool = append(pool, mixedFiller[g.rnd.IntN(len(mixedFiller))])
	}
	for i := len(pool) - 1; i > 0; i-- {
		j := g.rnd.IntN(i + 1)
		pool[i], pool[j] = pool[j], pool[i]
	}
	if len(pool) > mixedLength {
		pool = pool[:mixedLength]
	}
	return string(pool)
}
