// Package tracekey builds opaque trace identifiers and inquiry dedup keys.
package tracekey

import (
	"crypto/rand"
	"io"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const (
	tracePrefix  = "trace_"
	suffixLength = 6
	alphabet     = "0123456789abcdefghijklmnopqrstuvwxyz"

	// Delimiter separates the dedup key components.
	Delimiter = "|"
	// NoDateSentinel stands in for a missing check-in date.
	NoDateSentinel = "no-date"
)

// Generator produces trace ids. The zero value is not usable; call NewGenerator.
type Generator struct {
	now    func() time.Time
	random io.Reader
}

// NewGenerator returns a generator backed by the wall clock and crypto/rand.
func NewGenerator() *Generator {
	return &Generator{now: time.Now, random: rand.Reader}
}

// NewGeneratorWith lets tests pin the clock and entropy source.
func NewGeneratorWith(now func() time.Time, random io.Reader) *Generator {
	if now == nil {
		now = time.Now
	}
	if random == nil {
		random = rand.Reader
	}
	return &Generator{now: now, random: random}
}

// TraceID returns trace_<base36 unix millis>_<random base36 suffix>.
func (g *Generator) TraceID() string {
	ts := strconv.FormatInt(g.now().UnixMilli(), 36)
	return tracePrefix + ts + "_" + g.suffix()
}

func (g *Generator) suffix() string {
	var b strings.Builder
	b.Grow(suffixLength)
	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < suffixLength; i++ {
		n, err := rand.Int(g.random, max)
		if err != nil {
			// entropy source failed, fall back to clock nanos
			return strconv.FormatInt(g.now().UnixNano()%1e9, 36)
		}
		b.WriteByte(alphabet[n.Int64()])
	}
	return b.String()
}

// DedupKey composes lower(trim(email)) | lower(trim(propertyID)) | checkIn.
// An empty checkIn is replaced by NoDateSentinel.
func DedupKey(email, propertyID, checkIn string) string {
	checkIn = strings.TrimSpace(checkIn)
	if checkIn == "" {
		checkIn = NoDateSentinel
	}
	return strings.Join([]string{
		strings.ToLower(strings.TrimSpace(email)),
		strings.ToLower(strings.TrimSpace(propertyID)),
		checkIn,
	}, Delimiter)
}
