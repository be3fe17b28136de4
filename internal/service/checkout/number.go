package checkout

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NumberGenerator builds human-readable order numbers such as
// ORD-2026-MC3X9K2P-7F3C1A: prefix, year, base36 milliseconds and a random
// suffix. Uniqueness does not depend on a database round-trip.
type NumberGenerator struct {
	prefix string
	now    func() time.Time
	random func() string
}

func NewNumberGenerator(prefix string) *NumberGenerator {
	if prefix = strings.TrimSpace(prefix); prefix == "" {
		prefix = "ORD"
	}
	return &NumberGenerator{prefix: strings.ToUpper(prefix), now: time.Now, random: randomSuffix}
}

func (g *NumberGenerator) Next() string {
	t := g.now().UTC()
	return strings.Join([]string{
		g.prefix,
		strconv.Itoa(t.Year()),
		strings.ToUpper(strconv.FormatInt(t.UnixMilli(), 36)),
		g.random(),
	}, "-")
}

func randomSuffix() string {
	id := uuid.New()
	return strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:6])
}
