package identity

import (
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

// DefaultSeed is the hash seed used when none is configured.
const DefaultSeed uint64 = 0xCAFEBABE

// Generator hashes seed material into identifiers
type Generator struct {
	seed uint64
}

// NewGenerator creates a generator with the given hash seed
func NewGenerator(seed uint64) *Generator {
	return &Generator{seed: seed}
}

// Generate returns the identifier for the given seed material.
// Identical input always yields the identical identifier.
func (g *Generator) Generate(material string) string {
	d := xxhash.NewWithSeed(g.seed)
	d.WriteString(material)
	return strconv.FormatUint(d.Sum64(), 16)
}

// Seed builds seed material from a connection handle and a point in time
func Seed(handle string, at time.Time) string {
	return handle + strconv.FormatInt(at.UnixMilli(), 10)
}
