package reposvc

import (
	"crypto/rand"
	"encoding/binary"

	"golang.org/x/xerrors"

	masstuffy "github.com/5IGI0/Masstuffy"
)

func dictIsReserved(id uint32) bool {
	return masstuffy.IsReservedDictID(id)
}

// randomDictID draws a uniformly random id in [ReservedDictIDLow,
// ReservedDictIDHigh), using crypto/rand rather than a seeded math/rand
// global, matching the rest of the core's avoidance of mutable package-level
// state.
func randomDictID() (uint32, error) {
	span := masstuffy.ReservedDictIDHigh - masstuffy.ReservedDictIDLow
	for {
		var b [4]byte
		if _, err := rand.Read(b[:]); err != nil {
			return 0, xerrors.Errorf("reading random bytes: %w", err)
		}
		v := binary.LittleEndian.Uint32(b[:])
		id := masstuffy.ReservedDictIDLow + (v % span)
		if !dictIsReserved(id) {
			return id, nil
		}
	}
}
