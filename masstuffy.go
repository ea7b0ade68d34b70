// Package masstuffy holds the small set of types shared across the core
// engine, the CLI front end and the HTTP front end: nothing in here touches
// the filesystem or the network.
package masstuffy

// Locator addresses one stored record by its physical position inside a
// collection: the segment file it lives in and the byte offset of its first
// byte. Size is the number of bytes the record occupies on disk (post
// compression, if any) and is required to support raw, undecoded reads.
type Locator struct {
	CollectionUUID string
	Filename       string
	Offset         uint64
	Size           uint64
}

// ReservedDictIDLow and ReservedDictIDHigh bound the two Zstd-reserved
// dictionary id ranges: [0, ReservedDictIDLow) and [ReservedDictIDHigh, 2^32).
// Trained dictionaries must be assigned an id outside both ranges.
const (
	ReservedDictIDLow  = uint32(1) << 15
	ReservedDictIDHigh = uint32(1) << 31
)

// IsReservedDictID reports whether id falls in a Zstd-reserved range and may
// not be used as a trained dictionary's id.
func IsReservedDictID(id uint32) bool {
	return id < ReservedDictIDLow || id >= ReservedDictIDHigh
}

// Version is the repository's self-reported software version, mirrored into
// warcinfo records and the status endpoint.
const Version = "0.1.0"
