package cluster

import (
	"imagededup/imageprocessor"
	"imagededup/types"
)

// SelectCanonical picks the representative of a cluster by a strict total
// order, stable across runs on unchanged input:
//
//  1. larger pixel area
//  2. larger byte size
//  3. lossless format over lossy
//  4. earlier capture timestamp (a record carrying one beats a record
//     without)
//  5. lexicographically smaller path
func SelectCanonical(records []types.ImageRecord, members []types.RecordID) types.RecordID {
	best := members[0]
	for _, id := range members[1:] {
		if betterCanonical(records[id], records[best]) {
			best = id
		}
	}
	return best
}

// betterCanonical reports whether a should be preferred over b.
func betterCanonical(a, b types.ImageRecord) bool {
	if a.PixelArea() != b.PixelArea() {
		return a.PixelArea() > b.PixelArea()
	}
	if a.ByteSize != b.ByteSize {
		return a.ByteSize > b.ByteSize
	}
	al, bl := imageprocessor.IsLossless(a.Format), imageprocessor.IsLossless(b.Format)
	if al != bl {
		return al
	}
	at, bt := a.Exif.CaptureTime, b.Exif.CaptureTime
	switch {
	case at != nil && bt != nil:
		if !at.Equal(*bt) {
			return at.Before(*bt)
		}
	case at != nil:
		return true
	case bt != nil:
		return false
	}
	return a.Path < b.Path
}
