package protocol

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"
)

// StateDigest hashes a snapshot into a stable hex digest. The server and any
// replica that applied the same event stream produce the same value.
func StateDigest(info WorldInfo) string {
	h := sha256.New()
	var tmp [8]byte

	writeU64(h, &tmp, info.Tick)
	writeI64(h, &tmp, int64(info.Map.Width))
	writeI64(h, &tmp, int64(info.Map.Height))
	for _, t := range info.Map.Data {
		h.Write([]byte{byte(t)})
	}
	writeI64(h, &tmp, int64(info.TickType))
	writeI64(h, &tmp, int64(info.TickSpeed))
	writeString(h, &tmp, info.ActiveProgram)

	robots := append([]RobotInfo(nil), info.Robots...)
	sort.Slice(robots, func(i, j int) bool { return robots[i].ID < robots[j].ID })
	for _, r := range robots {
		writeI64(h, &tmp, int64(r.ID))
		if r.X != nil && r.Y != nil {
			h.Write([]byte{1})
			writeI64(h, &tmp, int64(*r.X))
			writeI64(h, &tmp, int64(*r.Y))
		} else {
			h.Write([]byte{0})
		}
		writeI64(h, &tmp, int64(r.LiftCapacity))
		if r.Connected {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
		writeU64(h, &tmp, uint64(len(r.Directions)))
		for _, d := range r.Directions {
			writeU64(h, &tmp, d.ID)
			writeI64(h, &tmp, int64(d.X))
			writeI64(h, &tmp, int64(d.Y))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

type hashWriter interface {
	Write(p []byte) (n int, err error)
}

func writeU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func writeI64(h hashWriter, tmp *[8]byte, v int64) { writeU64(h, tmp, uint64(v)) }

func writeString(h hashWriter, tmp *[8]byte, s string) {
	writeU64(h, tmp, uint64(len(s)))
	h.Write([]byte(s))
}
