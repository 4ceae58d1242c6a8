package pager

import (
	"encoding/binary"
	"fmt"
)

// ─────────────────────────────────────────────────────────────────────────
// Slotted page
// ─────────────────────────────────────────────────────────────────────────
//
// Layout:
//
//	[0:2]  free_end   (uint16 LE) — byte offset where the next row blob ends
//	[2:4]  slot_count (uint16 LE)
//	[4:4+6*slot_count] slot directory, growing upward from offset 4; each
//	                    slot is 6 bytes: [offset:u16][length:u16][flags:u16]
//	...                 free space ...
//	row blobs, growing downward from free_end toward the top of the page
//
// Deletions set flags bit 0 (tombstone) and never reclaim space; there is
// no compaction.

const (
	slottedHeaderSize = 4
	slotEntrySize     = 6

	slotFlagTombstone uint16 = 1 << 0
)

// Slot is one entry of a data page's slot directory.
type Slot struct {
	Offset uint16
	Length uint16
	Flags  uint16
}

func (s Slot) tombstoned() bool { return s.Flags&slotFlagTombstone != 0 }

// SlottedPage wraps a raw PageSize buffer with row-level operations.
type SlottedPage struct {
	buf []byte
}

// NewSlottedPage initializes buf (which must be PageSize bytes) as an
// empty slotted page.
func NewSlottedPage(buf []byte) *SlottedPage {
	sp := &SlottedPage{buf: buf}
	sp.setFreeEnd(uint16(len(buf)))
	sp.setSlotCount(0)
	return sp
}

// WrapSlottedPage wraps an existing page buffer without touching it.
func WrapSlottedPage(buf []byte) *SlottedPage {
	return &SlottedPage{buf: buf}
}

func (sp *SlottedPage) freeEnd() uint16     { return binary.LittleEndian.Uint16(sp.buf[0:2]) }
func (sp *SlottedPage) setFreeEnd(v uint16) { binary.LittleEndian.PutUint16(sp.buf[0:2], v) }

// SlotCount returns the number of slots, including tombstones.
func (sp *SlottedPage) SlotCount() int {
	return int(binary.LittleEndian.Uint16(sp.buf[2:4]))
}

func (sp *SlottedPage) setSlotCount(n int) {
	binary.LittleEndian.PutUint16(sp.buf[2:4], uint16(n))
}

func (sp *SlottedPage) slotOffset(i int) int { return slottedHeaderSize + i*slotEntrySize }

func (sp *SlottedPage) getSlot(i int) Slot {
	off := sp.slotOffset(i)
	return Slot{
		Offset: binary.LittleEndian.Uint16(sp.buf[off:]),
		Length: binary.LittleEndian.Uint16(sp.buf[off+2:]),
		Flags:  binary.LittleEndian.Uint16(sp.buf[off+4:]),
	}
}

func (sp *SlottedPage) setSlot(i int, s Slot) {
	off := sp.slotOffset(i)
	binary.LittleEndian.PutUint16(sp.buf[off:], s.Offset)
	binary.LittleEndian.PutUint16(sp.buf[off+2:], s.Length)
	binary.LittleEndian.PutUint16(sp.buf[off+4:], s.Flags)
}

// Fits reports whether a row blob of the given size can be added without
// growing the page.
func (sp *SlottedPage) Fits(size int) bool {
	dirEnd := slottedHeaderSize + sp.SlotCount()*slotEntrySize
	return int(sp.freeEnd())-dirEnd >= size+slotEntrySize
}

// Add appends blob as a new slot and returns its slot id. Callers must
// check Fits first; Add fails loudly if it does not.
func (sp *SlottedPage) Add(blob []byte) (int, error) {
	if !sp.Fits(len(blob)) {
		return 0, fmt.Errorf("pager: slotted page full: need %d bytes", len(blob))
	}
	newEnd := int(sp.freeEnd()) - len(blob)
	copy(sp.buf[newEnd:], blob)
	sp.setFreeEnd(uint16(newEnd))

	slotID := sp.SlotCount()
	sp.setSlot(slotID, Slot{Offset: uint16(newEnd), Length: uint16(len(blob)), Flags: 0})
	sp.setSlotCount(slotID + 1)
	return slotID, nil
}

// Tombstone marks slot i deleted without reclaiming its space.
func (sp *SlottedPage) Tombstone(slotID int) error {
	if slotID < 0 || slotID >= sp.SlotCount() {
		return fmt.Errorf("pager: slot %d out of range [0,%d)", slotID, sp.SlotCount())
	}
	s := sp.getSlot(slotID)
	s.Flags |= slotFlagTombstone
	sp.setSlot(slotID, s)
	return nil
}

// Get returns the row blob at slot i, or (nil, false) if it is tombstoned
// or out of range.
func (sp *SlottedPage) Get(slotID int) ([]byte, bool) {
	if slotID < 0 || slotID >= sp.SlotCount() {
		return nil, false
	}
	s := sp.getSlot(slotID)
	if s.tombstoned() {
		return nil, false
	}
	return sp.buf[s.Offset : s.Offset+s.Length], true
}

// LiveSlot pairs a slot id with its row blob.
type LiveSlot struct {
	SlotID int
	Blob   []byte
}

// IterLive returns every non-tombstoned (slot_id, blob) pair in slot order.
func (sp *SlottedPage) IterLive() []LiveSlot {
	var out []LiveSlot
	for i, n := 0, sp.SlotCount(); i < n; i++ {
		s := sp.getSlot(i)
		if s.tombstoned() {
			continue
		}
		out = append(out, LiveSlot{SlotID: i, Blob: sp.buf[s.Offset : s.Offset+s.Length]})
	}
	return out
}

// Bytes returns the underlying page buffer.
func (sp *SlottedPage) Bytes() []byte { return sp.buf }
