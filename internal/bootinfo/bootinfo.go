// Package bootinfo decodes the BootInfo record the packer tool embeds
// in a kernel image's .bootinfo section: a tightly packed, little-
// endian description of the memory map and the init program's load
// address, handed to the kernel at boot by a pointer into that
// section.
package bootinfo

import (
	"encoding/binary"

	"github.com/OsirisRTOS/osiris-sub000/internal/kernerr"
)

const (
	Magic          = 0xD34D60D
	Version        = 1
	MaxMMapEntries = 8

	// PointerAlign is the alignment every pointer field in the record
	// (and the record's own address) must satisfy on a 32-bit target.
	PointerAlign = 4
)

// MemMapKind classifies one region of the memory map, values chosen to
// match a Multiboot-style memory map for packer compatibility with
// common bootloaders.
type MemMapKind uint32

const (
	MemKindAvailable MemMapKind = 1
	MemKindReserved  MemMapKind = 2
	MemKindACPIRecl  MemMapKind = 3
	MemKindNVS       MemMapKind = 4
	MemKindBad       MemMapKind = 5
)

func (k MemMapKind) String() string {
	switch k {
	case MemKindAvailable:
		return "available"
	case MemKindReserved:
		return "reserved"
	case MemKindACPIRecl:
		return "acpi reclaimable"
	case MemKindNVS:
		return "nvs"
	case MemKindBad:
		return "bad"
	default:
		return "unknown"
	}
}

// MemMapEntry is one packed entry of the memory map, 24 bytes on the
// wire: u32 size, u64 addr, u64 length, u32 kind.
type MemMapEntry struct {
	Size   uint32
	Addr   uint64
	Length uint64
	Kind   MemMapKind
}

const memMapEntryBytes = 4 + 8 + 8 + 4

// InitDescriptor records where the init program landed and where its
// entry point is, resolved once the packer has copied it alongside the
// kernel image: Begin is the physical address of the image, Len its
// length, and EntryOffset the entry point's offset from its start.
type InitDescriptor struct {
	Begin       uint32
	Len         uint32
	EntryOffset uint32
}

const initDescriptorBytes = 4 + 4 + 4

// BootInfo is the decoded record. ImplementerPtr and VariantPtr are
// nullable C-string pointers the packer may leave at zero.
type BootInfo struct {
	Magic          uint32
	Version        uint32
	ImplementerPtr uint32
	VariantPtr     uint32
	MMap           [MaxMMapEntries]MemMapEntry
	MMapLen        uint32
	Init           InitDescriptor
}

const recordBytes = 4 + 4 + 4 + 4 + MaxMMapEntries*memMapEntryBytes + 4 + initDescriptorBytes

// Decode parses a BootInfo record from buf, which must be at least as
// long as the fixed wire layout. It does not itself validate magic,
// version or mmap_len — call Validate for that — since a caller may
// legitimately want to decode first and report a mismatch against the
// parsed fields rather than a raw decode failure.
func Decode(buf []byte) (*BootInfo, error) {
	if len(buf) < recordBytes {
		return nil, kernerr.New(kernerr.InvalidSize, "buffer shorter than a BootInfo record")
	}
	le := binary.LittleEndian
	b := &BootInfo{}
	off := 0

	b.Magic = le.Uint32(buf[off:])
	off += 4
	b.Version = le.Uint32(buf[off:])
	off += 4
	b.ImplementerPtr = le.Uint32(buf[off:])
	off += 4
	b.VariantPtr = le.Uint32(buf[off:])
	off += 4

	for i := range b.MMap {
		e := &b.MMap[i]
		e.Size = le.Uint32(buf[off:])
		off += 4
		e.Addr = le.Uint64(buf[off:])
		off += 8
		e.Length = le.Uint64(buf[off:])
		off += 8
		e.Kind = MemMapKind(le.Uint32(buf[off:]))
		off += 4
	}

	b.MMapLen = le.Uint32(buf[off:])
	off += 4

	b.Init.Begin = le.Uint32(buf[off:])
	off += 4
	b.Init.Len = le.Uint32(buf[off:])
	off += 4
	b.Init.EntryOffset = le.Uint32(buf[off:])

	return b, nil
}

// Encode writes b back into its packed wire layout, for the packer
// tool to embed in a .bootinfo section.
func Encode(b *BootInfo) []byte {
	buf := make([]byte, recordBytes)
	le := binary.LittleEndian
	off := 0

	le.PutUint32(buf[off:], b.Magic)
	off += 4
	le.PutUint32(buf[off:], b.Version)
	off += 4
	le.PutUint32(buf[off:], b.ImplementerPtr)
	off += 4
	le.PutUint32(buf[off:], b.VariantPtr)
	off += 4

	for i := range b.MMap {
		e := b.MMap[i]
		le.PutUint32(buf[off:], e.Size)
		off += 4
		le.PutUint64(buf[off:], e.Addr)
		off += 8
		le.PutUint64(buf[off:], e.Length)
		off += 8
		le.PutUint32(buf[off:], uint32(e.Kind))
		off += 4
	}

	le.PutUint32(buf[off:], b.MMapLen)
	off += 4

	le.PutUint32(buf[off:], b.Init.Begin)
	off += 4
	le.PutUint32(buf[off:], b.Init.Len)
	off += 4
	le.PutUint32(buf[off:], b.Init.EntryOffset)

	return buf
}

// Validate rejects a record with the wrong magic or version, or an
// mmap_len outside 0..MaxMMapEntries. A boot sequence treats any
// failure here as fatal.
func (b *BootInfo) Validate() error {
	if b.Magic != Magic {
		return kernerr.New(kernerr.InvalidArgument, "bootinfo magic mismatch")
	}
	if b.Version != Version {
		return kernerr.New(kernerr.InvalidArgument, "bootinfo version mismatch")
	}
	if b.MMapLen > MaxMMapEntries {
		return kernerr.New(kernerr.InvalidSize, "mmap_len exceeds the fixed memory-map capacity")
	}
	return nil
}

// ValidatePointer rejects a null or misaligned address for the record
// itself, before anything attempts to read through it.
func ValidatePointer(addr uint32) error {
	if addr == 0 {
		return kernerr.New(kernerr.InvalidAddress, "bootinfo pointer is null")
	}
	if addr%PointerAlign != 0 {
		return kernerr.New(kernerr.InvalidAlignment, "bootinfo pointer is misaligned")
	}
	return nil
}

// Available returns the memory-map entries marked MemKindAvailable,
// the only kind the boot sequence registers with the allocator.
func (b *BootInfo) Available() []MemMapEntry {
	out := make([]MemMapEntry, 0, b.MMapLen)
	for i := uint32(0); i < b.MMapLen; i++ {
		if b.MMap[i].Kind == MemKindAvailable {
			out = append(out, b.MMap[i])
		}
	}
	return out
}
