package bootinfo

import "testing"

func sample() *BootInfo {
	b := &BootInfo{Magic: Magic, Version: Version, MMapLen: 2}
	b.MMap[0] = MemMapEntry{Size: 20, Addr: 0x1000, Length: 0x1000, Kind: MemKindAvailable}
	b.MMap[1] = MemMapEntry{Size: 20, Addr: 0x2000, Length: 0x4000, Kind: MemKindReserved}
	b.Init = InitDescriptor{Begin: 0x8000, Len: 4096, EntryOffset: 0x40}
	return b
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	want := sample()
	buf := Encode(want)
	got, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if *got != *want {
		t.Fatalf("round trip mismatch:\n got  %+v\n want %+v", got, want)
	}
}

func TestValidateRejectsBadMagic(t *testing.T) {
	b := sample()
	b.Magic = 0xBAD
	if err := b.Validate(); err == nil {
		t.Fatal("expected rejection of a bad magic")
	}
}

func TestValidateRejectsBadVersion(t *testing.T) {
	b := sample()
	b.Version = 99
	if err := b.Validate(); err == nil {
		t.Fatal("expected rejection of an unsupported version")
	}
}

func TestValidateRejectsOversizedMMapLen(t *testing.T) {
	b := sample()
	b.MMapLen = MaxMMapEntries + 1
	if err := b.Validate(); err == nil {
		t.Fatal("expected rejection of mmap_len > capacity")
	}
}

func TestValidatePointerRejectsNullAndMisaligned(t *testing.T) {
	if err := ValidatePointer(0); err == nil {
		t.Fatal("expected rejection of a null pointer")
	}
	if err := ValidatePointer(3); err == nil {
		t.Fatal("expected rejection of a misaligned pointer")
	}
	if err := ValidatePointer(0x1000); err != nil {
		t.Fatalf("ValidatePointer rejected a well-formed pointer: %v", err)
	}
}

func TestAvailableFiltersByKind(t *testing.T) {
	b := sample()
	avail := b.Available()
	if len(avail) != 1 || avail[0].Kind != MemKindAvailable {
		t.Fatalf("Available() = %+v, want exactly one MemKindAvailable entry", avail)
	}
}

func TestDecodeRejectsShortBuffer(t *testing.T) {
	if _, err := Decode(make([]byte, 4)); err == nil {
		t.Fatal("expected rejection of a too-short buffer")
	}
}
