// Package main implements the pack tool: it lays a kernel ELF and an
// init-program ELF out into a single flat boot image and patches the
// kernel's .bootinfo section with the init program's landing address.
package main

import (
	"debug/elf"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/OsirisRTOS/osiris-sub000/internal/bootinfo"
)

// segment is one PT_LOAD program header's virtual address and backing
// bytes, independent of the debug/elf types so the layout algorithm
// below can be exercised without a real ELF file on disk.
type segment struct {
	vaddr uint64
	data  []byte
}

// segAlign is the padding boundary between the kernel image and the
// appended init image, matching the kernel's own stack/arena alignment
// so init's first loadable segment never starts misaligned.
const segAlign = 16

// loadSegments opens the ELF at path and returns its PT_LOAD segments
// ordered by virtual address, along with the lowest load address.
func loadSegments(path string) ([]segment, uint64, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var segs []segment
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		data := make([]byte, prog.Filesz)
		if _, err := prog.ReadAt(data, 0); err != nil {
			return nil, 0, fmt.Errorf("reading segment of %s: %w", path, err)
		}
		segs = append(segs, segment{vaddr: prog.Vaddr, data: data})
	}
	if len(segs) == 0 {
		return nil, 0, fmt.Errorf("%s has no PT_LOAD segments", path)
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].vaddr < segs[j].vaddr })

	low := segs[0].vaddr
	return segs, low, nil
}

// bootinfoSection returns the byte range, within the flattened kernel
// image, of the kernel's .bootinfo section.
func bootinfoSection(path string, kernelLow uint64) (int, int, error) {
	f, err := elf.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	sec := f.Section(".bootinfo")
	if sec == nil {
		return 0, 0, fmt.Errorf("%s has no .bootinfo section", path)
	}
	if sec.Addr < kernelLow {
		return 0, 0, fmt.Errorf(".bootinfo section address 0x%x precedes kernel load address 0x%x", sec.Addr, kernelLow)
	}
	start := int(sec.Addr - kernelLow)
	return start, start + int(sec.Size), nil
}

// alignUp rounds n up to the next multiple of align.
func alignUp(n, align uint64) uint64 {
	if align == 0 {
		return n
	}
	rem := n % align
	if rem == 0 {
		return n
	}
	return n + (align - rem)
}

// layoutResult is the product of flattening a kernel and an init image
// into one buffer.
type layoutResult struct {
	image     []byte
	initBegin uint64 // physical address, in the flattened image's address space
	initLen   uint64
	kernelLow uint64
	kernelEnd uint64 // one past the highest kernel byte, before init padding
}

// layout copies kernelSegs starting at offset 0 (representing
// kernelLow), then appends initSegs immediately after, padded up to
// segAlign. Segment addresses within each ELF are relative to that
// ELF's own lowest load address; the returned initBegin is expressed
// in the flattened image's address space (kernelLow-based).
func layout(kernelSegs []segment, kernelLow uint64, initSegs []segment, initLow uint64) (*layoutResult, error) {
	kernelEnd := uint64(0)
	for _, s := range kernelSegs {
		end := (s.vaddr - kernelLow) + uint64(len(s.data))
		if end > kernelEnd {
			kernelEnd = end
		}
	}

	initOffset := alignUp(kernelEnd, segAlign)
	initEnd := initOffset
	for _, s := range initSegs {
		end := initOffset + (s.vaddr - initLow) + uint64(len(s.data))
		if end > initEnd {
			initEnd = end
		}
	}

	image := make([]byte, initEnd)
	for _, s := range kernelSegs {
		off := s.vaddr - kernelLow
		copy(image[off:], s.data)
	}
	for _, s := range initSegs {
		off := initOffset + (s.vaddr - initLow)
		copy(image[off:], s.data)
	}

	return &layoutResult{
		image:     image,
		initBegin: kernelLow + initOffset,
		initLen:   initEnd - initOffset,
		kernelLow: kernelLow,
		kernelEnd: kernelLow + kernelEnd,
	}, nil
}

// patchBootInfo decodes the existing record at image[start:end],
// rewrites its Init descriptor to point at the landed init image, and
// re-encodes it in place. The re-encoded record must fit within the
// section it came from.
func patchBootInfo(image []byte, start, end int, res *layoutResult, entryOffset uint32) error {
	raw := image[start:end]
	bi, err := bootinfo.Decode(raw)
	if err != nil {
		return fmt.Errorf("decoding existing bootinfo record: %w", err)
	}
	bi.Init = bootinfo.InitDescriptor{
		Begin:       uint32(res.initBegin),
		Len:         uint32(res.initLen),
		EntryOffset: entryOffset,
	}
	if err := bi.Validate(); err != nil {
		return fmt.Errorf("patched bootinfo record failed validation: %w", err)
	}
	patched := bootinfo.Encode(bi)
	if len(patched) > len(raw) {
		return fmt.Errorf("patched bootinfo record (%d bytes) no longer fits the original section (%d bytes)", len(patched), len(raw))
	}
	copy(raw, patched)
	return nil
}

// resolveELF accepts either a direct path to an ELF file, or a
// cargo-style project root, in which case it locates the ELF at
// target/<triple>/{debug|release}/<package-bin-name>.
func resolveELF(path, target string, release bool, binName string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return path, nil
	}

	profile := "debug"
	if release {
		profile = "release"
	}
	name := binName
	if name == "" {
		name = filepath.Base(filepath.Clean(path))
	}
	resolved := filepath.Join(path, "target", target, profile, name)
	if _, err := os.Stat(resolved); err != nil {
		return "", fmt.Errorf("locating built binary: %w", err)
	}
	return resolved, nil
}
