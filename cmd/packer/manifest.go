package main

import (
	"encoding/json"
	"os"

	"github.com/google/uuid"
)

// buildManifest is written alongside the produced image as
// "<output>.manifest.json"; nothing in the kernel reads it back, it's
// informational for the config editor and CI.
type buildManifest struct {
	BuildID     string `json:"build_id"`
	KernelLow   uint64 `json:"kernel_low"`
	KernelEnd   uint64 `json:"kernel_end"`
	InitBegin   uint64 `json:"init_begin"`
	InitLen     uint64 `json:"init_len"`
	EntryOffset uint32 `json:"entry_offset"`
}

func newBuildManifest(res *layoutResult, entryOffset uint32) buildManifest {
	return buildManifest{
		BuildID:     uuid.NewString(),
		KernelLow:   res.kernelLow,
		KernelEnd:   res.kernelEnd,
		InitBegin:   res.initBegin,
		InitLen:     res.initLen,
		EntryOffset: entryOffset,
	}
}

func writeManifest(path string, m buildManifest) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}
