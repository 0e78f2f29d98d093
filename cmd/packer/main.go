package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func main() {
	var (
		initPath    string
		kernelPath  string
		target      string
		release     bool
		output      string
		entryHex    string
		outputAlign int
	)

	cmd := &cobra.Command{
		Use:   "pack",
		Short: "Lay a kernel and init program out into a single flat boot image",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runPack(initPath, kernelPath, target, release, output, entryHex, outputAlign)
		},
	}

	cmd.Flags().StringVar(&initPath, "init", "", "path (or cargo project root) of the init program")
	cmd.Flags().StringVar(&kernelPath, "kernel", "", "path (or cargo project root) of the kernel")
	cmd.Flags().StringVar(&target, "target", "thumbv7m-none-eabi", "target triple used to locate a cargo-built binary")
	cmd.Flags().BoolVar(&release, "release", false, "use the release build profile when resolving a cargo project root")
	cmd.Flags().StringVar(&output, "output", "image.bin", "path to write the flattened boot image to")
	cmd.Flags().StringVar(&entryHex, "entry-offset", "0x0", "init program entry point, as an offset from init.begin")
	cmd.Flags().IntVar(&outputAlign, "output-align", hostPageSize(), "pad the final image's length up to a multiple of this many bytes")
	cmd.MarkFlagRequired("init")
	cmd.MarkFlagRequired("kernel")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "pack: %v\n", err)
		os.Exit(1)
	}
}

func runPack(initPath, kernelPath, target string, release bool, output, entryHex string, outputAlign int) error {
	entryOffset, err := parseHexU32(entryHex)
	if err != nil {
		return fmt.Errorf("parsing --entry-offset: %w", err)
	}

	kernelELF, err := resolveELF(kernelPath, target, release, "")
	if err != nil {
		return fmt.Errorf("resolving kernel binary: %w", err)
	}
	initELF, err := resolveELF(initPath, target, release, "")
	if err != nil {
		return fmt.Errorf("resolving init binary: %w", err)
	}

	kernelSegs, kernelLow, err := loadSegments(kernelELF)
	if err != nil {
		return err
	}
	initSegs, initLow, err := loadSegments(initELF)
	if err != nil {
		return err
	}

	res, err := layout(kernelSegs, kernelLow, initSegs, initLow)
	if err != nil {
		return err
	}

	start, end, err := bootinfoSection(kernelELF, kernelLow)
	if err != nil {
		return err
	}
	if err := patchBootInfo(res.image, start, end, res, entryOffset); err != nil {
		return err
	}

	image := res.image
	if outputAlign > 0 {
		padded := alignUp(uint64(len(image)), uint64(outputAlign))
		if padded > uint64(len(image)) {
			image = append(image, make([]byte, padded-uint64(len(image)))...)
		}
	}

	if err := os.WriteFile(output, image, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", output, err)
	}
	if err := writeManifest(output+".manifest.json", newBuildManifest(res, entryOffset)); err != nil {
		return fmt.Errorf("writing build manifest: %w", err)
	}

	fmt.Printf("pack: wrote %s (%d bytes), init landed at 0x%x\n", output, len(image), res.initBegin)
	return nil
}

func parseHexU32(s string) (uint32, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	var v uint32
	if _, err := fmt.Sscanf(s, "%x", &v); err != nil {
		return 0, err
	}
	return v, nil
}
