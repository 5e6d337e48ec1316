package pipeline

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// compressionExts are stripped before deriving output names.
var compressionExts = []string{".gz", ".xz"}

// FormatPercentage renders a percentage without trailing zeros, e.g. 30 or 12.5.
func FormatPercentage(pct float64) string {
	return strconv.FormatFloat(pct, 'f', -1, 64)
}

// DownsampleNote is the header annotation for a downsampled file.
func DownsampleNote(pct float64) string {
	return fmt.Sprintf("This file has been downsampled to introduce %s%% missingness", FormatPercentage(pct))
}

// PseudoHaploidNote is the header annotation for a pseudo-haploidized file.
func PseudoHaploidNote(pct *float64) string {
	if pct == nil {
		return "This file has been pseudo-haploidized"
	}
	return fmt.Sprintf("This file has been pseudo-haploidized after downsampling to introduce %s%% missingness",
		FormatPercentage(*pct))
}

// Describe returns the operation description used in run logs.
func Describe(op Operation, pct *float64) string {
	switch {
	case op == OpDownsample && pct != nil:
		return fmt.Sprintf("Downsampled to introduce %s%% missingness", FormatPercentage(*pct))
	case op == OpPseudoHaploid && pct != nil:
		return fmt.Sprintf("Pseudo-haploidized after downsampling to introduce %s%% missingness", FormatPercentage(*pct))
	case op == OpPseudoHaploid:
		return "Pseudo-haploidized"
	}
	return "Unknown operation"
}

// OutputPaths derives the output file of each step. With an explicit out
// path the first step writes to out and a following haploid step writes to
// "<out-base>_pseudohaploid<out-ext>". Otherwise names are derived from the
// input: "<base>_downsampled_<pct>pct.txt", "<base>_pseudohaploid.txt" or
// "<base>_downsampled_<pct>pct_pseudohaploid.txt".
func OutputPaths(input, out string, opts Options) (downsampled, haploid string) {
	if out != "" {
		if opts.Percentage != nil {
			downsampled = out
			if opts.PseudoHaploid {
				ext := filepath.Ext(out)
				haploid = strings.TrimSuffix(out, ext) + "_pseudohaploid" + ext
			}
			return downsampled, haploid
		}
		if opts.PseudoHaploid {
			haploid = out
		}
		return "", haploid
	}

	base := inputBase(input)
	suffix := ""
	if opts.Percentage != nil {
		suffix = fmt.Sprintf("_downsampled_%dpct", int(*opts.Percentage))
		downsampled = base + suffix + ".txt"
	}
	if opts.PseudoHaploid {
		haploid = base + suffix + "_pseudohaploid.txt"
	}
	return downsampled, haploid
}

// ReplicatePaths names the files of one sweep replicate in the directory of
// input. The percentage is written in full so that 12 and 12.5 do not share
// a name; rep is 1-based and left out when zero.
func ReplicatePaths(input string, pct float64, rep int) (downsampled, haploid string) {
	stem := inputBase(input) + "_downsampled_" + FormatPercentage(pct) + "pct"
	suffix := ".txt"
	if rep > 0 {
		suffix = fmt.Sprintf("_rep%d.txt", rep)
	}
	return stem + suffix, stem + "_pseudohaploid" + suffix
}

// inputBase strips compression and format extensions from an input path.
func inputBase(input string) string {
	for _, ext := range compressionExts {
		if strings.HasSuffix(strings.ToLower(input), ext) {
			input = input[:len(input)-len(ext)]
			break
		}
	}
	return strings.TrimSuffix(input, filepath.Ext(input))
}
