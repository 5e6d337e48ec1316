// Package runlog writes the plain-text log that accompanies every output
// file: the invoking command, the operation applied and before/after stats.
package runlog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/inodb/adna-downsample/internal/genotype"
)

// TimeLayout is the timestamp format of the log's first line.
const TimeLayout = "2006-01-02 15:04:05"

// Entry holds everything reported in one run log.
type Entry struct {
	Time        time.Time
	Command     string
	Description string
	Initial     genotype.Stats
	Processed   genotype.Stats
}

// PathFor returns the log path belonging to an output file: the output path
// with its extension replaced by ".log".
func PathFor(output string) string {
	return strings.TrimSuffix(output, filepath.Ext(output)) + ".log"
}

// Write writes e to path, replacing any existing file.
func Write(path string, e Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create run log: %w", err)
	}
	if err := Format(f, e); err != nil {
		f.Close()
		return fmt.Errorf("write run log: %w", err)
	}
	return f.Close()
}

// Format renders e to w.
func Format(w io.Writer, e Entry) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "# Log generated on %s\n\n", e.Time.Format(TimeLayout))
	fmt.Fprintf(bw, "## Command used\n%s\n\n", e.Command)
	fmt.Fprintf(bw, "## Operation details\n%s\n\n", e.Description)

	bw.WriteString("## Original file statistics\n")
	if _, err := e.Initial.WriteTo(bw); err != nil {
		return err
	}
	bw.WriteString("\n## Processed file statistics\n")
	if _, err := e.Processed.WriteTo(bw); err != nil {
		return err
	}

	return bw.Flush()
}
