package genofile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/inodb/adna-downsample/internal/genotype"
)

// Writer writes genotype files in the same layout they were read in.
type Writer struct {
	w *bufio.Writer
}

// NewWriter creates a new genotype file writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// WriteHeader writes the header lines. A non-empty note is inserted as a
// comment line just before the last header line, which is normally the
// column declaration.
func (gw *Writer) WriteHeader(h Header, note string) error {
	for i, line := range h.Lines {
		if i == len(h.Lines)-1 && note != "" {
			if _, err := gw.w.WriteString(CommentPrefix + " " + note + "\n"); err != nil {
				return err
			}
		}
		if _, err := gw.w.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return nil
}

// Write writes a single locus. Only the four original columns are written,
// in schema order.
func (gw *Writer) Write(s Schema, l *genotype.Locus) error {
	fields := make([]string, s.Width())
	fields[s.RSID] = l.RSID
	fields[s.Chromosome] = l.Chromosome
	fields[s.Position] = strconv.FormatInt(l.Position, 10)
	fields[s.Genotype] = l.Genotype

	_, err := gw.w.WriteString(strings.Join(fields, "\t") + "\n")
	return err
}

// WriteAll writes header, note and every locus of d, then flushes.
func (gw *Writer) WriteAll(h Header, s Schema, d genotype.Dataset, note string) error {
	if err := gw.WriteHeader(h, note); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i := range d {
		if err := gw.Write(s, &d[i]); err != nil {
			return fmt.Errorf("write locus %s: %w", d[i].RSID, err)
		}
	}
	return gw.Flush()
}

// Flush flushes any buffered data to the underlying writer.
func (gw *Writer) Flush() error {
	return gw.w.Flush()
}

// WriteFile writes a genotype file to path. Output goes to a temporary file
// in the same directory which is renamed into place once complete, so a
// failed write never leaves a partial file at path.
func WriteFile(path string, h Header, s Schema, d genotype.Dataset, note string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	tmpName := tmp.Name()

	if err := NewWriter(tmp).WriteAll(h, s, d, note); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close output file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod output file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename output file: %w", err)
	}
	return nil
}
