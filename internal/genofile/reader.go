package genofile

import (
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/xi2/xz"

	"github.com/inodb/adna-downsample/internal/genotype"
)

// ErrFileNotFound is returned by Open when the input path does not exist.
var ErrFileNotFound = errors.New("genotype file not found")

// File is a fully parsed genotype file.
type File struct {
	Header Header
	Schema Schema
	Loci   genotype.Dataset
}

// ParseError represents a malformed data line with line and byte context.
type ParseError struct {
	Line    int
	Offset  int64
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("genotype parse error at line %d (byte offset %d): %s", e.Line, e.Offset, e.Message)
}

// Magic numbers of the supported compressed inputs.
var (
	gzipMagic = []byte{0x1f, 0x8b}
	xzMagic   = []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}
)

// Open reads and parses the genotype file at path. Plain, gzip and xz
// compressed files are accepted; "-" reads from stdin.
func Open(path string) (*File, error) {
	if path == "-" {
		return Read(os.Stdin)
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", ErrFileNotFound, err)
		}
		return nil, fmt.Errorf("open genotype file: %w", err)
	}
	defer f.Close()

	return Read(f)
}

// Read parses a genotype file from r. The derived alleles of the returned
// loci are not populated; call Loci.Decompose.
func Read(r io.Reader) (*File, error) {
	br, err := decompress(r)
	if err != nil {
		return nil, err
	}

	p := &parser{reader: br}
	return p.parse()
}

// decompress sniffs the stream for a compression signature.
func decompress(r io.Reader) (*bufio.Reader, error) {
	br := bufio.NewReader(r)
	magic, _ := br.Peek(len(xzMagic))

	switch {
	case hasPrefix(magic, gzipMagic):
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		return bufio.NewReader(gz), nil
	case hasPrefix(magic, xzMagic):
		xr, err := xz.NewReader(br, 0)
		if err != nil {
			return nil, fmt.Errorf("create xz reader: %w", err)
		}
		return bufio.NewReader(xr), nil
	}
	return br, nil
}

func hasPrefix(b, prefix []byte) bool {
	return len(b) >= len(prefix) && string(b[:len(prefix)]) == string(prefix)
}

type parser struct {
	reader     *bufio.Reader
	lineNumber int
	offset     int64
	file       File
}

func (p *parser) parse() (*File, error) {
	h, first, err := readHeader(p.reader)
	if err != nil {
		return nil, err
	}
	p.file.Header = h
	p.lineNumber = len(h.Lines)
	for _, l := range h.Lines {
		p.offset += int64(len(l)) + 1
	}

	if err := p.resolveSchema(); err != nil {
		return nil, err
	}
	if first == "" {
		return &p.file, nil
	}
	if err := p.parseLine(first); err != nil {
		return nil, err
	}

	for {
		line, err := p.reader.ReadString('\n')
		if line != "" {
			if perr := p.parseLine(line); perr != nil {
				return nil, perr
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read genotype line %d: %w", p.lineNumber+1, err)
		}
	}
	return &p.file, nil
}

// parseLine handles one line after the header block. Comment lines there
// are skipped, as are blank lines.
func (p *parser) parseLine(raw string) error {
	p.lineNumber++
	lineOffset := p.offset
	p.offset += int64(len(raw))

	if strings.HasPrefix(raw, CommentPrefix) {
		return nil
	}

	line := strings.TrimRight(raw, "\r\n")
	if line == "" {
		return nil
	}

	l, msg := p.parseLocus(line)
	if msg != "" {
		return &ParseError{Line: p.lineNumber, Offset: lineOffset, Message: msg}
	}
	p.file.Loci = append(p.file.Loci, l)
	return nil
}

func (p *parser) resolveSchema() error {
	s, err := ResolveSchema(p.file.Header.ColumnNames())
	if err != nil {
		return err
	}
	p.file.Schema = s
	return nil
}

// parseLocus converts one data line; a non-empty message reports why the
// line is malformed.
func (p *parser) parseLocus(line string) (genotype.Locus, string) {
	s := p.file.Schema
	fields := strings.Split(line, "\t")
	if len(fields) != s.Width() {
		return genotype.Locus{}, fmt.Sprintf("expected %d tab-separated fields, found %d", s.Width(), len(fields))
	}

	posField := strings.TrimSpace(fields[s.Position])
	pos, err := strconv.ParseInt(posField, 10, 64)
	if err != nil || pos < 0 {
		return genotype.Locus{}, fmt.Sprintf("invalid %s %q: expected a non-negative integer", s.Columns[s.Position], posField)
	}

	return genotype.Locus{
		RSID:       fields[s.RSID],
		Chromosome: fields[s.Chromosome],
		Position:   pos,
		Genotype:   fields[s.Genotype],
	}, ""
}
