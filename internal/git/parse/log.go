// Package parse decodes the text git prints: the streamed log, raw tree
// diffs, ref listings, trees and patches.
package parse

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/thiagokokada/qgit-go/internal/git/oid"
	"github.com/thiagokokada/qgit-go/internal/git/revs"
)

// LogFormat is the pretty format every log session runs with. Records are
// NUL terminated; a commit message cannot contain NUL.
const LogFormat = "%m%H%n%P%n%an%n%ae%n%aI%n%cn%n%ce%n%cI%n%B%x00"

// LogArgs returns the fixed git log arguments, without revisions or paths.
func LogArgs() []string {
	return []string{
		"log",
		"--no-color",
		"--no-decorate",
		"--topo-order",
		"--parents",
		"--boundary",
		// tformat so that the last record is terminated like the others
		"--pretty=tformat:" + LogFormat,
	}
}

// FormatError reports a log stream that does not look like LogFormat at
// all. It is only returned for the first record of a stream.
type FormatError struct {
	Record string
	Err    error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("unexpected git log output %q: %v", e.Record, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

var (
	errShortRecord = errors.New("truncated record")
	errBadID       = errors.New("malformed commit id")
	errBadParents  = errors.New("malformed parent list")
)

type LogOptions struct {
	// Encoding is the i18n.commitEncoding of the repository. Empty or any
	// UTF-8 label leaves records untouched.
	Encoding string
}

// LogParser turns chunks of git log output into records. It may be fed
// arbitrary splits of the stream; incomplete records wait for the next
// chunk.
type LogParser struct {
	buf     []byte
	decoder *decoder
	seen    int
	skipped int
	failed  error
}

func NewLogParser(opts LogOptions) (*LogParser, error) {
	dec, err := newDecoder(opts.Encoding)
	if err != nil {
		return nil, err
	}
	return &LogParser{decoder: dec}, nil
}

// Feed consumes chunk and returns the records it completed.
func (p *LogParser) Feed(chunk []byte) ([]*revs.Record, error) {
	if p.failed != nil {
		return nil, p.failed
	}
	p.buf = append(p.buf, chunk...)
	var out []*revs.Record
	for {
		end := bytes.IndexByte(p.buf, 0)
		if end < 0 {
			break
		}
		raw := p.buf[:end]
		p.buf = p.buf[end+1:]
		rec, err := p.record(raw)
		if err != nil {
			return out, err
		}
		if rec != nil {
			out = append(out, rec)
		}
	}
	if len(p.buf) == 0 {
		p.buf = nil
	}
	return out, nil
}

// Flush ends the stream. Leftover bytes can only be a record cut short by
// the process exiting.
func (p *LogParser) Flush() ([]*revs.Record, error) {
	if p.failed != nil {
		return nil, p.failed
	}
	raw := p.buf
	p.buf = nil
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	rec, err := p.record(raw)
	if err != nil || rec == nil {
		return nil, err
	}
	return []*revs.Record{rec}, nil
}

// Reset drops any partially received record.
func (p *LogParser) Reset() {
	p.buf = nil
}

// Seen counts the records decoded so far, skipped ones included.
func (p *LogParser) Seen() int { return p.seen }

func (p *LogParser) Skipped() int { return p.skipped }

func (p *LogParser) record(raw []byte) (*revs.Record, error) {
	// tformat prints a newline between records
	raw = bytes.TrimLeft(raw, "\r\n")
	if len(raw) == 0 {
		return nil, nil
	}
	first := p.seen == 0
	p.seen++
	text, err := p.decoder.decode(raw)
	if err == nil {
		var rec *revs.Record
		if rec, err = parseLogRecord(text); err == nil {
			return rec, nil
		}
	}
	if first {
		p.failed = &FormatError{Record: excerpt(raw), Err: err}
		return nil, p.failed
	}
	p.skipped++
	slog.Warn("skipping unparsable git log record",
		slog.String("record", excerpt(raw)),
		slog.Any("error", err),
	)
	return nil, nil
}

func excerpt(raw []byte) string {
	const limit = 80
	if len(raw) > limit {
		return string(raw[:limit]) + "..."
	}
	return string(raw)
}

func parseLogRecord(text string) (*revs.Record, error) {
	parts := strings.SplitN(text, "\n", 9)
	if len(parts) < 8 {
		return nil, fmt.Errorf("%w: got %d lines", errShortRecord, len(parts))
	}
	head := strings.TrimSpace(parts[0])
	var mark byte
	if len(head) == oid.HexSize+1 {
		mark, head = head[0], head[1:]
	}
	id, err := oid.Parse(head)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadID, err)
	}
	parents, err := oid.ParseList(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadParents, err)
	}
	rec := &revs.Record{
		ID:             id,
		Parents:        parents,
		Author:         parts[2],
		AuthorEmail:    parts[3],
		Committer:      parts[5],
		CommitterEmail: parts[6],
		// git marks the commits just outside the requested range with '-'
		Boundary: mark == '-',
	}
	rec.AuthorDate, _ = time.Parse(time.RFC3339, strings.TrimSpace(parts[4]))
	rec.CommitterDate, _ = time.Parse(time.RFC3339, strings.TrimSpace(parts[7]))
	if len(parts) > 8 {
		rec.ShortLog, rec.LongLog = splitMessage(parts[8])
	}
	return rec, nil
}

// splitMessage separates the subject from the body the way git does: the
// subject ends at the first blank line.
func splitMessage(msg string) (short, long string) {
	msg = strings.Trim(msg, "\n")
	subject, body, _ := strings.Cut(msg, "\n\n")
	short = strings.TrimSpace(strings.ReplaceAll(subject, "\n", " "))
	return short, strings.TrimSpace(body)
}
