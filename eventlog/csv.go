package eventlog

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/LdDl/mot-counter/counting"
	"github.com/pkg/errors"
)

// Header is the first row of a fresh CSV log
var Header = []string{"timestamp", "id", "direction", "prev_cx", "curr_cx"}

// CSVWriter appends crossing events to CSV file.
// Existing content is never rewritten; every row is flushed as a complete line.
type CSVWriter struct {
	file   *os.File
	out    io.Writer
	writer *csv.Writer
	path   string
	// Previous row failed and may be left unterminated
	dirty bool
}

// OpenCSV opens (or creates) the log at path for appending.
// Header is written only when file is new or empty.
func OpenCSV(path string) (*CSVWriter, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "can't open event log %s", path)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, errors.Wrapf(err, "can't stat event log %s", path)
	}
	w := &CSVWriter{
		file:   file,
		out:    file,
		writer: csv.NewWriter(file),
		path:   path,
	}
	if info.Size() == 0 {
		if err := w.writeRow(Header); err != nil {
			file.Close()
			return nil, errors.Wrap(err, "can't write header")
		}
		return w, nil
	}
	// Previous run could die in the middle of a row: start ours on a fresh line
	if err := w.terminatePartialRow(); err != nil {
		file.Close()
		return nil, err
	}
	return w, nil
}

// terminatePartialRow appends newline when file does not end with one
func (w *CSVWriter) terminatePartialRow() error {
	info, err := w.file.Stat()
	if err != nil {
		return errors.Wrapf(err, "can't stat event log %s", w.path)
	}
	if info.Size() == 0 {
		return nil
	}
	terminated, err := endsWithNewline(w.file, info.Size())
	if err != nil {
		return errors.Wrapf(err, "can't inspect event log %s", w.path)
	}
	if terminated {
		return nil
	}
	if _, err := w.out.Write([]byte{'\n'}); err != nil {
		return errors.Wrap(err, "can't terminate partial row")
	}
	return nil
}

func endsWithNewline(file *os.File, size int64) (bool, error) {
	last := make([]byte, 1)
	if _, err := file.ReadAt(last, size-1); err != nil && err != io.EOF {
		return false, err
	}
	return last[0] == '\n', nil
}

// Path returns log location
func (w *CSVWriter) Path() string {
	return w.path
}

// Write implements counting.EventWriter
func (w *CSVWriter) Write(event counting.CrossingEvent) error {
	return w.writeRow(event.Record())
}

func (w *CSVWriter) writeRow(row []string) error {
	if w.dirty {
		if err := w.terminatePartialRow(); err != nil {
			return err
		}
		w.dirty = false
	}
	if err := w.writer.Write(row); err != nil {
		w.resetWriter()
		return errors.Wrapf(err, "can't write row to %s", w.path)
	}
	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		w.resetWriter()
		return errors.Wrapf(err, "can't flush row to %s", w.path)
	}
	return nil
}

// resetWriter drops buffered bytes and sticky error of the failed row
func (w *CSVWriter) resetWriter() {
	w.writer = csv.NewWriter(w.out)
	w.dirty = true
}

// Close implements counting.EventWriter
func (w *CSVWriter) Close() error {
	w.writer.Flush()
	flushErr := w.writer.Error()
	closeErr := w.file.Close()
	if flushErr != nil {
		return errors.Wrap(flushErr, "can't flush event log")
	}
	if closeErr != nil {
		return errors.Wrap(closeErr, "can't close event log")
	}
	return nil
}
