// Package segfile appends finalized speech segments to a segments file.
package segfile

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/mgoltzsche/online-vad/internal/model"
	"github.com/mgoltzsche/online-vad/internal/vad"
)

var _ vad.Sink = &Writer{}

// Writer writes one line per segment:
//
//	<wavId>_<seq> <wavId> <start> <end>
//
// It can be shared between sessions.
type Writer struct {
	mutex  sync.Mutex
	file   *os.File
	writer *bufio.Writer
}

// Open opens the file in append mode, creating it when it does not exist.
func Open(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open segments file: %w", err)
	}

	return &Writer{file: f, writer: bufio.NewWriter(f)}, nil
}

func (w *Writer) WriteSegment(evt model.SegmentEvent) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.file == nil {
		return fmt.Errorf("write segment %s: segments file is closed", evt.UtteranceID())
	}

	_, err := w.writer.WriteString(FormatLine(evt))
	if err != nil {
		return fmt.Errorf("write segment %s: %w", evt.UtteranceID(), err)
	}

	if err = w.writer.Flush(); err != nil {
		return fmt.Errorf("flush segments file: %w", err)
	}

	return nil
}

func (w *Writer) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.file == nil {
		return nil
	}

	err := w.writer.Flush()
	if e := w.file.Close(); err == nil {
		err = e
	}

	w.file = nil

	return err
}

// FormatLine formats the segment the way it is written into the file.
func FormatLine(evt model.SegmentEvent) string {
	return fmt.Sprintf("%s %s %s %s\n", evt.UtteranceID(), evt.WavID, formatTime(evt.Start), formatTime(evt.End))
}

func formatTime(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}
