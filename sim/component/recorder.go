package component

import (
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/hashicorp/go-multierror"

	"github.com/simlink/ethphy/sim/model"
)

var traceHeader = []string{"Nanoseconds", "Channel", "Event", "Hex Bytes"}

// TraceRecorder writes timestamped bus-level events to a CSV file, one row
// per event. A nil-output recorder discards everything, so instrumentation
// can stay in place unconditionally.
type TraceRecorder struct {
	sim    model.SimContext
	output *csv.Writer
}

func (r *TraceRecorder) IsRecording() bool {
	return r.output != nil
}

// Record logs one event on the named channel. The payload may be empty (for
// pure marker events such as SFD observation).
func (r *TraceRecorder) Record(channel, event string, payload []byte) {
	if channel == "" || event == "" {
		panic("invalid empty channel or event name")
	}
	if r.output == nil {
		// not recording; discard
		return
	}
	err := r.output.Write([]string{
		strconv.FormatUint(r.sim.Now().Nanoseconds(), 10),
		channel,
		event,
		hex.EncodeToString(payload),
	})
	r.output.Flush()
	if err == nil {
		err = r.output.Error()
	}
	if err != nil {
		log.Fatal(err)
	}
}

func MakeNullTraceRecorder() *TraceRecorder {
	return &TraceRecorder{
		output: nil,
	}
}

func MakeTraceRecorder(sim model.SimContext, path string) *TraceRecorder {
	w, err := os.Create(path)
	if err != nil {
		log.Fatal(err)
	}
	cw := csv.NewWriter(w)
	err = cw.Write(traceHeader)
	cw.Flush()
	if err == nil {
		err = cw.Error()
	}
	if err != nil {
		log.Fatal(err)
	}

	return &TraceRecorder{
		sim:    sim,
		output: cw,
	}
}

type TraceEvent struct {
	Timestamp model.VirtualTime
	Channel   string
	Event     string
	Bytes     []byte
}

func DecodeTrace(path string) (events []TraceEvent, re error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := r.Close(); err != nil {
			re = multierror.Append(re, err)
		}
	}()
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) < 1 {
		return nil, errors.New("no header found")
	}
	if len(rows[0]) != len(traceHeader) {
		return nil, fmt.Errorf("invalid header: %v", rows[0])
	}
	for i, col := range traceHeader {
		if rows[0][i] != col {
			return nil, fmt.Errorf("invalid header: %v", rows[0])
		}
	}
	for _, row := range rows[1:] {
		if len(row) != len(traceHeader) {
			return nil, fmt.Errorf("invalid trace row: %v", row)
		}
		timestampNS, err := strconv.ParseUint(row[0], 10, 64)
		if err != nil {
			return nil, err
		}
		timestamp, ok := model.FromNanoseconds(timestampNS)
		if !ok {
			return nil, fmt.Errorf("invalid timestamp: %v", row[0])
		}
		if row[1] == "" || row[2] == "" {
			return nil, fmt.Errorf("invalid empty channel or event in row: %v", row)
		}
		payload, err := hex.DecodeString(row[3])
		if err != nil {
			return nil, err
		}
		events = append(events, TraceEvent{
			Timestamp: timestamp,
			Channel:   row[1],
			Event:     row[2],
			Bytes:     payload,
		})
	}
	return events, nil
}
