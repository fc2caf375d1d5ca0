package monitor

import (
	"encoding/json"
	"time"
)

// Durations go over the wire in milliseconds.

type entryAlias CallLogEntry

type entryJSON struct {
	entryAlias
	Duration *int64 `json:"duration,omitempty"`
}

func (e CallLogEntry) MarshalJSON() ([]byte, error) {
	out := entryJSON{entryAlias: entryAlias(e)}
	if e.Duration != nil {
		ms := e.Duration.Milliseconds()
		out.Duration = &ms
	}
	return json.Marshal(out)
}

func (e *CallLogEntry) UnmarshalJSON(b []byte) error {
	var in entryJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*e = CallLogEntry(in.entryAlias)
	e.Duration = nil
	if in.Duration != nil {
		d := time.Duration(*in.Duration) * time.Millisecond
		e.Duration = &d
	}
	return nil
}

type statsAlias Stats

type statsJSON struct {
	statsAlias
	AvgDuration float64 `json:"avgDuration"`
}

func (s Stats) MarshalJSON() ([]byte, error) {
	return json.Marshal(statsJSON{
		statsAlias:  statsAlias(s),
		AvgDuration: float64(s.AvgDuration) / float64(time.Millisecond),
	})
}

func (s *Stats) UnmarshalJSON(b []byte) error {
	var in statsJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*s = Stats(in.statsAlias)
	s.AvgDuration = time.Duration(in.AvgDuration * float64(time.Millisecond))
	return nil
}
