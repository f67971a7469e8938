package segmenter

import (
	"fmt"

	"github.com/mgoltzsche/online-vad/internal/vad"
)

// TransitionModel maps decoder state ids to phone ids.
type TransitionModel struct {
	// Phones maps a state id to its phone. A nil map is the identity mapping.
	Phones map[int32]int32
}

// GroupPhones run-length groups the alignment into phones.
func (m TransitionModel) GroupPhones(alignment []int32) ([]vad.PhoneRun, error) {
	var runs []vad.PhoneRun

	for i, state := range alignment {
		phone, err := m.phone(state)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}

		if n := len(runs); n > 0 && runs[n-1].Phone == phone {
			runs[n-1].Count++
			continue
		}

		runs = append(runs, vad.PhoneRun{Phone: phone, Count: 1})
	}

	return runs, nil
}

func (m TransitionModel) phone(state int32) (int32, error) {
	if m.Phones == nil {
		return state, nil
	}

	phone, ok := m.Phones[state]
	if !ok {
		return 0, fmt.Errorf("unknown decoder state id %d", state)
	}

	return phone, nil
}
