package components

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"go.uber.org/multierr"
)

// resourceRecord mirrors Resources with every field required.
type resourceRecord struct {
	Water     *float64 `json:"water"`
	Sunlight  *float64 `json:"sunlight"`
	Nitrogen  *float64 `json:"nitrogen"`
	Potassium *float64 `json:"potassium"`
}

// CellRecord is the external structured form of a PlantState. All seven
// fields must be present; absent fields are never defaulted.
type CellRecord struct {
	CurrentResources  *resourceRecord `json:"current_resources"`
	MaxResources      *resourceRecord `json:"max_resources"`
	ProducedResources *resourceRecord `json:"produced_resources"`
	RequiredToSurvive *resourceRecord `json:"required_to_survive"`
	RequiredToGrow    *resourceRecord `json:"required_to_grow"`
	Species           *string         `json:"species"`
	Height            *int            `json:"height"`
}

func (r *resourceRecord) resources(field string) (Resources, error) {
	if r == nil {
		return Resources{}, fmt.Errorf("missing field %q", field)
	}
	var err error
	get := func(name string, v *float64) float64 {
		if v == nil {
			err = multierr.Append(err, fmt.Errorf("missing field %q", field+"."+name))
			return 0
		}
		return *v
	}
	res := Resources{
		Water:     get("water", r.Water),
		Sunlight:  get("sunlight", r.Sunlight),
		Nitrogen:  get("nitrogen", r.Nitrogen),
		Potassium: get("potassium", r.Potassium),
	}
	return res, err
}

// State converts the record into a validated PlantState.
func (c CellRecord) State() (PlantState, error) {
	var s PlantState
	var err error
	var e error

	s.Current, e = c.CurrentResources.resources("current_resources")
	err = multierr.Append(err, e)
	s.Max, e = c.MaxResources.resources("max_resources")
	err = multierr.Append(err, e)
	s.Produced, e = c.ProducedResources.resources("produced_resources")
	err = multierr.Append(err, e)
	s.RequiredToSurvive, e = c.RequiredToSurvive.resources("required_to_survive")
	err = multierr.Append(err, e)
	s.RequiredToGrow, e = c.RequiredToGrow.resources("required_to_grow")
	err = multierr.Append(err, e)

	if c.Species == nil {
		err = multierr.Append(err, fmt.Errorf("missing field %q", "species"))
	} else if s.Species, e = ParseSpecies(*c.Species); e != nil {
		err = multierr.Append(err, e)
	}
	if c.Height == nil {
		err = multierr.Append(err, fmt.Errorf("missing field %q", "height"))
	} else {
		s.Height = *c.Height
	}

	if err != nil {
		return PlantState{}, err
	}
	if err := s.Validate(); err != nil {
		return PlantState{}, err
	}
	return s, nil
}

// DecodeCellRecord parses a single JSON cell record.
func DecodeCellRecord(data []byte) (PlantState, error) {
	var rec CellRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return PlantState{}, fmt.Errorf("parsing cell record: %w", err)
	}
	return rec.State()
}

// DecodeCellRecords parses a JSON object mapping "x,y" keys to cell records.
// Every bad entry is reported, keyed by its cell.
func DecodeCellRecords(r io.Reader) (map[GridPos]PlantState, error) {
	raw := map[string]json.RawMessage{}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("parsing cell records: %w", err)
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	cells := make(map[GridPos]PlantState, len(raw))
	var err error
	for _, k := range keys {
		pos, perr := ParseGridPos(k)
		if perr != nil {
			err = multierr.Append(err, perr)
			continue
		}
		state, serr := DecodeCellRecord(raw[k])
		if serr != nil {
			for _, e := range multierr.Errors(serr) {
				err = multierr.Append(err, fmt.Errorf("cell %s: %w", pos, e))
			}
			continue
		}
		cells[pos] = state
	}
	if err != nil {
		return nil, err
	}
	return cells, nil
}

// RecordOf converts a state back into its external form.
func RecordOf(s PlantState) CellRecord {
	vec := func(r Resources) *resourceRecord {
		return &resourceRecord{Water: &r.Water, Sunlight: &r.Sunlight, Nitrogen: &r.Nitrogen, Potassium: &r.Potassium}
	}
	species := s.Species.String()
	height := s.Height
	return CellRecord{
		CurrentResources:  vec(s.Current),
		MaxResources:      vec(s.Max),
		ProducedResources: vec(s.Produced),
		RequiredToSurvive: vec(s.RequiredToSurvive),
		RequiredToGrow:    vec(s.RequiredToGrow),
		Species:           &species,
		Height:            &height,
	}
}
