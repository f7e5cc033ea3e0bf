package recurrence

import (
	"encoding/json"
	"fmt"
)

type endJSON struct {
	Type  string `json:"type"`
	Date  string `json:"date,omitempty"`
	Count int    `json:"count,omitempty"`
}

type ruleJSON struct {
	Kind     string   `json:"kind"`
	Interval int      `json:"interval"`
	End      *endJSON `json:"end,omitempty"`
	MonthDay int      `json:"month_day,omitempty"`
}

func (r Rule) MarshalJSON() ([]byte, error) {
	r = r.Normalize()
	out := ruleJSON{Kind: r.Kind.String(), Interval: r.Interval, MonthDay: r.AnchorDay}
	switch e := r.End.(type) {
	case Never:
		out.End = &endJSON{Type: "never"}
	case OnDate:
		out.End = &endJSON{Type: "on_date", Date: FormatDate(e.Date)}
	case AfterCount:
		out.End = &endJSON{Type: "after_count", Count: e.Count}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the wire form. It checks shape only; range checks
// belong to Validate.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var in ruleJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	kind := None
	if in.Kind != "" {
		k, err := ParseKind(in.Kind)
		if err != nil {
			return err
		}
		kind = k
	}

	out := Rule{Kind: kind, Interval: in.Interval, AnchorDay: in.MonthDay, End: Never{}}
	if in.Interval == 0 {
		out.Interval = 1
	}
	if in.End != nil {
		switch in.End.Type {
		case "", "never":
		case "on_date":
			d, err := ParseDate(in.End.Date)
			if err != nil {
				return fmt.Errorf("recurrence end date: %w", err)
			}
			out.End = OnDate{Date: d}
		case "after_count":
			out.End = AfterCount{Count: in.End.Count}
		default:
			return fmt.Errorf("unknown recurrence end type %q", in.End.Type)
		}
	}
	if kind == None {
		out = NoRecurrence()
	}
	*r = out
	return nil
}
