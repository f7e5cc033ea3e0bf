package recurrence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Kind int

const (
	None Kind = iota
	Daily
	Weekly
	Monthly
	Yearly
)

var kindNames = map[Kind]string{
	None:    "NONE",
	Daily:   "DAILY",
	Weekly:  "WEEKLY",
	Monthly: "MONTHLY",
	Yearly:  "YEARLY",
}

var kindFromName = map[string]Kind{
	"NONE":    None,
	"DAILY":   Daily,
	"WEEKLY":  Weekly,
	"MONTHLY": Monthly,
	"YEARLY":  Yearly,
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind parses a kind name such as "WEEKLY" (case-insensitive).
func ParseKind(s string) (Kind, error) {
	k, ok := kindFromName[strings.ToUpper(strings.TrimSpace(s))]
	if !ok {
		return None, fmt.Errorf("unknown frequency: %q", s)
	}
	return k, nil
}

// End bounds a series. It is one of Never, OnDate or AfterCount.
type End interface {
	isEnd()
}

// Never leaves the series unbounded; only the query window and the
// safety cap stop expansion.
type Never struct{}

// OnDate ends the series after the given calendar date (inclusive).
type OnDate struct {
	Date time.Time
}

// AfterCount ends the series once Count occurrences have been produced.
type AfterCount struct {
	Count int
}

func (Never) isEnd()      {}
func (OnDate) isEnd()     {}
func (AfterCount) isEnd() {}

// Rule is a fixed-interval recurrence rule.
type Rule struct {
	Kind     Kind
	Interval int // default 1
	End      End // nil is treated as Never

	// AnchorDay is the day of month MONTHLY and YEARLY steps clamp against.
	// Zero means the day of the series start. It is set when a series is
	// split at a clamped date so the remainder keeps the original anchor.
	AnchorDay int
}

// NoRecurrence is the rule of a one-off event.
func NoRecurrence() Rule {
	return Rule{Kind: None, Interval: 1, End: Never{}}
}

// IsRecurring reports whether the rule produces more than its start date.
func (r Rule) IsRecurring() bool {
	return r.Kind != None
}

func (r Rule) end() End {
	if r.End == nil {
		return Never{}
	}
	return r.End
}

func (r Rule) interval() int {
	if r.Interval == 0 {
		return 1
	}
	return r.Interval
}

// Normalize fills defaults so that two equivalent rules compare equal.
func (r Rule) Normalize() Rule {
	if r.Kind == None {
		return NoRecurrence()
	}
	r.Interval = r.interval()
	r.End = r.end()
	if od, ok := r.End.(OnDate); ok {
		r.End = OnDate{Date: DateOf(od.Date, time.UTC)}
	}
	if r.Kind != Monthly && r.Kind != Yearly {
		r.AnchorDay = 0
	}
	return r
}

// Validate checks the rule against the date its series starts on. It is the
// write-boundary check; Expand itself never rejects a rule.
func (r Rule) Validate(start time.Time) error {
	if r.Kind == None {
		return nil
	}
	if _, ok := kindNames[r.Kind]; !ok {
		return fmt.Errorf("unknown frequency %d", int(r.Kind))
	}
	if r.Interval < 1 {
		return fmt.Errorf("interval must be at least 1, got %d", r.Interval)
	}
	start = DateOf(start, time.UTC)
	switch e := r.end().(type) {
	case OnDate:
		if DateOf(e.Date, time.UTC).Before(start) {
			return errors.New("recurrence end date is before the start date")
		}
	case AfterCount:
		if e.Count < 1 {
			return fmt.Errorf("occurrence count must be at least 1, got %d", e.Count)
		}
	}
	if r.AnchorDay != 0 {
		if r.Kind != Monthly && r.Kind != Yearly {
			return errors.New("anchor day only applies to monthly and yearly rules")
		}
		if r.AnchorDay < start.Day() || r.AnchorDay > 31 {
			return fmt.Errorf("anchor day %d does not match start date", r.AnchorDay)
		}
		if min(r.AnchorDay, daysInMonth(start.Year(), start.Month())) != start.Day() {
			return fmt.Errorf("anchor day %d does not match start date", r.AnchorDay)
		}
	}
	return nil
}

// Parse parses an RRULE-subset string like "FREQ=WEEKLY;INTERVAL=2;COUNT=3".
// The empty string is a one-off event.
func Parse(rule string) (Rule, error) {
	if rule == "" {
		return NoRecurrence(), nil
	}

	r := Rule{Interval: 1, End: Never{}}
	var hasFreq, hasEnd bool

	parts := strings.Split(rule, ";")
	for _, part := range parts {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return Rule{}, fmt.Errorf("invalid rule part: %q", part)
		}
		key, val := kv[0], kv[1]

		switch key {
		case "FREQ":
			k, ok := kindFromName[val]
			if !ok || k == None {
				return Rule{}, fmt.Errorf("unknown frequency: %q", val)
			}
			r.Kind = k
			hasFreq = true

		case "INTERVAL":
			n, err := strconv.Atoi(val)
			if err != nil || n < 1 {
				return Rule{}, fmt.Errorf("invalid interval: %q", val)
			}
			r.Interval = n

		case "BYMONTHDAY":
			n, err := strconv.Atoi(val)
			if err != nil || n < 1 || n > 31 {
				return Rule{}, fmt.Errorf("invalid BYMONTHDAY: %q", val)
			}
			r.AnchorDay = n

		case "COUNT":
			if hasEnd {
				return Rule{}, errors.New("COUNT and UNTIL are mutually exclusive")
			}
			n, err := strconv.Atoi(val)
			if err != nil || n < 1 {
				return Rule{}, fmt.Errorf("invalid count: %q", val)
			}
			r.End = AfterCount{Count: n}
			hasEnd = true

		case "UNTIL":
			if hasEnd {
				return Rule{}, errors.New("COUNT and UNTIL are mutually exclusive")
			}
			t, err := time.Parse("20060102", val)
			if err != nil {
				t, err = time.Parse("20060102T150405Z", val)
				if err != nil {
					return Rule{}, fmt.Errorf("invalid UNTIL: %q", val)
				}
			}
			r.End = OnDate{Date: DateOf(t, time.UTC)}
			hasEnd = true

		default:
			return Rule{}, fmt.Errorf("unsupported rule key: %q", key)
		}
	}

	if !hasFreq {
		return Rule{}, errors.New("FREQ is required")
	}

	return r, nil
}

// String serializes the rule back to its RRULE-subset form.
func (r Rule) String() string {
	if r.Kind == None {
		return ""
	}

	var parts []string
	parts = append(parts, "FREQ="+r.Kind.String())

	if r.interval() > 1 {
		parts = append(parts, fmt.Sprintf("INTERVAL=%d", r.interval()))
	}

	if r.AnchorDay > 0 && (r.Kind == Monthly || r.Kind == Yearly) {
		parts = append(parts, fmt.Sprintf("BYMONTHDAY=%d", r.AnchorDay))
	}

	switch e := r.end().(type) {
	case AfterCount:
		parts = append(parts, fmt.Sprintf("COUNT=%d", e.Count))
	case OnDate:
		parts = append(parts, "UNTIL="+e.Date.Format("20060102"))
	}

	return strings.Join(parts, ";")
}

// Describe returns a human-readable description of the rule.
func (r Rule) Describe() string {
	n := r.interval()
	var s string
	switch r.Kind {
	case None:
		return "Does not repeat"
	case Daily:
		s = "Repeats daily"
		if n > 1 {
			s = fmt.Sprintf("Repeats every %d days", n)
		}
	case Weekly:
		s = "Repeats weekly"
		if n > 1 {
			s = fmt.Sprintf("Repeats every %d weeks", n)
		}
	case Monthly:
		s = "Repeats monthly"
		if n > 1 {
			s = fmt.Sprintf("Repeats every %d months", n)
		}
	case Yearly:
		s = "Repeats yearly"
		if n > 1 {
			s = fmt.Sprintf("Repeats every %d years", n)
		}
	default:
		return ""
	}

	switch e := r.end().(type) {
	case AfterCount:
		if e.Count == 1 {
			s += ", once"
		} else {
			s += fmt.Sprintf(", %d times", e.Count)
		}
	case OnDate:
		s += " until " + FormatDate(e.Date)
	}
	return s
}
