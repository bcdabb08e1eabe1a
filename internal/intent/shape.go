package intent

import (
	"fmt"
	"strings"
)

// Slot is one piece of information a canonical question can carry.
type Slot uint8

const (
	SlotName Slot = 1 << iota
	SlotTitle
	SlotCompany
	SlotLocation
	SlotSkills
	SlotPeriod
)

// SlotSet is a bit set of slots.
type SlotSet uint8

func setOf(slots ...Slot) SlotSet {
	var s SlotSet
	for _, sl := range slots {
		s |= SlotSet(sl)
	}
	return s
}

// Has reports whether s contains slot.
func (s SlotSet) Has(slot Slot) bool { return s&SlotSet(slot) != 0 }

// Family distinguishes "Who ..." questions from "<name>'s experience ..."
// questions.
type Family int

const (
	FamilyWho Family = iota
	FamilyExperience
)

// Shape is one of the forty canonical question forms. Order lists the
// slots in the sequence they are rendered.
type Shape struct {
	Number int
	Family Family
	Order  []Slot
}

// Slots returns the slot set the shape requires.
func (s Shape) Slots() SlotSet { return setOf(s.Order...) }

// Shapes is the closed grammar, indexed by Number-1.
var Shapes = func() []Shape {
	n, t, c, l, k, p := SlotName, SlotTitle, SlotCompany, SlotLocation, SlotSkills, SlotPeriod
	return []Shape{
		{1, FamilyWho, []Slot{t}},
		{2, FamilyWho, []Slot{c}},
		{3, FamilyWho, []Slot{l}},
		{4, FamilyWho, []Slot{k}},
		{5, FamilyWho, []Slot{t, k}},
		{6, FamilyWho, []Slot{c, k}},
		{7, FamilyWho, []Slot{l, k}},
		{8, FamilyWho, []Slot{t, c}},
		{9, FamilyWho, []Slot{t, l}},
		{10, FamilyWho, []Slot{c, l}},
		{11, FamilyWho, []Slot{t, c, l}},
		{12, FamilyWho, []Slot{t, c, k}},
		{13, FamilyWho, []Slot{t, l, k}},
		{14, FamilyWho, []Slot{c, l, k}},
		{15, FamilyWho, []Slot{t, p}},
		{16, FamilyWho, []Slot{c, p}},
		{17, FamilyWho, []Slot{l, p}},
		{18, FamilyWho, []Slot{k, p}},
		{19, FamilyWho, []Slot{t, c, p}},
		{20, FamilyWho, []Slot{t, l, p}},
		{21, FamilyWho, []Slot{c, l, p}},
		{22, FamilyWho, []Slot{k, c, l, p}},
		{23, FamilyWho, []Slot{t, k, p}},
		{24, FamilyWho, []Slot{t, c, k, p}},
		{25, FamilyWho, []Slot{t, l, k, p}},
		{26, FamilyWho, []Slot{t, c, l, k, p}},
		{27, FamilyExperience, []Slot{n, t}},
		{28, FamilyExperience, []Slot{n, t, c}},
		{29, FamilyExperience, []Slot{n, t, l}},
		{30, FamilyExperience, []Slot{n, c, l}},
		{31, FamilyExperience, []Slot{n, k}},
		{32, FamilyExperience, []Slot{n, t, k}},
		{33, FamilyExperience, []Slot{n, c, k}},
		{34, FamilyExperience, []Slot{n, l, k}},
		{35, FamilyExperience, []Slot{n, t, c, l, k}},
		{36, FamilyExperience, []Slot{n, t, p}},
		{37, FamilyExperience, []Slot{n, c, p}},
		{38, FamilyExperience, []Slot{n, l, p}},
		{39, FamilyExperience, []Slot{n, k, p}},
		{40, FamilyExperience, []Slot{n, t, c, l, k, p}},
	}
}()

// Match returns the shape whose slot set equals set.
func Match(set SlotSet) (Shape, bool) {
	for _, s := range Shapes {
		if s.Slots() == set {
			return s, true
		}
	}
	return Shape{}, false
}

// Slots holds the values the user supplied. Absent slots are empty.
type Slots struct {
	Names     []string `json:"names"`
	Titles    []string `json:"titles"`
	Companies []string `json:"companies"`
	Locations []string `json:"locations"`
	Skills    []string `json:"skills"`
	Periods   []string `json:"duration"`
}

func (s Slots) values(slot Slot) []string {
	switch slot {
	case SlotName:
		return s.Names
	case SlotTitle:
		return s.Titles
	case SlotCompany:
		return s.Companies
	case SlotLocation:
		return s.Locations
	case SlotSkills:
		return s.Skills
	case SlotPeriod:
		return s.Periods
	}
	return nil
}

// Set returns the slots that carry at least one value.
func (s Slots) Set() SlotSet {
	var set SlotSet
	for _, slot := range []Slot{SlotName, SlotTitle, SlotCompany, SlotLocation, SlotSkills, SlotPeriod} {
		if len(s.values(slot)) > 0 {
			set |= SlotSet(slot)
		}
	}
	return set
}

// clean trims values and drops blanks and case-insensitive duplicates.
func (s Slots) clean() Slots {
	f := func(in []string) []string {
		var out []string
		seen := make(map[string]bool)
		for _, v := range in {
			v = strings.TrimSpace(v)
			key := strings.ToLower(v)
			if v == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, v)
		}
		return out
	}
	return Slots{
		Names:     f(s.Names),
		Titles:    f(s.Titles),
		Companies: f(s.Companies),
		Locations: f(s.Locations),
		Skills:    f(s.Skills),
		Periods:   f(s.Periods),
	}
}

// Query is a canonicalized question.
type Query struct {
	Shape Shape
	Tense Tense
	Slots Slots
}

// Text renders the canonical question.
func (q Query) Text() string {
	var sb strings.Builder
	switch q.Shape.Family {
	case FamilyExperience:
		fmt.Fprintf(&sb, "%s's ", joinList(q.Slots.Names))
		if adj := q.Tense.adjective(); adj != "" {
			sb.WriteString(adj + " ")
		}
		sb.WriteString("experience")
	default:
		sb.WriteString("Who " + q.Tense.verb())
	}

	for _, slot := range q.Shape.Order {
		if slot == SlotName {
			continue
		}
		sb.WriteString(" " + phrase(slot, q.Shape.Family) + " " + joinList(q.Slots.values(slot)))
	}
	sb.WriteString("?")
	return sb.String()
}

func phrase(slot Slot, f Family) string {
	switch slot {
	case SlotTitle:
		if f == FamilyExperience {
			return "as a"
		}
		return "as"
	case SlotCompany:
		return "at"
	case SlotLocation:
		return "in"
	case SlotSkills:
		return "with"
	}
	return "during"
}

func joinList(vals []string) string {
	switch len(vals) {
	case 0:
		return ""
	case 1:
		return vals[0]
	}
	return strings.Join(vals[:len(vals)-1], ", ") + " and " + vals[len(vals)-1]
}
