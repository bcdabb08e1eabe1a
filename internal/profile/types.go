package profile

import "strings"

// Unknown is substituted for every absent, null or empty field before a
// record is rendered or indexed.
const Unknown = "Unknown"

// Present marks an entry that has not ended.
const Present = "Present"

// Record is one alumni profile as produced by the scraper.
type Record struct {
	ID          string
	Name        string
	Headline    string
	Location    string
	About       string
	ProfilePic  string
	Experiences []Experience
	Educations  []Education
}

// Experience is a single position held by the alumnus.
type Experience struct {
	Title       string
	Company     string
	WorkType    string
	Location    string
	StartDate   string
	EndDate     string
	Description string
}

// Education is a single school entry.
type Education struct {
	School      string
	Degree      string
	Major       string
	StartDate   string
	EndDate     string
	Description string
}

// Kind identifies which part of a profile a chunk was rendered from.
type Kind string

const (
	KindSummary    Kind = "summary"
	KindExperience Kind = "experience"
	KindEducation  Kind = "education"
)

// Metadata travels with a chunk into the index. Fields that do not apply to
// the chunk's kind are nil and serialize as JSON null.
type Metadata struct {
	Kind           Kind    `json:"kind"`
	Ordinal        int     `json:"ordinal"`
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	ProfilePic     string  `json:"profile_pic"`
	Location       *string `json:"location"`
	Role           *string `json:"role"`
	Company        *string `json:"company"`
	WorkType       *string `json:"work_type"`
	WorkDuration   *string `json:"work_duration"`
	School         *string `json:"school"`
	Degree         *string `json:"degree"`
	Major          *string `json:"major"`
	SchoolDuration *string `json:"school_duration"`
}

// Chunk is the unit of retrieval.
type Chunk struct {
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

// Duration returns the "start to end" window of the chunk, or "" for
// summary chunks.
func (c Chunk) Duration() string {
	switch c.Metadata.Kind {
	case KindExperience:
		return deref(c.Metadata.WorkDuration)
	case KindEducation:
		return deref(c.Metadata.SchoolDuration)
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func ptr(s string) *string { return &s }

// orUnknown trims s and substitutes Unknown when nothing is left.
func orUnknown(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return Unknown
	}
	return s
}

// Normalized returns a copy of r with every blank text field set to Unknown.
func (r Record) Normalized() Record {
	r.ID = orUnknown(r.ID)
	r.Name = orUnknown(r.Name)
	r.Headline = orUnknown(r.Headline)
	r.Location = orUnknown(r.Location)
	r.About = orUnknown(r.About)
	r.ProfilePic = orUnknown(r.ProfilePic)

	exps := make([]Experience, len(r.Experiences))
	for i, e := range r.Experiences {
		exps[i] = Experience{
			Title:       orUnknown(e.Title),
			Company:     orUnknown(e.Company),
			WorkType:    orUnknown(e.WorkType),
			Location:    orUnknown(e.Location),
			StartDate:   orUnknown(e.StartDate),
			EndDate:     orUnknown(e.EndDate),
			Description: orUnknown(e.Description),
		}
	}
	edus := make([]Education, len(r.Educations))
	for i, e := range r.Educations {
		edus[i] = Education{
			School:      orUnknown(e.School),
			Degree:      orUnknown(e.Degree),
			Major:       orUnknown(e.Major),
			StartDate:   orUnknown(e.StartDate),
			EndDate:     orUnknown(e.EndDate),
			Description: orUnknown(e.Description),
		}
	}
	r.Experiences, r.Educations = exps, edus
	return r
}
