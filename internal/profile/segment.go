package profile

import "fmt"

// Segment renders a record into one summary chunk followed by one chunk per
// experience and one per education, each in their original order. Blank
// fields render as Unknown.
func Segment(rec Record) []Chunk {
	rec = rec.Normalized()
	chunks := make([]Chunk, 0, 1+len(rec.Experiences)+len(rec.Educations))

	chunks = append(chunks, Chunk{
		Text: fmt.Sprintf("%s is a %s at %s. %s self-describes as %s",
			rec.Name, rec.Headline, rec.Location, rec.Name, rec.About),
		Metadata: Metadata{
			Kind:       KindSummary,
			ID:         rec.ID,
			Name:       rec.Name,
			ProfilePic: rec.ProfilePic,
			Location:   ptr(rec.Location),
		},
	})

	for i, exp := range rec.Experiences {
		chunks = append(chunks, Chunk{
			Text: fmt.Sprintf("Name: %s\nRole: %s\nCompany: %s\nWork Type: %s\nLocation: %s\nDuration: %s to %s\nDescription: %s",
				rec.Name, exp.Title, exp.Company, exp.WorkType, exp.Location, exp.StartDate, exp.EndDate, exp.Description),
			Metadata: Metadata{
				Kind:         KindExperience,
				Ordinal:      i,
				ID:           rec.ID,
				Name:         rec.Name,
				ProfilePic:   rec.ProfilePic,
				Location:     ptr(exp.Location),
				Role:         ptr(exp.Title),
				Company:      ptr(exp.Company),
				WorkType:     ptr(exp.WorkType),
				WorkDuration: ptr(exp.StartDate + " to " + exp.EndDate),
			},
		})
	}

	for i, edu := range rec.Educations {
		chunks = append(chunks, Chunk{
			Text: fmt.Sprintf("School: %s\nDegree: %s\nMajor: %s\nDuration: %s to %s\nDescription: %s",
				edu.School, edu.Degree, edu.Major, edu.StartDate, edu.EndDate, edu.Description),
			Metadata: Metadata{
				Kind:           KindEducation,
				Ordinal:        i,
				ID:             rec.ID,
				Name:           rec.Name,
				ProfilePic:     rec.ProfilePic,
				School:         ptr(edu.School),
				Degree:         ptr(edu.Degree),
				Major:          ptr(edu.Major),
				SchoolDuration: ptr(edu.StartDate + " to " + edu.EndDate),
			},
		})
	}
	return chunks
}
