package proposal

import "strings"

// SectorGeneral is used when no keyword matches.
const SectorGeneral = "general"

// sectorKeywords is checked in order; the first sector with a matching
// keyword wins.
var sectorKeywords = []struct {
	sector   string
	keywords []string
}{
	{"tech", []string{"software", "developer", "backend", "frontend", "devops", "data scientist", "golang", "python", "cloud"}},
	{"finance", []string{"finance", "accountant", "accounting", "banking", "auditor", "controller", "investment"}},
	{"healthcare", []string{"nurse", "doctor", "clinical", "healthcare", "medical", "pharma"}},
	{"sales", []string{"sales", "account executive", "business development", "b2b"}},
	{"marketing", []string{"marketing", "seo", "brand", "content strategist", "growth"}},
	{"engineering", []string{"mechanical", "civil engineer", "electrical", "manufacturing", "industrial"}},
	{"legal", []string{"lawyer", "legal", "paralegal", "attorney", "compliance"}},
	{"education", []string{"teacher", "professor", "tutor", "education", "instructor"}},
	{"logistics", []string{"logistics", "supply chain", "warehouse", "procurement", "transport"}},
	{"hospitality", []string{"hotel", "chef", "restaurant", "hospitality", "tourism"}},
}

// InferSector derives a sector tag from free text.
func InferSector(description string) string {
	text := " " + strings.ToLower(description) + " "
	for _, s := range sectorKeywords {
		for _, kw := range s.keywords {
			if strings.Contains(text, kw) {
				return s.sector
			}
		}
	}
	return SectorGeneral
}
