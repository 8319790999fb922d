package services

import (
	"strings"

	"contract-qa-platform/internal/logger"
	"contract-qa-platform/models"
)

// Scoring weights for type detection. Filename evidence dominates:
// no combination of single hints can overturn a filename match.
const (
	scoreFilenameMaster = 19
	scoreFilenameOther  = 20
	scoreHint           = 10
	scoreHintMaster     = 8
	scoreMasterRefBonus = 5
)

var (
	filenameMasterTerms      = []string{"master", "msa", "_mst_"}
	filenameAmendmentTerms   = []string{"amendment", "amd", "addendum"}
	filenameSOWTerms         = []string{"sow", "statement"}
	filenameChangeOrderTerms = []string{"change", "co_"}

	// Phrases that indicate a document references a master agreement
	// rather than being one
	masterReferencePatterns = []string{
		"to master", "to the master", "pursuant to master",
		"under master", "reference to master",
	}
)

// TypeClassifier infers a document's type and hierarchy level from
// its filename and hint strings mined from the first page. This is a
// best-effort heuristic; its error mode is silent misclassification.
type TypeClassifier struct{}

func NewTypeClassifier() *TypeClassifier {
	return &TypeClassifier{}
}

// Classify scores the four candidate types and returns the winner
// with its hierarchy level. Filename and hint passes feed the same
// accumulator; the filename pass is mutually exclusive with a fixed
// priority order, the hint pass is additive per hint.
func (tc *TypeClassifier) Classify(filename string, hints []string) (string, int) {
	filenameLower := strings.ToLower(filename)

	scores := map[string]int{
		models.DocTypeMaster:      0,
		models.DocTypeAmendment:   0,
		models.DocTypeSOW:         0,
		models.DocTypeChangeOrder: 0,
	}

	// Filename pass: first matching bucket wins
	switch {
	case containsAny(filenameLower, filenameMasterTerms):
		scores[models.DocTypeMaster] += scoreFilenameMaster
	case containsAny(filenameLower, filenameAmendmentTerms):
		scores[models.DocTypeAmendment] += scoreFilenameOther
	case containsAny(filenameLower, filenameSOWTerms):
		scores[models.DocTypeSOW] += scoreFilenameOther
	case containsAny(filenameLower, filenameChangeOrderTerms):
		scores[models.DocTypeChangeOrder] += scoreFilenameOther
	}

	// Hint pass: each mined hint scores independently
	for _, hint := range hints {
		hintLower := strings.ToLower(hint)

		// A hint that merely references a master agreement is
		// evidence for amendment, not master
		isReferenceToMaster := containsAny(hintLower, masterReferencePatterns)

		if strings.Contains(hintLower, "amendment") || strings.Contains(hintLower, "addendum") {
			scores[models.DocTypeAmendment] += scoreHint
		}

		if strings.Contains(hintLower, "master") {
			if isReferenceToMaster {
				scores[models.DocTypeAmendment] += scoreMasterRefBonus
			} else {
				scores[models.DocTypeMaster] += scoreHintMaster
			}
		} else if strings.Contains(hintLower, "sow") || strings.Contains(hintLower, "statement of work") {
			scores[models.DocTypeSOW] += scoreHint
		} else if strings.Contains(hintLower, "change order") {
			scores[models.DocTypeChangeOrder] += scoreHint
		}
	}

	docType := resolveType(scores, filenameLower)
	level := models.LevelForType[docType]

	logger.Debug("Document type detected",
		"filename", filename,
		"type", docType,
		"level", level,
		"scores", scores)

	return docType, level
}

// resolveType picks the highest-scoring type in fixed priority order.
// A zero-score board falls back to a looser filename check before
// defaulting to master.
func resolveType(scores map[string]int, filenameLower string) string {
	ordered := []string{
		models.DocTypeMaster,
		models.DocTypeAmendment,
		models.DocTypeSOW,
		models.DocTypeChangeOrder,
	}

	best := ordered[0]
	for _, t := range ordered[1:] {
		if scores[t] > scores[best] {
			best = t
		}
	}

	if scores[best] > 0 {
		return best
	}

	switch {
	case containsAny(filenameLower, []string{"sow", "statement", "work"}):
		return models.DocTypeSOW
	case containsAny(filenameLower, []string{"amend", "amendment"}):
		return models.DocTypeAmendment
	case containsAny(filenameLower, []string{"change", "order", "co"}):
		return models.DocTypeChangeOrder
	default:
		return models.DocTypeMaster
	}
}

func containsAny(s string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(s, term) {
			return true
		}
	}
	return false
}
