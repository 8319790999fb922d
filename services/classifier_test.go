package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"contract-qa-platform/models"
)

func TestClassifyFromFilename(t *testing.T) {
	classifier := NewTypeClassifier()

	tests := []struct {
		name      string
		filename  string
		wantType  string
		wantLevel int
	}{
		{"master by msa token", "MSA_Acme_2023.pdf", models.DocTypeMaster, 1},
		{"master by full word", "Master_Services_Agreement.pdf", models.DocTypeMaster, 1},
		{"amendment", "Amendment_2_Services.pdf", models.DocTypeAmendment, 2},
		{"addendum counts as amendment", "Addendum_B.pdf", models.DocTypeAmendment, 2},
		{"sow", "SOW_Alpha_Project.pdf", models.DocTypeSOW, 3},
		{"change order", "Change_Request_14.pdf", models.DocTypeChangeOrder, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docType, level := classifier.Classify(tt.filename, nil)
			assert.Equal(t, tt.wantType, docType)
			assert.Equal(t, tt.wantLevel, level)
		})
	}
}

func TestClassifyFromHints(t *testing.T) {
	classifier := NewTypeClassifier()

	docType, level := classifier.Classify("document1.pdf", []string{"Master Services Agreement"})
	assert.Equal(t, models.DocTypeMaster, docType)
	assert.Equal(t, 1, level)

	docType, level = classifier.Classify("document2.pdf", []string{"Statement of Work for Project Alpha"})
	assert.Equal(t, models.DocTypeSOW, docType)
	assert.Equal(t, 3, level)

	docType, level = classifier.Classify("document3.pdf", []string{"Change Order No. 7"})
	assert.Equal(t, models.DocTypeChangeOrder, docType)
	assert.Equal(t, 4, level)
}

// A hint that merely references a master agreement is evidence for
// amendment, not master.
func TestClassifyMasterReferenceFavorsAmendment(t *testing.T) {
	classifier := NewTypeClassifier()

	docType, level := classifier.Classify("document1.pdf", []string{"Amendment to Master Services Agreement"})
	assert.Equal(t, models.DocTypeAmendment, docType)
	assert.Equal(t, 2, level)

	// Without a reference phrase the master hint stands on its own
	docType, _ = classifier.Classify("document1.pdf", []string{"Master Services Agreement"})
	assert.Equal(t, models.DocTypeMaster, docType)
}

// Filename evidence dominates: a single contradicting hint cannot
// overturn a filename match.
func TestClassifyFilenameBeatsSingleHint(t *testing.T) {
	classifier := NewTypeClassifier()

	docType, level := classifier.Classify("SOW_Alpha.pdf", []string{"Master Services Agreement"})
	assert.Equal(t, models.DocTypeSOW, docType)
	assert.Equal(t, 3, level)
}

// Repeated hints accumulate and can outvote the filename
func TestClassifyAccumulatedHintsOutvoteFilename(t *testing.T) {
	classifier := NewTypeClassifier()

	hints := []string{
		"Amendment No. 3",
		"This Amendment modifies the original terms",
		"Amendment effective upon signature",
	}
	docType, level := classifier.Classify("MSA_Acme.pdf", hints)
	assert.Equal(t, models.DocTypeAmendment, docType)
	assert.Equal(t, 2, level)
}

func TestClassifyZeroScoreFallback(t *testing.T) {
	classifier := NewTypeClassifier()

	tests := []struct {
		filename string
		wantType string
	}{
		{"project_work_plan.pdf", models.DocTypeSOW},
		{"order_form_7.pdf", models.DocTypeChangeOrder},
		{"agreement_2023.pdf", models.DocTypeMaster},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			docType, _ := classifier.Classify(tt.filename, nil)
			assert.Equal(t, tt.wantType, docType)
		})
	}
}

// An amendment whose filename also carries the master's abbreviation
// still classifies as amendment once the first page confirms it: the
// header line and the "to Master" reference together outscore the
// filename's master match.
func TestClassifyAmendmentToMasterFilename(t *testing.T) {
	classifier := NewTypeClassifier()

	hints := []string{"AMENDMENT NO. 1", "Amendment to Master Agreement"}
	docType, level := classifier.Classify("Amendment_1_to_MSA.pdf", hints)

	assert.Equal(t, models.DocTypeAmendment, docType)
	assert.Equal(t, 2, level)
}

// With only one amendment hint the filename's master match still
// wins (19 vs 15). Pinned: filename evidence dominates until a
// second hint accumulates.
func TestClassifyAmendmentToMasterSingleHint(t *testing.T) {
	classifier := NewTypeClassifier()

	docType, level := classifier.Classify("Amendment_1_to_MSA.pdf", []string{"Amendment to Master Agreement"})

	assert.Equal(t, models.DocTypeMaster, docType)
	assert.Equal(t, 1, level)
}
