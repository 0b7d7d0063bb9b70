package core

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/SamuelRCrider/csp-risk/utils"
)

// TestClassifyFields demonstrates field-name classification
func TestClassifyFields(t *testing.T) {
	c := NewSensitivityClassifier()

	tests := []struct {
		name      string
		fields    []string
		records   int
		wantClass Classification
		wantScore int
	}{
		{"restricted by ssn", []string{"ssn", "name"}, 100, ClassificationRestricted, 90},
		{"restricted large dataset", []string{"credit_card_number"}, 5000, ClassificationRestricted, 100},
		{"confidential by pii", []string{"email", "name"}, 100, ClassificationConfidential, 60},
		{"confidential large dataset", []string{"first_name"}, 20000, ClassificationConfidential, 80},
		{"pii camel case", []string{"emailAddress"}, 10, ClassificationConfidential, 60},
		{"pii qualified email", []string{"work_email"}, 10, ClassificationConfidential, 60},
		{"pii camel case qualifier", []string{"userEmail"}, 10, ClassificationConfidential, 60},
		{"pii embedded address", []string{"shipping_address"}, 10, ClassificationConfidential, 60},
		{"pii contact phone", []string{"primaryPhoneNumber"}, 10, ClassificationConfidential, 60},
		{"pii camel case name", []string{"userName"}, 10, ClassificationConfidential, 60},
		{"public business fields", []string{"company_name", "product_name"}, 100, ClassificationPublic, 10},
		{"public camel case business name", []string{"companyName", "productName"}, 10, ClassificationPublic, 10},
		{"internal wide table", []string{"a", "b", "c", "d", "e", "f"}, 10, ClassificationInternal, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := c.ClassifyFields(tt.fields, tt.records)
			assert.Equal(t, tt.wantClass, result.Classification)
			assert.Equal(t, tt.wantScore, result.SensitivityScore)
			assert.NotEmpty(t, result.RetentionRequirement)
		})
	}
}

func TestClassifyFieldsCategoriesAndRights(t *testing.T) {
	c := NewSensitivityClassifier()

	restricted := c.ClassifyFields([]string{"medical_record_id"}, 10)
	assert.Equal(t, []string{CategoryFinancial, CategoryMedical}, restricted.Categories)
	assert.Equal(t, []string{"access", "erasure", "portability"}, restricted.SubjectRights)
	assert.Len(t, restricted.ProcessingRestrictions, 3)

	confidential := c.ClassifyFields([]string{"Customer-Email"}, 10)
	assert.Equal(t, []string{CategoryPII}, confidential.Categories)
	assert.Equal(t, []string{"access", "rectification"}, confidential.SubjectRights)

	public := c.ClassifyFields(nil, 0)
	assert.Equal(t, ClassificationPublic, public.Classification)
	assert.NotNil(t, public.Categories)
	assert.NotNil(t, public.SubjectRights)
}

func TestClassifyFindings(t *testing.T) {
	c := NewSensitivityClassifier()

	t.Run("critical and sensitive findings", func(t *testing.T) {
		findings := []utils.Finding{{Type: "ssn"}, {Type: "email"}}
		result := c.ClassifyFindings(findings, FieldData{"ssn": make([]interface{}, 10)})
		assert.Equal(t, ClassificationRestricted, result.Classification)
		assert.Equal(t, 90, result.SensitivityScore)
		assert.Equal(t, []string{CategoryPII}, result.Categories)
		assert.Equal(t, []string{"access", "erasure", "portability", "rectification"}, result.SubjectRights)
	})

	t.Run("financial finding with large volume", func(t *testing.T) {
		findings := []utils.Finding{{Type: "credit_card"}}
		result := c.ClassifyFindings(findings, FieldData{"card": make([]interface{}, 20000)})
		assert.Equal(t, 80, result.SensitivityScore)
		assert.Equal(t, ClassificationRestricted, result.Classification)
		assert.Equal(t, []string{CategoryFinancial}, result.Categories)
		assert.Contains(t, result.ProcessingRestrictions, RestrictionDPIARequired)
	})

	t.Run("sensitive only", func(t *testing.T) {
		findings := []utils.Finding{{Type: "phone"}}
		result := c.ClassifyFindings(findings, FieldData{"phone": make([]interface{}, 2000)})
		assert.Equal(t, 40, result.SensitivityScore)
		assert.Equal(t, ClassificationInternal, result.Classification)
	})

	t.Run("no findings", func(t *testing.T) {
		result := c.ClassifyFindings(nil, nil)
		assert.Equal(t, 0, result.SensitivityScore)
		assert.Equal(t, ClassificationPublic, result.Classification)
		assert.Empty(t, result.Categories)
	})
}

func TestFindingTypeSets(t *testing.T) {
	assert.True(t, IsCriticalFindingType("passport"))
	assert.False(t, IsCriticalFindingType("email"))
	assert.True(t, IsSensitiveFindingType("drivers_license"))
	assert.False(t, IsSensitiveFindingType("ssn"))
}
