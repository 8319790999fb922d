package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryCacheKeyStableUnderReordering(t *testing.T) {
	a := queryCacheKey("What are the payment terms?", []string{"msa", "sow1"})
	b := queryCacheKey("what  are the payment terms?", []string{"sow1", "msa"})

	assert.Equal(t, a, b)
}

func TestQueryCacheKeyDistinguishesSelections(t *testing.T) {
	base := queryCacheKey("What are the payment terms?", []string{"msa"})

	assert.NotEqual(t, base, queryCacheKey("What are the payment terms?", []string{"msa", "sow1"}))
	assert.NotEqual(t, base, queryCacheKey("What are the termination terms?", []string{"msa"}))
}
