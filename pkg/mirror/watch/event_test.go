package watch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventKind_StringRendersLowercaseNames(t *testing.T) {
	assert.Equal(t, "create", EventCreate.String())
	assert.Equal(t, "modify", EventModify.String())
	assert.Equal(t, "remove", EventRemove.String())
	assert.Equal(t, "other", EventOther.String())
}
