package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDirectKeyIsOrderIndependent(t *testing.T) {
	assert.Equal(t, DirectKey("user-a", "user-b"), DirectKey("user-b", "user-a"))
	assert.Equal(t, "dm:user-a:user-b", DirectKey("user-b", "user-a"))
}

func TestBusinessKeyIsPerUser(t *testing.T) {
	assert.NotEqual(t, BusinessKey("biz-1", "user-a"), BusinessKey("biz-1", "user-b"))
	assert.Equal(t, "biz:biz-1:user-a", BusinessKey("biz-1", "user-a"))
}
