package vars

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo(t *testing.T) {
	info := Info()
	assert.Equal(t, Name, info.Name)
	assert.Equal(t, Version, info.Version)
	assert.Equal(t, License, info.License)
	assert.Equal(t, CommitShort(), info.CommitShort)
}

func TestCommitShort(t *testing.T) {
	orig := Commit
	t.Cleanup(func() { Commit = orig })

	Commit = "0123456789abcdef"
	assert.Equal(t, "0123456", CommitShort())

	Commit = "abc"
	assert.Equal(t, "abc", CommitShort())
}

func TestUserAgent(t *testing.T) {
	assert.Equal(t, Name+"/"+Version+" (+"+URL+")", UserAgent())
}
