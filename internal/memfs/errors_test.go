package memfs

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError(t *testing.T) {
	err := newError(OpOpen, "/x", ErrNotFound)
	assert.Equal(t, "open /x: file does not exist", err.Error())
	assert.ErrorIs(t, err, fs.ErrNotExist)

	var target *Error
	assert.True(t, errors.As(fmt.Errorf("wrapped: %w", err), &target))
	assert.Equal(t, OpOpen, target.Op)
	assert.Equal(t, "/x", target.Path)

	noPath := newError(OpTempDir, "", ErrNotFound)
	assert.Equal(t, "tempdir: file does not exist", noPath.Error())
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		kind Kind
	}{
		{nil, KindOther},
		{ErrNotFound, KindNotFound},
		{newError(OpOpen, "/a", ErrAlreadyExists), KindAlreadyExists},
		{fmt.Errorf("seek: %w", ErrInvalidInput), KindInvalidInput},
		{ErrInvalidData, KindInvalidData},
		{ErrUnsupported, KindUnsupported},
		{ErrLeadsIntoFile, KindOther},
		{ErrRenameOntoDir, KindOther},
		{ErrSymlinkLoop, KindOther},
		{ErrNotEmpty, KindOther},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.err), func(t *testing.T) {
			assert.Equal(t, tt.kind, KindOf(tt.err))
		})
	}

	assert.True(t, IsNotFound(newError(OpRead, "/a", ErrNotFound)))
	assert.Equal(t, "not found", KindNotFound.String())
}
