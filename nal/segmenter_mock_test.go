package nal

import (
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/streamcore/esparser/esio"
)

// TestFetchPropagatesReaderError drives the segmenter off a MockByteReader
// so a transport failure (as opposed to ordinary EOF) can be injected
// deterministically, without needing a real flaky reader.
func TestFetchPropagatesReaderError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	r := esio.NewMockByteReader(ctrl)
	readErr := errors.New("transport reset")
	r.EXPECT().Read(gomock.Any()).Return(0, readErr)
	r.EXPECT().IsEOF().Return(false, nil)

	seg := NewSegmenter(r)
	_, err := seg.Fetch()
	require.Error(t, err)
	require.Contains(t, err.Error(), "transport reset")
}
