package imaging

// FrameSeq decodes an ordered sequence of base64-encoded frames one at a
// time, so a liveness batch never materializes every raster at once.
type FrameSeq struct {
	frames   []string
	maxBytes int64
	idx      int
}

// NewFrameSeq wraps the raw frame strings. Nothing is decoded until Next.
func NewFrameSeq(frames []string, maxBytes int64) *FrameSeq {
	return &FrameSeq{frames: frames, maxBytes: maxBytes}
}

// Len returns the total number of frames, decoded or not.
func (s *FrameSeq) Len() int {
	return len(s.frames)
}

// Next decodes and returns the next frame. A non-nil error means this frame
// was undecodable; iteration continues with the following frame. The second
// return is false once the sequence is exhausted.
func (s *FrameSeq) Next() (*Image, error, bool) {
	if s.idx >= len(s.frames) {
		return nil, nil, false
	}
	raw := s.frames[s.idx]
	s.idx++

	img, err := DecodeBase64(raw, s.maxBytes)
	if err != nil {
		return nil, err, true
	}
	return img, nil, true
}

// Reset rewinds the sequence to the first frame.
func (s *FrameSeq) Reset() {
	s.idx = 0
}
