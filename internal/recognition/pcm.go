package recognition

import (
	"fmt"
	"log/slog"
	"sync"
)

// PCMFormat describes 16-bit little-endian PCM audio.
type PCMFormat struct {
	SampleRate int
	Channels   int
}

func (f PCMFormat) String() string {
	switch {
	case f.Channels == 1:
		return fmt.Sprintf("%dHz mono", f.SampleRate)
	case f.Channels == 2:
		return fmt.Sprintf("%dHz stereo", f.SampleRate)
	default:
		return fmt.Sprintf("%dHz %dch", f.SampleRate, f.Channels)
	}
}

// PCMConverter turns client capture audio into the mono format a provider
// stream was opened with. Only mono and stereo sources are supported.
// Create one per connection; it is not safe for concurrent use.
type PCMConverter struct {
	src, dst PCMFormat
	log      *slog.Logger

	warnedOdd sync.Once
}

// NewPCMConverter returns a converter from src to dst. A zero src field is
// taken from dst.
func NewPCMConverter(src, dst PCMFormat, log *slog.Logger) (*PCMConverter, error) {
	if src.SampleRate == 0 {
		src.SampleRate = dst.SampleRate
	}
	if src.Channels == 0 {
		src.Channels = dst.Channels
	}
	if src.SampleRate < 0 || dst.SampleRate <= 0 {
		return nil, fmt.Errorf("recognition: invalid sample rate %d -> %d", src.SampleRate, dst.SampleRate)
	}
	if src.Channels < 1 || src.Channels > 2 || dst.Channels != 1 {
		return nil, fmt.Errorf("recognition: unsupported conversion %s -> %s", src, dst)
	}
	if log == nil {
		log = slog.Default()
	}
	return &PCMConverter{src: src, dst: dst, log: log}, nil
}

// Passthrough reports whether chunks are forwarded unchanged.
func (c *PCMConverter) Passthrough() bool { return c.src == c.dst }

// Convert downmixes and resamples one chunk. Chunks that are not whole
// sample frames are dropped and yield nil.
func (c *PCMConverter) Convert(chunk []byte) []byte {
	frame := 2 * c.src.Channels
	if len(chunk)%frame != 0 {
		c.warnedOdd.Do(func() {
			c.log.Warn("recognition: dropping misaligned audio chunk",
				"bytes", len(chunk),
				"format", c.src.String(),
			)
		})
		return nil
	}
	if c.Passthrough() {
		return chunk
	}
	pcm := chunk
	if c.src.Channels == 2 {
		pcm = stereoToMono(pcm)
	}
	return resampleMono16(pcm, c.src.SampleRate, c.dst.SampleRate)
}

// stereoToMono averages each left/right pair.
func stereoToMono(pcm []byte) []byte {
	frames := len(pcm) / 4
	out := make([]byte, frames*2)
	for i := range frames {
		l := int32(sample16(pcm, i*2))
		r := int32(sample16(pcm, i*2+1))
		putSample16(out, i, int16((l+r)/2))
	}
	return out
}

// resampleMono16 resamples by linear interpolation.
func resampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate == dstRate || len(pcm) < 2 {
		return pcm
	}
	n := len(pcm) / 2
	outN := int(int64(n) * int64(dstRate) / int64(srcRate))
	if outN == 0 {
		return nil
	}
	out := make([]byte, outN*2)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range outN {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)

		s0 := sample16(pcm, idx)
		s1 := s0
		if idx+1 < n {
			s1 = sample16(pcm, idx+1)
		}
		putSample16(out, i, int16(float64(s0)*(1-frac)+float64(s1)*frac))
	}
	return out
}

func sample16(pcm []byte, i int) int16 {
	return int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
}

func putSample16(pcm []byte, i int, v int16) {
	pcm[i*2] = byte(v)
	pcm[i*2+1] = byte(v >> 8)
}
