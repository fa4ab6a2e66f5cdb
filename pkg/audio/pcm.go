package audio

// PCM helpers shared by transport adapters. Samples are 16-bit little-endian
// throughout; functions operating on []int16 treat stereo data as interleaved
// L/R pairs.

// Format describes the sample rate and channel count of a PCM stream.
type Format struct {
	SampleRate int
	Channels   int
}

// Int16s reinterprets little-endian PCM bytes as int16 samples. A trailing
// odd byte is dropped.
func Int16s(b []byte) []int16 {
	pcm := make([]int16, len(b)/2)
	for i := range pcm {
		pcm[i] = int16(b[i*2]) | int16(b[i*2+1])<<8
	}
	return pcm
}

// Bytes encodes int16 samples as little-endian PCM bytes.
func Bytes(pcm []int16) []byte {
	b := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		b[i*2] = byte(s)
		b[i*2+1] = byte(s >> 8)
	}
	return b
}

// MonoToStereo duplicates each mono sample into an L/R pair.
func MonoToStereo(pcm []int16) []int16 {
	out := make([]int16, len(pcm)*2)
	for i, s := range pcm {
		out[i*2] = s
		out[i*2+1] = s
	}
	return out
}

// StereoToMono averages each L/R pair. int32 arithmetic avoids overflow.
func StereoToMono(pcm []int16) []int16 {
	frames := len(pcm) / 2
	out := make([]int16, frames)
	for i := range frames {
		out[i] = int16((int32(pcm[i*2]) + int32(pcm[i*2+1])) / 2)
	}
	return out
}

// Resample converts interleaved PCM from srcRate to dstRate using linear
// interpolation. channels must be 1 or 2. If the rates match (or either is
// non-positive) the input is returned unchanged.
func Resample(pcm []int16, channels, srcRate, dstRate int) []int16 {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate {
		return pcm
	}
	if channels < 1 || channels > 2 {
		return pcm
	}
	srcFrames := len(pcm) / channels
	if srcFrames < 2 {
		return pcm
	}
	dstFrames := int(int64(srcFrames) * int64(dstRate) / int64(srcRate))
	if dstFrames == 0 {
		return nil
	}

	out := make([]int16, dstFrames*channels)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstFrames {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		next := srcIdx + 1
		if next >= srcFrames {
			next = srcIdx
		}
		for c := range channels {
			s0 := float64(pcm[srcIdx*channels+c])
			s1 := float64(pcm[next*channels+c])
			out[i*channels+c] = int16(s0*(1-frac) + s1*frac)
		}
	}
	return out
}

// Convert transforms pcm from src to dst format: resample first, then channel
// conversion. Matching formats return the input unchanged.
func Convert(pcm []int16, src, dst Format) []int16 {
	if src == dst {
		return pcm
	}
	out := Resample(pcm, src.Channels, src.SampleRate, dst.SampleRate)
	switch {
	case src.Channels == 1 && dst.Channels == 2:
		out = MonoToStereo(out)
	case src.Channels == 2 && dst.Channels == 1:
		out = StereoToMono(out)
	}
	return out
}

// Gain scales samples in place by v, clamping to the int16 range.
func Gain(pcm []int16, v float64) {
	if v == 1.0 {
		return
	}
	for i, s := range pcm {
		scaled := float64(s) * v
		switch {
		case scaled > 32767:
			pcm[i] = 32767
		case scaled < -32768:
			pcm[i] = -32768
		default:
			pcm[i] = int16(scaled)
		}
	}
}
