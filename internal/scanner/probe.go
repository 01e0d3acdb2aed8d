package scanner

import (
	"github.com/asticode/go-astiav"

	"github.com/nghego/nghego/internal/apperr"
)

// audioProperties are the stream facts dhowden/tag's pure-tag reader
// cannot give us; probing them directly through go-astiav supersedes
// the teacher's separate ffprobe dependency (see DESIGN.md).
type audioProperties struct {
	Duration   float64
	Bitrate    int
	SampleRate int
	Channels   int
	Format     string
}

func probeAudioProperties(path string) (audioProperties, error) {
	fmtCtx := astiav.AllocFormatContext()
	if fmtCtx == nil {
		return audioProperties{}, apperr.New(apperr.KindInternal, "allocate probe format context")
	}
	defer fmtCtx.Free()

	if err := fmtCtx.OpenInput(path, nil, nil); err != nil {
		return audioProperties{}, apperr.Wrap(apperr.KindMediaParse, "open input for probe", err)
	}
	defer fmtCtx.CloseInput()

	if err := fmtCtx.FindStreamInfo(nil); err != nil {
		return audioProperties{}, apperr.Wrap(apperr.KindMediaParse, "probe stream info", err)
	}

	for _, s := range fmtCtx.Streams() {
		params := s.CodecParameters()
		if params.MediaType() != astiav.MediaTypeAudio {
			continue
		}
		props := audioProperties{
			SampleRate: params.SampleRate(),
			Channels:   params.ChannelLayout().Channels(),
			Format:     fmtCtx.InputFormat().Name(),
		}
		if br := params.BitRate(); br > 0 {
			props.Bitrate = int(br / 1000)
		} else if fmtCtx.BitRate() > 0 {
			props.Bitrate = int(fmtCtx.BitRate() / 1000)
		}
		if dur := s.Duration(); dur > 0 {
			tb := s.TimeBase()
			props.Duration = float64(dur) * float64(tb.Num()) / float64(tb.Den())
		}
		if props.Duration == 0 && fmtCtx.Duration() > 0 {
			props.Duration = float64(fmtCtx.Duration()) / float64(astiav.TimeBase().Den())
		}
		return props, nil
	}
	return audioProperties{}, apperr.New(apperr.KindMediaParse, "no audio stream found")
}
