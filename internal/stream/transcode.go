package stream

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/asticode/go-astiav"

	"github.com/nghego/nghego/internal/apperr"
)

// TranscodeFormat is a supported transcode output container/codec pair.
type TranscodeFormat string

const (
	FormatMP3  TranscodeFormat = "mp3"
	FormatAAC  TranscodeFormat = "aac"
	FormatOpus TranscodeFormat = "opus"
)

// TranscodeRequest describes a requested transcode: source path (local,
// already resolved by the caller through fs.Backend.SourceForTranscode),
// target format, bitrate in kbps (0 = format default), and an optional
// seek offset in seconds for scrubbing.
type TranscodeRequest struct {
	SourcePath string
	Format     TranscodeFormat
	Bitrate    int
	SeekSec    float64
}

var defaultBitrate = map[TranscodeFormat]int{
	FormatMP3:  192,
	FormatAAC:  192,
	FormatOpus: 128,
}

var encoderName = map[TranscodeFormat]string{
	FormatMP3:  "libmp3lame",
	FormatAAC:  "aac",
	FormatOpus: "libopus",
}

var muxerName = map[TranscodeFormat]string{
	FormatMP3:  "mp3",
	FormatAAC:  "adts",
	FormatOpus: "ogg",
}

// chunkWriter feeds encoded bytes into a bounded channel; when its
// context is cancelled, a write that cannot hand off its chunk returns
// io.ErrClosedPipe so the pipeline unwinds.
type chunkWriter struct {
	ctx context.Context
	out chan<- []byte
}

func (w *chunkWriter) Write(p []byte) (int, error) {
	buf := make([]byte, len(p))
	copy(buf, p)
	select {
	case w.out <- buf:
		return len(p), nil
	case <-w.ctx.Done():
		return 0, io.ErrClosedPipe
	}
}

// Transcoder runs a decode -> filter -> encode graph over libav via
// go-astiav, writing the encoded output to a bounded channel that the
// HTTP handler drains into the response body.
type Transcoder struct{}

func NewTranscoder() *Transcoder { return &Transcoder{} }

// Transcode starts the pipeline and returns a channel of encoded chunks.
// The channel is closed when the input is exhausted or an error occurs;
// Err should be checked after the channel closes.
type Result struct {
	Chunks <-chan []byte
	Err    func() error
}

func (t *Transcoder) Transcode(ctx context.Context, req TranscodeRequest) (*Result, error) {
	bitrate := req.Bitrate
	if bitrate == 0 {
		bitrate = defaultBitrate[req.Format]
	}
	encName, ok := encoderName[req.Format]
	if !ok {
		return nil, apperr.New(apperr.KindInvalidParameter, fmt.Sprintf("unsupported transcode format %q", req.Format))
	}
	muxName := muxerName[req.Format]

	out := make(chan []byte, 32)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		errc <- runPipeline(ctx, req, encName, muxName, bitrate, out)
	}()

	var capturedErr error
	return &Result{
		Chunks: out,
		Err: func() error {
			select {
			case capturedErr = <-errc:
			default:
			}
			return capturedErr
		},
	}, nil
}

func runPipeline(ctx context.Context, req TranscodeRequest, encName, muxName string, bitrate int, out chan<- []byte) (retErr error) {
	astiav.SetLogLevel(astiav.LogLevelError)

	inputFmtCtx := astiav.AllocFormatContext()
	if inputFmtCtx == nil {
		return apperr.New(apperr.KindInternal, "allocate input format context")
	}
	defer inputFmtCtx.Free()

	if err := inputFmtCtx.OpenInput(req.SourcePath, nil, nil); err != nil {
		return apperr.Wrap(apperr.KindTranscode, "open input", err)
	}
	defer inputFmtCtx.CloseInput()

	if err := inputFmtCtx.FindStreamInfo(nil); err != nil {
		return apperr.Wrap(apperr.KindTranscode, "find stream info", err)
	}

	var audioStream *astiav.Stream
	for _, s := range inputFmtCtx.Streams() {
		if s.CodecParameters().MediaType() == astiav.MediaTypeAudio {
			audioStream = s
			break
		}
	}
	if audioStream == nil {
		return apperr.New(apperr.KindTranscode, "no audio stream in source")
	}

	decCodec := astiav.FindDecoder(audioStream.CodecParameters().CodecID())
	if decCodec == nil {
		return apperr.New(apperr.KindTranscode, "no decoder for source codec")
	}
	decCtx := astiav.AllocCodecContext(decCodec)
	if decCtx == nil {
		return apperr.New(apperr.KindInternal, "allocate decoder context")
	}
	defer decCtx.Free()
	if err := audioStream.CodecParameters().ToCodecContext(decCtx); err != nil {
		return apperr.Wrap(apperr.KindTranscode, "copy codec parameters to decoder", err)
	}
	if err := decCtx.Open(decCodec, nil); err != nil {
		return apperr.Wrap(apperr.KindTranscode, "open decoder", err)
	}

	encCodec := astiav.FindEncoderByName(encName)
	if encCodec == nil {
		return apperr.New(apperr.KindTranscode, fmt.Sprintf("encoder %q unavailable", encName))
	}
	encCtx := astiav.AllocCodecContext(encCodec)
	if encCtx == nil {
		return apperr.New(apperr.KindInternal, "allocate encoder context")
	}
	defer encCtx.Free()

	encCtx.SetSampleFormat(preferredSampleFormat(encCodec))
	encCtx.SetBitRate(int64(bitrate) * 1000)
	encCtx.SetTimeBase(astiav.NewRational(1, 48000))
	if req.Format == FormatOpus {
		encCtx.SetSampleRate(48000)
	} else {
		encCtx.SetSampleRate(decCtx.SampleRate())
	}
	encCtx.SetChannelLayout(decCtx.ChannelLayout())
	if testing.Testing() {
		encCtx.SetFlags(encCtx.Flags().Add(astiav.CodecContextFlagBitexact))
	}

	outputFmtCtx, err := astiav.AllocOutputFormatContext(nil, muxName, "")
	if err != nil || outputFmtCtx == nil {
		return apperr.Wrap(apperr.KindInternal, "allocate output format context", err)
	}
	defer outputFmtCtx.Free()
	if outputFmtCtx.OutputFormat().Flags().Has(astiav.FormatContextFlagGlobalHeader) {
		encCtx.SetFlags(encCtx.Flags().Add(astiav.CodecContextFlagGlobalHeader))
	}

	if err := encCtx.Open(encCodec, nil); err != nil {
		return apperr.Wrap(apperr.KindTranscode, "open encoder", err)
	}

	outStream := outputFmtCtx.NewStream(nil)
	if outStream == nil {
		return apperr.New(apperr.KindInternal, "allocate output stream")
	}
	if err := outStream.CodecParameters().FromCodecContext(encCtx); err != nil {
		return apperr.Wrap(apperr.KindTranscode, "copy codec parameters to output stream", err)
	}
	outStream.SetTimeBase(encCtx.TimeBase())

	graph, srcCtx, sinkCtx, err := buildFilterGraph(decCtx, encCtx, req.Format)
	if err != nil {
		return err
	}
	defer graph.Free()

	writer := &chunkWriter{ctx: ctx, out: out}
	ioCtx, err := astiav.AllocIOContext(4096, true, func(b []byte) (int, error) { return writer.Write(b) }, nil, nil)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "allocate io context", err)
	}
	defer ioCtx.Free()
	outputFmtCtx.SetPb(ioCtx)

	if req.SeekSec > 0 {
		ts := int64(req.SeekSec * float64(astiav.TimeBase().Den()))
		if err := inputFmtCtx.SeekFrame(audioStream.Index(), ts, astiav.NewSeekFlags(astiav.SeekFlagBackward)); err != nil {
			return apperr.Wrap(apperr.KindTranscode, "seek", err)
		}
	}

	if err := outputFmtCtx.WriteHeader(nil); err != nil {
		return apperr.Wrap(apperr.KindTranscode, "write header", err)
	}

	pkt := astiav.AllocPacket()
	defer pkt.Free()
	frame := astiav.AllocFrame()
	defer frame.Free()
	filtFrame := astiav.AllocFrame()
	defer filtFrame.Free()
	outPkt := astiav.AllocPacket()
	defer outPkt.Free()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := inputFmtCtx.ReadFrame(pkt); err != nil {
			if err == astiav.ErrEof {
				break
			}
			return apperr.Wrap(apperr.KindTranscode, "read frame", err)
		}
		if pkt.StreamIndex() != audioStream.Index() {
			pkt.Unref()
			continue
		}
		if err := decCtx.SendPacket(pkt); err != nil {
			pkt.Unref()
			return apperr.Wrap(apperr.KindTranscode, "send packet to decoder", err)
		}
		pkt.Unref()

		for {
			if err := decCtx.ReceiveFrame(frame); err != nil {
				break
			}
			if err := srcCtx.AddFrame(frame); err != nil {
				return apperr.Wrap(apperr.KindTranscode, "add frame to filter source", err)
			}
			frame.Unref()

			for {
				if err := sinkCtx.GetFrame(filtFrame); err != nil {
					break
				}
				if err := encCtx.SendFrame(filtFrame); err != nil {
					return apperr.Wrap(apperr.KindTranscode, "send frame to encoder", err)
				}
				filtFrame.Unref()
				if err := drainEncoder(encCtx, outputFmtCtx, outPkt); err != nil {
					return err
				}
			}
		}
	}

	if err := encCtx.SendFrame(nil); err != nil {
		return apperr.Wrap(apperr.KindTranscode, "flush encoder", err)
	}
	if err := drainEncoder(encCtx, outputFmtCtx, outPkt); err != nil {
		return err
	}
	if err := outputFmtCtx.WriteTrailer(); err != nil {
		return apperr.Wrap(apperr.KindTranscode, "write trailer", err)
	}
	return nil
}

func drainEncoder(encCtx *astiav.CodecContext, fmtCtx *astiav.FormatContext, pkt *astiav.Packet) error {
	for {
		if err := encCtx.ReceivePacket(pkt); err != nil {
			return nil
		}
		if err := fmtCtx.WriteFrame(pkt); err != nil {
			pkt.Unref()
			return apperr.Wrap(apperr.KindTranscode, "write frame", err)
		}
		pkt.Unref()
	}
}

// buildFilterGraph wires abuffer -> atrim -> aresample=soxr -> asetnsamples
// -> abuffersink for the resample/reframe step between decoder and
// encoder sample formats. The chain is the fixed string
// "atrim=start=0,aresample=resampler=soxr,asetnsamples=n=1024": it does
// not depend on the stream offset or on the encoder's frame size.
func buildFilterGraph(decCtx, encCtx *astiav.CodecContext, format TranscodeFormat) (*astiav.FilterGraph, *astiav.BuffersrcFilterContext, *astiav.BuffersinkFilterContext, error) {
	graph := astiav.AllocFilterGraph()
	if graph == nil {
		return nil, nil, nil, apperr.New(apperr.KindInternal, "allocate filter graph")
	}

	srcArgs := fmt.Sprintf("time_base=%d/%d:sample_rate=%d:sample_fmt=%s:channel_layout=%s",
		decCtx.TimeBase().Num(), decCtx.TimeBase().Den(), decCtx.SampleRate(), decCtx.SampleFormat().Name(), decCtx.ChannelLayout().String())
	srcFilter := astiav.FindFilterByName("abuffer")
	srcCtx, err := graph.NewFilterContext(srcFilter, "in", srcArgs)
	if err != nil {
		graph.Free()
		return nil, nil, nil, apperr.Wrap(apperr.KindTranscode, "create abuffer filter", err)
	}

	sinkFilter := astiav.FindFilterByName("abuffersink")
	sinkCtx, err := graph.NewFilterContext(sinkFilter, "out", "")
	if err != nil {
		graph.Free()
		return nil, nil, nil, apperr.Wrap(apperr.KindTranscode, "create abuffersink filter", err)
	}

	chain := "atrim=start=0,aresample=resampler=soxr,asetnsamples=n=1024"
	inputs := astiav.AllocFilterInOut()
	defer inputs.Free()
	outputs := astiav.AllocFilterInOut()
	defer outputs.Free()

	outputs.SetName("in")
	outputs.SetFilterContext(srcCtx.FilterContext())
	outputs.SetPadIdx(0)
	outputs.SetNext(nil)

	inputs.SetName("out")
	inputs.SetFilterContext(sinkCtx.FilterContext())
	inputs.SetPadIdx(0)
	inputs.SetNext(nil)

	if err := graph.ParseSegment(chain, inputs, outputs); err != nil {
		graph.Free()
		return nil, nil, nil, apperr.Wrap(apperr.KindTranscode, "parse filter chain", err)
	}
	if err := graph.Configure(); err != nil {
		graph.Free()
		return nil, nil, nil, apperr.Wrap(apperr.KindTranscode, "configure filter graph", err)
	}

	return graph, astiav.NewBuffersrcFilterContext(srcCtx), astiav.NewBuffersinkFilterContext(sinkCtx), nil
}

func preferredSampleFormat(codec *astiav.Codec) astiav.SampleFormat {
	formats := codec.SampleFormats()
	if len(formats) == 0 {
		return astiav.SampleFormatS16
	}
	return formats[0]
}
