package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/satriahrh/sayword/domain/entities"
	"github.com/satriahrh/sayword/domain/repositories"
)

// GoogleSpeechToText implements SpeechToText for Google Cloud
type GoogleSpeechToText struct {
	client *speech.Client
	logger *zap.Logger
}

// NewGoogleSpeechToText creates a client using application default credentials
func NewGoogleSpeechToText(ctx context.Context, logger *zap.Logger) (*GoogleSpeechToText, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}
	return &GoogleSpeechToText{client: client, logger: logger}, nil
}

// Close releases the underlying client
func (g *GoogleSpeechToText) Close() error {
	return g.client.Close()
}

// InitRecognitionStreaming opens a streaming session that reports interim
// hypotheses and up to config.MaxAlternatives ranked alternatives
func (g *GoogleSpeechToText) InitRecognitionStreaming(ctx context.Context, config repositories.AudioConfig) (repositories.RecognitionStream, error) {
	encoding, err := getAudioEncoding(config.Encoding)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	stream, err := g.client.StreamingRecognize(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create streaming recognize: %w", classify(err))
	}

	maxAlternatives := config.MaxAlternatives
	if maxAlternatives < 1 {
		maxAlternatives = 1
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        encoding,
					SampleRateHertz: int32(config.SampleRate),
					LanguageCode:    config.Language,
					MaxAlternatives: int32(maxAlternatives),
				},
				InterimResults:  true,
				SingleUtterance: true,
			},
		},
	}); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to send streaming config: %w", classify(err))
	}

	g.logger.Debug("Google recognition stream opened",
		zap.String("language", config.Language),
		zap.Int("sampleRate", config.SampleRate),
		zap.Int("maxAlternatives", maxAlternatives))

	return newGoogleStream(stream, cancel, g.logger), nil
}

// recognizeStream is the part of the gRPC stream the session uses
type recognizeStream interface {
	Send(*speechpb.StreamingRecognizeRequest) error
	Recv() (*speechpb.StreamingRecognizeResponse, error)
	CloseSend() error
}

// GoogleRecognitionStream forwards audio to Google and reports results
type GoogleRecognitionStream struct {
	stream  recognizeStream
	cancel  context.CancelFunc
	logger  *zap.Logger
	results chan repositories.RecognitionResult

	mu        sync.Mutex
	finished  bool
	closeOnce sync.Once
}

func newGoogleStream(stream recognizeStream, cancel context.CancelFunc, logger *zap.Logger) *GoogleRecognitionStream {
	g := &GoogleRecognitionStream{
		stream:  stream,
		cancel:  cancel,
		logger:  logger,
		results: make(chan repositories.RecognitionResult, 16),
	}
	go g.receiveResults()
	return g
}

// Stream sends an audio chunk
func (g *GoogleRecognitionStream) Stream(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.finished {
		return errors.New("stream already finished")
	}

	if err := g.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: data,
		},
	}); err != nil {
		return fmt.Errorf("failed to send audio data: %w", classify(err))
	}
	return nil
}

// Finish closes the send side; results keep flowing until Google commits
func (g *GoogleRecognitionStream) Finish() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.finished {
		return nil
	}
	g.finished = true

	if err := g.stream.CloseSend(); err != nil {
		return fmt.Errorf("failed to close send stream: %w", err)
	}
	return nil
}

// Results implements repositories.RecognitionStream
func (g *GoogleRecognitionStream) Results() <-chan repositories.RecognitionResult {
	return g.results
}

// Close cancels the stream. Safe to call more than once.
func (g *GoogleRecognitionStream) Close() error {
	g.closeOnce.Do(g.cancel)
	return nil
}

func (g *GoogleRecognitionStream) receiveResults() {
	defer close(g.results)

	for {
		resp, err := g.stream.Recv()
		if err == io.EOF {
			return
		}
		if err != nil {
			err = classify(err)
			if !errors.Is(err, repositories.ErrRecognizerAborted) {
				g.logger.Warn("Google recognition stream failed", zap.Error(err))
			}
			g.results <- repositories.RecognitionResult{Err: err}
			return
		}

		if st := resp.GetError(); st != nil && st.GetCode() != int32(codes.OK) {
			g.results <- repositories.RecognitionResult{Err: classify(status.ErrorProto(st))}
			return
		}

		for _, result := range resp.GetResults() {
			alternatives := convertAlternatives(result.GetAlternatives())
			if len(alternatives) == 0 {
				continue
			}
			g.results <- repositories.RecognitionResult{
				Alternatives: alternatives,
				IsFinal:      result.GetIsFinal(),
			}
		}
	}
}

func convertAlternatives(alts []*speechpb.SpeechRecognitionAlternative) []entities.RecognitionAlternative {
	out := make([]entities.RecognitionAlternative, 0, len(alts))
	for _, a := range alts {
		if a.GetTranscript() == "" {
			continue
		}
		out = append(out, entities.RecognitionAlternative{
			Transcript: a.GetTranscript(),
			Confidence: float64(a.GetConfidence()),
		})
	}
	return out
}

// classify wraps gRPC failures with the repository sentinel errors
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", repositories.ErrRecognizerAborted, err)
	}

	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.PermissionDenied, codes.Unauthenticated:
		return fmt.Errorf("%w: %s", repositories.ErrPermissionDenied, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return fmt.Errorf("%w: %s", repositories.ErrRecognizerUnavailable, st.Message())
	case codes.Canceled, codes.Aborted:
		return fmt.Errorf("%w: %s", repositories.ErrRecognizerAborted, st.Message())
	case codes.OutOfRange:
		// audio timeout without speech
		return fmt.Errorf("%w: %s", repositories.ErrNoSpeech, st.Message())
	}
	return err
}

// getAudioEncoding converts string encoding to Google Speech API enum
func getAudioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch encoding {
	case "WAV", "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}
