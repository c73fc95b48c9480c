package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Asmit-coder-Arduino/TTS/internal/protocol"
	"github.com/Asmit-coder-Arduino/TTS/internal/speech"
)

// handleGenerateSpeechWS runs one generation per connection, streaming
// progress events while paragraphs are synthesized and assembled.
func (s *Server) handleGenerateSpeechWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	outbound := make(chan any, 64)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-outbound:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	conn.SetReadLimit(2 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))

	req, err := readGenerateRequest(conn)
	if err != nil {
		sendWS(ctx, outbound, protocol.GenerationFailed{
			Type:  protocol.TypeGenerationFailed,
			Code:  "invalid_client_message",
			Error: err.Error(),
		})
		close(outbound)
		<-writerDone
		return
	}

	paragraphs := len(req.Request.Paragraphs)
	notify := func(ev speech.ProgressEvent) {
		msg := progressMessage(ev, paragraphs)
		if msg == nil {
			return
		}
		select {
		case outbound <- msg:
		case <-ctx.Done():
		}
	}

	res, err := s.generator.Generate(ctx, req.Request, notify)
	if err != nil {
		sendWS(ctx, outbound, protocol.GenerationFailed{
			Type:  protocol.TypeGenerationFailed,
			Code:  failureCode(err),
			Error: err.Error(),
		})
	} else {
		sendWS(ctx, outbound, protocol.GenerationCompleted{
			Type:           protocol.TypeGenerationCompleted,
			AudioURL:       "/api/audio/" + res.AudioName,
			WordsUsed:      res.WordsUsed,
			TotalWordsUsed: res.TotalWordsUsed,
			WordsRemaining: res.WordsRemaining,
			MonthlyLimit:   res.MonthlyLimit,
		})
	}

	close(outbound)
	<-writerDone
}

func readGenerateRequest(conn *websocket.Conn) (protocol.GenerateRequest, error) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return protocol.GenerateRequest{}, err
		}
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			return protocol.GenerateRequest{}, err
		}
		req, ok := parsed.(protocol.GenerateRequest)
		if !ok {
			return protocol.GenerateRequest{}, errors.New("expected a generate_request message")
		}
		return req, nil
	}
}

// sendWS blocks until the frame is queued; a write error cancels ctx
// and unblocks it. Terminal frames must never be dropped.
func sendWS(ctx context.Context, outbound chan<- any, msg any) {
	select {
	case outbound <- msg:
	case <-ctx.Done():
	}
}

func progressMessage(ev speech.ProgressEvent, paragraphs int) any {
	switch ev.Stage {
	case speech.StageStarted:
		return protocol.GenerationStarted{
			Type:           protocol.TypeGenerationStarted,
			RequestedWords: ev.Words,
			Paragraphs:     paragraphs,
		}
	case speech.StageSynthesized:
		return protocol.ParagraphSynthesized{
			Type:           protocol.TypeParagraphSynthesized,
			ParagraphIndex: ev.ParagraphIndex,
			ParagraphID:    ev.ParagraphID,
			Words:          ev.Words,
		}
	case speech.StageAssembling:
		return protocol.Assembling{
			Type:     protocol.TypeAssembling,
			Segments: ev.Segments,
		}
	default:
		return nil
	}
}

func failureCode(err error) string {
	var qe *speech.QuotaError
	if errors.As(err, &qe) {
		return "quota_exceeded"
	}
	switch statusForGenerationError(err) {
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusBadGateway:
		return "upstream_error"
	default:
		return "internal_error"
	}
}
