package events

import (
	"encoding/json"
	"fmt"
)

var serverEvents = map[string]func() Event{
	TypeError:                              func() Event { return &ErrorEvent{} },
	TypeSessionCreated:                     func() Event { return &SessionCreatedEvent{} },
	TypeSessionUpdated:                     func() Event { return &SessionUpdatedEvent{} },
	TypeConversationItemCreated:            func() Event { return &ConversationItemCreatedEvent{} },
	TypeConversationItemTruncated:          func() Event { return &ConversationItemTruncatedEvent{} },
	TypeConversationItemDeleted:            func() Event { return &ConversationItemDeletedEvent{} },
	TypeInputAudioTranscriptionCompleted:   func() Event { return &InputAudioTranscriptionCompletedEvent{} },
	TypeInputAudioTranscriptionFailed:      func() Event { return &InputAudioTranscriptionFailedEvent{} },
	TypeInputAudioBufferCommitted:          func() Event { return &InputAudioBufferCommittedEvent{} },
	TypeInputAudioBufferCleared:            func() Event { return &InputAudioBufferClearedEvent{} },
	TypeInputAudioBufferSpeechStarted:      func() Event { return &SpeechStartedEvent{} },
	TypeInputAudioBufferSpeechStopped:      func() Event { return &SpeechStoppedEvent{} },
	TypeResponseCreated:                    func() Event { return &ResponseCreatedEvent{} },
	TypeResponseDone:                       func() Event { return &ResponseDoneEvent{} },
	TypeResponseOutputItemAdded:            func() Event { return &ResponseOutputItemAddedEvent{} },
	TypeResponseOutputItemDone:             func() Event { return &ResponseOutputItemDoneEvent{} },
	TypeResponseContentPartAdded:           func() Event { return &ResponseContentPartAddedEvent{} },
	TypeResponseContentPartDone:            func() Event { return &ResponseContentPartDoneEvent{} },
	TypeResponseTextDelta:                  func() Event { return &ResponseTextDeltaEvent{} },
	TypeResponseTextDone:                   func() Event { return &ResponseTextDoneEvent{} },
	TypeResponseAudioTranscriptDelta:       func() Event { return &ResponseAudioTranscriptDeltaEvent{} },
	TypeResponseAudioTranscriptDone:        func() Event { return &ResponseAudioTranscriptDoneEvent{} },
	TypeResponseAudioDelta:                 func() Event { return &ResponseAudioDeltaEvent{} },
	TypeResponseAudioDone:                  func() Event { return &ResponseAudioDoneEvent{} },
	TypeResponseFunctionCallArgumentsDelta: func() Event { return &ResponseFunctionCallArgumentsDeltaEvent{} },
	TypeResponseFunctionCallArgumentsDone:  func() Event { return &ResponseFunctionCallArgumentsDoneEvent{} },
	TypeRateLimitsUpdated:                  func() Event { return &RateLimitsUpdatedEvent{} },
}

// ParseServer decodes a server event. Unknown types decode to *Opaque.
func ParseServer(data []byte) (Event, error) {
	var base BaseEvent
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("decode event envelope: %w", err)
	}
	if base.Type == "" {
		return nil, fmt.Errorf("event without type")
	}

	newEvent, ok := serverEvents[base.Type]
	if !ok {
		raw := make(json.RawMessage, len(data))
		copy(raw, data)
		return &Opaque{BaseEvent: base, Raw: raw}, nil
	}

	evt := newEvent()
	if err := json.Unmarshal(data, evt); err != nil {
		return nil, fmt.Errorf("decode %s: %w", base.Type, err)
	}
	return evt, nil
}
