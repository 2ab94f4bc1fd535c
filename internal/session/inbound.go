package session

import (
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/talento-chat/internal/utils"
)

const maxFrameLogLength = 200

// DispatchInbound applies one server frame. Malformed frames never escape as
// errors; they become a system message.
func (c *Controller) DispatchInbound(raw []byte) {
	frame, err := ParseInbound(raw)
	if err != nil {
		c.log().Warn("unreadable frame",
			zap.Error(err),
			zap.String("frame", utils.TruncateForLog(string(raw), maxFrameLogLength)),
		)
		c.system(TextBadFrame)
		return
	}

	c.log().Debug("frame received", zap.String("type", frame.Type))

	switch frame.Type {
	case FramePong:
	case FrameGreeting:
		c.onGreeting(frame.Data)
	case FrameMessage:
		c.onMessage(frame.Data)
	case FrameCVProcessed:
		c.onCVProcessed(frame.Data)
	case FrameClose:
		c.onClose(frame.Data)
	case FrameError:
		text := frame.Message
		if text == "" {
			text = TextServerError
		}
		c.system(text)
	default:
		c.log().Warn("unknown frame type", zap.String("type", frame.Type))
		c.system(TextBadFrame)
	}
}

func (c *Controller) onGreeting(data *InboundData) {
	response := data.response()
	if response == "" {
		return
	}

	c.append(response, RoleAssistant)

	stage := data.stage()
	if stage == "" {
		stage = StageInitial
	}
	c.stage = stage

	if c.requestsCV(response) || stageWantsUploader(stage) {
		c.showUploader()
	}
}

func (c *Controller) onMessage(data *InboundData) {
	response := data.response()
	if response == "" {
		c.system(TextNoResponse)
		return
	}

	c.append(response, RoleAssistant)

	if stage := data.stage(); stage != "" {
		c.stage = stage
	}

	if data.CurrentTest != nil && data.CurrentQuestion != nil && *data.CurrentTest > 0 && *data.CurrentQuestion >= 0 {
		c.progress = Progress{CurrentTest: *data.CurrentTest, CurrentQuestion: *data.CurrentQuestion}
	}

	switch {
	case c.requestsCV(response) || stageWantsUploader(c.stage):
		c.showUploader()
	case c.uploader && c.stage != StageAwaitingCV:
		c.hideUploader()
	}

	if data.IsComplete {
		c.Terminate()
	}
}

func (c *Controller) onCVProcessed(data *InboundData) {
	if response := data.response(); response != "" {
		c.append(response, RoleAssistant)
		if stage := data.stage(); stage != "" {
			c.stage = stage
		}
	}

	c.hideUploader()
}

func (c *Controller) onClose(data *InboundData) {
	c.closed = true
	if data != nil && data.Message != "" {
		c.system(data.Message)
	}
	c.Terminate()
}

func (c *Controller) requestsCV(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range c.phrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func stageWantsUploader(stage string) bool {
	return stage == StageAwaitingCV || stage == StagePositionSelected
}
