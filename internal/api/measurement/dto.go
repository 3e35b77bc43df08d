package measurement

import "facemeasure/pkg/facesdk"

// Page → server message types.
const (
	ClientLoad   = "load"
	ClientUnload = "unload"
	ClientDebug  = "debug"
)

// Server → page message types.
const (
	ServerSession  = "session"
	ServerFeedback = "feedback"
	ServerComplete = "complete"
	ServerDebug    = "debug"
	ServerError    = "error"
)

type ElementDescriptor struct {
	Selector string `json:"selector" validate:"required"`
	Kind     string `json:"kind"`
	Width    int    `json:"width" validate:"gte=0"`
	Height   int    `json:"height" validate:"gte=0"`
}

type ClientMessage struct {
	Type      string              `json:"type" validate:"required,oneof=load unload debug"`
	UserAgent string              `json:"user_agent,omitempty"`
	Elements  []ElementDescriptor `json:"elements,omitempty" validate:"dive"`
}

type LoadRequest struct {
	UserAgent string
	Elements  []ElementDescriptor
}

type FeedbackPayload struct {
	Phase     string `json:"phase"`
	Border    string `json:"border"`
	GuideText string `json:"guide_text"`
}

type DebugInfo struct {
	SessionID    string          `json:"session_id"`
	State        string          `json:"state"`
	FaceInCircle bool            `json:"face_in_circle"`
	Lifecycle    string          `json:"lifecycle"`
	Feedback     FeedbackPayload `json:"feedback"`
}

type ServerMessage struct {
	Type      string           `json:"type"`
	SessionID string           `json:"session_id,omitempty"`
	Feedback  *FeedbackPayload `json:"feedback,omitempty"`
	Result    facesdk.Result   `json:"result,omitempty"`
	Debug     *DebugInfo       `json:"debug,omitempty"`
	Error     string           `json:"error,omitempty"`
	Code      string           `json:"code,omitempty"`
}

type SessionListResponse struct {
	Sessions []string `json:"sessions"`
}
