package reply

import "encoding/json"

// Known facial expressions. Values outside this set are passed through as-is.
const (
	ExpressionSmile     = "smile"
	ExpressionSad       = "sad"
	ExpressionAngry     = "angry"
	ExpressionSurprised = "surprised"
	ExpressionFunnyFace = "funnyFace"
	ExpressionDefault   = "default"
)

// Known animation clips. Values outside this set are passed through as-is.
const (
	AnimationTalking0  = "Talking_0"
	AnimationTalking1  = "Talking_1"
	AnimationTalking2  = "Talking_2"
	AnimationCrying    = "Crying"
	AnimationLaughing  = "Laughing"
	AnimationRumba     = "Rumba"
	AnimationIdle      = "Idle"
	AnimationTerrified = "Terrified"
	AnimationAngry     = "Angry"
)

// DefaultMaxSegments caps how many segments one reply may carry.
const DefaultMaxSegments = 3

// TimingTrack is the mouth-cue document produced by the viseme extractor.
// It is never interpreted, only carried to the response.
type TimingTrack = json.RawMessage

// Segment is one spoken beat of the avatar reply.
type Segment struct {
	Text             string      `json:"text"`
	FacialExpression string      `json:"facialExpression"`
	Animation        string      `json:"animation"`
	Audio            string      `json:"audio,omitempty"`
	Lipsync          TimingTrack `json:"lipsync,omitempty"`
}

// Ready reports whether both playback assets have been attached.
func (s Segment) Ready() bool {
	return s.Audio != "" && len(s.Lipsync) > 0
}
