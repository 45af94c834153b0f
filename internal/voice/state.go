package voice

import "malluclub-leveling/internal/config"

// State is the closed set of voice activity states a tracked user can
// be in. Exactly one applies at a time; StateFromFlags resolves the
// raw gateway flags by priority.
type State int

const (
	StateDeafened State = iota
	StateMuted
	StateTalking
	StateStreaming
	StateOnCamera
)

func (s State) String() string {
	switch s {
	case StateDeafened:
		return "deafened"
	case StateMuted:
		return "muted"
	case StateTalking:
		return "talking"
	case StateStreaming:
		return "streaming"
	case StateOnCamera:
		return "camera"
	default:
		return "unknown"
	}
}

// Flags mirrors the gateway voice-state booleans we care about.
type Flags struct {
	Deaf      bool
	Mute      bool
	SelfDeaf  bool
	SelfMute  bool
	SelfVideo bool
	Streaming bool
}

// StateFromFlags maps raw flags to a State. Deafened wins over
// everything, then camera over streaming over talking; any mute flag
// without camera or streaming lands on Muted.
func StateFromFlags(f Flags) State {
	switch {
	case f.Deaf || f.SelfDeaf:
		return StateDeafened
	case f.SelfVideo:
		return StateOnCamera
	case f.Streaming:
		return StateStreaming
	case f.Mute || f.SelfMute:
		return StateMuted
	default:
		return StateTalking
	}
}

// Rate is XP per minute for the state. Deafened is always zero.
func Rate(rates config.RatesConfig, s State) int {
	switch s {
	case StateOnCamera:
		return rates.Camera
	case StateStreaming:
		return rates.Streaming
	case StateTalking:
		return rates.Talking
	case StateMuted:
		return rates.Muted
	default:
		return 0
	}
}
