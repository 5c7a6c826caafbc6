package telnet

// OptionState tracks the negotiated state of a single option in both
// directions. WillResponse/DoResponse correlate outstanding negotiations:
// a matched acknowledgment decrements the matching counter by exactly one,
// and zero means no negotiation is in flight for that direction.
type OptionState struct {
	Will         bool
	Do           bool
	WantWill     bool
	WantDo       bool
	WillResponse int
	DoResponse   int
}

// OptionHandler lets a caller plug custom subnegotiation behavior into a
// registered option. A handler is exclusively owned by the Negotiator once
// registered; replacing it takes DeleteOptionHandler followed by
// AddOptionHandler, and neither checks whether the option is mid-handshake.
type OptionHandler interface {
	OptionCode() OptionCode

	// InitLocal/InitRemote report whether the negotiator should proactively
	// request WILL/DO for this option as soon as the handler is registered
	// on a connected negotiator.
	InitLocal() bool
	InitRemote() bool

	// AcceptLocal/AcceptRemote report whether an unsolicited DO/WILL from
	// the peer should be accepted for this option.
	AcceptLocal() bool
	AcceptRemote() bool

	// SetWill/SetDo are invoked by the negotiator when the corresponding
	// direction becomes active or inactive.
	SetWill(bool)
	SetDo(bool)

	// StartSubnegotiationLocal/StartSubnegotiationRemote are invoked once
	// the local/remote option turns on as a result of our own request; a
	// non-empty return is sent as an SB...SE subnegotiation.
	StartSubnegotiationLocal() []byte
	StartSubnegotiationRemote() []byte

	// AnswerSubnegotiation is invoked for inbound suboption data once the
	// built-in TERMINAL_TYPE path has been ruled out; a non-nil return is
	// sent back as an SB...SE reply.
	AnswerSubnegotiation(data []byte) []byte
}

// BaseOptionHandler is an embeddable no-op OptionHandler: callers needing
// only a subset of hooks can embed it and override the rest.
type BaseOptionHandler struct {
	Code OptionCode
}

func (b *BaseOptionHandler) OptionCode() OptionCode                { return b.Code }
func (b *BaseOptionHandler) InitLocal() bool                       { return false }
func (b *BaseOptionHandler) InitRemote() bool                      { return false }
func (b *BaseOptionHandler) AcceptLocal() bool                     { return false }
func (b *BaseOptionHandler) AcceptRemote() bool                    { return false }
func (b *BaseOptionHandler) SetWill(bool)                          {}
func (b *BaseOptionHandler) SetDo(bool)                            {}
func (b *BaseOptionHandler) StartSubnegotiationLocal() []byte      { return nil }
func (b *BaseOptionHandler) StartSubnegotiationRemote() []byte     { return nil }
func (b *BaseOptionHandler) AnswerSubnegotiation(_ []byte) []byte  { return nil }
