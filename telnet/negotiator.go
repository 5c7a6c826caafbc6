package telnet

import (
	"io"
	"log/slog"
	"sync"
)

// byteState is the Negotiator's per-byte parsing state (spec.md §4.3).
type byteState int

const (
	stateData byteState = iota
	stateCR
	stateIAC
	stateWILL
	stateWONT
	stateDO
	stateDONT
	stateSB
	stateIACSB
)

const maxSuboptionLen = 256

// UnsolicitedPolicy decides whether an unsolicited DO/WILL for an option
// with no registered handler should be accepted. The default (nil) policy
// accepts only TERMINAL_TYPE when a terminal type has been configured,
// rejecting everything else — spec.md §9's open question about unsolicited
// DO is resolved by making this an explicit, overridable extension point
// rather than a silent accept-all or reject-all.
type UnsolicitedPolicy func(OptionCode) bool

// Negotiator drives the RFC 854 option negotiation state machine one byte
// at a time, invoking OptionHandler callbacks at the moments spec.md §4.3
// describes. It is safe for concurrent use: every send and every state
// mutation happens under the same lock. OutputWriter and
// DemuxReader.SendAYT write to the connection without taking this lock.
type Negotiator struct {
	mu     sync.Mutex
	w      io.Writer
	logger *slog.Logger

	handlers  map[OptionCode]OptionHandler
	states    map[OptionCode]*OptionState
	connected bool

	terminalType string
	unsolicited  UnsolicitedPolicy

	state     byteState
	subOption OptionCode
	subBuf    []byte
}

// NegotiatorOption configures a Negotiator at construction.
type NegotiatorOption func(*Negotiator)

// WithTerminalType enables the built-in TERMINAL_TYPE subnegotiation
// responder, replying IS <name> to a SEND request.
func WithTerminalType(name string) NegotiatorOption {
	return func(n *Negotiator) { n.terminalType = name }
}

// WithUnsolicitedPolicy overrides the default unsolicited-DO/WILL policy.
func WithUnsolicitedPolicy(p UnsolicitedPolicy) NegotiatorOption {
	return func(n *Negotiator) { n.unsolicited = p }
}

// WithNegotiatorLogger injects a structured logger; defaults to slog.Default().
func WithNegotiatorLogger(l *slog.Logger) NegotiatorOption {
	return func(n *Negotiator) { n.logger = l }
}

// NewNegotiator returns a Negotiator that writes negotiation replies to w.
func NewNegotiator(w io.Writer, opts ...NegotiatorOption) *Negotiator {
	n := &Negotiator{
		w:         w,
		logger:    slog.Default(),
		handlers:  make(map[OptionCode]OptionHandler),
		states:    make(map[OptionCode]*OptionState),
		connected: true,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *Negotiator) stateFor(opt OptionCode) *OptionState {
	st, ok := n.states[opt]
	if !ok {
		st = &OptionState{}
		n.states[opt] = st
	}
	return st
}

// OptionState returns a copy of the current state for opt.
func (n *Negotiator) OptionState(opt OptionCode) OptionState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return *n.stateFor(opt)
}

// AddOptionHandler registers h. If the option code already has a handler,
// registration fails with InvalidOptionError; the option's negotiation
// state is not checked. When the
// negotiator is already connected, the handler's InitLocal/InitRemote flags
// trigger an immediate WILL/DO request.
func (n *Negotiator) AddOptionHandler(h OptionHandler) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	code := h.OptionCode()
	if _, exists := n.handlers[code]; exists {
		return &InvalidOptionError{Code: code, Reason: "handler already registered"}
	}
	n.handlers[code] = h

	if n.connected {
		if h.InitLocal() {
			n.requestWillLocked(code)
		}
		if h.InitRemote() {
			n.requestDoLocked(code)
		}
	}
	return nil
}

// DeleteOptionHandler disables an active option (sending WONT/DONT as
// needed) and clears its handler slot.
func (n *Negotiator) DeleteOptionHandler(code OptionCode) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.handlers[code]; !ok {
		return &InvalidOptionError{Code: code, Reason: "no handler registered"}
	}
	st := n.stateFor(code)
	if st.Will {
		n.requestWontLocked(code)
	}
	if st.Do {
		n.requestDontLocked(code)
	}
	delete(n.handlers, code)
	return nil
}

// RequestWill asks the peer to let us enable opt locally.
func (n *Negotiator) RequestWill(opt OptionCode) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.requestWillLocked(opt)
}

// RequestWont tells the peer we are disabling opt locally.
func (n *Negotiator) RequestWont(opt OptionCode) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.requestWontLocked(opt)
}

// RequestDo asks the peer to enable opt on their end.
func (n *Negotiator) RequestDo(opt OptionCode) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.requestDoLocked(opt)
}

// RequestDont asks the peer to disable opt on their end.
func (n *Negotiator) RequestDont(opt OptionCode) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.requestDontLocked(opt)
}

// requestWill/requestWont bump willResponse (not doResponse): spec.md §9's
// open question about the source incrementing the wrong counter is
// resolved here by bumping the direction's own counter, which keeps
// processDo's ack-counting balanced against what this negotiator actually
// sent.
func (n *Negotiator) requestWillLocked(opt OptionCode) {
	st := n.stateFor(opt)
	if st.Will || st.WantWill {
		return
	}
	st.WantWill = true
	st.WillResponse++
	n.send(cmdWILL, opt)
}

func (n *Negotiator) requestWontLocked(opt OptionCode) {
	st := n.stateFor(opt)
	if !st.Will && !st.WantWill {
		return
	}
	st.WantWill = false
	st.WillResponse++
	n.send(cmdWONT, opt)
}

func (n *Negotiator) requestDoLocked(opt OptionCode) {
	st := n.stateFor(opt)
	if st.Do || st.WantDo {
		return
	}
	st.WantDo = true
	st.DoResponse++
	n.send(cmdDO, opt)
}

func (n *Negotiator) requestDontLocked(opt OptionCode) {
	st := n.stateFor(opt)
	if !st.Do && !st.WantDo {
		return
	}
	st.WantDo = false
	st.DoResponse++
	n.send(cmdDONT, opt)
}

func (n *Negotiator) send(cmd byte, opt OptionCode) {
	n.w.Write([]byte{cmdIAC, cmd, byte(opt)})
}

func (n *Negotiator) sendSub(opt OptionCode, data []byte) {
	buf := make([]byte, 0, len(data)+5)
	buf = append(buf, cmdIAC, cmdSB, byte(opt))
	buf = append(buf, data...)
	buf = append(buf, cmdIAC, cmdSE)
	n.w.Write(buf)
}

func (n *Negotiator) policyFor(opt OptionCode, local bool) bool {
	if h, ok := n.handlers[opt]; ok {
		if local {
			return h.AcceptLocal()
		}
		return h.AcceptRemote()
	}
	if n.unsolicited != nil {
		return n.unsolicited(opt)
	}
	return opt == OptTerminalType && n.terminalType != ""
}

// ProcessByte feeds one incoming byte through the negotiation state
// machine. When it returns ok==true, b is a data byte that belongs on the
// application's read side; negotiation bytes are consumed and any reply is
// written immediately.
func (n *Negotiator) ProcessByte(b byte) (out byte, ok bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch n.state {
	case stateData:
		switch {
		case b == cmdIAC:
			n.state = stateIAC
			return 0, false
		case b == '\r' && !n.binaryActiveLocked():
			n.state = stateCR
			return b, true
		default:
			return b, true
		}

	case stateCR:
		n.state = stateData
		if b == 0 {
			return 0, false
		}
		return b, true

	case stateIAC:
		switch b {
		case cmdWILL:
			n.state = stateWILL
		case cmdWONT:
			n.state = stateWONT
		case cmdDO:
			n.state = stateDO
		case cmdDONT:
			n.state = stateDONT
		case cmdSB:
			n.state = stateSB
			n.subBuf = n.subBuf[:0]
		case cmdIAC:
			n.state = stateData
			return cmdIAC, true
		default:
			n.state = stateData
		}
		return 0, false

	case stateWILL:
		n.state = stateData
		n.processWillLocked(OptionCode(b))
		return 0, false

	case stateWONT:
		n.state = stateData
		n.processWontLocked(OptionCode(b))
		return 0, false

	case stateDO:
		n.state = stateData
		n.processDoLocked(OptionCode(b))
		return 0, false

	case stateDONT:
		n.state = stateData
		n.processDontLocked(OptionCode(b))
		return 0, false

	case stateSB:
		if b == cmdIAC {
			n.state = stateIACSB
			return 0, false
		}
		if len(n.subBuf) < maxSuboptionLen {
			n.subBuf = append(n.subBuf, b)
		}
		return 0, false

	case stateIACSB:
		if b == cmdSE {
			n.state = stateData
			n.dispatchSubnegotiationLocked()
			return 0, false
		}
		// Anything other than SE after IAC inside a suboption is an
		// escaped IAC belonging to the payload.
		if len(n.subBuf) < maxSuboptionLen {
			n.subBuf = append(n.subBuf, b)
		}
		n.state = stateSB
		return 0, false
	}
	return 0, false
}

func (n *Negotiator) binaryActiveLocked() bool {
	st := n.states[OptBinary]
	return st != nil && st.Will && st.Do
}

// processWillLocked handles an inbound WILL (peer announcing an option);
// it correlates against doResponse since DO is what we send in reply.
func (n *Negotiator) processWillLocked(opt OptionCode) {
	st := n.stateFor(opt)
	acked := false
	if st.DoResponse > 0 {
		st.DoResponse--
		if st.Do && st.DoResponse > 0 {
			st.DoResponse--
		}
		acked = true
	}
	if st.DoResponse == 0 && !acked {
		if n.policyFor(opt, false) {
			st.WantDo = true
			n.send(cmdDO, opt)
		} else {
			st.DoResponse++
			n.send(cmdDONT, opt)
			return
		}
	}
	requested := st.WantDo
	st.Do = true
	if requested {
		if h, ok := n.handlers[opt]; ok {
			h.SetDo(true)
			if sb := h.StartSubnegotiationRemote(); len(sb) > 0 {
				n.sendSub(opt, sb)
			}
		}
	}
}

func (n *Negotiator) processWontLocked(opt OptionCode) {
	st := n.stateFor(opt)
	st.Do = false
	st.WantDo = false
	if h, ok := n.handlers[opt]; ok {
		h.SetDo(false)
	}
}

// processDoLocked handles an inbound DO (peer asking us to enable an
// option locally); it correlates against willResponse since WILL is what
// we send in reply.
func (n *Negotiator) processDoLocked(opt OptionCode) {
	st := n.stateFor(opt)
	acked := false
	if st.WillResponse > 0 {
		st.WillResponse--
		if st.Will && st.WillResponse > 0 {
			st.WillResponse--
		}
		acked = true
	}
	if st.WillResponse == 0 && !acked {
		if n.policyFor(opt, true) {
			st.WantWill = true
			n.send(cmdWILL, opt)
		} else {
			st.WillResponse++
			n.send(cmdWONT, opt)
			return
		}
	}
	requested := st.WantWill
	st.Will = true
	if requested {
		if h, ok := n.handlers[opt]; ok {
			h.SetWill(true)
			if sb := h.StartSubnegotiationLocal(); len(sb) > 0 {
				n.sendSub(opt, sb)
			}
		}
	}
}

func (n *Negotiator) processDontLocked(opt OptionCode) {
	st := n.stateFor(opt)
	wasRequestedWill := st.WantWill
	st.Will = false
	st.WantWill = false
	if h, ok := n.handlers[opt]; ok {
		h.SetWill(false)
	}
	// spec.md §4.3: a DONT we process while a requested-will is pending
	// must also emit our own WONT so both directions settle together.
	if wasRequestedWill {
		n.send(cmdWONT, opt)
	}
}

func (n *Negotiator) dispatchSubnegotiationLocked() {
	if len(n.subBuf) == 0 {
		return
	}
	opt := OptionCode(n.subBuf[0])
	payload := n.subBuf[1:]

	if opt == OptTerminalType && len(payload) >= 1 && payload[0] == subSEND {
		if n.terminalType != "" {
			reply := append([]byte{subIS}, []byte(n.terminalType)...)
			n.sendSub(OptTerminalType, reply)
		}
		return
	}

	h, ok := n.handlers[opt]
	if !ok {
		return
	}
	if reply := h.AnswerSubnegotiation(payload); reply != nil {
		n.sendSub(opt, reply)
	}
}
