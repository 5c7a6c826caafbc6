package telnet

import (
	"bytes"
	"testing"
)

func feed(t *testing.T, n *Negotiator, in []byte) []byte {
	t.Helper()
	var out []byte
	for _, b := range in {
		if v, ok := n.ProcessByte(b); ok {
			out = append(out, v)
		}
	}
	return out
}

func TestProcessByte_PlainDataPassesThrough(t *testing.T) {
	var w bytes.Buffer
	n := NewNegotiator(&w)
	out := feed(t, n, []byte("hello"))
	if string(out) != "hello" {
		t.Fatalf("data = %q, want %q", out, "hello")
	}
}

func TestProcessByte_DoubledIACCollapses(t *testing.T) {
	var w bytes.Buffer
	n := NewNegotiator(&w)
	out := feed(t, n, []byte{'a', cmdIAC, cmdIAC, 'b'})
	if !bytes.Equal(out, []byte{'a', cmdIAC, 'b'}) {
		t.Fatalf("data = %v, want %v", out, []byte{'a', cmdIAC, 'b'})
	}
}

func TestProcessByte_BareCRStripsNUL(t *testing.T) {
	var w bytes.Buffer
	n := NewNegotiator(&w)
	out := feed(t, n, []byte{'a', '\r', 0, 'b'})
	if !bytes.Equal(out, []byte{'a', '\r', 'b'}) {
		t.Fatalf("data = %v, want CR kept and NUL stripped", out)
	}
}

func TestProcessByte_CRLFPassesBothThrough(t *testing.T) {
	var w bytes.Buffer
	n := NewNegotiator(&w)
	out := feed(t, n, []byte{'a', '\r', '\n', 'b'})
	if !bytes.Equal(out, []byte{'a', '\r', '\n', 'b'}) {
		t.Fatalf("data = %v, want CRLF preserved", out)
	}
}

func TestProcessByte_NegotiationBytesConsumedNotData(t *testing.T) {
	var w bytes.Buffer
	n := NewNegotiator(&w)
	out := feed(t, n, []byte{'a', cmdIAC, cmdWILL, byte(OptEcho), 'b'})
	if !bytes.Equal(out, []byte{'a', 'b'}) {
		t.Fatalf("data = %v, want negotiation stripped", out)
	}
}

// TestRequestWill_ThenPeerAcksNoReply verifies that once we've sent WILL
// and the peer answers DO, the ack is consumed with no further reply.
func TestRequestWill_ThenPeerAcksNoReply(t *testing.T) {
	var w bytes.Buffer
	n := NewNegotiator(&w)
	n.RequestWill(OptEcho)
	if w.Len() == 0 {
		t.Fatal("expected RequestWill to write IAC WILL ECHO")
	}
	w.Reset()

	feed(t, n, []byte{cmdIAC, cmdDO, byte(OptEcho)})
	if w.Len() != 0 {
		t.Fatalf("expected no reply to an acknowledging DO, got %v", w.Bytes())
	}
	st := n.OptionState(OptEcho)
	if !st.Will {
		t.Fatal("expected Will=true after acknowledged WILL/DO exchange")
	}
}

// TestUnsolicitedDo_NoHandlerRejectsByDefault verifies the default policy
// rejects an unsolicited DO for an option with no registered handler and
// no terminal type configured.
func TestUnsolicitedDo_NoHandlerRejectsByDefault(t *testing.T) {
	var w bytes.Buffer
	n := NewNegotiator(&w)

	feed(t, n, []byte{cmdIAC, cmdDO, byte(OptEcho)})
	want := []byte{cmdIAC, cmdWONT, byte(OptEcho)}
	if !bytes.Equal(w.Bytes(), want) {
		t.Fatalf("reply = %v, want %v", w.Bytes(), want)
	}
	st := n.OptionState(OptEcho)
	if st.Will {
		t.Fatal("expected Will to remain false after rejecting unsolicited DO")
	}
}

// TestTerminalType_SendRepliesWithName verifies the built-in TERMINAL_TYPE
// subnegotiation responder.
func TestTerminalType_SendRepliesWithName(t *testing.T) {
	var w bytes.Buffer
	n := NewNegotiator(&w, WithTerminalType("VT100"))

	feed(t, n, []byte{cmdIAC, cmdSB, byte(OptTerminalType), subSEND, cmdIAC, cmdSE})

	want := append([]byte{cmdIAC, cmdSB, byte(OptTerminalType), subIS}, []byte("VT100")...)
	want = append(want, cmdIAC, cmdSE)
	if !bytes.Equal(w.Bytes(), want) {
		t.Fatalf("reply = %v, want %v", w.Bytes(), want)
	}
}

// TestTerminalType_UnsolicitedDoAccepted verifies an unsolicited DO for
// TERMINAL_TYPE is accepted when a terminal type is configured, per the
// default policy's explicit carve-out.
func TestTerminalType_UnsolicitedDoAccepted(t *testing.T) {
	var w bytes.Buffer
	n := NewNegotiator(&w, WithTerminalType("VT100"))

	feed(t, n, []byte{cmdIAC, cmdDO, byte(OptTerminalType)})
	want := []byte{cmdIAC, cmdWILL, byte(OptTerminalType)}
	if !bytes.Equal(w.Bytes(), want) {
		t.Fatalf("reply = %v, want %v", w.Bytes(), want)
	}
}

type recordingHandler struct {
	BaseOptionHandler
	wills []bool
}

func (h *recordingHandler) InitLocal() bool { return true }
func (h *recordingHandler) AcceptLocal() bool { return true }
func (h *recordingHandler) SetWill(v bool)  { h.wills = append(h.wills, v) }

func TestAddOptionHandler_InitLocalRequestsWill(t *testing.T) {
	var w bytes.Buffer
	n := NewNegotiator(&w)
	h := &recordingHandler{BaseOptionHandler: BaseOptionHandler{Code: OptEcho}}

	if err := n.AddOptionHandler(h); err != nil {
		t.Fatalf("AddOptionHandler: %v", err)
	}
	want := []byte{cmdIAC, cmdWILL, byte(OptEcho)}
	if !bytes.Equal(w.Bytes(), want) {
		t.Fatalf("reply = %v, want %v", w.Bytes(), want)
	}

	feed(t, n, []byte{cmdIAC, cmdDO, byte(OptEcho)})
	if len(h.wills) != 1 || !h.wills[0] {
		t.Fatalf("handler.SetWill calls = %v, want [true]", h.wills)
	}
}

func TestAddOptionHandler_DuplicateRegistrationFails(t *testing.T) {
	var w bytes.Buffer
	n := NewNegotiator(&w)
	h1 := &BaseOptionHandler{Code: OptEcho}
	h2 := &BaseOptionHandler{Code: OptEcho}

	if err := n.AddOptionHandler(h1); err != nil {
		t.Fatalf("first AddOptionHandler: %v", err)
	}
	err := n.AddOptionHandler(h2)
	if err == nil {
		t.Fatal("expected InvalidOptionError on duplicate registration")
	}
	if _, ok := err.(*InvalidOptionError); !ok {
		t.Fatalf("err type = %T, want *InvalidOptionError", err)
	}
}

type acceptingHandler struct {
	BaseOptionHandler
}

func (h *acceptingHandler) AcceptLocal() bool { return true }

func TestDeleteOptionHandler_SendsWontWhenActive(t *testing.T) {
	var w bytes.Buffer
	n := NewNegotiator(&w)
	h := &acceptingHandler{BaseOptionHandler{Code: OptEcho}}
	if err := n.AddOptionHandler(h); err != nil {
		t.Fatalf("AddOptionHandler: %v", err)
	}
	w.Reset()
	feed(t, n, []byte{cmdIAC, cmdDO, byte(OptEcho)})
	w.Reset()

	if err := n.DeleteOptionHandler(OptEcho); err != nil {
		t.Fatalf("DeleteOptionHandler: %v", err)
	}
	want := []byte{cmdIAC, cmdWONT, byte(OptEcho)}
	if !bytes.Equal(w.Bytes(), want) {
		t.Fatalf("reply = %v, want %v", w.Bytes(), want)
	}
}

// TestProcessDont_SettlesPendingWill exercises spec.md §4.3's
// DONT-while-requested-WILL correction: when we process an inbound DONT and
// a WILL request is still outstanding against an option we already have
// enabled, we must also emit our own WONT so both directions settle
// together instead of leaving the peer's and our own state diverged.
func TestProcessDont_SettlesPendingWill(t *testing.T) {
	var w bytes.Buffer
	n := NewNegotiator(&w)

	n.RequestWill(OptEcho)
	w.Reset()
	feed(t, n, []byte{cmdIAC, cmdDO, byte(OptEcho)})
	w.Reset()

	st := n.OptionState(OptEcho)
	if !st.Will || !st.WantWill {
		t.Fatalf("state before DONT = %+v, want Will && WantWill", st)
	}

	feed(t, n, []byte{cmdIAC, cmdDONT, byte(OptEcho)})
	want := []byte{cmdIAC, cmdWONT, byte(OptEcho)}
	if !bytes.Equal(w.Bytes(), want) {
		t.Fatalf("reply = %v, want %v", w.Bytes(), want)
	}

	st = n.OptionState(OptEcho)
	if st.Will || st.WantWill {
		t.Fatalf("state after DONT = %+v, want both cleared", st)
	}
}

func TestOptionCode_String(t *testing.T) {
	if got := OptEcho.String(); got != "ECHO" {
		t.Fatalf("String() = %q, want ECHO", got)
	}
	if got := OptionCode(200).String(); got != "UNASSIGNED(200)" {
		t.Fatalf("String() = %q, want UNASSIGNED(200)", got)
	}
}
