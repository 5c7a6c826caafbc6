package telnet

import "fmt"

// OptionCode identifies a Telnet option per the IANA Telnet Options registry
// (RFC 855 and successors). Codes without a well-known name still negotiate
// normally; String falls back to a numeric form for them.
type OptionCode byte

// Well-known option codes, grounded on the registry table carried by the
// wider Telnet reference corpus.
const (
	OptBinary              OptionCode = 0
	OptEcho                OptionCode = 1
	OptReconnection        OptionCode = 2
	OptSuppressGoAhead     OptionCode = 3
	OptApproxMessageSize   OptionCode = 4
	OptStatus              OptionCode = 5
	OptTimingMark          OptionCode = 6
	OptRemoteControlTrans  OptionCode = 7
	OptOutputLineWidth     OptionCode = 8
	OptOutputPageSize      OptionCode = 9
	OptOutputCRDisposition OptionCode = 10
	OptOutputHTabStops     OptionCode = 11
	OptOutputHTabDisp      OptionCode = 12
	OptOutputFFDisp        OptionCode = 13
	OptOutputVTabStops     OptionCode = 14
	OptOutputVTabDisp      OptionCode = 15
	OptOutputLFDisp        OptionCode = 16
	OptExtendedASCII       OptionCode = 17
	OptLogout              OptionCode = 18
	OptByteMacro           OptionCode = 19
	OptDataEntryTerminal   OptionCode = 20
	OptSUPDUP              OptionCode = 21
	OptSUPDUPOutput        OptionCode = 22
	OptSendLocation        OptionCode = 23
	OptTerminalType        OptionCode = 24
	OptEndOfRecord         OptionCode = 25
	OptTACACSUserID        OptionCode = 26
	OptOutputMarking       OptionCode = 27
	OptTerminalLocation    OptionCode = 28
	Opt3270Regime          OptionCode = 29
	OptX3PAD               OptionCode = 30
	OptNAWS                OptionCode = 31
	OptTerminalSpeed       OptionCode = 32
	OptRemoteFlowControl   OptionCode = 33
	OptLinemode            OptionCode = 34
	OptXDisplayLocation    OptionCode = 35
	OptEnviron             OptionCode = 36
	OptAuthentication      OptionCode = 37
	OptEncrypt             OptionCode = 38
	OptNewEnviron          OptionCode = 39
	OptExtendedOptionsList OptionCode = 255
)

var optionNames = map[OptionCode]string{
	OptBinary:              "BINARY",
	OptEcho:                "ECHO",
	OptReconnection:        "RECONNECTION",
	OptSuppressGoAhead:     "SUPPRESS-GO-AHEAD",
	OptApproxMessageSize:   "APPROX-MESSAGE-SIZE-NEGOTIATION",
	OptStatus:              "STATUS",
	OptTimingMark:          "TIMING-MARK",
	OptRemoteControlTrans:  "RCTE",
	OptOutputLineWidth:     "OUTPUT-LINE-WIDTH",
	OptOutputPageSize:      "OUTPUT-PAGE-SIZE",
	OptOutputCRDisposition: "OUTPUT-CR-DISPOSITION",
	OptOutputHTabStops:     "OUTPUT-HTAB-STOPS",
	OptOutputHTabDisp:      "OUTPUT-HTAB-DISPOSITION",
	OptOutputFFDisp:        "OUTPUT-FORMFEED-DISPOSITION",
	OptOutputVTabStops:     "OUTPUT-VTAB-STOPS",
	OptOutputVTabDisp:      "OUTPUT-VTAB-DISPOSITION",
	OptOutputLFDisp:        "OUTPUT-LINEFEED-DISPOSITION",
	OptExtendedASCII:       "EXTENDED-ASCII",
	OptLogout:              "LOGOUT",
	OptByteMacro:           "BYTE-MACRO",
	OptDataEntryTerminal:   "DATA-ENTRY-TERMINAL",
	OptSUPDUP:              "SUPDUP",
	OptSUPDUPOutput:        "SUPDUP-OUTPUT",
	OptSendLocation:        "SEND-LOCATION",
	OptTerminalType:        "TERMINAL-TYPE",
	OptEndOfRecord:         "END-OF-RECORD",
	OptTACACSUserID:        "TACACS-USER-IDENTIFICATION",
	OptOutputMarking:       "OUTPUT-MARKING",
	OptTerminalLocation:    "TERMINAL-LOCATION-NUMBER",
	Opt3270Regime:          "3270-REGIME",
	OptX3PAD:               "X.3-PAD",
	OptNAWS:                "NAWS",
	OptTerminalSpeed:       "TERMINAL-SPEED",
	OptRemoteFlowControl:   "REMOTE-FLOW-CONTROL",
	OptLinemode:            "LINEMODE",
	OptXDisplayLocation:    "X-DISPLAY-LOCATION",
	OptEnviron:             "ENVIRON",
	OptAuthentication:      "AUTHENTICATION",
	OptEncrypt:             "ENCRYPT",
	OptNewEnviron:          "NEW-ENVIRON",
	OptExtendedOptionsList: "EXTENDED-OPTIONS-LIST",
}

// String names the option if it falls in the registry's documented range,
// and reports unassigned codes explicitly rather than guessing at a name.
func (o OptionCode) String() string {
	if name, ok := optionNames[o]; ok {
		return name
	}
	return fmt.Sprintf("UNASSIGNED(%d)", byte(o))
}

// Telnet command bytes (RFC 854).
const (
	cmdSE   byte = 240
	cmdNOP  byte = 241
	cmdDM   byte = 242
	cmdBRK  byte = 243
	cmdIP   byte = 244
	cmdAO   byte = 245
	cmdAYT  byte = 246
	cmdEC   byte = 247
	cmdEL   byte = 248
	cmdGA   byte = 249
	cmdSB   byte = 250
	cmdWILL byte = 251
	cmdWONT byte = 252
	cmdDO   byte = 253
	cmdDONT byte = 254
	cmdIAC  byte = 255
)

// Subnegotiation qualifiers for TERMINAL_TYPE (RFC 1091).
const (
	subIS   byte = 0
	subSEND byte = 1
)
