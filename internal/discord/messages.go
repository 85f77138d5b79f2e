package discord

import (
	"fmt"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"

	"github.com/eliteGoblin/focusd/figpresence/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RPC protocol version sent in the handshake.
const rpcVersion = 1

const (
	cmdDispatch    = "DISPATCH"
	cmdSetActivity = "SET_ACTIVITY"
	evtReady       = "READY"
	evtError       = "ERROR"
)

// Field limits enforced by Discord for activities.
const (
	maxTextLen        = 128
	minTextLen        = 2
	maxButtonLabelLen = 32
	maxButtonURLLen   = 512
	maxButtons        = 2
)

// Handshake is the first frame a client sends.
type Handshake struct {
	V        int    `json:"v"`
	ClientID string `json:"client_id"`
}

// Command is a client request frame.
type Command struct {
	Cmd   string      `json:"cmd"`
	Args  interface{} `json:"args,omitempty"`
	Nonce string      `json:"nonce,omitempty"`
}

// Message is any frame received from Discord.
type Message struct {
	Cmd   string              `json:"cmd"`
	Evt   string              `json:"evt,omitempty"`
	Nonce string              `json:"nonce,omitempty"`
	Data  jsoniter.RawMessage `json:"data,omitempty"`
}

// ActivityArgs are the SET_ACTIVITY arguments. A nil Activity clears the presence.
type ActivityArgs struct {
	PID      int       `json:"pid"`
	Activity *Activity `json:"activity,omitempty"`
}

// Activity is the Rich Presence body.
type Activity struct {
	Details    string      `json:"details,omitempty"`
	State      string      `json:"state,omitempty"`
	Timestamps *Timestamps `json:"timestamps,omitempty"`
	Buttons    []Button    `json:"buttons,omitempty"`
}

// Timestamps are unix milliseconds.
type Timestamps struct {
	Start int64 `json:"start,omitempty"`
}

// Button is a clickable link under the activity.
type Button struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// readyData is the payload of the READY dispatch.
type readyData struct {
	V    int `json:"v"`
	User struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"user"`
}

// RPCError is an error returned by Discord, either as an ERROR event or a CLOSE frame.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("discord rpc error %d: %s", e.Code, e.Message)
}

// NewActivity converts a presence payload into Discord's activity shape.
func NewActivity(p domain.PresencePayload) *Activity {
	a := &Activity{
		Details: clampText(p.Details, maxTextLen),
		State:   clampText(p.State, maxTextLen),
	}
	if !p.StartedAt.IsZero() {
		a.Timestamps = &Timestamps{Start: p.StartedAt.UnixMilli()}
	}
	for _, action := range p.Actions {
		if len(a.Buttons) == maxButtons {
			break
		}
		if action.URL == "" || len(action.URL) > maxButtonURLLen {
			continue
		}
		a.Buttons = append(a.Buttons, Button{
			Label: truncate(action.Label, maxButtonLabelLen),
			URL:   action.URL,
		})
	}
	return a
}

// clampText fits s into Discord's [2, max] length window. Empty stays empty
// so the field is omitted.
func clampText(s string, max int) string {
	if s == "" {
		return s
	}
	s = truncate(s, max)
	if utf8.RuneCountInString(s) < minTextLen {
		s += "\u200b"
	}
	return s
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-1]) + "…"
}
