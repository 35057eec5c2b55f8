package log

import (
	"log/slog"

	"github.com/google/uuid"
)

// Canonical slog attribute keys shared across packages.
const (
	KeyTimerID = "timer_id"
	KeyItemID  = "item_id"
	KeyDevice  = "device_id"
	KeyPeerID  = "peer_id"
	KeyMsgType = "msg_type"
	KeyStream  = "stream"
	KeyError   = "error"
)

func TimerID(id uuid.UUID) slog.Attr { return slog.String(KeyTimerID, id.String()) }
func ItemID(id uuid.UUID) slog.Attr  { return slog.String(KeyItemID, id.String()) }
func Device(id string) slog.Attr     { return slog.String(KeyDevice, id) }
func Peer(id string) slog.Attr       { return slog.String(KeyPeerID, id) }
func MsgType(t string) slog.Attr     { return slog.String(KeyMsgType, t) }
func Stream(s string) slog.Attr      { return slog.String(KeyStream, s) }

// Err returns the error attribute; a nil error yields an empty value.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
