package ledger

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Vibecoders-Team/dfsp-sub000/types/fileid"
)

// EventType identifies a grant lifecycle transition.
type EventType string

const (
	EventGrantCreated EventType = "grant_created"
	EventGrantRevoked EventType = "grant_revoked"
	EventGrantUsed    EventType = "grant_used"
)

// Event describes one committed grant transition.
type Event struct {
	Type    EventType      `json:"type"`
	CapID   CapID          `json:"-"`
	CapHex  string         `json:"cap_id"`
	Grantor common.Address `json:"grantor"`
	Grantee common.Address `json:"grantee"`
	FileID  fileid.FileID  `json:"-"`
	FileHex string         `json:"file_id"`
	Used    uint32         `json:"used"`
	At      time.Time      `json:"at"`
}

// EventSink receives committed events. Sinks must not block; slow consumers
// should buffer on their side.
type EventSink func(Event)

func newEvent(typ EventType, id CapID, g *Grant, at time.Time) Event {
	return Event{
		Type:    typ,
		CapID:   id,
		CapHex:  id.Hex(),
		Grantor: g.Grantor,
		Grantee: g.Grantee,
		FileID:  g.FileID,
		FileHex: g.FileID.Hex(),
		Used:    g.Used,
		At:      at,
	}
}
