package signal

import (
	"github.com/dkeye/StudioRelay/internal/core"
	"github.com/dkeye/StudioRelay/internal/protocol"
)

func (ctl *SignalWSController) handlePing(c core.SignalConnection) {
	frame, err := protocol.EncodePong()
	ctl.send(c, frame, err)
}
