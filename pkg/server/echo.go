package server

import (
	"context"
	"fmt"
)

// EchoResponder is a stand-in Responder that echoes the message back and
// charges actual usage proportional to the combined turn length. It keeps
// the admission pipeline exercisable end to end without a downstream
// model.
//
// TODO: replace with a real downstream client once one is wired up.
type EchoResponder struct {
	// CharsPerUnit converts turn length to units. Zero means 4.
	CharsPerUnit float64
}

func (e *EchoResponder) Respond(_ context.Context, req ChatRequest) (ChatResponse, error) {
	reply := fmt.Sprintf("echo: %s", req.Message)

	ratio := e.CharsPerUnit
	if ratio <= 0 {
		ratio = 4
	}
	units := uint64(float64(len(req.Message)+len(reply))/ratio + 0.5)

	return ChatResponse{Reply: reply, Units: units}, nil
}
