package mesh

import (
	"fmt"
	"net/netip"

	"github.com/pion/stun/v3"
)

const (
	methodDiagnosticGet stun.Method = 0x0D1

	attrTypeList    stun.AttrType = 0x8101
	attrDestination stun.AttrType = 0x8102
	attrPayload     stun.AttrType = 0x8103

	// headerSize is the STUN header length; the transaction id is its
	// last 12 bytes.
	headerSize = 20
)

var (
	typeDiagnosticRequest  = stun.NewType(methodDiagnosticGet, stun.ClassRequest)
	typeDiagnosticResponse = stun.NewType(methodDiagnosticGet, stun.ClassSuccessResponse)
	typeDiagnosticError    = stun.NewType(methodDiagnosticGet, stun.ClassErrorResponse)
)

// StatusError is a diagnostic get answered with an error status.
type StatusError struct {
	Code   int
	Reason string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("diagnostic get failed: %d %s", e.Code, e.Reason)
}

func buildRequest(dst netip.Addr, types []uint8) (*stun.Message, error) {
	dstRaw, err := dst.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return stun.Build(
		stun.TransactionID,
		typeDiagnosticRequest,
		stun.RawAttribute{Type: attrTypeList, Value: types},
		stun.RawAttribute{Type: attrDestination, Value: dstRaw},
	)
}

func buildResponse(req *stun.Message, payload []byte) (*stun.Message, error) {
	return stun.Build(
		stun.NewTransactionIDSetter(req.TransactionID),
		typeDiagnosticResponse,
		stun.RawAttribute{Type: attrPayload, Value: payload},
	)
}

func buildError(req *stun.Message, code stun.ErrorCode) (*stun.Message, error) {
	return stun.Build(
		stun.NewTransactionIDSetter(req.TransactionID),
		typeDiagnosticError,
		code,
	)
}

// parseReply converts a response message into a Reply.
func parseReply(m *stun.Message) (Reply, bool) {
	switch m.Type {
	case typeDiagnosticResponse:
		payload, err := m.Get(attrPayload)
		if err != nil {
			return Reply{Err: fmt.Errorf("reply without payload: %w", err)}, true
		}
		return Reply{Payload: append([]byte(nil), payload...)}, true
	case typeDiagnosticError:
		var code stun.ErrorCodeAttribute
		if err := code.GetFrom(m); err != nil {
			return Reply{Err: &StatusError{Reason: err.Error()}}, true
		}
		return Reply{Err: &StatusError{Code: int(code.Code), Reason: string(code.Reason)}}, true
	default:
		return Reply{}, false
	}
}

func requestDestination(m *stun.Message) (netip.Addr, error) {
	raw, err := m.Get(attrDestination)
	if err != nil {
		return netip.Addr{}, err
	}
	var addr netip.Addr
	if err := addr.UnmarshalBinary(raw); err != nil {
		return netip.Addr{}, err
	}
	return addr, nil
}
