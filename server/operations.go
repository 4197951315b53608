package server

import (
	"encoding/json"

	"github.com/xeipuuv/gojsonschema"

	session "github.com/sessionkeys/starknet-session/go"
	"github.com/sessionkeys/starknet-session/go/starknet"
)

type typedDataResponse struct {
	TypedData   starknet.TypedData `json:"typedData"`
	MessageHash string             `json:"messageHash,omitempty"`
}

type sessionTypedDataBody struct {
	Version        string                          `json:"version,omitempty"`
	ChainID        string                          `json:"chainId"`
	AccountAddress string                          `json:"accountAddress,omitempty"`
	Request        session.SessionSignatureRequest `json:"request"`
}

type gasSponsoredTypedDataBody struct {
	Version        string                      `json:"version,omitempty"`
	ChainID        string                      `json:"chainId"`
	AccountAddress string                      `json:"accountAddress,omitempty"`
	Request        session.GasSponsoredRequest `json:"request"`
}

type redemptionResponse struct {
	Calls []starknet.Call `json:"calls"`
}

type sessionRedemptionBody struct {
	Version        string               `json:"version,omitempty"`
	AccountAddress string               `json:"accountAddress"`
	Grant          session.SessionGrant `json:"grant"`
	Calls          []starknet.Call      `json:"calls"`
}

type gasSponsoredRedemptionBody struct {
	Version        string                    `json:"version,omitempty"`
	AccountAddress string                    `json:"accountAddress"`
	Grant          session.GasSponsoredGrant `json:"grant"`
	Calls          []starknet.Call           `json:"calls"`
}

type hintsBody struct {
	AllowedMethods []session.AllowedMethod `json:"allowedMethods"`
	Calls          []starknet.Call         `json:"calls"`
}

type hintsResponse struct {
	Hints []int `json:"hints"`
}

// buildTypedData returns the document the account owner signs for a grant of flow.
// The message hash is included when the body names the signing account.
func (s *Server) buildTypedData(flow session.Flow, raw []byte) (*typedDataResponse, error) {
	var (
		td      starknet.TypedData
		account string
	)
	switch flow {
	case session.FlowSession:
		var body sessionTypedDataBody
		if err := decode(s.schemas.typedData[flow], raw, &body); err != nil {
			return nil, err
		}
		version, err := s.version(body.Version)
		if err != nil {
			return nil, err
		}
		td, err = session.BuildSessionTypedData(body.Request, body.ChainID, version)
		if err != nil {
			return nil, err
		}
		account = body.AccountAddress
	case session.FlowGasSponsored:
		var body gasSponsoredTypedDataBody
		if err := decode(s.schemas.typedData[flow], raw, &body); err != nil {
			return nil, err
		}
		version, err := s.version(body.Version)
		if err != nil {
			return nil, err
		}
		td, err = session.BuildGasSponsoredTypedData(body.Request, body.ChainID, version)
		if err != nil {
			return nil, err
		}
		account = body.AccountAddress
	default:
		return nil, session.ErrUnsupportedFlow
	}

	resp := &typedDataResponse{TypedData: td}
	if account != "" {
		hash, err := starknet.MessageHash(td, account)
		if err != nil {
			return nil, err
		}
		resp.MessageHash = hash.String()
	}
	return resp, nil
}

// buildRedemption returns the calls a relayer submits to redeem a grant of flow.
func (s *Server) buildRedemption(flow session.Flow, raw []byte) (*redemptionResponse, error) {
	switch flow {
	case session.FlowSession:
		var body sessionRedemptionBody
		if err := decode(s.schemas.redemption[flow], raw, &body); err != nil {
			return nil, err
		}
		version, err := s.version(body.Version)
		if err != nil {
			return nil, err
		}
		call, err := s.encoder.BuildSessionExecuteCall(body.AccountAddress, body.Grant, body.Calls, version)
		if err != nil {
			return nil, err
		}
		return &redemptionResponse{Calls: append([]starknet.Call{call}, body.Calls...)}, nil
	case session.FlowGasSponsored:
		var body gasSponsoredRedemptionBody
		if err := decode(s.schemas.redemption[flow], raw, &body); err != nil {
			return nil, err
		}
		version, err := s.version(body.Version)
		if err != nil {
			return nil, err
		}
		call, err := s.encoder.BuildGasSponsoredCall(body.AccountAddress, body.Grant, body.Calls, version)
		if err != nil {
			return nil, err
		}
		return &redemptionResponse{Calls: []starknet.Call{call}}, nil
	default:
		return nil, session.ErrUnsupportedFlow
	}
}

func (s *Server) resolveHints(raw []byte) (*hintsResponse, error) {
	var body hintsBody
	if err := decode(s.schemas.hints, raw, &body); err != nil {
		return nil, err
	}
	return &hintsResponse{Hints: session.ResolveHints(body.AllowedMethods, body.Calls)}, nil
}

func (s *Server) version(requested string) (session.ProtocolVersion, error) {
	if requested == "" {
		return s.defaultVersion, nil
	}
	return session.ParseProtocolVersion(requested)
}

// decode validates raw against schema and unmarshals it into out.
func decode(schema *gojsonschema.Schema, raw []byte, out interface{}) error {
	if err := validateBody(schema, raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return session.NewSessionError(session.ErrCodeInvalidRequest, err.Error(), nil)
	}
	return nil
}
