package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Version tracks the wire-protocol revision expected by clients.
const Version = 1

// Client → server message types.
const (
	TypeJoinRoom      = "join-room"
	TypeLeaveRoom     = "leave-room"
	TypeRequestMint   = "request-mint"
	TypeMintCompleted = "mint-completed" // also used server → client for the notice
	TypeListPending   = "list-pending"
)

// Server → client message types.
const (
	TypeMintNow       = "mint-now"
	TypeRoomJoined    = "room-joined"
	TypeRoomLeft      = "room-left"
	TypeRequestResult = "request-result"
	TypeCompletionAck = "completion-ack"
	TypePendingList   = "pending-list"
	TypeError         = "error"
)

var (
	ErrMalformedMessage = errors.New("malformed message")
	ErrUnknownType      = errors.New("unknown message type")
	ErrInvalidPayload   = errors.New("invalid payload")
)

// Envelope is the JSON frame every message travels in.
type Envelope struct {
	Ver     int             `json:"ver,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ClientMessage is one of the client → server variants.
type ClientMessage interface {
	ClientType() string
	Validate() error
}

// ServerMessage is one of the server → client variants.
type ServerMessage interface {
	ServerType() string
}

type JoinRoom struct {
	PlayerAddress string `json:"playerAddress"`
}

type LeaveRoom struct {
	PlayerAddress string `json:"playerAddress"`
}

type RequestMint struct {
	PlayerID      string `json:"playerId"`
	PlayerAddress string `json:"playerAddress"`
	RewardType    string `json:"rewardType"`
}

// MintCompletedReport is sent by the executing client once the signing call returns.
type MintCompletedReport struct {
	TaskID       string `json:"taskId"`
	ObjectID     string `json:"objectId"`
	Success      bool   `json:"success"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

type ListPending struct {
	PlayerAddress string `json:"playerAddress"`
}

func (JoinRoom) ClientType() string            { return TypeJoinRoom }
func (LeaveRoom) ClientType() string           { return TypeLeaveRoom }
func (RequestMint) ClientType() string         { return TypeRequestMint }
func (MintCompletedReport) ClientType() string { return TypeMintCompleted }
func (ListPending) ClientType() string         { return TypeListPending }

func (m JoinRoom) Validate() error {
	return requireField("playerAddress", m.PlayerAddress)
}

func (m LeaveRoom) Validate() error {
	return requireField("playerAddress", m.PlayerAddress)
}

func (m RequestMint) Validate() error {
	if err := requireField("playerId", m.PlayerID); err != nil {
		return err
	}
	if err := requireField("playerAddress", m.PlayerAddress); err != nil {
		return err
	}
	return requireField("rewardType", m.RewardType)
}

func (m MintCompletedReport) Validate() error {
	if err := requireField("taskId", m.TaskID); err != nil {
		return err
	}
	if m.Success && m.ObjectID == "" {
		return fmt.Errorf("%w: objectId is required when success is true", ErrInvalidPayload)
	}
	return nil
}

func (m ListPending) Validate() error {
	return requireField("playerAddress", m.PlayerAddress)
}

// MintNow asks the player's client to sign and submit the mint.
type MintNow struct {
	TaskID        string `json:"taskId"`
	RewardType    string `json:"rewardType"`
	PlayerID      string `json:"playerId"`
	PlayerAddress string `json:"playerAddress"`
	MetadataURL   string `json:"metadataUrl,omitempty"`
}

// MintCompletedNotice is the user-facing notification fanned out after reconciliation.
type MintCompletedNotice struct {
	RewardName   string `json:"rewardName"`
	RewardType   string `json:"rewardType"`
	ObjectID     string `json:"objectId"`
	Success      bool   `json:"success"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

type RoomJoined struct {
	PlayerAddress string `json:"playerAddress"`
	Actionable    int    `json:"actionable"`
}

type RoomLeft struct {
	PlayerAddress string `json:"playerAddress"`
}

type RequestResult struct {
	Accepted bool   `json:"accepted"`
	TaskID   string `json:"taskId,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

type CompletionAck struct {
	TaskID  string `json:"taskId"`
	Applied bool   `json:"applied"`
}

type PendingTask struct {
	ID            string    `json:"id"`
	RewardType    string    `json:"rewardType"`
	PlayerID      string    `json:"playerId"`
	PlayerAddress string    `json:"playerAddress"`
	CreatedAt     time.Time `json:"createdAt"`
}

type PendingList struct {
	Tasks []PendingTask `json:"tasks"`
}

type ErrorMessage struct {
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

func (MintNow) ServerType() string             { return TypeMintNow }
func (MintCompletedNotice) ServerType() string { return TypeMintCompleted }
func (RoomJoined) ServerType() string          { return TypeRoomJoined }
func (RoomLeft) ServerType() string            { return TypeRoomLeft }
func (RequestResult) ServerType() string       { return TypeRequestResult }
func (CompletionAck) ServerType() string       { return TypeCompletionAck }
func (PendingList) ServerType() string         { return TypePendingList }
func (ErrorMessage) ServerType() string        { return TypeError }

// Encode renders a server message inside an envelope.
func Encode(msg ServerMessage) ([]byte, error) {
	return encode(msg.ServerType(), msg)
}

// EncodeClient renders a client message inside an envelope.
func EncodeClient(msg ClientMessage) ([]byte, error) {
	return encode(msg.ClientType(), msg)
}

func encode(typ string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Ver: Version, Type: typ, Payload: raw})
}

// DecodeClientMessage parses and validates an inbound client frame.
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	env, err := decodeEnvelope(data)
	if err != nil {
		return nil, err
	}

	var msg ClientMessage
	switch env.Type {
	case TypeJoinRoom:
		msg, err = decodePayload[JoinRoom](env.Payload)
	case TypeLeaveRoom:
		msg, err = decodePayload[LeaveRoom](env.Payload)
	case TypeRequestMint:
		msg, err = decodePayload[RequestMint](env.Payload)
	case TypeMintCompleted:
		msg, err = decodePayload[MintCompletedReport](env.Payload)
	case TypeListPending:
		msg, err = decodePayload[ListPending](env.Payload)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	if err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return msg, nil
}

// DecodeServerMessage parses an inbound server frame on the client side.
func DecodeServerMessage(data []byte) (ServerMessage, error) {
	env, err := decodeEnvelope(data)
	if err != nil {
		return nil, err
	}

	switch env.Type {
	case TypeMintNow:
		msg, err := decodePayload[MintNow](env.Payload)
		if err != nil {
			return nil, err
		}
		if msg.TaskID == "" || msg.PlayerAddress == "" {
			return nil, fmt.Errorf("%w: mint-now requires taskId and playerAddress", ErrInvalidPayload)
		}
		return msg, nil
	case TypeMintCompleted:
		return decodePayload[MintCompletedNotice](env.Payload)
	case TypeRoomJoined:
		return decodePayload[RoomJoined](env.Payload)
	case TypeRoomLeft:
		return decodePayload[RoomLeft](env.Payload)
	case TypeRequestResult:
		return decodePayload[RequestResult](env.Payload)
	case TypeCompletionAck:
		return decodePayload[CompletionAck](env.Payload)
	case TypePendingList:
		return decodePayload[PendingList](env.Payload)
	case TypeError:
		return decodePayload[ErrorMessage](env.Payload)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

func decodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return env, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if env.Type == "" {
		return env, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	}
	return env, nil
}

func decodePayload[T any](raw json.RawMessage) (T, error) {
	var out T
	if len(raw) == 0 {
		return out, fmt.Errorf("%w: missing payload", ErrMalformedMessage)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return out, nil
}

func requireField(name, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidPayload, name)
	}
	return nil
}
