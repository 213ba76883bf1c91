package http

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/alexismendozaa/chat/internal/core"
	"github.com/alexismendozaa/chat/internal/proto"
	"github.com/alexismendozaa/chat/internal/store"
)

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode unmarshals and validates inbound data. Identifiers are trimmed
// before validation so whitespace-only ids count as missing.
func decode(data json.RawMessage, dst any, trim ...*string) *proto.Error {
	if len(data) == 0 {
		return &proto.Error{Code: core.ErrCodeBadRequest, Msg: "data is required"}
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return &proto.Error{Code: core.ErrCodeBadRequest, Msg: "malformed data"}
	}
	for _, s := range trim {
		*s = strings.TrimSpace(*s)
	}
	if err := validate.Struct(dst); err != nil {
		return &proto.Error{Code: core.ErrCodeBadRequest, Msg: validationMessage(err)}
	}
	return nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid data"
	}
	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return field + " is too long"
	case "url":
		return field + " must be a URL"
	default:
		return field + " is invalid"
	}
}

func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error) {
	switch inbound.Type {
	case proto.InboundTypeJoin:
		var join proto.JoinData
		if perr := decode(inbound.Data, &join, &join.RoomID); perr != nil {
			return nil, perr
		}
		return &core.Command{
			Kind: core.CommandJoin,
			Room: join.RoomID,
		}, nil
	case proto.InboundTypeMsg:
		var msg proto.MsgData
		if perr := decode(inbound.Data, &msg, &msg.RoomID); perr != nil {
			return nil, perr
		}
		return &core.Command{
			Kind: core.CommandSend,
			Room: msg.RoomID,
			Payload: core.Payload{
				Text:     msg.Text,
				ImageURL: msg.ImageURL,
			},
		}, nil
	case proto.InboundTypeOpenDirect:
		var open proto.OpenDirectData
		if perr := decode(inbound.Data, &open, &open.Peer); perr != nil {
			return nil, perr
		}
		return &core.Command{
			Kind: core.CommandOpenDirect,
			Peer: open.Peer,
		}, nil
	default:
		return nil, &proto.Error{Code: core.ErrCodeUnknownType, Msg: "unknown message type"}
	}
}

func messageToProto(msg store.Message) proto.EventMessage {
	return proto.EventMessage{
		ID:        msg.ID,
		RoomID:    msg.RoomID,
		User:      msg.SenderName,
		UserID:    msg.SenderID,
		Text:      msg.Text,
		ImageURL:  msg.ImageURL,
		CreatedAt: msg.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func messagesToProto(messages []store.Message) []proto.EventMessage {
	out := make([]proto.EventMessage, 0, len(messages))
	for _, msg := range messages {
		out = append(out, messageToProto(msg))
	}
	return out
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventMessage:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameMessage,
			Data:  messageToProto(event.Message),
		}
	case core.EventJoined:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameJoined,
			Data:  proto.EventJoinedData{RoomID: event.Room},
		}
	case core.EventHistory:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameHistory,
			Data: proto.EventHistoryData{
				RoomID:   event.Room,
				Messages: messagesToProto(event.Messages),
			},
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message, RoomID: event.Room},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}
