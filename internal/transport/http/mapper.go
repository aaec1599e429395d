package http

import (
	"encoding/json"

	"github.com/vovakirdan/relaychat/internal/core"
	"github.com/vovakirdan/relaychat/internal/proto"
	"github.com/vovakirdan/relaychat/internal/store"
)

// ErrCodeUnknownType is reported for inbound frames with an unsupported type.
const ErrCodeUnknownType = "unknown_type"

func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error) {
	switch inbound.Type {
	case proto.InboundTypeRegister:
		var reg proto.RegisterData
		if err := json.Unmarshal(inbound.Data, &reg); err != nil {
			return nil, badRequest("invalid register payload")
		}
		if reg.UserID == "" {
			return nil, badRequest("userId is required")
		}
		return &core.Command{Kind: core.CommandRegister, UserID: reg.UserID}, nil
	case proto.InboundTypeMessage:
		var msg proto.MessageData
		if err := json.Unmarshal(inbound.Data, &msg); err != nil {
			return nil, badRequest("invalid message payload")
		}
		if msg.TargetID == "" {
			return nil, badRequest("targetId is required")
		}
		return &core.Command{
			Kind:     core.CommandSendMessage,
			SenderID: msg.SenderID,
			TargetID: msg.TargetID,
			Body:     msg.Message,
		}, nil
	case proto.InboundTypeMessageRead:
		var read proto.MessageReadData
		if err := json.Unmarshal(inbound.Data, &read); err != nil {
			return nil, badRequest("invalid messageRead payload")
		}
		if read.RoomID == "" {
			return nil, badRequest("roomId is required")
		}
		return &core.Command{
			Kind:       core.CommandMarkRead,
			UserID:     read.UserID,
			RoomID:     read.RoomID,
			MessageIDs: read.MessageIDs,
		}, nil
	default:
		return nil, &proto.Error{Code: ErrCodeUnknownType, Msg: "unknown message type"}
	}
}

func badRequest(msg string) *proto.Error {
	return &proto.Error{Code: core.ErrCodeBadRequest, Msg: msg}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventRegistered:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventRegistered,
			Data:  proto.EventRegisteredData{UserID: event.User},
		}
	case core.EventMessage:
		m := event.Message
		chat := chatFromMessage(&m.Chat)
		chat.Sender = m.SenderName
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessage,
			Data: proto.EventMessageData{
				Chat:              chat,
				TargetDisplayName: m.TargetDisplayName,
				UnreadSnapshot:    roomSummaries(m.Rooms),
				RoomID:            m.RoomID,
			},
		}
	case core.EventMessageRead:
		r := event.Read
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessageRead,
			Data: proto.EventMessageReadData{
				TargetID:   r.TargetID,
				Rooms:      roomSummaries(r.Rooms),
				MessageIDs: r.MessageIDs,
			},
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: core.ErrCodeInternal, Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

func chatFromMessage(msg *store.Message) proto.Chat {
	return proto.Chat{
		ID:        msg.ID,
		RoomID:    msg.RoomID,
		SenderID:  msg.SenderID,
		IsRead:    msg.IsRead,
		Msg:       msg.Body,
		CreatedAt: msg.CreatedAt,
	}
}

func roomSummaries(rooms []*store.RoomSummary) []proto.RoomSummary {
	out := make([]proto.RoomSummary, 0, len(rooms))
	for _, r := range rooms {
		name := r.CounterpartName
		if name == "" {
			name = core.UnknownDisplayName
		}
		out = append(out, proto.RoomSummary{
			RoomID:            r.RoomID,
			UserID:            r.CounterpartID,
			Name:              name,
			ProfileImageIndex: r.CounterpartImageIndex,
			LastMsg:           r.LastMessage,
			UnreadMsgCnt:      r.UnreadCount,
			LastActivity:      r.LastActivity,
		})
	}
	return out
}
