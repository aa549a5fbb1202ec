package events

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/MashSoftware/diary-api/api/shared"
	"github.com/MashSoftware/diary-api/common/store"

	"github.com/go-kit/kit/endpoint"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/gorilla/mux"
)

type EventTransport struct {
	Id         *string  `json:"id"`
	ChildId    *string  `json:"child_id"`
	UserId     *string  `json:"user_id" validate:"omitempty,uuid4"`
	Type       *string  `json:"type" validate:"required,min=1,max=64"`
	StartedAt  *string  `json:"started_at" validate:"required,dateparse"`
	EndedAt    *string  `json:"ended_at" validate:"omitempty,dateparse"`
	Amount     *float64 `json:"amount" validate:"omitempty,min=0"`
	Unit       *string  `json:"unit" validate:"omitempty,max=32"`
	Side       *string  `json:"side" validate:"omitempty,max=32"`
	FeedType   *string  `json:"feed_type" validate:"omitempty,max=64"`
	ChangeType *string  `json:"change_type" validate:"omitempty,max=64"`
	Notes      *string  `json:"notes"`
	CreatedAt  *string  `json:"created_at"`
	UpdatedAt  *string  `json:"updated_at"`
}

func (e EventTransport) Location() string {
	return "/v1/children/" + *e.ChildId + "/events/" + *e.Id
}

// UpdateEventTransport has the fields of EventTransport, all of them optional.
type UpdateEventTransport struct {
	Id         *string  `json:"-"`
	ChildId    *string  `json:"-"`
	UserId     *string  `json:"user_id" validate:"omitempty,uuid4"`
	Type       *string  `json:"type" validate:"omitempty,min=1,max=64"`
	StartedAt  *string  `json:"started_at" validate:"omitempty,dateparse"`
	EndedAt    *string  `json:"ended_at" validate:"omitempty,dateparse"`
	Amount     *float64 `json:"amount" validate:"omitempty,min=0"`
	Unit       *string  `json:"unit" validate:"omitempty,max=32"`
	Side       *string  `json:"side" validate:"omitempty,max=32"`
	FeedType   *string  `json:"feed_type" validate:"omitempty,max=64"`
	ChangeType *string  `json:"change_type" validate:"omitempty,max=64"`
	Notes      *string  `json:"notes"`
	CreatedAt  *string  `json:"-"`
	UpdatedAt  *string  `json:"-"`
}

type eventRequest struct {
	ChildId string
	EventId string
}

type HandlerFactory struct {
	Service Service `inject:""`
}

func (h *HandlerFactory) Add(opts []kithttp.ServerOption) *kithttp.Server {
	return kithttp.NewServer(
		makeAddEndpoint(h.Service),
		decodeEventRequest,
		shared.EncodeResponse201,
		opts...,
	)
}

func (h *HandlerFactory) Get(opts []kithttp.ServerOption) *kithttp.Server {
	return kithttp.NewServer(
		makeGetEndpoint(h.Service),
		decodeEventIdRequest,
		shared.EncodeResponse200,
		opts...,
	)
}

func (h *HandlerFactory) List(opts []kithttp.ServerOption) *kithttp.Server {
	return kithttp.NewServer(
		makeListEndpoint(h.Service),
		decodeChildIdRequest,
		shared.EncodeResponse200,
		opts...,
	)
}

func (h *HandlerFactory) Update(opts []kithttp.ServerOption) *kithttp.Server {
	return kithttp.NewServer(
		makeUpdateEndpoint(h.Service),
		decodeUpdateEventRequest,
		shared.EncodeResponse200,
		opts...,
	)
}

func (h *HandlerFactory) Delete(opts []kithttp.ServerOption) *kithttp.Server {
	return kithttp.NewServer(
		makeDeleteEndpoint(h.Service),
		decodeEventIdRequest,
		shared.EncodeResponse204,
		opts...,
	)
}

func makeAddEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		createdEvent, err := svc.AddEvent(ctx, request.(EventTransport))
		if err != nil {
			return nil, err
		}

		return DbToTransport(createdEvent), nil
	}
}

func makeGetEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(eventRequest)

		event, err := svc.GetEvent(ctx, req.ChildId, req.EventId)
		if err != nil {
			return nil, err
		}

		return DbToTransport(event), nil
	}
}

func makeListEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		events, err := svc.ListEvents(ctx, request.(string))
		if err != nil {
			return nil, err
		}

		allEvents := []EventTransport{}
		for _, event := range events {
			allEvents = append(allEvents, DbToTransport(event))
		}
		return allEvents, nil
	}
}

func makeUpdateEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		event, err := svc.UpdateEvent(ctx, request.(EventTransport))
		if err != nil {
			return nil, err
		}

		return DbToTransport(event), nil
	}
}

func makeDeleteEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(eventRequest)

		if err := svc.DeleteEvent(ctx, req.ChildId, req.EventId); err != nil {
			return nil, err
		}

		return nil, nil
	}
}

func decodeEventRequest(_ context.Context, r *http.Request) (interface{}, error) {
	childId, err := pathId(r, "childId")
	if err != nil {
		return nil, err
	}
	var request EventTransport
	if err := shared.DecodeJson(r, &request); err != nil {
		return nil, err
	}
	request.Id = nil
	request.ChildId = &childId
	return request, nil
}

func decodeChildIdRequest(_ context.Context, r *http.Request) (interface{}, error) {
	return pathId(r, "childId")
}

func decodeEventIdRequest(_ context.Context, r *http.Request) (interface{}, error) {
	childId, err := pathId(r, "childId")
	if err != nil {
		return nil, err
	}
	eventId, err := pathId(r, "eventId")
	if err != nil {
		return nil, err
	}
	return eventRequest{ChildId: childId, EventId: eventId}, nil
}

func decodeUpdateEventRequest(ctx context.Context, r *http.Request) (interface{}, error) {
	ids, err := decodeEventIdRequest(ctx, r)
	if err != nil {
		return nil, err
	}
	var request UpdateEventTransport
	if err := shared.DecodeJson(r, &request); err != nil {
		return nil, err
	}
	path := ids.(eventRequest)
	request.ChildId = &path.ChildId
	request.Id = &path.EventId
	return EventTransport(request), nil
}

func pathId(r *http.Request, name string) (string, error) {
	vars := mux.Vars(r)
	id, ok := vars[name]
	if !ok {
		return "", shared.ErrBadRouting
	}
	return shared.ParseId(id)
}

// encode errors from business-logic
func EncodeError(_ context.Context, err error, w http.ResponseWriter) {
	shared.EncodeErrorWithStatus(w, shared.StatusOf(err), err)
}

func DbToTransport(event store.Event) EventTransport {
	startedAt := shared.FormatTime(event.StartedAt)
	createdAt := shared.FormatTime(event.CreatedAt)
	transport := EventTransport{
		Id:         &event.EventId.String,
		ChildId:    &event.ChildId.String,
		Type:       &event.Type.String,
		StartedAt:  &startedAt,
		Unit:       nullString(event.Unit),
		Side:       nullString(event.Side),
		FeedType:   nullString(event.FeedType),
		ChangeType: nullString(event.ChangeType),
		Notes:      nullString(event.Notes),
		CreatedAt:  &createdAt,
	}
	if event.UserId.Valid {
		transport.UserId = &event.UserId.String
	}
	if event.EndedAt.Valid {
		endedAt := shared.FormatTime(event.EndedAt.Time)
		transport.EndedAt = &endedAt
	}
	if event.Amount.Valid {
		transport.Amount = &event.Amount.Float64
	}
	if event.UpdatedAt.Valid {
		updatedAt := shared.FormatTime(event.UpdatedAt.Time)
		transport.UpdatedAt = &updatedAt
	}
	return transport
}

func nullString(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	return &value.String
}
