package children

import (
	"context"
	"net/http"

	"github.com/MashSoftware/diary-api/api/shared"
	"github.com/MashSoftware/diary-api/common/store"

	"github.com/go-kit/kit/endpoint"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/gorilla/mux"
)

type ChildTransport struct {
	Id          *string  `json:"id"`
	FirstName   *string  `json:"first_name" validate:"required,min=1,max=255"`
	LastName    *string  `json:"last_name" validate:"required,min=1,max=255"`
	DateOfBirth *string  `json:"date_of_birth" validate:"required,dateparse"`
	Users       []string `json:"users" validate:"required,min=1,dive,uuid4"`
	CreatedAt   *string  `json:"created_at"`
	UpdatedAt   *string  `json:"updated_at"`
}

func (c ChildTransport) Location() string {
	return "/v1/children/" + *c.Id
}

type UpdateChildTransport struct {
	Id          string   `json:"-"`
	FirstName   *string  `json:"first_name" validate:"omitempty,min=1,max=255"`
	LastName    *string  `json:"last_name" validate:"omitempty,min=1,max=255"`
	DateOfBirth *string  `json:"date_of_birth" validate:"omitempty,dateparse"`
	Users       []string `json:"users" validate:"omitempty,min=1,dive,uuid4"`
}

type linkRequest struct {
	ChildId string
	UserId  string
}

type HandlerFactory struct {
	Service Service `inject:""`
}

func (h *HandlerFactory) Add(opts []kithttp.ServerOption) *kithttp.Server {
	return kithttp.NewServer(
		makeAddEndpoint(h.Service),
		decodeChildRequest,
		shared.EncodeResponse201,
		opts...,
	)
}

func (h *HandlerFactory) Get(opts []kithttp.ServerOption) *kithttp.Server {
	return kithttp.NewServer(
		makeGetEndpoint(h.Service),
		decodeChildIdRequest,
		shared.EncodeResponse200,
		opts...,
	)
}

func (h *HandlerFactory) List(opts []kithttp.ServerOption) *kithttp.Server {
	return kithttp.NewServer(
		makeListEndpoint(h.Service),
		decodeListRequest,
		shared.EncodeResponse200,
		opts...,
	)
}

func (h *HandlerFactory) Update(opts []kithttp.ServerOption) *kithttp.Server {
	return kithttp.NewServer(
		makeUpdateEndpoint(h.Service),
		decodeUpdateChildRequest,
		shared.EncodeResponse200,
		opts...,
	)
}

func (h *HandlerFactory) Delete(opts []kithttp.ServerOption) *kithttp.Server {
	return kithttp.NewServer(
		makeDeleteEndpoint(h.Service),
		decodeChildIdRequest,
		shared.EncodeResponse204,
		opts...,
	)
}

func (h *HandlerFactory) LinkUser(opts []kithttp.ServerOption) *kithttp.Server {
	return kithttp.NewServer(
		makeLinkUserEndpoint(h.Service),
		decodeLinkRequest,
		shared.EncodeResponse200,
		opts...,
	)
}

func (h *HandlerFactory) UnlinkUser(opts []kithttp.ServerOption) *kithttp.Server {
	return kithttp.NewServer(
		makeUnlinkUserEndpoint(h.Service),
		decodeLinkRequest,
		shared.EncodeResponse204,
		opts...,
	)
}

func makeAddEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(ChildTransport)

		createdChild, err := svc.AddChild(ctx, req)
		if err != nil {
			return nil, err
		}

		return DbToTransport(createdChild), nil
	}
}

func makeGetEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		child, err := svc.GetChild(ctx, request.(string))
		if err != nil {
			return nil, err
		}

		return DbToTransport(child), nil
	}
}

func makeListEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		children, err := svc.ListChildren(ctx, request.(string))
		if err != nil {
			return nil, err
		}

		allChildren := []ChildTransport{}
		for _, child := range children {
			allChildren = append(allChildren, DbToTransport(child))
		}
		return allChildren, nil
	}
}

func makeUpdateEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(UpdateChildTransport)

		child, err := svc.UpdateChild(ctx, req)
		if err != nil {
			return nil, err
		}

		return DbToTransport(child), nil
	}
}

func makeDeleteEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		if _, err := svc.DeleteChild(ctx, request.(string)); err != nil {
			return nil, err
		}

		return nil, nil
	}
}

func makeLinkUserEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(linkRequest)

		child, err := svc.LinkUser(ctx, req.ChildId, req.UserId)
		if err != nil {
			return nil, err
		}

		return DbToTransport(child), nil
	}
}

func makeUnlinkUserEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(linkRequest)

		if err := svc.UnlinkUser(ctx, req.ChildId, req.UserId); err != nil {
			return nil, err
		}

		return nil, nil
	}
}

func decodeChildRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var request ChildTransport
	if err := shared.DecodeJson(r, &request); err != nil {
		return nil, err
	}
	return request, nil
}

func decodeChildIdRequest(_ context.Context, r *http.Request) (interface{}, error) {
	return pathId(r, "childId")
}

func decodeListRequest(_ context.Context, r *http.Request) (interface{}, error) {
	userId := r.URL.Query().Get("user_id")
	if userId == "" {
		return "", nil
	}
	return shared.ParseId(userId)
}

func decodeUpdateChildRequest(_ context.Context, r *http.Request) (interface{}, error) {
	childId, err := pathId(r, "childId")
	if err != nil {
		return nil, err
	}
	var request UpdateChildTransport
	if err := shared.DecodeJson(r, &request); err != nil {
		return nil, err
	}
	request.Id = childId
	return request, nil
}

func decodeLinkRequest(_ context.Context, r *http.Request) (interface{}, error) {
	childId, err := pathId(r, "childId")
	if err != nil {
		return nil, err
	}
	userId, err := pathId(r, "userId")
	if err != nil {
		return nil, err
	}
	return linkRequest{ChildId: childId, UserId: userId}, nil
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

func DbToTransport(child store.Child) ChildTransport {
	users := child.Users
	if users == nil {
		users = []string{}
	}
	dateOfBirth := shared.FormatDate(child.DateOfBirth)
	createdAt := shared.FormatTime(child.CreatedAt)
	transport := ChildTransport{
		Id:          &child.ChildId.String,
		FirstName:   &child.FirstName.String,
		LastName:    &child.LastName.String,
		DateOfBirth: &dateOfBirth,
		Users:       users,
		CreatedAt:   &createdAt,
	}
	if child.UpdatedAt.Valid {
		updatedAt := shared.FormatTime(child.UpdatedAt.Time)
		transport.UpdatedAt = &updatedAt
	}
	return transport
}
